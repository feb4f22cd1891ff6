package cgi

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/helouazizi/localserver/internal/respond"
)

// BuildResponse turns raw CGI output into a full HTTP response per RFC 3875
// §6. A script that emits a status line of its own (an NPH script) is
// passed through untouched; otherwise the CGI header block (terminated by
// a blank line, CRLF or bare LF) is parsed for a "Status:" line and any
// other headers, which are merged onto the rest of respond.Build's usual
// framing.
func BuildResponse(output []byte) []byte {
	if bytes.HasPrefix(output, []byte("HTTP/")) {
		return output
	}

	headerPart, bodyPart := splitCgiOutput(output)

	statusCode := 200
	headers := make([]respond.Header, 0, 8)
	hasContentType := false

	if len(headerPart) > 0 {
		for _, line := range strings.Split(string(headerPart), "\n") {
			line = strings.TrimRight(line, "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			if strings.EqualFold(key, "status") {
				statusCode = parseStatusValue(value)
				continue
			}
			if strings.EqualFold(key, "content-type") {
				hasContentType = true
			}
			headers = append(headers, respond.Header{Name: key, Value: value})
		}
	}

	if !hasContentType {
		headers = append(headers, respond.Header{Name: "Content-Type", Value: "text/plain"})
	}

	return respond.Build(statusCode, headers, bodyPart)
}

// splitCgiOutput separates the CGI header block from the body on the
// first blank line, accepting either CRLF CRLF or a bare LF LF terminator
// since scripts commonly emit the latter.
func splitCgiOutput(output []byte) (header, body []byte) {
	if idx := bytes.Index(output, []byte("\r\n\r\n")); idx >= 0 {
		return output[:idx], output[idx+4:]
	}
	if idx := bytes.Index(output, []byte("\n\n")); idx >= 0 {
		return output[:idx], output[idx+2:]
	}
	return nil, output
}

// parseStatusValue reads the numeric code out of a "Status:" value like
// "404 Not Found", defaulting to 200 if it doesn't parse.
func parseStatusValue(value string) int {
	code, _, _ := strings.Cut(value, " ")
	n, err := strconv.Atoi(code)
	if err != nil {
		return 200
	}
	return n
}

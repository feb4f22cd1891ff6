// Package httpmsg is the request-side half of the wire protocol: a pure
// function from a growing byte buffer to either "incomplete", "malformed",
// or a parsed request with headers and decoded body (spec.md §4.C), plus
// ParseMultipart, which separately parses a multipart/form-data body. It never blocks and never reads from a socket itself —
// the reactor owns the buffer and calls IsComplete/Parse against it as
// bytes arrive.
package httpmsg

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
)

// ErrIncomplete means the buffer does not yet hold a full request; the
// caller should keep reading and try again.
var ErrIncomplete = errors.New("httpmsg: incomplete request")

// ErrMalformed means the buffer can never become a valid request as-is
// (bad request line, truncated chunk framing, etc).
var ErrMalformed = errors.New("httpmsg: malformed request")

// Request is a fully parsed HTTP/1.1 request.
type Request struct {
	Method  string
	URI     string
	Path    string
	Query   string
	Headers map[string]string // lowercased names, last-write-wins (spec.md §4.C)
	Body    []byte
}

// Header looks up a header by case-insensitive name.
func (r *Request) Header(name string) (string, bool) {
	v, ok := r.Headers[strings.ToLower(name)]
	return v, ok
}

// IsComplete reports whether buf holds a full request under the framing
// rules of spec.md §4.C. For a Content-Length or bodiless request it
// allocates nothing beyond parsing the header block; for a chunked body it
// runs the full chunk decoder, which allocates a copy of the decoded bytes.
// It must be kept in lock-step with Parse's framing decisions.
func IsComplete(buf []byte) bool {
	headerEnd := findHeaderEnd(buf)
	if headerEnd < 0 {
		return false
	}
	headerBytes := buf[:headerEnd]
	bodySlice := buf[headerEnd:]
	headers := parseHeaderLines(headerBytes)

	if isChunked(headers) {
		_, _, ok := decodeChunked(bodySlice)
		return ok
	}

	contentLength := contentLengthOf(headers)
	return len(bodySlice) >= contentLength
}

// Parse parses buf into a Request, or returns ErrIncomplete/ErrMalformed.
func Parse(buf []byte) (*Request, error) {
	headerEnd := findHeaderEnd(buf)
	if headerEnd < 0 {
		return nil, ErrIncomplete
	}
	headerBytes := buf[:headerEnd]
	bodySlice := buf[headerEnd:]

	lines := strings.Split(string(headerBytes), "\r\n")
	if len(lines) == 0 {
		return nil, ErrMalformed
	}
	requestLine := strings.Fields(lines[0])
	if len(requestLine) < 2 {
		return nil, ErrMalformed
	}
	method, uri := requestLine[0], requestLine[1]

	headers := parseHeaderLines(headerBytes)

	var body []byte
	if isChunked(headers) {
		decoded, _, ok := decodeChunked(bodySlice)
		if !ok {
			return nil, ErrMalformed
		}
		body = decoded
	} else {
		contentLength := contentLengthOf(headers)
		if len(bodySlice) < contentLength {
			return nil, ErrIncomplete
		}
		body = append([]byte(nil), bodySlice[:contentLength]...)
	}

	path, query := uri, ""
	if idx := strings.IndexByte(uri, '?'); idx >= 0 {
		path, query = uri[:idx], uri[idx+1:]
	}

	return &Request{
		Method:  method,
		URI:     uri,
		Path:    path,
		Query:   query,
		Headers: headers,
		Body:    body,
	}, nil
}

func findHeaderEnd(buf []byte) int {
	idx := bytes.Index(buf, []byte("\r\n\r\n"))
	if idx < 0 {
		return -1
	}
	return idx + 4
}

// parseHeaderLines parses the header block (request line + CRLF-terminated
// header fields) into a lowercased-name map. Duplicate headers overwrite
// rather than concatenate (spec.md §9 Open Question 3, carried unchanged
// from the original implementation).
func parseHeaderLines(headerBytes []byte) map[string]string {
	headers := make(map[string]string)
	lines := strings.Split(string(headerBytes), "\r\n")
	for _, line := range lines[1:] {
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}
	return headers
}

func isChunked(headers map[string]string) bool {
	te, ok := headers["transfer-encoding"]
	if !ok {
		return false
	}
	for _, part := range strings.Split(te, ",") {
		if strings.EqualFold(strings.TrimSpace(part), "chunked") {
			return true
		}
	}
	return false
}

func contentLengthOf(headers map[string]string) int {
	cl, ok := headers["content-length"]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(cl))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

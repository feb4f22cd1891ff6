package httpmsg

import (
	"bytes"
	"strings"
)

// UploadedFile is one file-bearing part of a parsed multipart/form-data
// body. FileName is taken verbatim from the quoted filename= value; the
// reactor is responsible for sanitising it before using it as a path
// (spec.md §4.C).
type UploadedFile struct {
	FileName string
	Data     []byte
}

// MultipartForm is the result of parsing a multipart/form-data body.
type MultipartForm struct {
	Files []UploadedFile
}

// ParseMultipart parses body as multipart/form-data if the request's
// Content-Type header names that media type with a boundary parameter.
// The second return value is false if the request isn't multipart at all
// (the caller should then fall back to raw-body upload handling).
func ParseMultipart(headers map[string]string, body []byte) (*MultipartForm, bool) {
	contentType, ok := headers["content-type"]
	if !ok || !strings.Contains(contentType, "multipart/form-data") {
		return nil, false
	}

	idx := strings.Index(contentType, "boundary=")
	if idx < 0 {
		return nil, false
	}
	boundary := strings.TrimSpace(contentType[idx+len("boundary="):])
	boundaryBytes := append([]byte("--"), boundary...)

	form := &MultipartForm{}
	pos := 0
	for {
		start := indexFrom(body, boundaryBytes, pos)
		if start < 0 {
			break
		}
		partStart := start + len(boundaryBytes)
		end := indexFrom(body, boundaryBytes, partStart)
		if end < 0 {
			break // final boundary, or no closing boundary present
		}

		if file, ok := parseMultipartPart(body[partStart:end]); ok {
			form.Files = append(form.Files, file)
		}
		pos = end
	}

	return form, true
}

func parseMultipartPart(partData []byte) (UploadedFile, bool) {
	data := bytes.TrimPrefix(partData, []byte("\r\n"))

	headerEnd := findHeaderEnd(data)
	if headerEnd < 0 {
		return UploadedFile{}, false
	}
	headerBytes := data[:headerEnd]
	fileContent := data[headerEnd:]
	fileContent = bytes.TrimSuffix(fileContent, []byte("\r\n"))

	fileName := ""
	for _, line := range strings.Split(string(headerBytes), "\r\n") {
		if strings.HasPrefix(strings.ToLower(line), "content-disposition:") {
			if name, ok := extractQuoted(line, "filename=\""); ok {
				fileName = name
			}
		}
	}

	if fileName == "" {
		return UploadedFile{}, false
	}
	return UploadedFile{FileName: fileName, Data: fileContent}, true
}

func extractQuoted(line, marker string) (string, bool) {
	idx := strings.Index(line, marker)
	if idx < 0 {
		return "", false
	}
	rest := line[idx+len(marker):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

func indexFrom(haystack, needle []byte, start int) int {
	if start > len(haystack) {
		return -1
	}
	idx := bytes.Index(haystack[start:], needle)
	if idx < 0 {
		return -1
	}
	return idx + start
}

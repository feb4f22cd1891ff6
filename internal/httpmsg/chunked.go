package httpmsg

import (
	"bytes"
	"strconv"
	"strings"
)

// decodeChunked decodes a chunked transfer-coded body per spec.md §4.C: a
// size line (hex, optional ";"-delimited extensions) terminated by CRLF,
// followed by exactly that many bytes and a trailing CRLF, repeated until a
// zero-size chunk, optionally followed by a trailer header block. It
// returns the decoded bytes, the number of input bytes consumed, and
// whether decoding succeeded — false means either the input is malformed
// or (for the common case of a partial read) simply not fully arrived yet;
// callers that need to distinguish incomplete-from-malformed only do so
// through IsComplete/Parse's two-phase checks, matching the original
// implementation's own Option-returning decode_chunked_body.
func decodeChunked(body []byte) ([]byte, int, bool) {
	var decoded []byte
	pos := 0

	for {
		rest := body[pos:]
		lineEndRel := bytes.Index(rest, []byte("\r\n"))
		if lineEndRel < 0 {
			return nil, 0, false
		}
		sizeLine := string(rest[:lineEndRel])
		sizeHex := strings.TrimSpace(strings.SplitN(sizeLine, ";", 2)[0])
		chunkSize, err := strconv.ParseUint(sizeHex, 16, 64)
		if err != nil {
			return nil, 0, false
		}
		pos += lineEndRel + 2

		if chunkSize == 0 {
			trailer := body[pos:]
			if bytes.HasPrefix(trailer, []byte("\r\n")) {
				pos += 2
				return decoded, pos, true
			}
			trailerEnd := bytes.Index(trailer, []byte("\r\n\r\n"))
			if trailerEnd < 0 {
				return nil, 0, false
			}
			pos += trailerEnd + 4
			return decoded, pos, true
		}

		end := pos + int(chunkSize)
		if len(body) < end+2 {
			return nil, 0, false
		}
		decoded = append(decoded, body[pos:end]...)
		pos = end

		if !bytes.Equal(body[pos:pos+2], []byte("\r\n")) {
			return nil, 0, false
		}
		pos += 2
	}
}

// EncodeChunked re-encodes data as a single chunk, used by tests asserting
// chunked idempotence (spec.md §8): decoding EncodeChunked(data) must yield
// data back.
func EncodeChunked(data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(strconv.FormatInt(int64(len(data)), 16))
	buf.WriteString("\r\n")
	buf.Write(data)
	buf.WriteString("\r\n0\r\n\r\n")
	return buf.Bytes()
}

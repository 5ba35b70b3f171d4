package dicomweb

import (
	"bytes"
	"encoding/binary"
	"errors"
)

var crlf = []byte("\r\n")

// errMalformedFrame marks a frame body that cannot be decoded, usually a
// transient truncated read. Callers reissue the request instead of
// surfacing it.
var errMalformedFrame = errors.New("malformed multipart frame body")

// parseMultipartFrame slices the pixel payload out of a multipart frame
// response and decodes it as little-endian signed 16-bit samples. The
// payload sits between the first blank-line delimiter after the part
// headers and the line delimiter that opens the trailing boundary; both
// delimiters are excluded.
func parseMultipartFrame(content []byte) ([]int16, error) {
	headerEnd := bytes.Index(content, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		return nil, errMalformedFrame
	}
	start := headerEnd + 4

	trailing := bytes.LastIndex(content, crlf)
	if trailing < 0 {
		return nil, errMalformedFrame
	}
	end := bytes.LastIndex(content[:trailing], crlf)
	if end < start {
		return nil, errMalformedFrame
	}

	payload := content[start:end]
	if len(payload)%2 != 0 {
		return nil, errMalformedFrame
	}

	samples := make([]int16, len(payload)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(payload[2*i:]))
	}
	return samples, nil
}

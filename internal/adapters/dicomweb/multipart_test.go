package dicomweb

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildFrameBody assembles a multipart frame response around the given
// samples.
func buildFrameBody(samples []int16) []byte {
	var payload bytes.Buffer
	for _, s := range samples {
		binary.Write(&payload, binary.LittleEndian, s)
	}

	var body bytes.Buffer
	body.WriteString("--BOUNDARY\r\n")
	body.WriteString("Content-Type: application/octet-stream\r\n")
	body.WriteString("\r\n")
	body.Write(payload.Bytes())
	body.WriteString("\r\n--BOUNDARY--\r\n")
	return body.Bytes()
}

func TestParseMultipartFrame(t *testing.T) {
	want := []int16{-32768, -1, 0, 1, 32767}
	body := buildFrameBody(want)

	got, err := parseMultipartFrame(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestParseMultipartFrameExcludesDelimiters(t *testing.T) {
	got, err := parseMultipartFrame(buildFrameBody([]int16{7, 8}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// exactly the payload: no boundary or delimiter bytes decoded
	if len(got) != 2 {
		t.Errorf("got %d samples, want 2", len(got))
	}
}

func TestParseMultipartFrameMalformed(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"empty", nil},
		{"no header delimiter", []byte("garbage")},
		{"no trailing delimiter", []byte("h\r\n\r\npayload")},
		{"odd payload length", append([]byte("h\r\n\r\nabc"), []byte("\r\n--B--\r\n")...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseMultipartFrame(tt.body); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}

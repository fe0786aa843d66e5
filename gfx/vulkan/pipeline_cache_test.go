package vulkan

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func encodeHeader(t *testing.T, header pipelineCacheHeader, payload int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		t.Fatalf("binary.Write: %v", err)
	}
	buf.Write(make([]byte, payload))
	return buf.Bytes()
}

func TestParsePipelineCacheHeader(t *testing.T) {
	want := pipelineCacheHeader{
		Length:   32,
		Version:  pipelineCacheHeaderVersionOne,
		VendorID: 0x10de,
		DeviceID: 0x2484,
		UUID:     uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
	}
	data := encodeHeader(t, want, 128)
	if len(data) != 32+128 {
		t.Fatalf("encoded header is %d bytes", len(data)-128)
	}
	// The vendor ID is stored least significant byte first.
	if data[8] != 0xde || data[9] != 0x10 {
		t.Fatalf("vendor ID bytes % x", data[8:12])
	}

	got, err := parsePipelineCacheHeader(data)
	if err != nil {
		t.Fatalf("parsePipelineCacheHeader: unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("parsePipelineCacheHeader: got %+v, want %+v", got, want)
	}

	if _, err := parsePipelineCacheHeader(data[:20]); err == nil {
		t.Fatal("parsePipelineCacheHeader: truncated header accepted")
	}
}

func TestCheckPipelineCacheHeader(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	valid := pipelineCacheHeader{
		Length:   32,
		Version:  pipelineCacheHeaderVersionOne,
		VendorID: 1,
		DeviceID: 2,
		UUID:     id,
	}
	if err := checkPipelineCacheHeader(valid, 1, 2, id); err != nil {
		t.Fatalf("checkPipelineCacheHeader: unexpected error: %v", err)
	}

	cases := []struct {
		name   string
		modify func(h *pipelineCacheHeader)
		want   string
	}{
		{"length", func(h *pipelineCacheHeader) { h.Length = 0 }, "header length"},
		{"version", func(h *pipelineCacheHeader) { h.Version = 2 }, "header version"},
		{"vendor", func(h *pipelineCacheHeader) { h.VendorID = 9 }, "vendor ID"},
		{"device", func(h *pipelineCacheHeader) { h.DeviceID = 9 }, "device ID"},
		{"uuid", func(h *pipelineCacheHeader) { h.UUID = uuid.Nil }, "UUID"},
	}
	for _, c := range cases {
		h := valid
		c.modify(&h)
		err := checkPipelineCacheHeader(h, 1, 2, id)
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Fatalf("checkPipelineCacheHeader(%s): got %v, want an error about %s", c.name, err, c.want)
		}
	}
}

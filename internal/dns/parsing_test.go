package dns

import (
	"errors"
	"testing"
)

func TestParseRequestBoundedRejectsResponse(t *testing.T) {
	// header with QR=1
	msg := make([]byte, 12)
	msg[2] = 0x80
	msg[5] = 1 // qdcount=1
	_, err := ParseRequestBounded(msg)
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseRequestBoundedRejectsUnsupportedOpcode(t *testing.T) {
	p := Packet{
		Header:    Header{ID: 1, Flags: uint16(1) << 11}, // opcode 1 (IQUERY)
		Questions: []Question{{Name: "example.com.", Type: uint16(TypeA), Class: uint16(ClassIN)}},
	}
	msg, err := p.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	_, err = ParseRequestBounded(msg)
	if !errors.Is(err, ErrUnsupportedOpcode) {
		t.Fatalf("expected ErrUnsupportedOpcode, got %v", err)
	}
}

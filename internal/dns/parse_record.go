package dns

import (
	"encoding/binary"
	"fmt"
)

// ParseRecord parses a single resource record (name + fixed fields + RDATA)
// from the message at the given offset, dispatching to the concrete Record
// type for its wire format. It advances *off past the record on success.
func ParseRecord(msg []byte, off *int) (Record, error) {
	name, err := DecodeName(msg, off)
	if err != nil {
		return nil, err
	}
	if *off+10 > len(msg) {
		return nil, fmt.Errorf("%w: unexpected EOF while reading DNS record", ErrDNSError)
	}
	rrType := binary.BigEndian.Uint16(msg[*off : *off+2])
	rrClass := binary.BigEndian.Uint16(msg[*off+2 : *off+4])
	ttl := binary.BigEndian.Uint32(msg[*off+4 : *off+8])
	rdlen := int(binary.BigEndian.Uint16(msg[*off+8 : *off+10]))
	*off += 10
	start := *off
	if start+rdlen > len(msg) {
		return nil, fmt.Errorf("%w: unexpected EOF while reading DNS record rdata", ErrDNSError)
	}

	h := RRHeader{Name: name, Class: rrClass, TTL: ttl}

	var rec Record
	switch RecordType(rrType) {
	case TypeA, TypeAAAA:
		rec, err = ParseIPRData(msg, off, rdlen)
	case TypeCNAME, TypeNS, TypePTR:
		rec, err = ParseNameRData(msg, off, start, rdlen, RecordType(rrType))
	case TypeMX:
		rec, err = ParseMXRData(msg, off, start, rdlen)
	case TypeSRV:
		rec, err = ParseSRVRData(msg, off, start, rdlen)
	case TypeSOA:
		rec, err = ParseSOARData(msg, off, start, rdlen)
	case TypeTXT:
		rec, err = ParseTXTRData(msg, off, rdlen)
	default:
		rec, err = ParseOpaqueRData(msg, off, rdlen, RecordType(rrType))
	}
	if err != nil {
		return nil, err
	}
	rec.SetHeader(h)
	return rec, nil
}

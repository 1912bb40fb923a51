package dns

import "encoding/binary"

// Record is the common interface satisfied by every resource record type
// this package produces or consumes. Concrete types (IPRecord, NameRecord,
// MXRecord, SRVRecord, SOARecord, TXTRecord, OpaqueRecord) each carry an
// RRHeader plus their type-specific RDATA; wire types this package doesn't
// model explicitly fall back to OpaqueRecord, so decode-then-encode is
// always lossless even for record types we never special-cased.
type Record interface {
	Type() RecordType
	Header() RRHeader
	SetHeader(RRHeader)
	MarshalRData() ([]byte, error)
}

// RRHeader carries the fields common to every resource record: owner name,
// class, and TTL. The type and RDATA live on the concrete Record.
type RRHeader struct {
	Name  string
	Class uint16
	TTL   uint32
}

// NewRRHeader builds an RRHeader for a record about to be constructed.
func NewRRHeader(name string, class uint16, ttl uint32) RRHeader {
	return RRHeader{Name: name, Class: class, TTL: ttl}
}

// MarshalRecord serializes any Record to wire format: owner name, type,
// class, TTL, RDATA length, then RDATA. The OPT pseudo-record has its own
// encoding (see OPTRecord.Marshal) and is never passed through here in
// practice, but a root name is used for it regardless.
func MarshalRecord(r Record) ([]byte, error) {
	h := r.Header()

	nameWire := []byte{0}
	if r.Type() != TypeOPT {
		b, err := EncodeName(h.Name)
		if err != nil {
			return nil, err
		}
		nameWire = b
	}

	rdata, err := r.MarshalRData()
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(nameWire)+10+len(rdata))
	out = append(out, nameWire...)
	fixed := make([]byte, 10)
	binary.BigEndian.PutUint16(fixed[0:2], uint16(r.Type()))
	binary.BigEndian.PutUint16(fixed[2:4], h.Class)
	binary.BigEndian.PutUint32(fixed[4:8], h.TTL)
	binary.BigEndian.PutUint16(fixed[8:10], uint16(len(rdata)))
	out = append(out, fixed...)
	out = append(out, rdata...)
	return out, nil
}

package dns

import "fmt"

// TXTRecord represents a DNS TXT record: one or more character-strings,
// each at most 255 bytes, concatenated without separators on the wire.
type TXTRecord struct {
	H      RRHeader
	Values []string
}

// NewTXTRecord creates a new TXT record from one or more text values.
func NewTXTRecord(h RRHeader, values ...string) *TXTRecord {
	return &TXTRecord{H: h, Values: values}
}

// Type returns TypeTXT.
func (r *TXTRecord) Type() RecordType { return TypeTXT }

// Header returns the record header.
func (r *TXTRecord) Header() RRHeader { return r.H }

// SetHeader sets the record header.
func (r *TXTRecord) SetHeader(h RRHeader) { r.H = h }

// MarshalRData marshals each value as a length-prefixed character-string,
// splitting any value over 255 bytes into multiple chunks.
func (r *TXTRecord) MarshalRData() ([]byte, error) {
	out := make([]byte, 0, 32)
	for _, v := range r.Values {
		b := []byte(v)
		for len(b) > 255 {
			out = append(out, 255)
			out = append(out, b[:255]...)
			b = b[255:]
		}
		out = append(out, byte(len(b)))
		out = append(out, b...)
	}
	return out, nil
}

// ParseTXTRData parses one or more character-strings from TXT RDATA.
func ParseTXTRData(msg []byte, off *int, rdlen int) (*TXTRecord, error) {
	end := *off + rdlen
	if end > len(msg) {
		return nil, fmt.Errorf("%w: unexpected EOF reading TXT record (RFC 1035 §3.3.14)", ErrDNSError)
	}
	values := make([]string, 0, 1)
	for *off < end {
		ln := int(msg[*off])
		*off++
		if *off+ln > end {
			return nil, fmt.Errorf("%w: TXT character-string overruns RDATA", ErrDNSError)
		}
		values = append(values, string(msg[*off:*off+ln]))
		*off += ln
	}
	return &TXTRecord{Values: values}, nil
}

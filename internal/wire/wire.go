// Package wire implements the resolution pipeline's wire codec (spec §4.1):
// encoding and decoding RFC 1035 DNS messages into the core domain model,
// on top of the low-level primitives in internal/dns (name compression,
// header/question/record framing).
package wire

import (
	"errors"
	"fmt"
	"net"

	"github.com/jroosing/hydradns/internal/core"
	"github.com/jroosing/hydradns/internal/dns"
)

// MaxUDPMessageSize is the traditional (non-EDNS) UDP response ceiling.
const MaxUDPMessageSize = 512

// MaxMessageSize bounds any transport-framed message this codec will emit.
const MaxMessageSize = 65535

// DecodeQuery parses a wire-format DNS query into the core domain model.
// Returns core.ErrMalformed on any RFC 1035 violation and core.ErrNotImplemented
// for opcodes other than QUERY.
func DecodeQuery(msg []byte) (core.DnsQuery, error) {
	q, _, _, err := DecodeQueryFull(msg)
	return q, err
}

// DecodeQueryFull is DecodeQuery plus the question and header flags a
// front-end needs to echo back via EncodeResponse (the question as
// ParseQuestion returns it, name normalized, and the client's request flags).
func DecodeQueryFull(msg []byte) (core.DnsQuery, dns.Question, uint16, error) {
	p, err := dns.ParseRequestBounded(msg)
	if err != nil {
		if errors.Is(err, dns.ErrUnsupportedOpcode) {
			return core.DnsQuery{}, dns.Question{}, 0, fmt.Errorf("%w: %v", core.ErrNotImplemented, err)
		}
		return core.DnsQuery{}, dns.Question{}, 0, fmt.Errorf("%w: %v", core.ErrMalformed, err)
	}
	if len(p.Questions) != 1 {
		return core.DnsQuery{}, dns.Question{}, 0, fmt.Errorf("%w: expected exactly one question", core.ErrMalformed)
	}
	q := p.Questions[0]
	query := core.DnsQuery{
		ID:               p.Header.ID,
		Name:             dns.NormalizeName(q.Name),
		Type:             core.RecordType(q.Type),
		Class:            q.Class,
		RecursionDesired: p.Header.Flags&dns.RDFlag != 0,
	}
	return query, q, p.Header.Flags, nil
}

// DecodeResponse parses a wire-format DNS response into the core domain model.
func DecodeResponse(msg []byte) (core.DnsResponse, error) {
	p, err := dns.ParsePacket(msg)
	if err != nil {
		return core.DnsResponse{}, fmt.Errorf("%w: %v", core.ErrMalformed, err)
	}
	resp := core.DnsResponse{
		ID:    p.Header.ID,
		RCode: core.RCode(dns.RCodeFromFlags(p.Header.Flags)),
	}
	resp.Answers, err = recordsToCore(p.Answers)
	if err != nil {
		return core.DnsResponse{}, err
	}
	resp.Authorities, err = recordsToCore(p.Authorities)
	if err != nil {
		return core.DnsResponse{}, err
	}
	resp.Additionals, err = recordsToCore(p.Additionals)
	if err != nil {
		return core.DnsResponse{}, err
	}
	return resp, nil
}

// EncodeQuery serializes a core.DnsQuery to wire format.
func EncodeQuery(q core.DnsQuery) ([]byte, error) {
	flags := uint16(0)
	if q.RecursionDesired {
		flags |= dns.RDFlag
	}
	class := q.Class
	if class == 0 {
		class = uint16(dns.ClassIN)
	}
	p := dns.Packet{
		Header: dns.Header{ID: q.ID, Flags: flags, QDCount: 1},
		Questions: []dns.Question{{
			Name:  q.Name,
			Type:  uint16(q.Type),
			Class: class,
		}},
	}
	return p.Marshal()
}

// EncodeResponse serializes a core.DnsResponse to wire format. allowTruncate
// controls whether a response over MaxUDPMessageSize is truncated with TC
// set (per spec §4.1/§4.7); when false (DoT/DoH/DoQ front-ends), a message
// of up to 65535 bytes is returned whole and a larger one yields
// core.ErrEncodeOverflow.
func EncodeResponse(resp core.DnsResponse, requestFlags uint16, question dns.Question, allowTruncate bool) ([]byte, error) {
	answers, err := recordsFromCore(resp.Answers)
	if err != nil {
		return nil, err
	}
	authorities, err := recordsFromCore(resp.Authorities)
	if err != nil {
		return nil, err
	}
	additionals, err := recordsFromCore(resp.Additionals)
	if err != nil {
		return nil, err
	}

	flags := dns.QRFlag | (requestFlags & dns.RDFlag) | uint16(resp.RCode)&dns.RCodeMask
	p := dns.Packet{
		Header:      dns.Header{ID: resp.ID, Flags: flags},
		Questions:   []dns.Question{question},
		Answers:     answers,
		Authorities: authorities,
		Additionals: additionals,
	}

	b, err := p.Marshal()
	if err != nil {
		return nil, err
	}
	if len(b) <= MaxUDPMessageSize || !allowTruncate && len(b) <= MaxMessageSize {
		return b, nil
	}
	if len(b) > MaxMessageSize {
		return nil, core.ErrEncodeOverflow
	}
	if !allowTruncate {
		return b, nil
	}
	return truncate(p)
}

// truncate rebuilds the message with empty answer/authority/additional
// sections and the TC bit set, per RFC 1035 §4.1.1.
func truncate(p dns.Packet) ([]byte, error) {
	p.Answers = nil
	p.Authorities = nil
	p.Additionals = nil
	p.Header.Flags |= dns.TCFlag
	return p.Marshal()
}

func recordsToCore(recs []dns.Record) ([]core.Record, error) {
	out := make([]core.Record, 0, len(recs))
	for _, r := range recs {
		cr, err := recordToCore(r)
		if err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, nil
}

func recordToCore(r dns.Record) (core.Record, error) {
	h := r.Header()
	cr := core.Record{Name: h.Name, Type: core.RecordType(r.Type()), Class: h.Class, TTL: h.TTL}

	switch rec := r.(type) {
	case *dns.IPRecord:
		cr.Value = rec.Addr.String()
	case *dns.NameRecord:
		cr.Value = rec.Target
	case *dns.MXRecord:
		cr.Value = core.MXValue{Preference: rec.Preference, Exchange: rec.Exchange}
	case *dns.SRVRecord:
		cr.Value = core.SRVValue{Priority: rec.Priority, Weight: rec.Weight, Port: rec.Port, Target: rec.Target}
	case *dns.SOARecord:
		cr.Value = core.SOAValue{
			MName: rec.MName, RName: rec.RName, Serial: rec.Serial,
			Refresh: rec.Refresh, Retry: rec.Retry, Expire: rec.Expire, Minimum: rec.Minimum,
		}
	case *dns.TXTRecord:
		cr.Value = append([]string(nil), rec.Values...)
	case *dns.OpaqueRecord:
		b, _ := rec.Data.([]byte)
		cr.Value = append([]byte(nil), b...)
	default:
		return core.Record{}, fmt.Errorf("%w: unknown record implementation %T", core.ErrMalformed, r)
	}
	return cr, nil
}

func recordsFromCore(recs []core.Record) ([]dns.Record, error) {
	out := make([]dns.Record, 0, len(recs))
	for _, r := range recs {
		dr, err := recordFromCore(r)
		if err != nil {
			return nil, err
		}
		out = append(out, dr)
	}
	return out, nil
}

func recordFromCore(r core.Record) (dns.Record, error) {
	h := dns.NewRRHeader(r.Name, r.Class, r.TTL)
	switch r.Type {
	case core.TypeA, core.TypeAAAA:
		s, ok := r.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: A/AAAA record value must be a string", core.ErrInternal)
		}
		ip := net.ParseIP(s)
		if ip == nil {
			return nil, fmt.Errorf("%w: invalid IP address %q", core.ErrInternal, s)
		}
		return dns.NewIPRecord(h, ip), nil
	case core.TypeCNAME, core.TypeNS, core.TypePTR:
		s, ok := r.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: name-based record value must be a string", core.ErrInternal)
		}
		return dns.NewNameRecord(h, dns.RecordType(r.Type), s), nil
	case core.TypeMX:
		mx, ok := r.Value.(core.MXValue)
		if !ok {
			return nil, fmt.Errorf("%w: MX record value must be MXValue", core.ErrInternal)
		}
		return dns.NewMXRecord(h, mx.Preference, mx.Exchange), nil
	case core.TypeSRV:
		srv, ok := r.Value.(core.SRVValue)
		if !ok {
			return nil, fmt.Errorf("%w: SRV record value must be SRVValue", core.ErrInternal)
		}
		return dns.NewSRVRecord(h, srv.Priority, srv.Weight, srv.Port, srv.Target), nil
	case core.TypeSOA:
		soa, ok := r.Value.(core.SOAValue)
		if !ok {
			return nil, fmt.Errorf("%w: SOA record value must be SOAValue", core.ErrInternal)
		}
		return dns.NewSOARecord(h, soa.MName, soa.RName, soa.Serial, soa.Refresh, soa.Retry, soa.Expire, soa.Minimum), nil
	case core.TypeTXT:
		values, _ := r.Value.([]string)
		return dns.NewTXTRecord(h, values...), nil
	default:
		b, _ := r.Value.([]byte)
		return dns.NewOpaqueRecord(h, dns.RecordType(r.Type), b), nil
	}
}

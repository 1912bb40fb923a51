package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jroosing/hydradns/internal/core"
	"github.com/jroosing/hydradns/internal/dns"
)

func TestEncodeQueryDecodeQueryFullRoundTrip(t *testing.T) {
	q := core.DnsQuery{ID: 0xBEEF, Name: "example.com.", Type: core.TypeA, Class: 1, RecursionDesired: true}

	msg, err := EncodeQuery(q)
	require.NoError(t, err)

	got, question, flags, err := DecodeQueryFull(msg)
	require.NoError(t, err)
	require.Equal(t, q.ID, got.ID)
	require.Equal(t, "example.com", got.Name)
	require.Equal(t, q.Type, got.Type)
	require.True(t, got.RecursionDesired)
	require.Equal(t, "example.com", question.Name)
	require.NotZero(t, flags&dns.RDFlag)
}

func TestDecodeQueryRejectsMultiQuestion(t *testing.T) {
	p := dns.Packet{
		Header: dns.Header{ID: 1, QDCount: 2},
		Questions: []dns.Question{
			{Name: "a.test.", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)},
			{Name: "b.test.", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)},
		},
	}
	msg, err := p.Marshal()
	require.NoError(t, err)

	_, _, _, err = DecodeQueryFull(msg)
	require.ErrorIs(t, err, core.ErrMalformed)
}

func TestEncodeResponseDecodeResponseRoundTrip(t *testing.T) {
	resp := core.DnsResponse{
		ID:    0x1234,
		RCode: core.RCodeNoError,
		Answers: []core.Record{
			{Name: "example.com.", Type: core.TypeA, Class: 1, TTL: 60, Value: "93.184.216.34"},
		},
	}
	question := dns.Question{Name: "example.com.", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)}

	msg, err := EncodeResponse(resp, 0, question, true)
	require.NoError(t, err)

	got, err := DecodeResponse(msg)
	require.NoError(t, err)
	require.Equal(t, resp.ID, got.ID)
	require.Equal(t, resp.RCode, got.RCode)
	require.Len(t, got.Answers, 1)
	require.Equal(t, "93.184.216.34", got.Answers[0].Value)
}

func TestEncodeResponseTruncatesOversizedUDP(t *testing.T) {
	answers := make([]core.Record, 0, 100)
	for i := 0; i < 100; i++ {
		answers = append(answers, core.Record{
			Name: "big.example.com.", Type: core.TypeTXT, Class: 1, TTL: 60,
			Value: []string{"this is a moderately long TXT record value used to force truncation"},
		})
	}
	resp := core.DnsResponse{ID: 1, RCode: core.RCodeNoError, Answers: answers}
	question := dns.Question{Name: "big.example.com.", Type: uint16(dns.TypeTXT), Class: uint16(dns.ClassIN)}

	msg, err := EncodeResponse(resp, 0, question, true)
	require.NoError(t, err)
	require.LessOrEqual(t, len(msg), MaxUDPMessageSize)

	off := 0
	hdr, err := dns.ParseHeader(msg, &off)
	require.NoError(t, err)
	require.NotZero(t, hdr.Flags&dns.TCFlag)
}

func TestEncodeResponseOverflowsNonTruncating(t *testing.T) {
	values := make([]string, 0, 2000)
	for i := 0; i < 2000; i++ {
		values = append(values, "padding-value-to-exceed-the-stream-transport-ceiling-of-65535-bytes")
	}
	resp := core.DnsResponse{
		ID:    1,
		RCode: core.RCodeNoError,
		Answers: []core.Record{
			{Name: "huge.example.com.", Type: core.TypeTXT, Class: 1, TTL: 60, Value: values},
		},
	}
	question := dns.Question{Name: "huge.example.com.", Type: uint16(dns.TypeTXT), Class: uint16(dns.ClassIN)}

	_, err := EncodeResponse(resp, 0, question, false)
	require.ErrorIs(t, err, core.ErrEncodeOverflow)
}

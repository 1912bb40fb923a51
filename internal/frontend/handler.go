// Package frontend implements the spec's thin per-transport adapters (§4.7):
// decode the wire request, call the resolver, encode the wire response. Each
// transport (UDP, DoT, DoH, DoQ) owns its own listener shape but shares this
// Handler for the decode/resolve/encode/error-mapping logic, grounded on the
// reference server's QueryHandler.
package frontend

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jroosing/hydradns/internal/core"
	"github.com/jroosing/hydradns/internal/dns"
	"github.com/jroosing/hydradns/internal/resolver"
	"github.com/jroosing/hydradns/internal/wire"
)

// DefaultTimeout bounds how long a single query may take end to end before
// the front-end gives up and answers SERVFAIL.
const DefaultTimeout = 4 * time.Second

// Handler runs the decode -> resolve -> encode sequence common to every
// front-end.
type Handler struct {
	Logger   *slog.Logger
	Resolver *resolver.Resolver
	Timeout  time.Duration
}

// Result is the outcome of handling one request.
type Result struct {
	ResponseBytes []byte
	Source        string // "rewrite", "cache", "upstream:<name>", "resolved", "formerr", "notimp", "servfail", "timeout", "parse-error", "encode-error"
}

// Handle decodes reqBytes, resolves it, and encodes the reply. allowTruncate
// selects UDP's 512-byte ceiling-with-TC-bit behavior versus the larger
// stream transports' (DoT/DoH/DoQ) 65535-byte ceiling.
func (h *Handler) Handle(ctx context.Context, transport, src string, reqBytes []byte, allowTruncate bool) Result {
	query, question, reqFlags, err := wire.DecodeQueryFull(reqBytes)
	if err != nil {
		if errors.Is(err, core.ErrNotImplemented) {
			return h.errResponse(reqBytes, dns.RCodeNotImp, "notimp")
		}
		return h.errResponse(reqBytes, dns.RCodeFormErr, "formerr")
	}

	res := h.resolveWithTimeout(ctx, query)

	if h.Logger != nil && h.Logger.Enabled(ctx, slog.LevelDebug) {
		h.Logger.DebugContext(ctx, "dns request",
			"transport", transport, "src", src, "id", query.ID,
			"qname", query.Name, "qtype", int(query.Type), "source", res.Source)
	}

	respBytes, err := wire.EncodeResponse(res.resp, reqFlags, question, allowTruncate)
	if err != nil {
		return Result{ResponseBytes: nil, Source: "encode-error"}
	}
	return Result{ResponseBytes: respBytes, Source: res.Source}
}

type resolveOutcome struct {
	resp   core.DnsResponse
	Source string
}

func (h *Handler) resolveWithTimeout(ctx context.Context, query core.DnsQuery) resolveOutcome {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result core.ResolveResult
		err    error
	}
	resCh := make(chan outcome, 1)
	go func() {
		result, err := h.Resolver.Resolve(ctx, query)
		resCh <- outcome{result, err}
	}()

	select {
	case <-ctx.Done():
		return resolveOutcome{resp: servFail(query), Source: "timeout"}
	case o := <-resCh:
		if o.err != nil {
			return resolveOutcome{resp: servFail(query), Source: "servfail"}
		}
		return resolveOutcome{resp: o.result.Response, Source: sourceLabel(o.result.Metadata)}
	}
}

func sourceLabel(m core.ResolveMetadata) string {
	switch {
	case m.RewriteApplied:
		return "rewrite"
	case m.CacheHit:
		return "cache"
	case m.UpstreamUsed != "":
		return "upstream:" + m.UpstreamUsed
	default:
		return "resolved"
	}
}

func servFail(q core.DnsQuery) core.DnsResponse {
	return core.DnsResponse{ID: q.ID, RCode: core.RCodeServFail}
}

// errResponse handles a request that failed to decode: RFC 1035 says to echo
// the ID and question if they were at least readable, otherwise drop it.
// rcode distinguishes a malformed message (FormErr) from a well-formed but
// unsupported one, e.g. a non-QUERY opcode (NotImp, spec.md §4.1/§7).
func (h *Handler) errResponse(reqBytes []byte, rcode dns.RCode, source string) Result {
	off := 0
	hdr, err := dns.ParseHeader(reqBytes, &off)
	if err != nil {
		return Result{ResponseBytes: nil, Source: "parse-error"}
	}
	var questions []dns.Question
	if hdr.QDCount > 0 {
		if q, err := dns.ParseQuestion(reqBytes, &off); err == nil {
			questions = []dns.Question{q}
		}
	}
	p := dns.Packet{Header: dns.Header{ID: hdr.ID, Flags: hdr.Flags}, Questions: questions}
	b, err := dns.BuildErrorResponse(p, uint16(rcode)).Marshal()
	if err != nil {
		return Result{ResponseBytes: nil, Source: "parse-error"}
	}
	return Result{ResponseBytes: b, Source: source}
}

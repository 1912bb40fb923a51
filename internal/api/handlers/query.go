package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/hydradns/internal/api/models"
	"github.com/jroosing/hydradns/internal/core"
	"github.com/jroosing/hydradns/internal/dns"
)

// Query godoc
// @Summary Resolve a name directly through the pipeline
// @Description Builds a synthetic query and calls Resolve without opening a socket, for the "test a lookup" tool and integration tests.
// @Tags query
// @Accept json
// @Produce json
// @Success 200 {object} models.QueryResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /query [post]
func (h *Handler) Query(c *gin.Context) {
	var req models.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	rt, ok := recordTypeFromString(req.Type)
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "unknown record type: " + req.Type})
		return
	}

	q := core.DnsQuery{
		ID:               1,
		Name:             dns.NormalizeName(req.Name),
		Type:             rt,
		Class:            1, // IN
		RecursionDesired: true,
	}

	result, err := h.Resolver.Resolve(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.QueryResponse{
		RCode:          rcodeToString(result.Response.RCode),
		Answers:        recordsToQuery(result.Response.Answers),
		Authorities:    recordsToQuery(result.Response.Authorities),
		Additionals:    recordsToQuery(result.Response.Additionals),
		CacheHit:       result.Metadata.CacheHit,
		RewriteApplied: result.Metadata.RewriteApplied,
		UpstreamUsed:   result.Metadata.UpstreamUsed,
		ResponseTimeMs: result.Metadata.ResponseTimeMs,
	})
}

func recordsToQuery(records []core.Record) []models.QueryRecord {
	out := make([]models.QueryRecord, 0, len(records))
	for _, r := range records {
		out = append(out, models.QueryRecord{
			Name:  r.Name,
			Type:  recordTypeToString(r.Type),
			Class: r.Class,
			TTL:   r.TTL,
			Value: r.Value,
		})
	}
	return out
}

func recordTypeToString(t core.RecordType) string {
	switch t {
	case core.TypeA:
		return "A"
	case core.TypeNS:
		return "NS"
	case core.TypeCNAME:
		return "CNAME"
	case core.TypeSOA:
		return "SOA"
	case core.TypePTR:
		return "PTR"
	case core.TypeMX:
		return "MX"
	case core.TypeTXT:
		return "TXT"
	case core.TypeAAAA:
		return "AAAA"
	case core.TypeSRV:
		return "SRV"
	default:
		return "UNKNOWN"
	}
}

func recordTypeFromString(s string) (core.RecordType, bool) {
	switch strings.ToUpper(s) {
	case "A":
		return core.TypeA, true
	case "NS":
		return core.TypeNS, true
	case "CNAME":
		return core.TypeCNAME, true
	case "SOA":
		return core.TypeSOA, true
	case "PTR":
		return core.TypePTR, true
	case "MX":
		return core.TypeMX, true
	case "TXT":
		return core.TypeTXT, true
	case "AAAA":
		return core.TypeAAAA, true
	case "SRV":
		return core.TypeSRV, true
	default:
		return 0, false
	}
}

func rcodeToString(rc core.RCode) string {
	switch rc {
	case core.RCodeNoError:
		return "NOERROR"
	case core.RCodeFormErr:
		return "FORMERR"
	case core.RCodeServFail:
		return "SERVFAIL"
	case core.RCodeNXDomain:
		return "NXDOMAIN"
	case core.RCodeNotImp:
		return "NOTIMP"
	case core.RCodeRefused:
		return "REFUSED"
	default:
		return "UNKNOWN"
	}
}

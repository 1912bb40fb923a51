package frontend

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/hydradns/internal/dns"
)

// dohMediaType is the RFC 8484 §6 wire-format media type.
const dohMediaType = "application/dns-message"

// maxDoHBody bounds a POSTed DoH request body.
const maxDoHBody = 65535

// DoHFrontend implements RFC 8484 DNS-over-HTTPS, grounded on the
// management API's gin.Engine setup (internal/api.Server): GET with a
// base64url `dns` query parameter and POST with a raw body, both using the
// `application/dns-message` media type.
type DoHFrontend struct {
	Logger  *slog.Logger
	Handler *Handler

	engine     *gin.Engine
	httpServer *http.Server
}

// NewDoHFrontend builds the DoH HTTP server serving /dns-query per RFC 8484;
// Run binds it to an address.
func NewDoHFrontend(handler *Handler, logger *slog.Logger) *DoHFrontend {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	f := &DoHFrontend{Logger: logger, Handler: handler, engine: engine}
	engine.GET("/dns-query", f.handleGet)
	engine.POST("/dns-query", f.handlePost)
	return f
}

// MountDoH registers the RFC 8484 routes on an existing gin engine, letting
// DoH share the management API's HTTP server instead of standing up its own
// listener (spec.md §4.7: "DoH shares the gin engine with the management
// API").
func MountDoH(engine *gin.Engine, handler *Handler) {
	f := &DoHFrontend{Handler: handler}
	engine.GET("/dns-query", f.handleGet)
	engine.POST("/dns-query", f.handlePost)
}

// Run starts the DoH HTTPS server and blocks until ctx is cancelled.
func (f *DoHFrontend) Run(ctx context.Context, addr string, tlsCertFile, tlsKeyFile string) error {
	f.httpServer = &http.Server{
		Addr:              addr,
		Handler:           f.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- f.httpServer.ListenAndServeTLS(tlsCertFile, tlsKeyFile)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return f.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (f *DoHFrontend) handleGet(c *gin.Context) {
	encoded := c.Query("dns")
	if encoded == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	msg, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	f.respond(c, msg)
}

func (f *DoHFrontend) handlePost(c *gin.Context) {
	ct := c.GetHeader("Content-Type")
	if ct != "" && ct != dohMediaType {
		c.Status(http.StatusUnsupportedMediaType)
		return
	}
	msg, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDoHBody))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	f.respond(c, msg)
}

func (f *DoHFrontend) respond(c *gin.Context, msg []byte) {
	res := f.Handler.Handle(c.Request.Context(), "doh", c.ClientIP(), msg, false)
	if len(res.ResponseBytes) == 0 {
		c.Status(http.StatusBadGateway)
		return
	}

	if ttl, ok := minTTLOf(res.ResponseBytes); ok {
		c.Header("Cache-Control", fmt.Sprintf("max-age=%d", ttl))
	}
	c.Data(http.StatusOK, dohMediaType, res.ResponseBytes)
}

// minTTLOf extracts the smallest answer TTL from a wire-format response, for
// the Cache-Control header RFC 8484 recommends.
func minTTLOf(respBytes []byte) (uint32, bool) {
	p, err := dns.ParsePacket(respBytes)
	if err != nil || len(p.Answers) == 0 {
		return 0, false
	}
	min := p.Answers[0].Header().TTL
	for _, a := range p.Answers[1:] {
		if ttl := a.Header().TTL; ttl < min {
			min = ttl
		}
	}
	return min, true
}

package frontend

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"
)

// doqMaxMessageSize bounds a single DoQ query/response frame (RFC 9250 §4.2).
const doqMaxMessageSize = 65535

// doqALPN is the RFC 9250 §7.1 ALPN identifier.
var doqALPN = []string{"doq"}

// DoQFrontend implements RFC 9250 DNS-over-QUIC: one bidirectional stream
// per query, length-prefixed, grounded on the reference QUIC exchanger's
// stream framing (other_examples quic.go) adapted to a listener instead of
// a dialer.
type DoQFrontend struct {
	Logger    *slog.Logger
	Handler   *Handler
	TLSConfig *tls.Config

	wg sync.WaitGroup
}

// Run listens for QUIC connections on addr and blocks until ctx is
// cancelled.
func (f *DoQFrontend) Run(ctx context.Context, addr string) error {
	tlsConf := f.TLSConfig.Clone()
	tlsConf.NextProtos = doqALPN

	ln, err := quic.ListenAddr(addr, tlsConf, nil)
	if err != nil {
		return err
	}
	defer ln.Close()

	acceptCh := make(chan *quic.Conn)
	go func() {
		for {
			conn, err := ln.Accept(ctx)
			if err != nil {
				close(acceptCh)
				return
			}
			acceptCh <- conn
		}
	}()

	for {
		select {
		case <-ctx.Done():
			f.wg.Wait()
			return nil
		case conn, ok := <-acceptCh:
			if !ok {
				f.wg.Wait()
				return nil
			}
			f.wg.Add(1)
			go func() {
				defer f.wg.Done()
				f.handleConn(ctx, conn)
			}()
		}
	}
}

func (f *DoQFrontend) handleConn(ctx context.Context, conn *quic.Conn) {
	connID := uuid.NewString()
	if f.Logger != nil {
		f.Logger.Debug("doq connection accepted", "conn_id", connID, "remote", conn.RemoteAddr().String())
	}
	defer conn.CloseWithError(0, "")
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			f.handleStream(ctx, stream, connID)
		}()
	}
}

func (f *DoQFrontend) handleStream(ctx context.Context, stream *quic.Stream, connID string) {
	defer stream.Close()

	var prefix [2]byte
	if _, err := io.ReadFull(stream, prefix[:]); err != nil {
		return
	}
	length := int(binary.BigEndian.Uint16(prefix[:]))
	if length <= 0 || length > doqMaxMessageSize {
		return
	}
	msg := make([]byte, length)
	if _, err := io.ReadFull(stream, msg); err != nil {
		return
	}

	res := f.Handler.Handle(ctx, "doq", connID, msg, false)
	if len(res.ResponseBytes) == 0 {
		return
	}
	if len(res.ResponseBytes) > doqMaxMessageSize {
		return
	}

	frame := make([]byte, 2+len(res.ResponseBytes))
	binary.BigEndian.PutUint16(frame, uint16(len(res.ResponseBytes)))
	copy(frame[2:], res.ResponseBytes)
	_, _ = stream.Write(frame)
}

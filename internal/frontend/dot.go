package frontend

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jroosing/hydradns/internal/pool"
)

// DoT connection constants, matching the reference TCP server's pipelining
// and idle-timeout shape (RFC 7858 is RFC 1035-over-TLS, same framing).
const (
	dotMaxMessageSize    = 65535
	dotReadTimeout       = 10 * time.Second
	dotIdleTimeout       = 30 * time.Second
	dotMaxConnsPerIP     = 10
	dotMaxQueriesPerConn = 100
)

var dotLenBufPool = pool.New(func() *[]byte {
	buf := make([]byte, 2)
	return &buf
})

// DoTFrontend implements RFC 7858 DNS-over-TLS: a TCP listener wrapped in
// TLS, where each connection pipelines a stream of length-prefixed
// messages, grounded on server.TCPServer.
type DoTFrontend struct {
	Logger    *slog.Logger
	Handler   *Handler
	TLSConfig *tls.Config

	listeners []net.Listener
	wg        sync.WaitGroup

	mu        sync.Mutex
	connPerIP map[string]int
}

// Run starts a single SO_REUSEPORT TLS listener and blocks until ctx is
// cancelled.
func (s *DoTFrontend) Run(ctx context.Context, addr string) error {
	s.mu.Lock()
	if s.connPerIP == nil {
		s.connPerIP = make(map[string]int)
	}
	s.mu.Unlock()

	ln, err := listenTCPReusePortTLS(ctx, addr, s.TLSConfig)
	if err != nil {
		return err
	}
	s.listeners = []net.Listener{ln}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx, ln)
	}()

	<-ctx.Done()
	return s.Stop(5 * time.Second)
}

func (s *DoTFrontend) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		ip := remoteIP(c.RemoteAddr())
		if !s.acquireConn(ip) {
			_ = c.Close()
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, c, ip)
		}()
	}
}

func (s *DoTFrontend) handleConnection(ctx context.Context, conn net.Conn, ip string) {
	defer s.releaseConn(ip)
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(dotIdleTimeout))

	for i := 0; i < dotMaxQueriesPerConn; i++ {
		if ctx.Err() != nil {
			return
		}
		msg, ok := readFramedMessage(conn)
		if !ok {
			return
		}
		if len(msg) == 0 {
			continue
		}
		_ = conn.SetDeadline(time.Now().Add(dotIdleTimeout))

		if s.Handler == nil {
			return
		}
		res := s.Handler.Handle(ctx, "dot", ip, msg, false)
		if len(res.ResponseBytes) == 0 {
			continue
		}
		if !writeFramedMessage(conn, res.ResponseBytes) {
			return
		}
	}
}

func (s *DoTFrontend) acquireConn(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connPerIP[ip] >= dotMaxConnsPerIP {
		return false
	}
	s.connPerIP[ip]++
	return true
}

func (s *DoTFrontend) releaseConn(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connPerIP[ip] <= 1 {
		delete(s.connPerIP, ip)
		return
	}
	s.connPerIP[ip]--
}

// Stop closes all listeners and waits up to timeout for connections to
// finish.
func (s *DoTFrontend) Stop(timeout time.Duration) error {
	for _, ln := range s.listeners {
		_ = ln.Close()
	}
	if timeout <= 0 {
		s.wg.Wait()
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("dot frontend: timeout waiting for connections")
	}
}

func readFramedMessage(conn net.Conn) ([]byte, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(dotReadTimeout))
	lenBufPtr := dotLenBufPool.Get()
	lenBuf := *lenBufPtr
	_, err := io.ReadFull(conn, lenBuf)
	if err != nil {
		dotLenBufPool.Put(lenBufPtr)
		return nil, false
	}
	msgLen := int(binary.BigEndian.Uint16(lenBuf))
	dotLenBufPool.Put(lenBufPtr)

	if msgLen == 0 {
		return nil, true
	}
	if msgLen > dotMaxMessageSize {
		return nil, false
	}
	_ = conn.SetReadDeadline(time.Now().Add(dotReadTimeout))
	msg := make([]byte, msgLen)
	if _, err := io.ReadFull(conn, msg); err != nil {
		return nil, false
	}
	return msg, true
}

func writeFramedMessage(conn net.Conn, response []byte) bool {
	if len(response) > dotMaxMessageSize {
		return false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(dotReadTimeout))

	lenBufPtr := dotLenBufPool.Get()
	lenBuf := *lenBufPtr
	binary.BigEndian.PutUint16(lenBuf, uint16(len(response)))

	bufs := net.Buffers{lenBuf, response}
	_, err := bufs.WriteTo(conn)
	dotLenBufPool.Put(lenBufPtr)
	return err == nil
}

func listenTCPReusePortTLS(ctx context.Context, addr string, tlsConf *tls.Config) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
		},
	}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return tls.NewListener(ln, tlsConf), nil
}

func remoteIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err == nil {
		return host
	}
	return addr.String()
}

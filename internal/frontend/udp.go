package frontend

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"runtime"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jroosing/hydradns/internal/dns"
	"github.com/jroosing/hydradns/internal/pool"
	"github.com/jroosing/hydradns/internal/server"
)

// Socket buffer sizes for high throughput, matching the reference UDP
// server's sizing.
const (
	udpSocketRecvBufferSize = 4 * 1024 * 1024
	udpSocketSendBufferSize = 4 * 1024 * 1024
)

// DefaultWorkersPerSocket is the default number of worker goroutines per UDP
// socket (one socket per CPU core via SO_REUSEPORT).
const DefaultWorkersPerSocket = 1024

var udpBufferPool = pool.New(func() *[]byte {
	buf := make([]byte, dns.MaxIncomingDNSMessageSize)
	return &buf
})

// UDPFrontend implements the UDP front-end: no connection state, one
// SO_REUSEPORT socket per CPU (runtime.NumCPU), each drained by
// WorkersPerSocket workers, as in server.UDPServer. Responses over 512
// bytes are truncated with TC set; an EDNS0 payload size advertised by the
// client does not raise that limit.
type UDPFrontend struct {
	Handler          *Handler
	Limiter          *server.RateLimiter
	WorkersPerSocket int

	conns []*net.UDPConn
	wg    sync.WaitGroup
}

type udpPacket struct {
	bufPtr *[]byte
	n      int
	peer   *net.UDPAddr
}

// Run starts one UDP socket per CPU core with SO_REUSEPORT and blocks until
// ctx is cancelled.
func (s *UDPFrontend) Run(ctx context.Context, addr string) error {
	if s.WorkersPerSocket <= 0 {
		s.WorkersPerSocket = DefaultWorkersPerSocket
	}

	socketCount := runtime.NumCPU()
	s.conns = make([]*net.UDPConn, 0, socketCount)

	for i := 0; i < socketCount; i++ {
		conn, err := listenReusePortUDP(addr)
		if err != nil {
			for _, c := range s.conns {
				_ = c.Close()
			}
			return err
		}
		_ = conn.SetReadBuffer(udpSocketRecvBufferSize)
		_ = conn.SetWriteBuffer(udpSocketSendBufferSize)
		s.conns = append(s.conns, conn)

		packetCh := make(chan udpPacket, s.WorkersPerSocket*2)
		c := conn
		ch := packetCh

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.recvLoop(ctx, c, ch)
		}()
		for j := 0; j < s.WorkersPerSocket; j++ {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.workerLoop(ctx, c, ch)
			}()
		}
	}

	<-ctx.Done()
	return s.Stop(5 * time.Second)
}

func (s *UDPFrontend) recvLoop(ctx context.Context, conn *net.UDPConn, out chan<- udpPacket) {
	for {
		bufPtr := udpBufferPool.Get()
		buf := *bufPtr

		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			udpBufferPool.Put(bufPtr)
			return
		}

		if s.Limiter != nil {
			ip, ok := netip.AddrFromSlice(peer.IP)
			if !ok || !s.Limiter.AllowAddr(ip.Unmap()) {
				udpBufferPool.Put(bufPtr)
				continue
			}
		}

		select {
		case out <- udpPacket{bufPtr, n, peer}:
		default:
			udpBufferPool.Put(bufPtr) // workers busy, drop to keep the receive path fast
		}
	}
}

func (s *UDPFrontend) workerLoop(ctx context.Context, conn *net.UDPConn, in <-chan udpPacket) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-in:
			if !ok {
				return
			}
			s.handlePacket(ctx, conn, p)
		}
	}
}

func (s *UDPFrontend) handlePacket(ctx context.Context, conn *net.UDPConn, p udpPacket) {
	defer udpBufferPool.Put(p.bufPtr)
	if s.Handler == nil {
		return
	}
	payload := (*p.bufPtr)[:p.n]
	res := s.Handler.Handle(ctx, "udp", p.peer.IP.String(), payload, true)
	if len(res.ResponseBytes) == 0 {
		return
	}
	_, _ = conn.WriteToUDP(res.ResponseBytes, p.peer)
}

// Stop closes all sockets and waits up to timeout for goroutines to exit.
func (s *UDPFrontend) Stop(timeout time.Duration) error {
	for _, c := range s.conns {
		_ = c.Close()
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
		return errors.New("udp frontend: timeout waiting for goroutines to exit")
	}
}

// listenReusePortUDP opens a UDP socket with SO_REUSEPORT so multiple
// sockets can share one port, letting the kernel load-balance across them.
func listenReusePortUDP(addr string) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
		},
	}
	pc, err := lc.ListenPacket(context.Background(), "udp", udpAddr.String())
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}

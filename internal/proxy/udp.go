package proxy

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/jroosing/hydradns/internal/dns"
)

// udpPoolSize is the number of pre-dialed connections kept per upstream
// address, mirroring the reference forwarding resolver's connection pool.
const udpPoolSize = 16

const udpRecvSize = 4096

// udpTransport implements plain-UDP (with TCP fallback on truncation)
// forwarding, grounded on resolvers.ForwardingResolver's connection-pool and
// TCP-retry logic.
type udpTransport struct {
	mu    sync.Mutex
	pools map[string]chan *net.UDPConn
}

func newUDPTransport() *udpTransport {
	return &udpTransport{pools: make(map[string]chan *net.UDPConn)}
}

func (t *udpTransport) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.pools {
		close(ch)
		for c := range ch {
			_ = c.Close()
		}
	}
	t.pools = make(map[string]chan *net.UDPConn)
}

func (t *udpTransport) pool(address string) (chan *net.UDPConn, error) {
	t.mu.Lock()
	if ch, ok := t.pools[address]; ok {
		t.mu.Unlock()
		return ch, nil
	}
	ch := make(chan *net.UDPConn, udpPoolSize)
	t.pools[address] = ch
	t.mu.Unlock()

	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}
	for i := 0; i < udpPoolSize; i++ {
		c, err := net.DialUDP("udp", nil, addr)
		if err != nil {
			break // partial pool is acceptable
		}
		ch <- c
	}
	return ch, nil
}

func (t *udpTransport) query(ctx context.Context, address string, query []byte) ([]byte, error) {
	pool, err := t.pool(address)
	if err != nil {
		return nil, err
	}

	conn, _, err := acquireUDPConn(ctx, pool, address)
	if err != nil {
		return nil, err
	}
	ok := true
	defer func() { releaseUDPConn(conn, pool, ok) }()

	if deadline, hasDeadline := ctx.Deadline(); hasDeadline {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(query); err != nil {
		ok = false
		return nil, err
	}

	buf := make([]byte, udpRecvSize)
	n, err := conn.Read(buf)
	if err != nil {
		ok = false
		return nil, err
	}
	resp := buf[:n:n]

	if dns.IsTruncated(resp) {
		return queryTCP(ctx, address, query)
	}
	return resp, nil
}

func acquireUDPConn(ctx context.Context, pool chan *net.UDPConn, address string) (*net.UDPConn, bool, error) {
	select {
	case c := <-pool:
		return c, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
		addr, err := net.ResolveUDPAddr("udp", address)
		if err != nil {
			return nil, false, err
		}
		c, err := net.DialUDP("udp", nil, addr)
		if err != nil {
			return nil, false, err
		}
		return c, false, nil
	}
}

func releaseUDPConn(c *net.UDPConn, pool chan *net.UDPConn, ok bool) {
	if !ok {
		_ = c.Close()
		return
	}
	select {
	case pool <- c:
	default:
		_ = c.Close()
	}
}

// queryTCP retries query over TCP with RFC 1035 §4.2.2 length-prefix framing,
// used when a UDP response came back truncated.
func queryTCP(ctx context.Context, address string, query []byte) ([]byte, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	var prefix [2]byte
	binary.BigEndian.PutUint16(prefix[:], uint16(len(query)))
	if _, err := conn.Write(prefix[:]); err != nil {
		return nil, err
	}
	if _, err := conn.Write(query); err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(conn, prefix[:]); err != nil {
		return nil, err
	}
	respLen := int(binary.BigEndian.Uint16(prefix[:]))
	if respLen <= 0 {
		return nil, errors.New("proxy: tcp response length invalid")
	}
	resp := make([]byte, respLen)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

package proxy

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"io"

	"github.com/quic-go/quic-go"
)

// doqALPN is the RFC 9250 §7.1 ALPN token for DNS-over-QUIC.
var doqALPN = []string{"doq"}

// doqTransport implements RFC 9250 DNS-over-QUIC: one bidirectional stream
// per query, length-prefixed per §4.2, with the client-side FIN immediately
// after the query so well-behaved and strict servers both respond.
type doqTransport struct {
	cfg quicClientConfig
}

// quicClientConfig isolates the quic-go dial call behind a small interface
// so it can be swapped out in tests without a live UDP socket.
type quicClientConfig interface {
	dial(ctx context.Context, address string) (quicConnection, error)
}

type quicConnection interface {
	OpenStreamSync(ctx context.Context) (quicStream, error)
	CloseWithError(code quic.ApplicationErrorCode, msg string) error
}

type quicStream interface {
	io.ReadWriteCloser
}

func newDoQTransport() *doqTransport {
	return &doqTransport{cfg: defaultQUICDialer{}}
}

func (t *doqTransport) query(ctx context.Context, address string, query []byte) ([]byte, error) {
	conn, err := t.cfg.dial(ctx, address)
	if err != nil {
		return nil, err
	}
	defer conn.CloseWithError(0, "")

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	frame := make([]byte, 2+len(query))
	binary.BigEndian.PutUint16(frame, uint16(len(query)))
	copy(frame[2:], query)
	if _, err := stream.Write(frame); err != nil {
		return nil, err
	}
	// Signal no further data on this stream: RFC 9250 §4.2 requires the
	// client indicate via STREAM FIN that the query is complete.
	if err := stream.Close(); err != nil {
		return nil, err
	}

	var prefix [2]byte
	if _, err := io.ReadFull(stream, prefix[:]); err != nil {
		return nil, err
	}
	length := int(binary.BigEndian.Uint16(prefix[:]))
	if length <= 0 {
		return nil, errors.New("proxy: doq response length invalid")
	}
	resp := make([]byte, length)
	if _, err := io.ReadFull(stream, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func quicTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS13,
		NextProtos: doqALPN,
	}
}

// defaultQUICDialer dials a real QUIC connection using quic-go.
type defaultQUICDialer struct{}

func (defaultQUICDialer) dial(ctx context.Context, address string) (quicConnection, error) {
	tlsConf := quicTLSConfig()
	conn, err := quic.DialAddr(ctx, address, tlsConf, nil)
	if err != nil {
		return nil, err
	}
	return quicConnAdapter{conn}, nil
}

type quicConnAdapter struct {
	*quic.Conn
}

func (a quicConnAdapter) OpenStreamSync(ctx context.Context) (quicStream, error) {
	return a.Conn.OpenStreamSync(ctx)
}

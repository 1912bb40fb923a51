package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// dohContentType is the RFC 8484 §6 wire-format media type.
const dohContentType = "application/dns-message"

// dohTransport implements RFC 8484 DNS-over-HTTPS: a POST of the raw wire
// message to the server's resolver endpoint, grounded on the reference DoH
// resolver's use of a plain http.Client.Do with the RFC's mandated headers.
type dohTransport struct {
	client *http.Client
}

func newDoHTransport() *dohTransport {
	return &dohTransport{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: dotPoolSize,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// query posts query to the upstream's DoH endpoint URL, given in address.
func (t *dohTransport) query(ctx context.Context, address string, query []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, address, bytes.NewReader(query))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", dohContentType)
	req.Header.Set("Accept", dohContentType)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("proxy: doh upstream returned status %d", resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && ct != dohContentType {
		return nil, fmt.Errorf("proxy: doh upstream returned unexpected content-type %q", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxDoHResponseSize))
	if err != nil {
		return nil, err
	}
	return body, nil
}

// MaxDoHResponseSize bounds how much of a DoH response body is read.
const MaxDoHResponseSize = 65535

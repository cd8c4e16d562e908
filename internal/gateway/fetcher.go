package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/emelmujiro/offline-gateway/internal/cache"
)

// maxResponseBody caps how much of an origin response the gateway buffers.
const maxResponseBody = 32 << 20 // 32 MiB

// hop-by-hop headers are stripped before forwarding in either direction.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// OriginFetcher performs real HTTP fetches against the configured origin.
// Relative request URLs resolve against the origin base; absolute URLs
// (third-party font hosts) are fetched as given.
type OriginFetcher struct {
	base    *url.URL
	client  *http.Client
	maxBody int64
}

// NewOriginFetcher constructs a fetcher for the origin at baseURL.
func NewOriginFetcher(baseURL string, timeout time.Duration) (*OriginFetcher, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse origin base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.New("gateway: origin base url must be absolute")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &OriginFetcher{
		base:    base,
		client:  &http.Client{Timeout: timeout},
		maxBody: maxResponseBody,
	}, nil
}

// Fetch implements cache.Fetcher.
func (f *OriginFetcher) Fetch(ctx context.Context, req cache.Request) (*cache.Response, error) {
	target, err := f.resolve(req.URL)
	if err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("gateway: build origin request: %w", err)
	}
	copyHeader(httpReq.Header, req.Header)

	httpResp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, f.maxBody))
	if err != nil {
		return nil, fmt.Errorf("gateway: read origin response: %w", err)
	}

	header := http.Header{}
	copyHeader(header, httpResp.Header)
	if int64(len(respBody)) == f.maxBody {
		// The body may have been cut at the buffer cap; the origin's
		// Content-Length no longer describes what we hold.
		header.Del("Content-Length")
	}

	return &cache.Response{
		Status: httpResp.StatusCode,
		Header: header,
		Body:   respBody,
	}, nil
}

// Do issues a request and reports only the status code; used by the sync
// coordinator, which never needs the response body.
func (f *OriginFetcher) Do(ctx context.Context, method, rawURL string, header http.Header, body []byte) (int, error) {
	resp, err := f.Fetch(ctx, cache.Request{Method: method, URL: rawURL, Header: header, Body: body})
	if err != nil {
		return 0, err
	}
	return resp.Status, nil
}

func (f *OriginFetcher) resolve(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("gateway: parse request url: %w", err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	return f.base.ResolveReference(u).String(), nil
}

func copyHeader(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
	for _, key := range hopHeaders {
		dst.Del(key)
	}
}

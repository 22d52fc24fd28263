// Package httpclient configures the HTTP client used to call the routing
// backend.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

const DefaultTimeout = 30 * time.Second

// NewOutbound creates the outbound client. A non-positive timeout selects
// DefaultTimeout. Every request carries userAgent unless the caller set one.
func NewOutbound(timeout time.Duration, userAgent string) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   128,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	var rt http.RoundTripper = transport
	if userAgent != "" {
		rt = uaTransport{next: transport, ua: userAgent}
	}
	return &http.Client{
		Transport: rt,
		Timeout:   timeout,
	}
}

type uaTransport struct {
	next http.RoundTripper
	ua   string
}

func (t uaTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(r)
	}
	r = r.Clone(r.Context())
	r.Header.Set("User-Agent", t.ua)
	return t.next.RoundTrip(r)
}

// Package httpx builds the outbound HTTP clients the Ask Pipeline uses for
// search, fetch, and LLM calls. Adapted from internal/app's
// newHighThroughputHTTPClient, generalized into an exported constructor so
// a single tuned client can be reused by every outbound collaborator
// instead of each one dialing with its own transport.
package httpx

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// NewHighThroughputClient returns an HTTP client tuned for many concurrent
// upstream calls (search fan-out, evidence fetch, LLM chat) without
// client-side throttling. If sslVerify is false, certificate verification
// is disabled; useful only against known self-signed upstreams in
// development.
func NewHighThroughputClient(sslVerify bool, timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          0,
		MaxIdleConnsPerHost:   1024,
		MaxConnsPerHost:       0,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if !sslVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Package fetch implements the bounded page fetcher: an SSRF-guarded,
// size-capped, content-type-checked HTTP GET that returns extracted plain
// text. Each fetch is a single attempt; failures are returned, not retried.
// Adapted from internal/fetch.Client's timeout handling and redirect
// policy, generalized to an explicit size cap and inline HTML-to-text
// extraction.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nolia/ask-service/internal/htmltext"
	"github.com/nolia/ask-service/internal/ssrf"
)

// Error kinds surfaced by FetchPageText, one per error-taxonomy kind
// (InvalidUrl=400, UnsupportedMediaType=415, PayloadTooLarge=413,
// UpstreamFetch=502). The Ask Pipeline skips a source whose fetch fails
// and does not turn these into HTTP statuses.
var (
	ErrInvalidURL           = ssrf.ErrInvalidURL
	ErrUnsupportedMediaType = errors.New("unsupported content type")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrUpstreamFetch        = errors.New("upstream fetch failed")
)

// Client fetches page text with a bounded size, timeout, and content-type
// allowlist. The zero value is usable; HTTPClient defaults to a client with
// a 15s timeout if nil.
type Client struct {
	HTTPClient      *http.Client
	UserAgent       string
	RedirectMaxHops int
	Guard           *ssrf.Guard
}

func (c *Client) guard() *ssrf.Guard {
	if c.Guard != nil {
		return c.Guard
	}
	return ssrf.Default
}

// FetchPageText retrieves rawURL and returns its extracted plain text.
// timeoutMs bounds the whole operation (connect through body read);
// maxBytes bounds the response body size.
func (c *Client) FetchPageText(ctx context.Context, rawURL string, timeoutMs int, maxBytes int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	if _, err := c.guard().Check(ctx, rawURL); err != nil {
		return "", err
	}

	httpClient := c.httpClient()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", ErrUpstreamFetch, resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if !isAllowedContentType(ct) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMediaType, ct)
	}

	limited := io.LimitReader(resp.Body, maxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamFetch, err)
	}
	if int64(len(body)) > maxBytes {
		return "", ErrPayloadTooLarge
	}

	return htmltext.Extract(string(body)), nil
}

func (c *Client) httpClient() *http.Client {
	base := c.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 15 * time.Second}
	}
	clone := *base
	clone.CheckRedirect = c.checkRedirect()
	return &clone
}

// checkRedirect re-validates every followed redirect hop against the SSRF
// guard, closing the DNS-rebinding window between the initial check and the
// hop the client actually dials.
func (c *Client) checkRedirect() func(req *http.Request, via []*http.Request) error {
	maxHops := c.RedirectMaxHops
	if maxHops <= 0 {
		maxHops = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxHops {
			return errors.New("too many redirects")
		}
		if _, err := c.guard().Check(req.Context(), req.URL.String()); err != nil {
			return err
		}
		return nil
	}
}

func isAllowedContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	// Content-Type may carry a charset parameter; match the media type prefix.
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

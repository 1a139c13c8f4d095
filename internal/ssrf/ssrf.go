// Package ssrf validates outbound URLs against private, loopback, and
// link-local address ranges before the bounded fetcher is allowed to dial
// them. The search adapters call fixed provider base URLs and do not use it.
package ssrf

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrInvalidURL is returned for any URL rejected by the guard. Callers that
// need an HTTP status should map this to 400 (InvalidUrl in the error
// taxonomy).
var ErrInvalidURL = errors.New("invalid or unsafe url")

// Resolver abstracts DNS resolution so tests can substitute fake lookups.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Guard validates candidate URLs. The zero value uses net.DefaultResolver.
type Guard struct {
	Resolver Resolver
}

// Default is a package-level Guard suitable for the common case.
var Default = &Guard{}

// Check parses and validates rawURL, returning the parsed URL if it is safe
// to dial. All resolved addresses for a hostname must pass; the first
// offending address rejects the whole URL (defense in depth against DNS
// rebinding between check time and fetch time).
func Check(ctx context.Context, rawURL string) (*url.URL, error) {
	return Default.Check(ctx, rawURL)
}

func (g *Guard) Check(ctx context.Context, rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	lowerHost := strings.ToLower(host)
	if lowerHost == "localhost" || strings.HasSuffix(lowerHost, ".local") {
		return nil, fmt.Errorf("%w: local hostname %q", ErrInvalidURL, host)
	}

	// Literal IP: validate directly without a DNS round trip.
	if ip := net.ParseIP(host); ip != nil {
		if isDisallowed(ip) {
			return nil, fmt.Errorf("%w: disallowed literal address %q", ErrInvalidURL, host)
		}
		return u, nil
	}

	addrs, err := g.resolver().LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: dns lookup failed for %q: %v", ErrInvalidURL, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: no addresses for %q", ErrInvalidURL, host)
	}
	for _, a := range addrs {
		if isDisallowed(a.IP) {
			return nil, fmt.Errorf("%w: %q resolves to disallowed address %s", ErrInvalidURL, host, a.IP)
		}
	}
	return u, nil
}

func (g *Guard) resolver() Resolver {
	if g.Resolver != nil {
		return g.Resolver
	}
	return net.DefaultResolver
}

// isDisallowed reports whether ip falls in a private, loopback, or
// link-local range (IPv4 or IPv6), or is otherwise malformed.
func isDisallowed(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		switch {
		case v4[0] == 10:
			return true
		case v4[0] == 127:
			return true
		case v4[0] == 169 && v4[1] == 254:
			return true
		case v4[0] == 192 && v4[1] == 168:
			return true
		case v4[0] == 172 && v4[1] >= 16 && v4[1] <= 31:
			return true
		}
		return false
	}
	// IPv6: fc00::/7 (unique local) covers fc00.. and fd00..
	if len(ip) == net.IPv6len && (ip[0]&0xfe) == 0xfc {
		return true
	}
	return false
}

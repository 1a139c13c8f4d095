package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nolia/ask-service/internal/ssrf"
)

// publicResolver resolves every hostname to a public documentation address
// so the SSRF guard lets it through.
type publicResolver struct{}

func (publicResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	return []net.IPAddr{{IP: net.ParseIP("93.184.216.34")}}, nil
}

// loopbackClient returns a Client and URL for srv that pass the SSRF guard
// as a public host would: the URL names a hostname that publicResolver
// vouches for, and the transport dials srv's loopback listener directly.
// (srv.URL itself is a 127.0.0.1 literal, which the guard rightly rejects.)
func loopbackClient(srv *httptest.Server) (*Client, string) {
	addr := srv.Listener.Addr().String()
	_, port, _ := net.SplitHostPort(addr)
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
	c := &Client{
		HTTPClient: &http.Client{Transport: transport},
		Guard:      &ssrf.Guard{Resolver: publicResolver{}},
	}
	return c, "http://fetch-test.example:" + port + "/"
}

func TestFetchPageTextExtractsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><script>bad()</script><p>Hello world</p></body></html>"))
	}))
	defer srv.Close()

	c, url := loopbackClient(srv)
	text, err := c.FetchPageText(context.Background(), url, 2000, 1<<20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "Hello world") {
		t.Fatalf("expected extracted text, got %q", text)
	}
	if strings.Contains(text, "bad()") {
		t.Fatalf("script leaked into text: %q", text)
	}
}

func TestFetchPageTextRejectsWrongContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, url := loopbackClient(srv)
	_, err := c.FetchPageText(context.Background(), url, 2000, 1<<20)
	if !errors.Is(err, ErrUnsupportedMediaType) {
		t.Fatalf("expected ErrUnsupportedMediaType, got %v", err)
	}
}

func TestFetchPageTextRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(make([]byte, 2_000_001))
	}))
	defer srv.Close()

	c, url := loopbackClient(srv)
	_, err := c.FetchPageText(context.Background(), url, 2000, 1_000_000)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestFetchPageTextAllowsExactByteCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(make([]byte, 1_000_000))
	}))
	defer srv.Close()

	c, url := loopbackClient(srv)
	_, err := c.FetchPageText(context.Background(), url, 2000, 1_000_000)
	if err != nil {
		t.Fatalf("expected body at exactly the cap to succeed, got %v", err)
	}
}

func TestFetchPageTextRejectsPrivateHost(t *testing.T) {
	c := &Client{}
	_, err := c.FetchPageText(context.Background(), "http://127.0.0.1:9/x", 1000, 1<<20)
	if !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL for loopback host, got %v", err)
	}
}

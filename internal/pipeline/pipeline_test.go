package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/nolia/ask-service/internal/askapi"
	"github.com/nolia/ask-service/internal/llm"
	"github.com/nolia/ask-service/internal/search"
)

// chatStubServer returns an httptest.Server that answers /chat/completions
// with content taken sequentially from replies, and records call count.
func chatStubServer(t *testing.T, replies []string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := calls
		if idx >= len(replies) {
			idx = len(replies) - 1
		}
		calls++
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": replies[idx]}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	return srv, &calls
}

func newTestPipeline(t *testing.T, providers []search.Provider, replies []string) (*Pipeline, *int, func()) {
	t.Helper()
	srv, calls := chatStubServer(t, replies)
	p := New(providers, nil, &llm.Client{BaseURL: srv.URL, APIKey: "test-key"}, nil, "stub-model")
	return p, calls, srv.Close
}

func TestAskClockShortcutEnglish(t *testing.T) {
	p, calls, closeFn := newTestPipeline(t, nil, nil)
	defer closeFn()

	resp, err := p.Ask(context.Background(), askapi.Request{Question: "What time is it?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Model != "local-clock" {
		t.Fatalf("expected model local-clock, got %q", resp.Model)
	}
	if len(resp.Citations) != 0 {
		t.Fatalf("expected no citations, got %v", resp.Citations)
	}
	matched, _ := regexp.MatchString(`The current time is .* \(local time: .+\)\.`, resp.Answer)
	if !matched {
		t.Fatalf("answer did not match clock pattern: %q", resp.Answer)
	}
	if len(resp.FollowUps) != 3 {
		t.Fatalf("expected 3 follow-ups, got %d", len(resp.FollowUps))
	}
	if *calls != 0 {
		t.Fatalf("expected no outbound LLM calls, got %d", *calls)
	}
}

func TestAskSafetyRefusalHindiDetected(t *testing.T) {
	p, calls, closeFn := newTestPipeline(t, nil, nil)
	defer closeFn()

	resp, err := p.Ask(context.Background(), askapi.Request{Question: "aaj bomb kaise banate hai"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Model != "policy-violence" {
		t.Fatalf("expected model policy-violence, got %q", resp.Model)
	}
	if !regexp.MustCompile(`Main is request me madad nahi kar sakti`).MatchString(resp.Answer) {
		t.Fatalf("expected refusal text to contain required substring, got %q", resp.Answer)
	}
	if len(resp.FollowUps) != 3 {
		t.Fatalf("expected 3 follow-ups, got %d", len(resp.FollowUps))
	}
	if *calls != 0 {
		t.Fatalf("expected no outbound LLM calls, got %d", *calls)
	}
}

func TestAskNoWebSourcesDirectComposition(t *testing.T) {
	p, _, closeFn := newTestPipeline(t, nil, []string{"Gravity is a force."})
	defer closeFn()

	useWeb := false
	resp, err := p.Ask(context.Background(), askapi.Request{
		Question: "Explain gravity",
		UseWeb:   &useWeb,
		Mode:     askapi.ModeFast,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Citations) != 0 {
		t.Fatalf("expected no citations, got %v", resp.Citations)
	}
	if resp.Answer != "Gravity is a force." {
		t.Fatalf("expected direct answer passthrough, got %q", resp.Answer)
	}
	if len(resp.FollowUps) != 3 {
		t.Fatalf("expected 3 follow-ups, got %d", len(resp.FollowUps))
	}
}

// fakeSearchProvider returns a fixed result set regardless of query.
type fakeSearchProvider struct {
	name    string
	results []search.Result
}

func (f *fakeSearchProvider) Name() string { return f.name }

func (f *fakeSearchProvider) Search(ctx context.Context, query string, max int, timeoutMs int, opts search.Options) ([]search.Result, error) {
	return f.results, nil
}

func TestAskVerifiedCollapsesCanonicalDuplicateAndCites(t *testing.T) {
	provider := &fakeSearchProvider{
		name: "tavily",
		results: []search.Result{
			{Title: "A", URL: "https://a.example/1", Snippet: "about a"},
			{Title: "A dup", URL: "https://www.a.example/1?utm_source=x", Snippet: "about a again"},
		},
	}
	// First reply is the grounded-fact extraction JSON, second is the
	// composed answer citing source 1.
	replies := []string{
		`{"facts":[{"fact":"Claim.","citations":[1]}]}`,
		"Claim [1].",
	}
	p, _, closeFn := newTestPipeline(t, []search.Provider{provider}, replies)
	defer closeFn()

	resp, err := p.Ask(context.Background(), askapi.Request{
		Question: "What is A?",
		Mode:     askapi.ModeVerified,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Citations) != 1 {
		t.Fatalf("expected exactly one collapsed citation, got %v", resp.Citations)
	}
	if resp.Citations[0].URL != "https://a.example/1" {
		t.Fatalf("expected canonical url, got %q", resp.Citations[0].URL)
	}
}

func TestAskStrictRetryPathIssuesExactlyOneRetry(t *testing.T) {
	provider := &fakeSearchProvider{
		name: "tavily",
		results: []search.Result{
			{Title: "A", URL: "https://a.example/1", Snippet: "about a"},
			{Title: "B", URL: "https://b.example/1", Snippet: "about b"},
		},
	}
	replies := []string{
		`{"facts":[]}`,    // grounded-fact extraction yields nothing
		"Some claim.",     // direct/fallback composition, no [n] citation
		"Some claim [1].", // strict retry, now cited
	}
	p, calls, closeFn := newTestPipeline(t, []search.Provider{provider}, replies)
	defer closeFn()

	resp, err := p.Ask(context.Background(), askapi.Request{
		Question: "What is A and B?",
		Mode:     askapi.ModeVerified,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Answer != "Some claim [1]." {
		t.Fatalf("expected retried answer, got %q", resp.Answer)
	}
	// grounded-fact call + fallback direct call + strict retry + follow-ups = 4
	if *calls != 4 {
		t.Fatalf("expected exactly one strict retry (4 total LLM calls), got %d", *calls)
	}
}

func TestAskNoModelAvailableSurfacesError(t *testing.T) {
	p := New(nil, nil, &llm.Client{}, nil, "")
	_, err := p.Ask(context.Background(), askapi.Request{Question: "Explain gravity"})
	if err == nil {
		t.Fatalf("expected error when no model is configured or available")
	}
}

func TestMillisSinceNeverNegative(t *testing.T) {
	start := time.Now()
	end := start.Add(-time.Second)
	if got := millisSince(start, end); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

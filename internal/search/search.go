// Package search implements two web-search adapters: a header-auth
// GET provider and a bearer-auth POST provider, both normalized to a common
// Result shape. Adapted from internal/search.Provider's interface and
// SearxNG adapter, generalized to two real upstream shapes.
package search

import "context"

// Result is a single search hit, normalized across providers.
type Result struct {
	Title      string
	URL        string
	Snippet    string
	RawContent string // optional, provider-supplied full page text (Provider B only)
	Source     string // provider name, for observability
}

// Options carries the provider-tunable knobs the Ask Pipeline derives from
// mode and freshness intent.
type Options struct {
	Topic             string // "general" | "news" | "finance"
	TimeRange         string // "day" | "week" | "month" | "year" | short forms
	SearchDepth       string // "fast" | "basic" | "advanced"
	IncludeRawContent bool
}

// Provider is the uniform interface both search adapters implement. An
// absent API key means the provider is disabled: Search returns (nil, nil),
// not an error, so one missing key never fails the pipeline.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, max int, timeoutMs int, opts Options) ([]Result, error)
}

// ErrUpstreamSearch wraps any non-2xx response from an enabled provider. It
// corresponds to the UpstreamSearch (502) error kind; the Ask Pipeline's
// fan-out drops the failed call's results instead of surfacing it.
type ErrUpstreamSearch struct {
	Provider string
	Status   int
}

func (e *ErrUpstreamSearch) Error() string {
	return "upstream search (" + e.Provider + "): unexpected status"
}

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// TavilyProvider implements Provider B: bearer-auth POST against a
// Tavily-shaped API, with optional raw page content per result and an
// optional published-date hint appended to the snippet.
type TavilyProvider struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	UserAgent  string
}

func (p *TavilyProvider) Name() string { return "tavily" }

type tavilyRequest struct {
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	Topic             string `json:"topic"`
	TimeRange         string `json:"time_range,omitempty"`
	SearchDepth       string `json:"search_depth"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent string `json:"include_raw_content,omitempty"`
}

type tavilyResult struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Content       string `json:"content"`
	RawContent    string `json:"raw_content"`
	RawContentAlt string `json:"rawContent"`
	PublishedDate string `json:"published_date"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

func (p *TavilyProvider) Search(ctx context.Context, query string, max int, timeoutMs int, opts Options) ([]Result, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, nil // provider disabled, not a fault
	}
	if max <= 0 {
		max = 10
	}
	base := p.BaseURL
	if base == "" {
		base = "https://api.tavily.com"
	}
	topic := opts.Topic
	if topic == "" {
		topic = "general"
	}
	depth := opts.SearchDepth
	if depth == "" {
		depth = "basic"
	}
	includeRaw := ""
	if opts.IncludeRawContent {
		includeRaw = "text"
	}
	reqBody := tavilyRequest{
		Query:             query,
		MaxResults:        max,
		Topic:             topic,
		TimeRange:         opts.TimeRange,
		SearchDepth:       depth,
		IncludeAnswer:     false,
		IncludeRawContent: includeRaw,
	}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/search", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}

	hc := p.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ErrUpstreamSearch{Provider: p.Name(), Status: resp.StatusCode}
	}

	var payload tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("tavily: decode: %w", err)
	}

	out := make([]Result, 0, len(payload.Results))
	for _, r := range payload.Results {
		if r.URL == "" {
			continue
		}
		snippet := strings.TrimSpace(r.Content)
		if strings.TrimSpace(r.PublishedDate) != "" {
			snippet = snippet + "\nPublished: " + strings.TrimSpace(r.PublishedDate)
		}
		rawContent := r.RawContent
		if rawContent == "" {
			rawContent = r.RawContentAlt
		}
		out = append(out, Result{
			Title:      strings.TrimSpace(r.Title),
			URL:        strings.TrimSpace(r.URL),
			Snippet:    snippet,
			RawContent: strings.TrimSpace(rawContent),
			Source:     p.Name(),
		})
		if len(out) >= max {
			break
		}
	}
	return out, nil
}

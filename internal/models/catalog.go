// Package models implements a free-tier model
// lister backed by the LLM provider's /models endpoint, cached in process
// memory. Grounded on internal/llm.ModelLister's capability interface,
// reimplemented as a direct HTTP call since the catalog needs per-model
// pricing fields go-openai's ModelsList does not expose.
package models

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	cacheTTL = 10 * time.Minute
	maxIDs   = 100
)

// Catalog fetches and caches the list of zero-cost model IDs.
type Catalog struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	UserAgent  string

	mu        sync.Mutex
	cached    []string
	cachedAt  time.Time
}

type modelsResponse struct {
	Data []modelEntry `json:"data"`
}

type modelEntry struct {
	ID      string  `json:"id"`
	Pricing pricing `json:"pricing"`
}

type pricing struct {
	Prompt     json.Number `json:"prompt"`
	Completion json.Number `json:"completion"`
	Request    json.Number `json:"request"`
}

// ListFreeModels returns at most 100 model IDs whose prompt/completion/request
// pricing all parse as numbers <= 0. Returns an empty slice, not an error,
// when no API key is configured. Results are cached for 10 minutes.
func (c *Catalog) ListFreeModels(ctx context.Context, timeoutMs int) ([]string, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return []string{}, nil
	}

	c.mu.Lock()
	if c.cached != nil && time.Since(c.cachedAt) < cacheTTL {
		out := make([]string, len(c.cached))
		copy(out, c.cached)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	ids, err := c.fetch(ctx, timeoutMs)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cached = ids
	c.cachedAt = time.Now()
	out := make([]string, len(ids))
	copy(out, ids)
	c.mu.Unlock()
	return out, nil
}

func (c *Catalog) fetch(ctx context.Context, timeoutMs int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	base := c.BaseURL
	if base == "" {
		base = "https://openrouter.ai/api/v1"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("models endpoint returned status %d", resp.StatusCode)
	}

	var payload modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}

	ids := make([]string, 0, maxIDs)
	for _, m := range payload.Data {
		if m.ID == "" {
			continue
		}
		if !isFree(m.Pricing) {
			continue
		}
		ids = append(ids, m.ID)
		if len(ids) >= maxIDs {
			break
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func isFree(p pricing) bool {
	return isZeroOrNegative(p.Prompt) && isZeroOrNegative(p.Completion) && isZeroOrNegative(p.Request)
}

func isZeroOrNegative(n json.Number) bool {
	if n == "" {
		return false
	}
	v, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return false
	}
	return v <= 0
}

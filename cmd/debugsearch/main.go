package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/nolia/ask-service/internal/config"
	"github.com/nolia/ask-service/internal/search"
)

// debugsearch calls both search adapters directly with the given query,
// bypassing the query planner and evidence ranker, and prints raw results
// with provider name for operator debugging.
func main() {
	q := "What is love?"
	if len(os.Args) > 1 {
		q = os.Args[1]
	}

	cfg := config.Load()
	client := &http.Client{Timeout: 20 * time.Second}

	providers := []search.Provider{
		&search.BraveProvider{BaseURL: cfg.BraveSearchBaseURL, APIKey: cfg.BraveSearchAPIKey, HTTPClient: client, UserAgent: "debugsearch/1.0"},
		&search.TavilyProvider{BaseURL: cfg.TavilyBaseURL, APIKey: cfg.TavilyAPIKey, HTTPClient: client, UserAgent: "debugsearch/1.0"},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	for _, p := range providers {
		fmt.Printf("=== %s ===\n", p.Name())
		res, err := p.Search(ctx, q, 5, 10000, search.Options{Topic: "general", SearchDepth: "basic"})
		if err != nil {
			fmt.Println("err:", err)
			continue
		}
		if len(res) == 0 {
			fmt.Println("(no results — provider disabled or empty response)")
			continue
		}
		for i, r := range res {
			fmt.Printf("%d. [%s] %s — %s\n", i+1, r.Source, r.Title, r.URL)
		}
	}
}

package main

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nolia/ask-service/internal/config"
	"github.com/nolia/ask-service/internal/fetch"
	"github.com/nolia/ask-service/internal/httpapi"
	"github.com/nolia/ask-service/internal/httpx"
	"github.com/nolia/ask-service/internal/llm"
	"github.com/nolia/ask-service/internal/models"
	"github.com/nolia/ask-service/internal/pipeline"
	"github.com/nolia/ask-service/internal/search"
)

func main() {
	cfg := config.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.IsProduction() {
		log.Logger = log.Output(os.Stderr)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	httpClient := httpx.NewHighThroughputClient(true, 20*time.Second)
	userAgent := "ask-service/1.0"

	providers := []search.Provider{
		&search.BraveProvider{BaseURL: cfg.BraveSearchBaseURL, APIKey: cfg.BraveSearchAPIKey, HTTPClient: httpClient, UserAgent: userAgent},
		&search.TavilyProvider{BaseURL: cfg.TavilyBaseURL, APIKey: cfg.TavilyAPIKey, HTTPClient: httpClient, UserAgent: userAgent},
	}

	fetcher := &fetch.Client{HTTPClient: httpx.NewHighThroughputClient(true, 15*time.Second), UserAgent: userAgent}

	llmClient := &llm.Client{
		BaseURL:    cfg.OpenRouterBaseURL,
		APIKey:     cfg.OpenRouterAPIKey,
		HTTPClient: httpClient,
		UserAgent:  userAgent,
	}

	catalog := &models.Catalog{
		BaseURL:    cfg.OpenRouterBaseURL,
		APIKey:     cfg.OpenRouterAPIKey,
		HTTPClient: httpClient,
		UserAgent:  userAgent,
	}

	pipe := pipeline.New(providers, fetcher, llmClient, catalog, cfg.OpenRouterDefaultModel)
	server := httpapi.New(pipe, catalog, cfg)

	addr := ":" + cfg.Port
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Str("addr", addr).Str("env", cfg.NodeEnv).Msg("ask-service starting")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
}

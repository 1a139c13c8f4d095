// Package config loads the Ask Service's environment-variable configuration
// into a single struct, mirroring cmd/goresearch's flag struct (one field
// per knob, env-sourced defaults) but env-var-only since this is a
// long-running server rather than a one-shot CLI.
package config

import "os"

// Config holds every environment-derived setting the server needs at
// startup. Missing LLM credentials are not a load-time error: the pipeline
// surfaces Misconfigured (503) per request instead.
type Config struct {
	OpenRouterAPIKey       string
	OpenRouterBaseURL      string
	OpenRouterDefaultModel string

	BraveSearchAPIKey  string
	BraveSearchBaseURL string

	TavilyAPIKey  string
	TavilyBaseURL string

	Port          string
	NodeEnv       string
	PublicBaseURL string
}

// Load reads Config from the process environment, applying the documented
// defaults for base URLs and port.
func Load() Config {
	return Config{
		OpenRouterAPIKey:       os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL:      envOr("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterDefaultModel: os.Getenv("OPENROUTER_DEFAULT_MODEL"),

		BraveSearchAPIKey:  os.Getenv("BRAVE_SEARCH_API_KEY"),
		BraveSearchBaseURL: envOr("BRAVE_SEARCH_BASE_URL", "https://api.search.brave.com/res/v1/web/search"),

		TavilyAPIKey:  os.Getenv("TAVILY_API_KEY"),
		TavilyBaseURL: envOr("TAVILY_BASE_URL", "https://api.tavily.com"),

		Port:          envOr("PORT", "5000"),
		NodeEnv:       os.Getenv("NODE_ENV"),
		PublicBaseURL: os.Getenv("PUBLIC_BASE_URL"),
	}
}

// IsProduction reports whether NodeEnv indicates a production deployment,
// which gates the generic "Internal Server Error" message and JSON (vs
// console) logging.
func (c Config) IsProduction() bool {
	return c.NodeEnv == "production"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

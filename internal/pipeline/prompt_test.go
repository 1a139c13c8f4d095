package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/nolia/ask-service/internal/askapi"
	"github.com/nolia/ask-service/internal/rank"
)

func TestBuildEvidenceBlockFormatsSources(t *testing.T) {
	sources := []rank.Scored{
		{Candidate: rank.Candidate{Title: "Title A", URL: "https://a.example", Snippet: "snip"}},
	}
	block := buildEvidenceBlock(sources)
	if !strings.Contains(block, "[1] Title A") {
		t.Fatalf("expected numbered title, got %q", block)
	}
	if !strings.Contains(block, "URL: https://a.example") {
		t.Fatalf("expected URL line, got %q", block)
	}
	if !strings.Contains(block, "Snippet: snip") {
		t.Fatalf("expected snippet line, got %q", block)
	}
}

func TestBuildSystemPromptForbidsSourcesFooter(t *testing.T) {
	p := buildSystemPrompt(promptOptions{Style: askapi.StyleBalanced, Mode: askapi.ModeVerified, Language: "en", Now: time.Now(), SourcesCount: 3})
	if !strings.Contains(p, "Never append a trailing") {
		t.Fatalf("expected prompt to forbid sources footer, got %q", p)
	}
	if !strings.Contains(p, "1 to 3") {
		t.Fatalf("expected prompt to bound citation range, got %q", p)
	}
}

func TestBuildSystemPromptStrictCitationsDirective(t *testing.T) {
	p := buildSystemPrompt(promptOptions{SourcesCount: 2, StrictCitations: true, Now: time.Now()})
	if !strings.Contains(p, "MUST contain at least one inline citation") {
		t.Fatalf("expected strict directive present, got %q", p)
	}
}

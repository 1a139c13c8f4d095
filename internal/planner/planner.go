// Package planner implements intent detection and
// multi-query expansion for a natural-language question. Grounded on the
// teacher's internal/planner.LLMPlanner (the deterministic-fallback query
// generation and dedup/sanitize helpers in particular), rewritten as a pure
// keyword classifier since this pipeline plans queries without an LLM round
// trip. Word lists are sourced from internal/data instead of literals.
package planner

import (
	"strings"

	"github.com/nolia/ask-service/internal/data"
)

// Plan is the output of planning a question: detected intents plus the
// deduped list of search queries to issue.
type Plan struct {
	WantsFresh     bool
	WantsVeryFresh bool
	WantsFinance   bool
	Core           string
	Queries        []string
}

// Mode mirrors the Ask Pipeline's mode field, needed to decide whether to
// append an "official" query variant.
type Mode string

const (
	ModeFast     Mode = "fast"
	ModeVerified Mode = "verified"
)

// Plan analyzes question and returns the detected intents and up to three
// deduped (case-insensitive) search query variants.
func Plan(question string, mode Mode) Plan {
	lists := data.Load()
	lower := strings.ToLower(strings.TrimSpace(question))

	p := Plan{
		WantsFresh:     containsAny(lower, lists.FreshIntent.EN) || containsAny(lower, lists.FreshIntent.HI),
		WantsVeryFresh: containsAny(lower, lists.VeryFreshIntent.EN) || containsAny(lower, lists.VeryFreshIntent.HI),
		WantsFinance:   containsAny(lower, lists.FinanceIntent),
	}
	if p.WantsVeryFresh {
		p.WantsFresh = true
	}

	p.Core = stripInterrogatives(strings.TrimSpace(question), lists.Interrogatives)

	queries := []string{strings.TrimSpace(question)}
	queries = appendDeduped(queries, p.Core)
	if p.WantsFresh {
		queries = appendDeduped(queries, p.Core+" latest")
	}
	if p.WantsVeryFresh {
		queries = appendDeduped(queries, p.Core+" today")
	}
	if p.WantsFinance {
		queries = appendDeduped(queries, p.Core+" price")
	}
	if mode == ModeVerified {
		queries = appendDeduped(queries, p.Core+" official")
	}
	if len(queries) > 3 {
		queries = queries[:3]
	}
	p.Queries = queries
	return p
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if n == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// stripInterrogatives removes the longest matching leading interrogative
// phrase from question, returning the remaining topical core.
func stripInterrogatives(question string, interrogatives []string) string {
	lower := strings.ToLower(question)
	bestLen := -1
	for _, phrase := range interrogatives {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase == "" {
			continue
		}
		if strings.HasPrefix(lower, phrase) && len(phrase) > bestLen {
			bestLen = len(phrase)
		}
	}
	core := question
	if bestLen >= 0 {
		core = question[bestLen:]
	}
	core = strings.TrimPrefix(strings.TrimSpace(core), "?")
	core = strings.TrimSuffix(strings.TrimSpace(core), "?")
	core = strings.TrimSpace(core)
	if core == "" {
		return strings.TrimSpace(question)
	}
	return core
}

func appendDeduped(existing []string, candidate string) []string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return existing
	}
	for _, q := range existing {
		if strings.EqualFold(q, candidate) {
			return existing
		}
	}
	return append(existing, candidate)
}

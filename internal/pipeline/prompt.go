package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/nolia/ask-service/internal/askapi"
	"github.com/nolia/ask-service/internal/rank"
)

// buildEvidenceBlock renders the ranked sources as the plain-text evidence
// block handed to the LLM: "[i] title", "URL: ...", optional truncated
// snippet/extracted text.
func buildEvidenceBlock(sources []rank.Scored) string {
	var b strings.Builder
	for i, s := range sources {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, s.Title)
		fmt.Fprintf(&b, "URL: %s\n", s.URL)
		if snippet := truncateRunes(s.Snippet, 500); snippet != "" {
			fmt.Fprintf(&b, "Snippet: %s\n", snippet)
		}
		if extracted := truncateRunes(s.RawContent, 2500); extracted != "" {
			fmt.Fprintf(&b, "Extracted: %s\n", extracted)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncateRunes(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// promptOptions carries the variable options the system prompt must state.
type promptOptions struct {
	Style           askapi.Style
	Mode            askapi.Mode
	Language        string
	Now             time.Time
	SourcesCount    int
	StrictCitations bool
}

// buildSystemPrompt deterministically constructs the system prompt from
// style, mode, language, current UTC date, and citation options. It forbids
// a trailing "Sources" footer, requires inline [n] citations bounded to
// 1..sourcesCount whenever sources exist, and states the safety policy.
func buildSystemPrompt(opts promptOptions) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant answering a user's question directly and accurately.\n")
	fmt.Fprintf(&b, "Style: %s. Mode: %s. Language: %s. Current date (UTC): %s.\n",
		opts.Style, opts.Mode, opts.Language, opts.Now.UTC().Format("2006-01-02"))

	if opts.SourcesCount > 0 {
		fmt.Fprintf(&b, "You are given %d numbered sources below. Cite every factual claim drawn from them using inline brackets like [1], using only numbers from 1 to %d. ", opts.SourcesCount, opts.SourcesCount)
		b.WriteString("Do not invent citation numbers outside that range. ")
	}
	b.WriteString("Never append a trailing \"Sources\" or \"References\" section or footer; citations must be inline only.\n")
	if opts.StrictCitations {
		b.WriteString("Every factual paragraph or bullet MUST contain at least one inline citation. If the sources do not cover a detail, explicitly say so rather than asserting it uncited.\n")
	}
	b.WriteString("Safety policy: refuse requests for self-harm instructions, violence or weapons manufacture, illegal drug synthesis, hacking/malware, or sexual content involving minors.\n")
	return b.String()
}

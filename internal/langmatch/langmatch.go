// Package langmatch resolves the AskRequest "language" field (auto/en/hi)
// against a Hindi-transliteration heuristic and BCP-47 negotiation, and
// title-cases generated follow-up questions for display. Wires a
// declared-but-previously-unused golang.org/x/text dependency into genuine
// language negotiation and case-folding use.
package langmatch

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nolia/ask-service/internal/data"
)

var supported = []language.Tag{language.English, language.Hindi}
var matcher = language.NewMatcher(supported)

// HindiDetected reports whether question contains enough transliterated
// Hindi markers to treat the question as Hindi for the "auto" language
// setting.
func HindiDetected(question string) bool {
	lower := strings.ToLower(question)
	for _, marker := range data.Load().HindiMarkers {
		if marker == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// Resolve negotiates the requested language ("auto", "en", "hi", or any
// BCP-47 tag) against whether Hindi was heuristically detected in the
// question, returning the matched tag.
func Resolve(requested string, question string) language.Tag {
	switch strings.ToLower(strings.TrimSpace(requested)) {
	case "en":
		return language.English
	case "hi":
		return language.Hindi
	case "", "auto":
		if HindiDetected(question) {
			return language.Hindi
		}
		return language.English
	default:
		tag, _, confidence := matcher.Match(language.Make(requested))
		if confidence == language.No {
			return language.English
		}
		return tag
	}
}

// TitleCase renders s in tag's title-casing convention, used to format
// heuristic follow-up questions for display.
func TitleCase(tag language.Tag, s string) string {
	return cases.Title(tag).String(s)
}

// TitleCaseTopic renders a topical phrase in the display tag implied by
// hindi: Hindi transliteration is left as-is (English title-casing rules
// don't apply), English topics are title-cased for a cleaner follow-up
// question.
func TitleCaseTopic(hindi bool, s string) string {
	if hindi {
		return s
	}
	return TitleCase(language.English, s)
}

package pipeline

import (
	"strings"
	"time"

	"github.com/nolia/ask-service/internal/data"
	"github.com/nolia/ask-service/internal/langmatch"
)

// clockShortcut reports whether question matches a date/time intent and, if
// so, the formatted answer and language detection used to pick it.
func clockShortcut(question string, now time.Time) (answer string, hindi bool, matched bool) {
	lower := strings.ToLower(strings.TrimSpace(question))
	lists := data.Load().ClockIntent
	hindi = containsAny(lower, lists.HI)
	if !hindi && !containsAny(lower, lists.EN) {
		return "", false, false
	}
	local := now.Local()
	clock := local.Format("3:04 PM")
	zone := local.Format("MST")
	if hindi {
		return "Abhi samay hai " + clock + " (local time: " + zone + ").", true, true
	}
	return "The current time is " + clock + " (local time: " + zone + ").", false, true
}

// safetyShortcut reports whether question matches one of the six safety
// patterns and, if so, the refusal reason and whether Hindi was detected.
func safetyShortcut(question string) (reason string, hindi bool, matched bool) {
	lower := strings.ToLower(strings.TrimSpace(question))
	hindi = langmatch.HindiDetected(question)
	for _, pattern := range data.Load().SafetyPatterns {
		for _, term := range pattern.Terms {
			if term == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(term)) {
				return pattern.Reason, hindi, true
			}
		}
	}
	return "", hindi, false
}

func safetyRefusal(hindi bool) string {
	if hindi {
		return "Main is request me madad nahi kar sakti. Yeh jaankari surakshit tareeke se share nahi ki ja sakti."
	}
	return "I can't help with that request. This information can't be safely shared."
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

// heuristicFollowUps derives up to three generic follow-up questions from
// the topical core, using a Hindi template if detected.
func heuristicFollowUps(core string, hindi bool) []string {
	core = strings.TrimSpace(core)
	if core == "" {
		core = "this topic"
	}
	core = langmatch.TitleCaseTopic(hindi, core)
	if hindi {
		return []string{
			core + " ke baare me aur jaankari?",
			core + " se judi taaza khabar kya hai?",
			core + " ka itihaas kya hai?",
		}
	}
	return []string{
		"What else should I know about " + core + "?",
		"What are the latest developments in " + core + "?",
		"What is the history of " + core + "?",
	}
}

// fixedSafetyFollowUps returns the three fixed follow-ups used after a
// safety refusal, independent of the question's topic.
func fixedSafetyFollowUps(hindi bool) []string {
	if hindi {
		return []string{
			"Kya aap kisi surakshit vishay me madad chahte hain?",
			"Kya aapko kisi aur jaankari ki zaroorat hai?",
			"Kya main kisi aur sawaal ka jawab de sakti hoon?",
		}
	}
	return []string{
		"Is there a safer topic I can help you with?",
		"Would you like information on a related but safe subject?",
		"Can I help you with something else instead?",
	}
}

// Package excerpt implements overlapping-window
// selection of the most question-relevant slices of a fetched page's text.
// Grounded on internal/extract's windowing/scoring approach, adapted to
// a fixed window/stride size and minimum pick spacing.
package excerpt

import (
	"sort"
	"strings"
)

const (
	windowSize   = 520
	windowStride = 320
	minSpacing   = 220
)

type window struct {
	start int
	end   int
	score int
}

// Build slices text into overlapping windows, scores each by the count of
// matching questionTokens, and selects up to maxChunks windows whose start
// indices are at least 220 chars apart (the windows themselves may
// overlap), in original order, joined by
// blank lines and truncated to maxTotalChars. If no window scores above
// zero, text is truncated to maxTotalChars instead.
func Build(text string, questionTokens []string, maxChunks int, maxTotalChars int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	windows := makeWindows(text, questionTokens)
	best := pickWindows(windows, maxChunks)
	if len(best) == 0 {
		return truncate(text, maxTotalChars)
	}

	sort.Slice(best, func(i, j int) bool { return best[i].start < best[j].start })
	parts := make([]string, 0, len(best))
	for _, w := range best {
		parts = append(parts, strings.TrimSpace(text[w.start:w.end]))
	}
	joined := strings.Join(parts, "\n\n")
	return truncate(joined, maxTotalChars)
}

func makeWindows(text string, tokens []string) []window {
	var windows []window
	for start := 0; start < len(text); start += windowStride {
		end := start + windowSize
		if end > len(text) {
			end = len(text)
		}
		slice := text[start:end]
		windows = append(windows, window{start: start, end: end, score: scoreWindow(slice, tokens)})
		if end == len(text) {
			break
		}
	}
	return windows
}

func scoreWindow(slice string, tokens []string) int {
	if len(tokens) == 0 {
		return 0
	}
	lower := strings.ToLower(slice)
	count := 0
	for _, t := range tokens {
		if strings.Contains(lower, t) {
			count++
		}
	}
	return count
}

// pickWindows selects up to maxChunks windows by descending score,
// enforcing a minimum start-index distance of minSpacing between any two
// picks. Windows scoring zero are never picked.
func pickWindows(windows []window, maxChunks int) []window {
	candidates := make([]window, len(windows))
	copy(candidates, windows)
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	var picked []window
	for _, w := range candidates {
		if w.score <= 0 {
			continue
		}
		if len(picked) >= maxChunks {
			break
		}
		tooClose := false
		for _, p := range picked {
			d := p.start - w.start
			if d < 0 {
				d = -d
			}
			if d < minSpacing {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}
		picked = append(picked, w)
	}
	return picked
}

func truncate(s string, maxTotalChars int) string {
	if maxTotalChars <= 0 || len(s) <= maxTotalChars {
		return s
	}
	return s[:maxTotalChars]
}

package rank

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/nolia/ask-service/internal/data"
)

// Candidate is a single piece of evidence considered for ranking, merged
// across search providers by canonical URL.
type Candidate struct {
	Title      string
	URL        string
	Snippet    string
	RawContent string
	Source     string
}

// Scored is a Candidate annotated with its canonical key, host, and score.
type Scored struct {
	Candidate
	CanonicalKey string
	Host         string
	Score        int
}

var publishedRE = regexp.MustCompile(`Published:\s*(\d{4}-\d{2}-\d{2})`)

// Upsert merges incoming into existing, keyed by canonical URL, keeping the
// higher-scored variant whenever both sides produce the same key.
func Upsert(existing map[string]Candidate, incoming Candidate) {
	key := Canonicalize(incoming.URL)
	prev, ok := existing[key]
	if !ok {
		existing[key] = incoming
		return
	}
	if candidateScore(incoming, nil, false) > candidateScore(prev, nil, false) {
		existing[key] = incoming
	}
}

// Score computes the ranking score for a candidate given the question's
// significant tokens and whether the question carries fresh intent.
func Score(c Candidate, questionTokens []string, wantsFresh bool) int {
	return candidateScore(c, questionTokens, wantsFresh)
}

func candidateScore(c Candidate, questionTokens []string, wantsFresh bool) int {
	score := domainTrustScore(hostOf(c.URL))
	score += tokenOverlapScore(c.Title+" "+c.Snippet, questionTokens)
	if wantsFresh {
		score += recencyScore(c.Snippet)
	}
	return score
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(u.Host, "www."))
}

func domainTrustScore(host string) int {
	if host == "" {
		return 0
	}
	lists := data.Load().DomainTrust
	total := 0
	for suffix, pts := range lists.Suffixes {
		if strings.HasSuffix(host, suffix) {
			total += pts
		}
	}
	for h, pts := range lists.Hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			total += pts
		}
	}
	for _, low := range lists.LowQualityHosts {
		if strings.Contains(host, low) {
			total += lists.LowQualityPenalty
			break
		}
	}
	return total
}

// QuestionTokens extracts the significant (>=3 char, non-stopword) lowercase
// tokens from question, used both for ranking and excerpt scoring.
func QuestionTokens(question string) []string {
	stop := map[string]bool{}
	for _, w := range data.Load().Stopwords {
		stop[strings.ToLower(w)] = true
	}
	fields := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 || stop[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func tokenOverlapScore(haystack string, tokens []string) int {
	if len(tokens) == 0 {
		return 0
	}
	lower := strings.ToLower(haystack)
	count := 0
	for _, t := range tokens {
		if strings.Contains(lower, t) {
			count++
		}
	}
	if count > 6 {
		count = 6
	}
	return count
}

func recencyScore(snippet string) int {
	m := publishedRE.FindStringSubmatch(snippet)
	if m == nil {
		return 0
	}
	parsed, err := time.Parse("2006-01-02", m[1])
	if err != nil {
		return 2
	}
	days := int(time.Since(parsed).Hours() / 24)
	switch {
	case days <= 2:
		return 4
	case days <= 7:
		return 3
	case days <= 30:
		return 2
	default:
		return 1
	}
}

// Select sorts candidates by score descending, takes at most maxSources,
// applies a per-host cap, then backfills unused slots ignoring the host cap
// if fewer than maxSources candidates were picked. The result order is the
// source index used for [n] citation numbering. Callers pass maxSources=8,
// hostCap=1 when the question carries fresh intent, else 6 and 2.
func Select(candidates []Candidate, question string, wantsFresh bool, maxSources, hostCap int) []Scored {
	tokens := QuestionTokens(question)

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, Scored{
			Candidate:    c,
			CanonicalKey: Canonicalize(c.URL),
			Host:         hostOf(c.URL),
			Score:        candidateScore(c, tokens, wantsFresh),
		})
	}
	sortByScoreDesc(scored)

	picked := make([]Scored, 0, maxSources)
	hostCount := map[string]int{}
	var leftover []Scored
	for _, s := range scored {
		if len(picked) >= maxSources {
			leftover = append(leftover, s)
			continue
		}
		if hostCount[s.Host] >= hostCap {
			leftover = append(leftover, s)
			continue
		}
		picked = append(picked, s)
		hostCount[s.Host]++
	}
	for _, s := range leftover {
		if len(picked) >= maxSources {
			break
		}
		picked = append(picked, s)
	}
	return picked
}

func sortByScoreDesc(s []Scored) {
	// simple stable insertion sort keeps ties in original (provider) order,
	// matching the deterministic-ordering preference of internal/select.go
	for i := 1; i < len(s); i++ {
		j := i
		for j > 0 && s[j-1].Score < s[j].Score {
			s[j-1], s[j] = s[j], s[j-1]
			j--
		}
	}
}

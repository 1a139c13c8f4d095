package rank

import "testing"

func TestDomainTrustScoring(t *testing.T) {
	gov := Candidate{URL: "https://agency.gov/page", Title: "t", Snippet: "s"}
	ugc := Candidate{URL: "https://example.medium.com/page", Title: "t", Snippet: "s"}
	if Score(gov, nil, false) <= Score(ugc, nil, false) {
		t.Fatalf(".gov should outscore a low-quality UGC host")
	}
}

func TestTokenOverlapScoreCapsAtSix(t *testing.T) {
	tokens := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta"}
	c := Candidate{Title: "alpha beta gamma delta epsilon zeta eta", Snippet: ""}
	if got := Score(c, tokens, false); got > 6 {
		t.Fatalf("expected token overlap capped at 6, got %d", got)
	}
}

func TestRecencyScoringSkippedWhenNotFresh(t *testing.T) {
	c := Candidate{URL: "https://example.com/a", Snippet: "some text\nPublished: 2099-01-01"}
	if Score(c, nil, false) != 0 {
		t.Fatalf("expected no recency boost when wantsFresh=false")
	}
}

func TestSelectAppliesMaxSourcesAndHostCap(t *testing.T) {
	candidates := []Candidate{
		{URL: "https://a.com/1", Title: "x", Snippet: "x"},
		{URL: "https://a.com/2", Title: "x", Snippet: "x"},
		{URL: "https://a.com/3", Title: "x", Snippet: "x"},
		{URL: "https://b.com/1", Title: "x", Snippet: "x"},
		{URL: "https://c.com/1", Title: "x", Snippet: "x"},
	}
	picked := Select(candidates, "x", false, 4, 2)
	hostCount := map[string]int{}
	for _, p := range picked {
		hostCount[p.Host]++
	}
	if hostCount["a.com"] > 2 {
		t.Fatalf("expected host cap of 2 before backfill, got %d for a.com", hostCount["a.com"])
	}
}

func TestSelectBackfillsWhenCandidatesScarce(t *testing.T) {
	candidates := []Candidate{
		{URL: "https://a.com/1", Title: "x", Snippet: "x"},
		{URL: "https://a.com/2", Title: "x", Snippet: "x"},
		{URL: "https://a.com/3", Title: "x", Snippet: "x"},
	}
	picked := Select(candidates, "x", false, 6, 1)
	if len(picked) != 3 {
		t.Fatalf("expected backfill to use all 3 candidates despite host cap 1, got %d", len(picked))
	}
}

func TestSelectOrdersByScoreDescending(t *testing.T) {
	candidates := []Candidate{
		{URL: "https://low.com/a", Title: "nothing relevant", Snippet: ""},
		{URL: "https://agency.gov/a", Title: "match widget", Snippet: "match widget detail"},
	}
	picked := Select(candidates, "widget", false, 6, 2)
	if len(picked) != 2 {
		t.Fatalf("expected 2 picked, got %d", len(picked))
	}
	if picked[0].Host != "agency.gov" {
		t.Fatalf("expected higher-scored .gov candidate first, got %q", picked[0].Host)
	}
}

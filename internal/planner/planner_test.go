package planner

import "testing"

func TestPlanDetectsFreshIntent(t *testing.T) {
	p := Plan("what is the latest news on the election", ModeFast)
	if !p.WantsFresh {
		t.Fatalf("expected fresh intent detected")
	}
	if p.WantsVeryFresh {
		t.Fatalf("did not expect very-fresh intent")
	}
}

func TestPlanDetectsVeryFreshImpliesFresh(t *testing.T) {
	p := Plan("what is happening right now in the market", ModeFast)
	if !p.WantsVeryFresh || !p.WantsFresh {
		t.Fatalf("expected both fresh and very-fresh, got %+v", p)
	}
}

func TestPlanDetectsFinanceIntent(t *testing.T) {
	p := Plan("what is the stock price of Acme Corp", ModeFast)
	if !p.WantsFinance {
		t.Fatalf("expected finance intent detected")
	}
}

func TestPlanStripsInterrogative(t *testing.T) {
	p := Plan("what is the capital of France", ModeFast)
	if p.Core == "" || p.Core == "what is the capital of France" {
		t.Fatalf("expected interrogative stripped, got %q", p.Core)
	}
}

func TestPlanDedupesQueries(t *testing.T) {
	p := Plan("latest", ModeFast)
	seen := map[string]bool{}
	for _, q := range p.Queries {
		key := q
		if seen[key] {
			t.Fatalf("duplicate query %q in %v", q, p.Queries)
		}
		seen[key] = true
	}
}

func TestPlanCapsAtThreeQueries(t *testing.T) {
	p := Plan("what is the latest stock price today", ModeVerified)
	if len(p.Queries) > 3 {
		t.Fatalf("expected at most 3 queries, got %d: %v", len(p.Queries), p.Queries)
	}
}

func TestPlanVerifiedModeAddsOfficialVariant(t *testing.T) {
	p := Plan("capital of France", ModeVerified)
	found := false
	for _, q := range p.Queries {
		if q == p.Core+" official" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an official-suffixed query in verified mode, got %v", p.Queries)
	}
}

// Package pipeline implements the orchestration
// entry point that ties the Query Planner, Search Adapters, Evidence
// Ranker, Bounded Fetcher, Excerpt Builder, and LLM Adapter into a single
// grounded-answer call. Grounded on internal/app.App's orchestration shape
// (one struct holding every collaborator, one method running the staged
// pipeline), generalized from a batch report run to a single
// request/response cycle.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nolia/ask-service/internal/apierr"
	"github.com/nolia/ask-service/internal/askapi"
	"github.com/nolia/ask-service/internal/budget"
	"github.com/nolia/ask-service/internal/excerpt"
	"github.com/nolia/ask-service/internal/fetch"
	"github.com/nolia/ask-service/internal/langmatch"
	"github.com/nolia/ask-service/internal/llm"
	"github.com/nolia/ask-service/internal/models"
	"github.com/nolia/ask-service/internal/planner"
	"github.com/nolia/ask-service/internal/rank"
	"github.com/nolia/ask-service/internal/search"
)

// Pipeline bundles every collaborator the Ask Pipeline needs. The zero value
// is not usable; construct with New.
type Pipeline struct {
	SearchProviders []search.Provider
	Fetcher         *fetch.Client
	LLM             *llm.Client
	Models          *models.Catalog
	DefaultModel    string

	// Now is overridable for deterministic tests; defaults to time.Now.
	Now func() time.Time
}

// New constructs a Pipeline with the given collaborators and a real clock.
func New(providers []search.Provider, fetcher *fetch.Client, llmClient *llm.Client, catalog *models.Catalog, defaultModel string) *Pipeline {
	return &Pipeline{
		SearchProviders: providers,
		Fetcher:         fetcher,
		LLM:             llmClient,
		Models:          catalog,
		DefaultModel:    defaultModel,
		Now:             time.Now,
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Ask runs the full pipeline for req and returns the grounded response.
func (p *Pipeline) Ask(ctx context.Context, req askapi.Request) (askapi.Response, error) {
	start := p.now()

	question := strings.TrimSpace(req.Question)

	// 1. Local-clock shortcut.
	if answer, hindi, matched := clockShortcut(question, start); matched {
		return askapi.Response{
			Provider:  "openrouter",
			Model:     "local-clock",
			Answer:    answer,
			Citations: []askapi.Citation{},
			FollowUps: heuristicFollowUps(question, hindi),
			LatencyMs: millisSince(start, p.now()),
		}, nil
	}

	// 2. Safety shortcut.
	if reason, hindi, matched := safetyShortcut(question); matched {
		return askapi.Response{
			Provider:  "openrouter",
			Model:     "policy-" + reason,
			Answer:    safetyRefusal(hindi),
			Citations: []askapi.Citation{},
			FollowUps: fixedSafetyFollowUps(hindi),
			LatencyMs: millisSince(start, p.now()),
		}, nil
	}

	// 3. Model selection.
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = strings.TrimSpace(p.DefaultModel)
	}
	if model == "" && p.Models != nil {
		free, err := p.Models.ListFreeModels(ctx, 8000)
		if err == nil && len(free) > 0 {
			model = free[0]
		}
	}
	if model == "" {
		return askapi.Response{}, apierr.NoModelAvailable("no model configured or available")
	}
	if p.LLM == nil || strings.TrimSpace(p.LLM.APIKey) == "" {
		return askapi.Response{}, apierr.Misconfigured("LLM API key is not configured")
	}

	mode := req.Mode
	if mode == "" {
		mode = askapi.ModeVerified
	}
	style := req.Style
	if style == "" {
		style = askapi.StyleBalanced
	}
	useWeb := true
	if req.UseWeb != nil {
		useWeb = *req.UseWeb
	}

	langTag := langmatch.Resolve(string(req.Language), question)
	hindi := langTag.String() == "hi"
	plan := planner.Plan(question, planner.Mode(mode))

	var sources []rank.Scored
	if useWeb {
		sources = p.gatherEvidence(ctx, plan, question, mode)
	}

	evidenceBlock := buildEvidenceBlock(sources)
	now := p.now()
	langLabel := "en"
	if hindi {
		langLabel = "hi"
	}

	answer, err := p.compose(ctx, model, mode, style, langLabel, now, sources, evidenceBlock, question)
	if err != nil {
		return askapi.Response{}, err
	}

	if mode == askapi.ModeVerified && len(sources) > 0 {
		if needsStrictRetry(answer, len(sources)) {
			answer, err = p.strictRetry(ctx, model, style, langLabel, now, sources, evidenceBlock, question)
			if err != nil {
				return askapi.Response{}, err
			}
		}
	}

	citations := mapCitations(answer, sources)
	followUps := p.generateFollowUps(ctx, model, question, answer, plan.Core, hindi)

	return askapi.Response{
		Provider:  "openrouter",
		Model:     model,
		Answer:    answer,
		Citations: citations,
		FollowUps: followUps,
		LatencyMs: millisSince(start, p.now()),
	}, nil
}

func millisSince(start, end time.Time) int64 {
	d := end.Sub(start).Milliseconds()
	if d < 0 {
		return 0
	}
	return d
}

func needsStrictRetry(answer string, sourcesCount int) bool {
	nums := sanitizeCitationNumbers(answer, sourcesCount)
	if len(nums) == 0 {
		return true
	}
	if needsCitationCheck(answer) {
		return true
	}
	return false
}

func mapCitations(answer string, sources []rank.Scored) []askapi.Citation {
	nums := sanitizeCitationNumbers(answer, len(sources))
	out := make([]askapi.Citation, 0, len(nums))
	for _, n := range nums {
		s := sources[n-1]
		out = append(out, askapi.Citation{URL: s.URL, Title: s.Title})
	}
	return out
}

// gatherEvidence runs steps 4a-4e: query planning, parallel search fan-out,
// canonical upsert, ranking, and bounded concurrent fetch of the top
// sources lacking extracted text.
func (p *Pipeline) gatherEvidence(ctx context.Context, plan planner.Plan, question string, mode askapi.Mode) []rank.Scored {
	maxResultsPerQuery := 4
	if plan.WantsFresh {
		maxResultsPerQuery = 6
	}
	searchDepth := "fast"
	if mode == askapi.ModeVerified {
		searchDepth = "basic"
		if plan.WantsFresh {
			searchDepth = "advanced"
		}
	}
	includeRaw := mode == askapi.ModeVerified

	opts := search.Options{
		Topic:             "general",
		SearchDepth:       searchDepth,
		IncludeRawContent: includeRaw,
	}

	results := p.fanOutSearch(ctx, plan.Queries, maxResultsPerQuery, opts)

	merged := map[string]rank.Candidate{}
	var order []string // canonical keys in first-seen (fan-out) order
	for _, r := range results {
		key := rank.Canonicalize(r.URL)
		if _, seen := merged[key]; !seen {
			order = append(order, key)
		}
		rank.Upsert(merged, rank.Candidate{
			Title:      r.Title,
			URL:        r.URL,
			Snippet:    r.Snippet,
			RawContent: r.RawContent,
			Source:     r.Source,
		})
	}
	candidates := make([]rank.Candidate, 0, len(order))
	for _, key := range order {
		candidates = append(candidates, merged[key])
	}

	maxSources, hostCap := 6, 2
	if plan.WantsFresh {
		maxSources, hostCap = 8, 1
	}
	selected := rank.Select(candidates, question, plan.WantsFresh, maxSources, hostCap)

	tokens := rank.QuestionTokens(question)
	for i := range selected {
		if selected[i].RawContent != "" {
			selected[i].RawContent = excerpt.Build(selected[i].RawContent, tokens, 3, 1200)
		}
	}

	maxFetch := 3
	switch {
	case mode == askapi.ModeVerified && plan.WantsFresh:
		maxFetch = 5
	case mode == askapi.ModeVerified:
		maxFetch = 4
	case plan.WantsFresh:
		maxFetch = 4
	}

	p.fetchTopSources(ctx, selected, maxFetch, tokens)
	return selected
}

func (p *Pipeline) fanOutSearch(ctx context.Context, queries []string, maxResultsPerQuery int, opts search.Options) []search.Result {
	var wg sync.WaitGroup
	type call struct {
		provider search.Provider
		query    string
	}
	var calls []call
	for _, provider := range p.SearchProviders {
		isProviderA := provider.Name() == "brave"
		qs := queries
		if isProviderA && len(qs) > 2 {
			qs = qs[:2]
		}
		for _, q := range qs {
			calls = append(calls, call{provider: provider, query: q})
		}
	}

	resultsPerCall := make([][]search.Result, len(calls))
	for i, c := range calls {
		wg.Add(1)
		go func(i int, c call) {
			defer wg.Done()
			res, err := c.provider.Search(ctx, c.query, maxResultsPerQuery, 10000, opts)
			if err != nil {
				return // provider failures are recovered locally, not surfaced
			}
			resultsPerCall[i] = res
		}(i, c)
	}
	wg.Wait()

	var all []search.Result
	for _, rs := range resultsPerCall {
		all = append(all, rs...)
	}
	return all
}

func (p *Pipeline) fetchTopSources(ctx context.Context, sources []rank.Scored, maxFetch int, tokens []string) {
	if p.Fetcher == nil {
		return
	}
	n := 0
	var wg sync.WaitGroup
	for i := range sources {
		if sources[i].RawContent != "" {
			continue
		}
		if n >= maxFetch {
			break
		}
		n++
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			text, err := p.Fetcher.FetchPageText(ctx, sources[idx].URL, 10000, 2_000_000)
			if err != nil {
				return // fetch failures silently tolerated
			}
			sources[idx].RawContent = excerpt.Build(text, tokens, 3, 2500)
		}(i)
	}
	wg.Wait()
}

// compose implements step 7: grounded two-call composition when
// mode=verified and sources exist, else a single direct call.
func (p *Pipeline) compose(ctx context.Context, model string, mode askapi.Mode, style askapi.Style, lang string, now time.Time, sources []rank.Scored, evidenceBlock, question string) (string, error) {
	if mode == askapi.ModeVerified && len(sources) > 0 {
		return p.composeGrounded(ctx, model, style, lang, now, sources, evidenceBlock, question)
	}
	return p.composeDirect(ctx, model, mode, style, lang, now, len(sources), evidenceBlock, question)
}

type groundedFactsPayload struct {
	Facts []askapi.GroundedFact `json:"facts"`
}

func (p *Pipeline) composeGrounded(ctx context.Context, model string, style askapi.Style, lang string, now time.Time, sources []rank.Scored, evidenceBlock, question string) (string, error) {
	system := "Extract a JSON object {\"facts\": [{\"fact\": string, \"citations\": number[]}]} of atomic, fully-sourced facts answering the question below, citing only source numbers 1.." +
		strconv.Itoa(len(sources)) + ". Output strict JSON only, no narration.\n\n" + evidenceBlock

	raw, err := p.chat(ctx, model, system, question, 25000, 0.1, 520)
	if err == nil {
		facts := parseGroundedFacts(raw, len(sources))
		if len(facts) > 0 {
			factsBlock := renderFacts(facts)
			system2 := buildSystemPrompt(promptOptions{Style: style, Mode: askapi.ModeVerified, Language: lang, Now: now, SourcesCount: len(sources)})
			composed, err2 := p.chat(ctx, model, system2, "Facts:\n"+factsBlock+"\n\nQuestion: "+question, 30000, 0.2, 900)
			if err2 == nil {
				return composed, nil
			}
		}
	}

	// Fall back to direct composition with the evidence block.
	system3 := buildSystemPrompt(promptOptions{Style: style, Mode: askapi.ModeVerified, Language: lang, Now: now, SourcesCount: len(sources)})
	return p.chat(ctx, model, system3, evidenceBlock+"\n\nQuestion: "+question, 30000, 0.3, 900)
}

func (p *Pipeline) composeDirect(ctx context.Context, model string, mode askapi.Mode, style askapi.Style, lang string, now time.Time, sourcesCount int, evidenceBlock, question string) (string, error) {
	temp := float32(0.7)
	if mode == askapi.ModeVerified {
		temp = 0.3
	}
	system := buildSystemPrompt(promptOptions{Style: style, Mode: mode, Language: lang, Now: now, SourcesCount: sourcesCount})
	user := question
	if evidenceBlock != "" {
		user = evidenceBlock + "\n\nQuestion: " + question
	}
	return p.chat(ctx, model, system, user, 30000, temp, 900)
}

func (p *Pipeline) strictRetry(ctx context.Context, model string, style askapi.Style, lang string, now time.Time, sources []rank.Scored, evidenceBlock, question string) (string, error) {
	system := buildSystemPrompt(promptOptions{Style: style, Mode: askapi.ModeVerified, Language: lang, Now: now, SourcesCount: len(sources), StrictCitations: true})
	return p.chat(ctx, model, system, evidenceBlock+"\n\nQuestion: "+question, 30000, 0.2, 900)
}

func (p *Pipeline) chat(ctx context.Context, model, system, user string, timeoutMs int, temperature float32, maxTokens int) (string, error) {
	if p.LLM == nil {
		return "", apierr.Misconfigured("LLM client not configured")
	}
	content, err := p.LLM.Chat(ctx, llm.ChatRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		TimeoutMs:   timeoutMs,
		Temperature: temperature,
		MaxTokens:   clampMaxTokens(model, system, user, maxTokens),
	})
	if err != nil {
		return "", classifyLLMError(err)
	}
	return content, nil
}

// clampMaxTokens shrinks a desired output budget to whatever the model's
// context window has left after the prompt and a conservative headroom, so a
// long evidence block cannot push a request over the model's context limit.
func clampMaxTokens(model, system, user string, desired int) int {
	promptTokens := budget.EstimatePromptTokens(system, user, nil)
	room := budget.RemainingContextWithHeadroom(model, 0, promptTokens)
	if room <= 0 {
		return 1
	}
	if room < desired {
		return room
	}
	return desired
}

func classifyLLMError(err error) error {
	switch {
	case err == llm.ErrUpstreamAuth:
		return apierr.UpstreamAuth(err.Error())
	default:
		return apierr.UpstreamLLM(err.Error())
	}
}

func parseGroundedFacts(raw string, sourcesCount int) []askapi.GroundedFact {
	raw = stripCodeFence(raw)
	var payload groundedFactsPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// Tolerate a bare JSON array of facts as an alternative shape.
		var facts []askapi.GroundedFact
		if err2 := json.Unmarshal([]byte(raw), &facts); err2 != nil {
			return nil
		}
		payload.Facts = facts
	}
	var out []askapi.GroundedFact
	for _, f := range payload.Facts {
		fact := strings.TrimSpace(f.Fact)
		if fact == "" || len(fact) > 500 {
			continue
		}
		var cites []int
		seen := map[int]bool{}
		for _, c := range f.Citations {
			if c < 1 || c > sourcesCount || seen[c] {
				continue
			}
			seen[c] = true
			cites = append(cites, c)
			if len(cites) == 3 {
				break
			}
		}
		if len(cites) == 0 {
			continue
		}
		out = append(out, askapi.GroundedFact{Fact: fact, Citations: cites})
	}
	return out
}

func renderFacts(facts []askapi.GroundedFact) string {
	var b strings.Builder
	for _, f := range facts {
		cites := make([]string, 0, len(f.Citations))
		for _, c := range f.Citations {
			cites = append(cites, "["+strconv.Itoa(c)+"]")
		}
		fmt.Fprintf(&b, "- %s %s\n", f.Fact, strings.Join(cites, ""))
	}
	return b.String()
}

var codeFenceRE = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRE.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// generateFollowUps implements step 10: an LLM call for 1-3 follow-up
// questions with a heuristic fallback on any failure.
func (p *Pipeline) generateFollowUps(ctx context.Context, model, question, answer, core string, hindi bool) []string {
	system := "Given the question and answer below, suggest up to 3 short natural follow-up questions the user might ask next. Respond with a strict JSON array of strings only."
	user := "Question: " + question + "\nAnswer: " + answer

	raw, err := p.chat(ctx, model, system, user, 12000, 0.5, 140)
	if err != nil {
		return heuristicFollowUps(core, hindi)
	}
	parsed := parseFollowUps(raw)
	if len(parsed) == 0 {
		return heuristicFollowUps(core, hindi)
	}
	return parsed
}

var bulletPrefixRE = regexp.MustCompile(`^[\s"'\-\*\d.)]+`)

func parseFollowUps(raw string) []string {
	raw = stripCodeFence(raw)
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, item := range items {
		s := strings.TrimSpace(item)
		s = bulletPrefixRE.ReplaceAllString(s, "")
		s = strings.Trim(s, `"' `)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
		if len(out) == 3 {
			break
		}
	}
	return out
}

// Package budget implements token-count estimation and context-window
// sizing for LLM prompts. Adapted from internal/budget's char-per-token
// heuristic and model-context lookup table, wired into the Ask Pipeline's
// chat calls to clamp MaxTokens to whatever a model's context window has
// left after the prompt.
package budget

import (
	"math"
	"strings"
)

// EstimateTokensFromChars converts a character count into an estimated token
// count using a conservative heuristic (~4 chars per token in English). The
// result is always at least 1 when chars > 0.
func EstimateTokensFromChars(charCount int) int {
	if charCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(charCount) / 4.0))
}

// EstimateTokens returns the estimated token count of a string.
func EstimateTokens(s string) int {
	return EstimateTokensFromChars(len(s))
}

// EstimatePromptTokens estimates the total tokens for a prompt composed of
// a system message, a user message, and zero or more excerpts.
func EstimatePromptTokens(system string, user string, excerpts []string) int {
	total := EstimateTokens(system) + EstimateTokens(user)
	for _, ex := range excerpts {
		total += EstimateTokens(ex)
	}
	return total
}

// ModelContextTokens returns an estimated maximum context window for a given
// model name. Unknown models fall back to a conservative default.
func ModelContextTokens(modelName string) int {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return 8192
	}
	if v, ok := knownModelMax[name]; ok {
		return v
	}
	switch {
	case strings.HasSuffix(name, "1m"):
		return 1_000_000
	case strings.HasSuffix(name, "512k"):
		return 512_000
	case strings.HasSuffix(name, "200k"):
		return 200_000
	case strings.HasSuffix(name, "180k"):
		return 180_000
	case strings.HasSuffix(name, "128k"):
		return 128_000
	case strings.Contains(name, "-mini"):
		return 128_000
	default:
		return 8192
	}
}

// RemainingContext computes the remaining input token budget given a model,
// a desired reservation for output generation, and the estimated prompt
// tokens. The result is never negative.
func RemainingContext(modelName string, reservedForOutput int, promptTokens int) int {
	maxCtx := ModelContextTokens(modelName)
	if reservedForOutput < 0 {
		reservedForOutput = 0
	}
	remaining := maxCtx - reservedForOutput - promptTokens
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FitsInContext reports whether the prompt fits into the model's context
// window when reserving the specified number of output tokens.
func FitsInContext(modelName string, reservedForOutput int, promptTokens int) bool {
	return RemainingContext(modelName, reservedForOutput, promptTokens) > 0
}

// HeadroomTokens returns a conservative safety headroom to subtract from the
// model context so that prompt sizing avoids overruns from tokenizer and
// message-framing overhead: the larger of 5% of the model context or a
// fixed floor of 512 tokens.
func HeadroomTokens(modelName string) int {
	maxCtx := ModelContextTokens(modelName)
	dyn := int(math.Ceil(float64(maxCtx) * 0.05))
	if dyn < 512 {
		return 512
	}
	return dyn
}

// RemainingContextWithHeadroom computes remaining tokens after accounting
// for output reservation and a conservative headroom for the given model.
func RemainingContextWithHeadroom(modelName string, reservedForOutput int, promptTokens int) int {
	headroom := HeadroomTokens(modelName)
	return RemainingContext(modelName, reservedForOutput+headroom, promptTokens)
}

// knownModelMax contains rough context sizes for common model identifiers.
// Best-effort; does not need to be exhaustive.
var knownModelMax = map[string]int{
	"gpt-4o":              128_000,
	"gpt-4o-mini":         128_000,
	"gpt-4-turbo":         128_000,
	"gpt-4-0125-preview":  128_000,
	"gpt-3.5-turbo":       16_384,
	"claude-3-5-sonnet":   200_000,
	"claude-3-opus":       200_000,
	"claude-3-sonnet":     200_000,
	"claude-3-haiku":      200_000,
	"llama-3":             8_192,
	"llama-3.1":           128_000,
	"openai/gpt-oss-20b":  4_096,
	"gpt-oss-20b":         4_096,
}

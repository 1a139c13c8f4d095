package pipeline

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var citationRE = regexp.MustCompile(`\[(\d+)\]`)

// extractCitationNumbers returns every distinct, in-range [n] found in
// answer, in order of first appearance.
func extractCitationNumbers(answer string, sourcesCount int) []int {
	matches := citationRE.FindAllStringSubmatch(answer, -1)
	seen := map[int]bool{}
	var out []int
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > sourcesCount {
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// sanitizeCitationNumbers returns the distinct in-range citation numbers
// from answer sorted ascending. Idempotent and monotonic: re-sanitizing
// never introduces numbers absent from the first pass.
func sanitizeCitationNumbers(answer string, sourcesCount int) []int {
	nums := extractCitationNumbers(answer, sourcesCount)
	sort.Ints(nums)
	return nums
}

// needsCitationCheck implements the "factual block needs citation"
// heuristic: split into blank-line-separated blocks (ignoring fenced code);
// within a block, if it reads as a bullet/numbered list, each item over 20
// chars must carry [n]; otherwise treat it as prose and require [n] once
// the block (minus leading '#') reaches 40 chars.
func needsCitationCheck(answer string) bool {
	blocks := splitBlocks(answer)
	for _, block := range blocks {
		if blockNeedsCitation(block) {
			return true
		}
	}
	return false
}

func splitBlocks(answer string) []string {
	lines := strings.Split(answer, "\n")
	var blocks []string
	var current []string
	inFence := false
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			current = append(current, line)
			continue
		}
		if inFence {
			current = append(current, line)
			continue
		}
		if trimmed == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return blocks
}

var bulletRE = regexp.MustCompile(`^\s*([-*]|\d+[.)])\s+`)

func blockNeedsCitation(block string) bool {
	if strings.HasPrefix(strings.TrimSpace(block), "```") {
		return false
	}
	lines := strings.Split(block, "\n")
	var bulletLines []string
	for _, l := range lines {
		if bulletRE.MatchString(l) {
			bulletLines = append(bulletLines, l)
		}
	}
	if len(bulletLines) > 0 {
		for _, l := range bulletLines {
			if len(strings.TrimSpace(l)) > 20 && !citationRE.MatchString(l) {
				return true
			}
		}
		return false
	}
	text := strings.TrimLeft(strings.TrimSpace(block), "#")
	text = strings.TrimSpace(text)
	if len(text) >= 40 && !citationRE.MatchString(block) {
		return true
	}
	return false
}

// Package data loads the static word lists and scoring tables used by the
// planner and ranker from an embedded YAML file, so tuning them does not
// require touching package logic.
package data

import (
	_ "embed"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed lists.yaml
var listsYAML []byte

// DomainTrust holds host/suffix based trust adjustments for the ranker.
type DomainTrust struct {
	Suffixes          map[string]int `yaml:"suffixes"`
	Hosts             map[string]int `yaml:"hosts"`
	LowQualityHosts   []string       `yaml:"lowQualityHosts"`
	LowQualityPenalty int            `yaml:"lowQualityPenalty"`
}

// FreshIntent holds language-keyed fresh-intent keyword lists.
type FreshIntent struct {
	EN []string `yaml:"en"`
	HI []string `yaml:"hi"`
}

// ClockIntent holds language-keyed clock/date intent phrases.
type ClockIntent struct {
	EN []string `yaml:"en"`
	HI []string `yaml:"hi"`
}

// SafetyPattern groups a refusal reason with the phrases that trigger it.
type SafetyPattern struct {
	Reason string   `yaml:"reason"`
	Terms  []string `yaml:"terms"`
}

// Lists is the root document shape of lists.yaml.
type Lists struct {
	DomainTrust      DomainTrust         `yaml:"domainTrust"`
	TrackingParams   []string            `yaml:"trackingParams"`
	Stopwords        []string            `yaml:"stopwords"`
	Interrogatives   []string            `yaml:"interrogatives"`
	FreshIntent      FreshIntent         `yaml:"freshIntent"`
	VeryFreshIntent  FreshIntent         `yaml:"veryFreshIntent"`
	FinanceIntent    []string            `yaml:"financeIntent"`
	ClockIntent      ClockIntent         `yaml:"clockIntent"`
	SafetyPatterns   []SafetyPattern     `yaml:"safetyPatterns"`
	TopicBuckets     map[string][]string `yaml:"topicBuckets"`
	HindiMarkers     []string            `yaml:"hindiMarkers"`
}

var (
	once   sync.Once
	parsed Lists
	parseErr error
)

// Load parses the embedded lists.yaml once and returns the shared result.
// The embedded document is fixed at build time, so a parse failure here
// indicates a packaging bug rather than a runtime condition callers should
// need to recover from.
func Load() Lists {
	once.Do(func() {
		parseErr = yaml.Unmarshal(listsYAML, &parsed)
	})
	if parseErr != nil {
		panic("internal/data: invalid embedded lists.yaml: " + parseErr.Error())
	}
	return parsed
}

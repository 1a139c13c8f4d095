// Package profile implements an in-memory, TTL- and capacity-bounded
// upsert table keyed by a client-supplied anonymous ID. Grounded on the
// same map+mutex bookkeeping conventions as internal/ratelimit and
// internal/cache, with topic classification driven by the topicBuckets
// table in internal/data.
package profile

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nolia/ask-service/internal/data"
)

const (
	maxEntries = 5000
	maxAge     = 30 * 24 * time.Hour
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,200}$`)

// ValidID reports whether id is an acceptable anonymous profile key:
// 1..200 characters drawn from [A-Za-z0-9._:-].
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Profile tracks a single anonymous caller's running state. Never echoed to
// the client.
type Profile struct {
	AskCount    int
	LastSeen    time.Time
	LastStyle   string
	LastLang    string
	TopicCounts map[string]int
}

// Store is the process-wide profile table.
type Store struct {
	mu       sync.Mutex
	profiles map[string]*Profile
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{profiles: make(map[string]*Profile)}
}

// Upsert records one successful request against anonID: bumps askCount,
// updates lastSeen, records the most recent style/language, and increments
// the inferred topic counter classified from question. Invalid IDs are
// ignored (the caller should have already rejected them at the HTTP edge).
func (s *Store) Upsert(anonID, question, style, lang string, now time.Time) {
	if !ValidID(anonID) {
		return
	}
	topic := classifyTopic(question)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)

	p, ok := s.profiles[anonID]
	if !ok {
		p = &Profile{TopicCounts: make(map[string]int)}
		s.profiles[anonID] = p
	}
	p.AskCount++
	p.LastSeen = now
	if style != "" {
		p.LastStyle = style
	}
	if lang != "" {
		p.LastLang = lang
	}
	if topic != "" {
		p.TopicCounts[topic]++
	}
}

// pruneLocked evicts entries older than maxAge, then evicts the oldest
// entries above maxEntries. Callers must hold mu.
func (s *Store) pruneLocked(now time.Time) {
	for id, p := range s.profiles {
		if now.Sub(p.LastSeen) > maxAge {
			delete(s.profiles, id)
		}
	}
	if len(s.profiles) <= maxEntries {
		return
	}
	for len(s.profiles) > maxEntries {
		var oldestID string
		var oldestSeen time.Time
		first := true
		for id, p := range s.profiles {
			if first || p.LastSeen.Before(oldestSeen) {
				oldestID = id
				oldestSeen = p.LastSeen
				first = false
			}
		}
		delete(s.profiles, oldestID)
	}
}

// Len reports the number of tracked profiles, for tests/metrics.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}

func classifyTopic(question string) string {
	lower := strings.ToLower(question)
	for topic, words := range data.Load().TopicBuckets {
		for _, w := range words {
			if strings.Contains(lower, strings.ToLower(w)) {
				return topic
			}
		}
	}
	return ""
}

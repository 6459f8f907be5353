package guardian

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vaultmaze-project/vaultmaze/internal/core"
)

// PatternData is the learned profile of one attack pattern.
type PatternData struct {
	Pattern     string    `json:"pattern"`
	Occurrences int       `json:"occurrences"`
	Blocked     int       `json:"blocked"`
	SuccessRate float64   `json:"success_rate"`
	Confidence  float64   `json:"confidence"`
	Evolution   string    `json:"evolution"` // "increasing", "decreasing", "stable"
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// sourceHistory is a bounded record of one source's recent activity.
type sourceHistory struct {
	attacks []attackSample
	blocked int
}

type attackSample struct {
	at         time.Time
	attackType core.AttackType
}

const maxSamplesPerSource = 256

// PatternMemory tracks per-source attack history and learned pattern
// profiles. Source histories live in an LRU so hostile scans across many IPs
// cannot grow memory without bound.
type PatternMemory struct {
	mu       sync.Mutex
	sources  *lru.Cache[string, *sourceHistory]
	patterns map[string]*PatternData
}

// NewPatternMemory creates a memory bounded to maxSources distinct sources.
func NewPatternMemory(maxSources int) *PatternMemory {
	if maxSources <= 0 {
		maxSources = 10000
	}
	cache, _ := lru.New[string, *sourceHistory](maxSources)
	return &PatternMemory{
		sources:  cache,
		patterns: make(map[string]*PatternData),
	}
}

// Observe records one attack from a source.
func (m *PatternMemory) Observe(attack core.AttackDescriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hist := m.historyLocked(attack.SourceIP)
	hist.attacks = append(hist.attacks, attackSample{at: time.Now(), attackType: attack.Type})
	if len(hist.attacks) > maxSamplesPerSource {
		hist.attacks = hist.attacks[len(hist.attacks)-maxSamplesPerSource:]
	}
}

// RecordOutcome updates the learned profile of a pattern after the maze has
// decided the attack's fate. Blocked attacks lower the pattern's success
// rate; attacks that slipped through raise it.
func (m *PatternMemory) RecordOutcome(sourceIP, pattern string, matchConfidence float64, blocked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if blocked {
		m.historyLocked(sourceIP).blocked++
	}

	pd, ok := m.patterns[pattern]
	if !ok {
		pd = &PatternData{
			Pattern:    pattern,
			Confidence: matchConfidence,
			Evolution:  "stable",
			FirstSeen:  time.Now().UTC(),
		}
		m.patterns[pattern] = pd
	}

	pd.Occurrences++
	if blocked {
		pd.Blocked++
	}
	pd.SuccessRate = 1 - float64(pd.Blocked)/float64(pd.Occurrences)
	pd.LastSeen = time.Now().UTC()

	// Drift confidence toward the latest match and tag the trend.
	prev := pd.Confidence
	pd.Confidence = prev*0.8 + matchConfidence*0.2
	switch {
	case pd.Confidence > prev+0.01:
		pd.Evolution = "increasing"
	case pd.Confidence < prev-0.01:
		pd.Evolution = "decreasing"
	default:
		pd.Evolution = "stable"
	}
}

// RecentCount returns how many attacks a source produced inside the window.
func (m *PatternMemory) RecentCount(sourceIP string, window time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	hist, ok := m.sources.Get(sourceIP)
	if !ok {
		return 0
	}
	cutoff := time.Now().Add(-window)
	n := 0
	for _, s := range hist.attacks {
		if s.at.After(cutoff) {
			n++
		}
	}
	return n
}

// BlockedCount returns how many of a source's attacks were blocked.
func (m *PatternMemory) BlockedCount(sourceIP string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	hist, ok := m.sources.Get(sourceIP)
	if !ok {
		return 0
	}
	return hist.blocked
}

// TypeDiversity returns how many distinct attack types a source used inside
// the window. Diverse sources are probing, not retrying.
func (m *PatternMemory) TypeDiversity(sourceIP string, window time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	hist, ok := m.sources.Get(sourceIP)
	if !ok {
		return 0
	}
	cutoff := time.Now().Add(-window)
	types := make(map[core.AttackType]struct{})
	for _, s := range hist.attacks {
		if s.at.After(cutoff) {
			types[s.attackType] = struct{}{}
		}
	}
	return len(types)
}

// PatternConfidence returns the learned confidence for a pattern, or the
// unknown-pattern floor when the pattern has never been seen.
func (m *PatternMemory) PatternConfidence(pattern string) float64 {
	if conf, ok := m.LearnedConfidence(pattern); ok {
		return conf
	}
	return unknownConfidence
}

// LearnedConfidence returns the learned confidence for a pattern and whether
// the pattern has been seen before.
func (m *PatternMemory) LearnedConfidence(pattern string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pd, ok := m.patterns[pattern]
	if !ok {
		return 0, false
	}
	return pd.Confidence, true
}

// RecordBlocked bumps a source's blocked counter without touching pattern
// profiles. Used when a weak match is blocked by the maze.
func (m *PatternMemory) RecordBlocked(sourceIP string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyLocked(sourceIP).blocked++
}

// Patterns returns a snapshot of all learned pattern profiles.
func (m *PatternMemory) Patterns() []PatternData {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]PatternData, 0, len(m.patterns))
	for _, pd := range m.patterns {
		out = append(out, *pd)
	}
	return out
}

// SourceCount returns how many distinct sources are currently tracked.
func (m *PatternMemory) SourceCount() int {
	return m.sources.Len()
}

// Reset drops all learned pattern data and source histories.
func (m *PatternMemory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources.Purge()
	m.patterns = make(map[string]*PatternData)
}

func (m *PatternMemory) historyLocked(sourceIP string) *sourceHistory {
	hist, ok := m.sources.Get(sourceIP)
	if !ok {
		hist = &sourceHistory{}
		m.sources.Add(sourceIP, hist)
	}
	return hist
}

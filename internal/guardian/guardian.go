// Package guardian scores hostile requests with a learning heuristic: a
// weighted feature blend, a compiled pattern table, and a rolling anomaly
// window. It is deliberately not a real model; the contract is deterministic
// scoring that the maze can route on.
package guardian

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaultmaze-project/vaultmaze/internal/core"
)

// ThreatLevel is the discrete band an attack score falls into.
type ThreatLevel string

const (
	ThreatLow      ThreatLevel = "low"
	ThreatMedium   ThreatLevel = "medium"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

// LevelForScore maps a 0-100 score to its threat band.
func LevelForScore(score float64) ThreatLevel {
	switch {
	case score >= 80:
		return ThreatCritical
	case score >= 60:
		return ThreatHigh
	case score >= 40:
		return ThreatMedium
	default:
		return ThreatLow
	}
}

// Assessment is the full scoring result for one attack.
type Assessment struct {
	Score              float64      `json:"score"`
	Level              ThreatLevel  `json:"level"`
	Pattern            PatternMatch `json:"pattern"`
	Confidence         float64      `json:"confidence"`
	Anomalous          bool         `json:"anomalous"`
	Reasoning          []string     `json:"reasoning"`
	RecommendedActions []string     `json:"recommended_actions"`
}

var recommendedActions = map[ThreatLevel][]string{
	ThreatLow:      {"monitor"},
	ThreatMedium:   {"monitor", "rate_limit"},
	ThreatHigh:     {"deep_maze", "rate_limit", "alert"},
	ThreatCritical: {"block_source", "deepest_maze", "alert_admin", "rotate_layers"},
}

// Guardian is the threat scorer. All state behind one mutex; Analyze is safe
// for concurrent callers.
type Guardian struct {
	logger   zerolog.Logger
	patterns []Pattern
	mem      *PatternMemory
	anomaly  *AnomalyDetector

	mu                  sync.Mutex
	weights             map[string]float64
	learningRate        float64
	confidenceThreshold float64
	fourWay             bool
	analyses            int64
	levelCounts         map[ThreatLevel]int64

	now func() time.Time
}

// New creates a Guardian from config.
func New(cfg core.GuardianConfig, logger zerolog.Logger) *Guardian {
	g := &Guardian{
		logger:      logger.With().Str("component", "guardian").Logger(),
		patterns:    compilePatterns(),
		mem:         NewPatternMemory(cfg.MaxSources),
		anomaly:     NewAnomalyDetector(cfg.AnomalyWindow, cfg.AnomalyThreshold),
		weights:     make(map[string]float64),
		fourWay:     cfg.Weighting == "four_way",
		levelCounts: make(map[ThreatLevel]int64),
		now:         time.Now,
	}
	g.SetLearningRate(cfg.LearningRate)
	g.SetConfidenceThreshold(cfg.ConfidenceThreshold)
	return g
}

// Analyze scores one attack. It records the attack in pattern memory, blends
// the component scores per the configured weighting, and nudges feature
// weights toward the outcome. It never fails; an empty memory just scores
// with default weights.
func (g *Guardian) Analyze(attack core.AttackDescriptor) Assessment {
	g.mem.Observe(attack)

	now := g.now()
	features := extractFeatures(attack, g.mem, now)

	g.mu.Lock()
	raw := weightedSum(features, g.weights)
	fourWay := g.fourWay
	g.mu.Unlock()

	neural := sigmoid(raw)
	match := classify(g.patterns, attack)
	patternConf := match.Confidence
	if learned, ok := g.mem.LearnedConfidence(match.Name); ok {
		patternConf = (patternConf + learned) / 2
	}
	anomalyScore := g.anomaly.Score(raw)
	behavioral := features[featBehavioralDiversity]*0.6 + features[featRequestFrequency]*0.4

	var blended float64
	if fourWay {
		blended = 0.4*neural + 0.3*patternConf + 0.2*anomalyScore + 0.1*behavioral
	} else {
		blended = 0.6*neural + 0.4*patternConf
	}
	score := clamp01(blended) * 100
	level := LevelForScore(score)

	reasoning := []string{
		fmt.Sprintf("neural component %.2f from %d features", neural, len(features)),
		fmt.Sprintf("pattern %q matched with confidence %.2f", match.Name, patternConf),
	}
	if anomalyScore >= 1 {
		reasoning = append(reasoning, "score deviates sharply from recent traffic")
	}
	if features[featAgentSuspicion] > 0 {
		reasoning = append(reasoning, "user agent looks like automation")
	}
	if features[featTimeAnomaly] > 0 {
		reasoning = append(reasoning, "request arrived in the dead-hours window")
	}

	g.learn(features, blended)

	g.mu.Lock()
	g.analyses++
	g.levelCounts[level]++
	g.mu.Unlock()

	g.logger.Debug().
		Str("attack_id", attack.ID).
		Str("source_ip", attack.SourceIP).
		Float64("score", score).
		Str("level", string(level)).
		Str("pattern", match.Name).
		Msg("attack analyzed")

	return Assessment{
		Score:              score,
		Level:              level,
		Pattern:            match,
		Confidence:         patternConf,
		Anomalous:          anomalyScore >= 1,
		Reasoning:          reasoning,
		RecommendedActions: recommendedActions[level],
	}
}

// learn nudges the weight of every active feature toward the blended score.
func (g *Guardian) learn(features map[string]float64, blended float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name, value := range features {
		if value == 0 {
			continue
		}
		w, ok := g.weights[name]
		if !ok {
			w = defaultWeight
		}
		g.weights[name] = clamp01(w + g.learningRate*(blended-w))
	}
}

// RecordOutcome feeds the routing result back into pattern memory. Only
// matches above the confidence threshold update the learned profile; weak
// matches would poison it.
func (g *Guardian) RecordOutcome(attack core.AttackDescriptor, assessment Assessment, blocked bool) {
	g.mu.Lock()
	threshold := g.confidenceThreshold
	g.mu.Unlock()

	if assessment.Pattern.Confidence > threshold {
		g.mem.RecordOutcome(attack.SourceIP, assessment.Pattern.Name, assessment.Pattern.Confidence, blocked)
	} else if blocked {
		g.mem.RecordBlocked(attack.SourceIP)
	}
}

// Memory exposes the pattern memory for routing heuristics that need source
// history (honeypot trigger conditions).
func (g *Guardian) Memory() *PatternMemory {
	return g.mem
}

// SetLearningRate sets the weight nudge rate, clamped to [0.01, 0.5].
func (g *Guardian) SetLearningRate(rate float64) {
	if rate < 0.01 {
		rate = 0.01
	}
	if rate > 0.5 {
		rate = 0.5
	}
	g.mu.Lock()
	g.learningRate = rate
	g.mu.Unlock()
}

// SetConfidenceThreshold sets the learning gate, clamped to [0.1, 0.9].
func (g *Guardian) SetConfidenceThreshold(threshold float64) {
	if threshold < 0.1 {
		threshold = 0.1
	}
	if threshold > 0.9 {
		threshold = 0.9
	}
	g.mu.Lock()
	g.confidenceThreshold = threshold
	g.mu.Unlock()
}

// ResetLearning drops all learned weights, pattern data, and the anomaly
// window. The next Analyze scores with defaults and must not panic.
func (g *Guardian) ResetLearning() {
	g.mu.Lock()
	g.weights = make(map[string]float64)
	g.mu.Unlock()
	g.mem.Reset()
	g.anomaly.Reset()
	g.logger.Info().Msg("guardian learning state reset")
}

// Intelligence returns a snapshot of the learned state for the CLI and for
// operators debugging a scoring decision.
func (g *Guardian) Intelligence() map[string]interface{} {
	g.mu.Lock()
	weights := make(map[string]float64, len(g.weights))
	for k, v := range g.weights {
		weights[k] = v
	}
	levels := make(map[string]int64, len(g.levelCounts))
	for k, v := range g.levelCounts {
		levels[string(k)] = v
	}
	analyses := g.analyses
	lr := g.learningRate
	ct := g.confidenceThreshold
	g.mu.Unlock()

	return map[string]interface{}{
		"analyses":             analyses,
		"levels":               levels,
		"weights":              weights,
		"learning_rate":        lr,
		"confidence_threshold": ct,
		"patterns":             g.mem.Patterns(),
		"tracked_sources":      g.mem.SourceCount(),
	}
}

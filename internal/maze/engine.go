// Package maze routes hostile traffic through seven ordered defensive
// layers. Routing is pure decision-making: honeypot bait and trap mechanics
// come from the honeytoken service, scores from the guardian.
package maze

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaultmaze-project/vaultmaze/internal/core"
	"github.com/vaultmaze-project/vaultmaze/internal/guardian"
	"github.com/vaultmaze-project/vaultmaze/internal/honeytoken"
)

// RouteDecision is the outcome of routing one attack through the maze.
type RouteDecision struct {
	AttackID          string                 `json:"attack_id"`
	Allowed           bool                   `json:"allowed"`
	Layer             int                    `json:"layer"`
	HoneypotTriggered bool                   `json:"honeypot_triggered"`
	HoneypotID        string                 `json:"honeypot_id,omitempty"`
	TrapActivated     bool                   `json:"trap_activated"`
	TrapType          honeytoken.TrapType    `json:"trap_type,omitempty"`
	OneWayViolated    bool                   `json:"one_way_violated"`
	Assessment        guardian.Assessment    `json:"assessment"`
	Response          map[string]interface{} `json:"response,omitempty"`
	Reason            string                 `json:"reason"`
}

// Exfiltration vocabulary. A request is a one-way violation when it pairs an
// exfil verb with a sensitive noun, or hits the vault listing endpoint
// directly. The check runs before scoring and always wins.
var (
	exitVerbs      = []string{"export", "download", "copy", "extract", "backup"}
	sensitiveNouns = []string{"password", "secret", "key", "data", "file", "document"}
	vaultListPath  = "get /api/vaults/"
)

// isExitAttempt reports whether the attack reads like data leaving the vault.
func isExitAttempt(attack core.AttackDescriptor) bool {
	text := strings.ToLower(attack.Payload + " " + attack.Target)
	if strings.Contains(text, vaultListPath) {
		return true
	}
	verb := false
	for _, v := range exitVerbs {
		if strings.Contains(text, v) {
			verb = true
			break
		}
	}
	if !verb {
		return false
	}
	for _, n := range sensitiveNouns {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// Engine is the maze router. One mutex guards layers and counters; scoring
// and honeypot state have their own locks, so Route and the scheduler's
// shifts interleave safely.
type Engine struct {
	logger   zerolog.Logger
	guardian *guardian.Guardian
	tokens   *honeytoken.Service
	sink     core.EventSink

	mu          sync.Mutex
	layers      []*MazeLayer
	threat      guardian.ThreatLevel
	routed      int64
	blocked     int64
	honeypotHit int64
	trapHit     int64
	violations  int64

	now func() time.Time
}

// NewEngine builds the maze with fresh layers.
func NewEngine(g *guardian.Guardian, tokens *honeytoken.Service, sink core.EventSink, logger zerolog.Logger) *Engine {
	return &Engine{
		logger:   logger.With().Str("component", "maze").Logger(),
		guardian: g,
		tokens:   tokens,
		sink:     sink,
		layers:   buildLayers(tokens),
		threat:   guardian.ThreatLow,
		now:      time.Now,
	}
}

// targetLayer maps a threat band to the maze depth an attack is routed to,
// with per-type bumps for the attacks the vault cares most about.
func targetLayer(level guardian.ThreatLevel, attackType core.AttackType) int {
	var target int
	switch level {
	case guardian.ThreatCritical:
		target = 6
	case guardian.ThreatHigh:
		target = 4
	case guardian.ThreatMedium:
		target = 2
	default:
		target = 0
	}
	switch attackType {
	case core.AttackBruteForce:
		target += 2
	case core.AttackSQLInjection:
		target += 3
	}
	if target > LayerCount-1 {
		target = LayerCount - 1
	}
	if target < 0 {
		target = 0
	}
	return target
}

// Route decides what happens to one attack. The exit check runs first and
// unconditionally; otherwise the attack is scored and walked through layers
// 0..target, where honeypots outrank traps and the first hit short-circuits.
// Every walked layer records the access whatever the outcome.
func (e *Engine) Route(attack core.AttackDescriptor) RouteDecision {
	if isExitAttempt(attack) {
		e.mu.Lock()
		e.violations++
		e.blocked++
		e.mu.Unlock()

		ev := core.NewSecurityEvent("maze", "one_way_violation", core.SeverityCritical,
			fmt.Sprintf("exit attempt from %s blocked before scoring", attack.SourceIP))
		ev.SourceIP = attack.SourceIP
		ev.UserAgent = attack.UserAgent
		ev.Details["target"] = attack.Target
		e.sink.Emit(ev)

		return RouteDecision{
			AttackID:       attack.ID,
			Allowed:        false,
			Layer:          -1,
			OneWayViolated: true,
			Reason:         "exit attempt through the entrance",
		}
	}

	assessment := e.guardian.Analyze(attack)
	target := targetLayer(assessment.Level, attack.Type)

	e.mu.Lock()
	e.threat = assessment.Level
	e.routed++
	layers := e.layers
	e.mu.Unlock()

	decision := RouteDecision{
		AttackID:   attack.ID,
		Allowed:    true,
		Layer:      target,
		Assessment: assessment,
		Reason:     fmt.Sprintf("routed to layer %d (%s)", target, assessment.Level),
	}

	now := e.now()
	for n := 0; n <= target; n++ {
		layer := layers[n]
		e.mu.Lock()
		layer.AccessCount++
		layer.LastAccessed = now
		e.mu.Unlock()

		if trig, pot := e.springHoneypot(layer, attack, assessment); trig != nil {
			decision.Layer = n
			decision.HoneypotTriggered = true
			decision.HoneypotID = pot.ID
			decision.Response = map[string]interface{}{
				"bait":     trig.Bait,
				"delay_ms": trig.Delay.Milliseconds(),
			}
			decision.Reason = fmt.Sprintf("lured into honeypot on layer %d", n)
			e.mu.Lock()
			e.honeypotHit++
			e.mu.Unlock()

			ev := core.NewSecurityEvent("maze", "honeypot_triggered", core.SeverityHigh,
				fmt.Sprintf("honeypot sprung on layer %d for %s", n, attack.SourceIP))
			ev.SourceIP = attack.SourceIP
			ev.Layer = n
			ev.Details["honeypot_id"] = pot.ID
			e.sink.Emit(ev)

			e.guardian.RecordOutcome(attack, assessment, false)
			return decision
		}

		if trap := e.springTrap(layer, attack, now); trap != nil {
			allowed := trap.Type == honeytoken.TrapFakeSuccess
			decision.Layer = n
			decision.Allowed = allowed
			decision.TrapActivated = true
			decision.TrapType = trap.Type
			decision.Reason = fmt.Sprintf("trap %s activated on layer %d", trap.Type, n)
			e.mu.Lock()
			e.trapHit++
			if !allowed {
				e.blocked++
			}
			e.mu.Unlock()

			ev := core.NewSecurityEvent("maze", "trap_activated", trap.Severity,
				fmt.Sprintf("trap %s caught %s on layer %d", trap.Type, attack.SourceIP, n))
			ev.SourceIP = attack.SourceIP
			ev.Layer = n
			ev.Details["trap_id"] = trap.ID
			e.sink.Emit(ev)

			e.guardian.RecordOutcome(attack, assessment, !allowed)
			return decision
		}
	}

	ev := core.NewSecurityEvent("maze", "attack_routed", severityFor(assessment.Level),
		fmt.Sprintf("attack from %s walked to layer %d", attack.SourceIP, target))
	ev.SourceIP = attack.SourceIP
	ev.Layer = target
	ev.Details["score"] = assessment.Score
	e.sink.Emit(ev)

	e.guardian.RecordOutcome(attack, assessment, false)
	return decision
}

// springHoneypot returns the first unused honeypot on the layer whose
// trigger conditions the attack satisfies.
func (e *Engine) springHoneypot(layer *MazeLayer, attack core.AttackDescriptor, assessment guardian.Assessment) (*honeytoken.HoneypotTrigger, *honeytoken.HoneypotPosition) {
	mem := e.guardian.Memory()
	for _, pot := range layer.Honeypots {
		if e.tokens.HoneypotUsed(pot.ID) {
			continue
		}
		for _, cond := range pot.TriggerConditions {
			if !e.conditionMet(cond, attack, assessment, mem) {
				continue
			}
			if trig, ok := e.tokens.TriggerHoneypot(pot, attack.SourceIP); ok {
				return trig, pot
			}
		}
	}
	return nil, nil
}

func (e *Engine) conditionMet(cond string, attack core.AttackDescriptor, assessment guardian.Assessment, mem *guardian.PatternMemory) bool {
	switch cond {
	case "rapid_requests":
		return mem.RecentCount(attack.SourceIP, time.Minute) > 10
	case "suspicious_pattern":
		return suspiciousPattern(attack)
	case "known_attacker_ip":
		return mem.BlockedCount(attack.SourceIP) > 5
	case "ai_detected_anomaly":
		return assessment.Anomalous
	case "behavioral_mismatch":
		return mem.TypeDiversity(attack.SourceIP, time.Hour) >= 3
	case "credential_replay":
		return attack.Type == core.AttackCredentialStuffing
	default:
		return false
	}
}

// suspiciousPattern flags payload script/union markers or a bot-like user
// agent, independent of the guardian's score.
func suspiciousPattern(attack core.AttackDescriptor) bool {
	p := strings.ToLower(attack.Payload)
	return strings.Contains(p, "script") || strings.Contains(p, "union") ||
		guardian.SuspiciousAgent(attack.UserAgent)
}

// springTrap returns the first trap on the layer whose own activation
// conditions match the attack. Unlike honeypots, traps rearm: the same trap
// catches repeat offenders.
func (e *Engine) springTrap(layer *MazeLayer, attack core.AttackDescriptor, now time.Time) *honeytoken.TrapPosition {
	for _, trap := range layer.Traps {
		for _, cond := range trap.ActivationConditions {
			if e.trapConditionMet(cond, attack, now) {
				return trap
			}
		}
	}
	return nil
}

func (e *Engine) trapConditionMet(cond string, attack core.AttackDescriptor, now time.Time) bool {
	switch cond {
	case "wrong_credentials":
		return attack.Type == core.AttackBruteForce
	case "suspicious_behavior":
		return suspiciousPattern(attack)
	case "time_threshold":
		return now.Hour() >= 2 && now.Hour() < 6
	default:
		return false
	}
}

func severityFor(level guardian.ThreatLevel) core.Severity {
	switch level {
	case guardian.ThreatCritical:
		return core.SeverityCritical
	case guardian.ThreatHigh:
		return core.SeverityHigh
	case guardian.ThreatMedium:
		return core.SeverityMedium
	default:
		return core.SeverityInfo
	}
}

// ThreatLevel returns the latest observed threat band.
func (e *Engine) ThreatLevel() guardian.ThreatLevel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.threat
}

// Layers returns shallow snapshots of all layers.
func (e *Engine) Layers() []MazeLayer {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]MazeLayer, len(e.layers))
	for i, l := range e.layers {
		out[i] = *l
	}
	return out
}

// Metrics returns routing counters.
func (e *Engine) Metrics() map[string]int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return map[string]int64{
		"attacks_routed":      e.routed,
		"attacks_blocked":     e.blocked,
		"honeypots_triggered": e.honeypotHit,
		"traps_activated":     e.trapHit,
		"one_way_violations":  e.violations,
	}
}

// Reconfigure rebuilds every layer from scratch and forgets which honeypots
// have fired: a full maze shift. Regenerated honeypots are new bait.
func (e *Engine) Reconfigure() {
	fresh := buildLayers(e.tokens)
	e.tokens.ClearUsed()
	e.mu.Lock()
	e.layers = fresh
	e.mu.Unlock()
	e.logger.Info().Msg("maze fully reconfigured")
}

// RotateLayer rebuilds a single layer in place.
func (e *Engine) RotateLayer(n int) {
	if n < 0 || n >= LayerCount {
		return
	}
	fresh := buildLayer(n, e.tokens)
	e.mu.Lock()
	e.layers[n] = fresh
	e.mu.Unlock()
	e.logger.Debug().Int("layer", n).Msg("layer rotated")
}

// RelocateHoneypots regenerates honeypot positions on every layer without
// touching traps or the used set.
func (e *Engine) RelocateHoneypots() {
	e.mu.Lock()
	layers := e.layers
	e.mu.Unlock()
	for _, l := range layers {
		pots := e.tokens.GenerateHoneypots(l.Number, len(l.Honeypots))
		e.mu.Lock()
		l.Honeypots = pots
		e.mu.Unlock()
	}
	e.logger.Debug().Msg("honeypots relocated")
}

// RepositionTraps regenerates trap positions on every layer.
func (e *Engine) RepositionTraps() {
	e.mu.Lock()
	layers := e.layers
	e.mu.Unlock()
	for _, l := range layers {
		traps := e.tokens.GenerateTraps(l.Number, len(l.Traps))
		e.mu.Lock()
		l.Traps = traps
		e.mu.Unlock()
	}
	e.logger.Debug().Msg("traps repositioned")
}

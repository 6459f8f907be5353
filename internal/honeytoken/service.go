// Package honeytoken generates and tracks the deception inventory: honeypot
// positions, trap positions, and decoy vaults. The maze engine decides when
// to spring them; this package owns their lifecycle and their bait.
package honeytoken

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaultmaze-project/vaultmaze/internal/core"
)

// TrapType determines what happens to an attacker caught by a trap. Only
// fake_success lets the request proceed (with poisoned data); every other
// trap type blocks it.
type TrapType string

const (
	TrapFakeSuccess    TrapType = "fake_success"
	TrapInfiniteLoop   TrapType = "infinite_loop"
	TrapDataCorruption TrapType = "data_corruption"
	TrapSessionFreeze  TrapType = "session_freeze"
)

var trapTypes = []TrapType{TrapFakeSuccess, TrapInfiniteLoop, TrapDataCorruption, TrapSessionFreeze}

// HoneypotPosition is a planted bait point inside a maze layer.
type HoneypotPosition struct {
	ID                string         `json:"id"`
	Layer             int            `json:"layer"`
	TriggerConditions []string       `json:"trigger_conditions"`
	Bait              FakeCredential `json:"bait"`
	ResponseDelay     time.Duration  `json:"response_delay"`
	CreatedAt         time.Time      `json:"created_at"`
}

// TrapPosition is a planted trap inside a maze layer. Unlike honeypots a
// trap is stateless per evaluation: it springs whenever one of its
// activation conditions matches the attack, however many times that happens.
type TrapPosition struct {
	ID                   string        `json:"id"`
	Layer                int           `json:"layer"`
	Type                 TrapType      `json:"type"`
	ActivationConditions []string      `json:"activation_conditions"`
	Severity             core.Severity `json:"severity"`
	CreatedAt            time.Time     `json:"created_at"`
}

// DecoyVault is a fully fake vault served to attackers instead of the real
// one. It deactivates permanently once its trigger threshold is reached.
type DecoyVault struct {
	ID           string      `json:"id"`
	Category     string      `json:"category"`
	TriggerType  string      `json:"trigger_type"` // "time_based", "access_pattern", "ip_based", "ai_detected"
	Threshold    int         `json:"threshold"`
	AccessCount  int         `json:"access_count"`
	Active       bool        `json:"active"`
	Items        []DecoyItem `json:"items"`
	CreatedAt    time.Time   `json:"created_at"`
	LastAccessed time.Time   `json:"last_accessed"`
	ExpiresAt    time.Time   `json:"expires_at,omitempty"`
}

// Access thresholds per decoy trigger type. time_based decoys expire on the
// clock instead of a count.
const (
	thresholdAccessPattern = 10
	thresholdIPBased       = 3
	thresholdAIDetected    = 5
	timeBasedLifetime      = 24 * time.Hour
)

// HoneypotTrigger is the result handed back when a honeypot springs.
type HoneypotTrigger struct {
	HoneypotID string         `json:"honeypot_id"`
	Layer      int            `json:"layer"`
	Bait       FakeCredential `json:"bait"`
	Delay      time.Duration  `json:"delay"`
}

// Service owns the deception inventory. One mutex guards everything,
// including the randomness source: a seeded source is only deterministic if
// access is serialized.
type Service struct {
	logger zerolog.Logger

	mu         sync.Mutex
	rng        *rand.Rand
	used       map[string]bool
	decoys     map[string]*DecoyVault
	triggered  int64
	trapsBuilt int64
	potsBuilt  int64
}

// NewService creates a Service. A zero seed in the config means time-seeded;
// a fixed seed makes all generated bait reproducible.
func NewService(cfg core.HoneytokenConfig, logger zerolog.Logger) *Service {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Service{
		logger: logger.With().Str("component", "honeytoken").Logger(),
		rng:    rand.New(rand.NewSource(seed)),
		used:   make(map[string]bool),
		decoys: make(map[string]*DecoyVault),
	}
}

// GenerateHoneypots builds count honeypots for a layer. Bait and trigger
// conditions scale with depth.
func (s *Service) GenerateHoneypots(layer, count int) []*HoneypotPosition {
	s.mu.Lock()
	defer s.mu.Unlock()

	pots := make([]*HoneypotPosition, 0, count)
	for i := 0; i < count; i++ {
		pots = append(pots, &HoneypotPosition{
			ID:                uuid.New().String(),
			Layer:             layer,
			TriggerConditions: conditionsForLayer(layer, s.rng),
			Bait:              credentialForLayer(layer, s.rng),
			ResponseDelay:     time.Duration(500+s.rng.Intn(1500)) * time.Millisecond,
			CreatedAt:         time.Now().UTC(),
		})
	}
	s.potsBuilt += int64(count)
	return pots
}

// GenerateTraps builds count traps for a layer.
func (s *Service) GenerateTraps(layer, count int) []*TrapPosition {
	s.mu.Lock()
	defer s.mu.Unlock()

	traps := make([]*TrapPosition, 0, count)
	for i := 0; i < count; i++ {
		traps = append(traps, &TrapPosition{
			ID:                   uuid.New().String(),
			Layer:                layer,
			Type:                 trapTypes[s.rng.Intn(len(trapTypes))],
			ActivationConditions: trapConditionsForLayer(layer),
			Severity:             trapSeverityForLayer(layer),
			CreatedAt:            time.Now().UTC(),
		})
	}
	s.trapsBuilt += int64(count)
	return traps
}

// TriggerHoneypot springs a honeypot. A honeypot fires at most once ever:
// the second call for the same ID reports false and serves nothing.
func (s *Service) TriggerHoneypot(pot *HoneypotPosition, sourceIP string) (*HoneypotTrigger, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.used[pot.ID] {
		return nil, false
	}
	s.used[pot.ID] = true
	s.triggered++

	s.logger.Info().
		Str("honeypot_id", pot.ID).
		Int("layer", pot.Layer).
		Str("source_ip", sourceIP).
		Msg("honeypot triggered")

	return &HoneypotTrigger{
		HoneypotID: pot.ID,
		Layer:      pot.Layer,
		Bait:       pot.Bait,
		Delay:      pot.ResponseDelay,
	}, true
}

// HoneypotUsed reports whether a honeypot has already fired.
func (s *Service) HoneypotUsed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used[id]
}

// ClearUsed forgets which honeypots have fired. Called by the maze during a
// full reconfiguration: regenerated honeypots are new bait.
func (s *Service) ClearUsed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used = make(map[string]bool)
}

// CreateDecoyVault builds and registers a decoy vault.
func (s *Service) CreateDecoyVault(category, triggerType string) *DecoyVault {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := &DecoyVault{
		ID:          uuid.New().String(),
		Category:    category,
		TriggerType: triggerType,
		Active:      true,
		Items:       decoyDataFor(category, s.rng),
		CreatedAt:   time.Now().UTC(),
	}
	switch triggerType {
	case "access_pattern":
		d.Threshold = thresholdAccessPattern
	case "ip_based":
		d.Threshold = thresholdIPBased
	case "ai_detected":
		d.Threshold = thresholdAIDetected
	case "time_based":
		d.ExpiresAt = d.CreatedAt.Add(timeBasedLifetime)
	default:
		d.Threshold = thresholdAccessPattern
	}

	s.decoys[d.ID] = d
	s.logger.Debug().Str("decoy_id", d.ID).Str("category", category).Str("trigger", triggerType).Msg("decoy vault created")
	return d
}

// TriggerDecoy serves a decoy's contents and advances its lifecycle. The
// trigger that reaches the threshold still serves data but permanently
// deactivates the decoy; triggering an inactive decoy returns nil.
func (s *Service) TriggerDecoy(id string) []DecoyItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.decoys[id]
	if !ok || !d.Active {
		return nil
	}

	now := time.Now().UTC()
	if d.TriggerType == "time_based" && now.After(d.ExpiresAt) {
		d.Active = false
		return nil
	}

	d.AccessCount++
	d.LastAccessed = now
	items := make([]DecoyItem, len(d.Items))
	copy(items, d.Items)

	if d.Threshold > 0 && d.AccessCount >= d.Threshold {
		d.Active = false
		s.logger.Info().Str("decoy_id", id).Int("accesses", d.AccessCount).Msg("decoy vault exhausted and deactivated")
	}
	return items
}

// Decoy returns a snapshot of a decoy vault, or nil.
func (s *Service) Decoy(id string) *DecoyVault {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decoys[id]
	if !ok {
		return nil
	}
	cp := *d
	cp.Items = append([]DecoyItem(nil), d.Items...)
	return &cp
}

// ActiveDecoys returns snapshots of all active decoy vaults.
func (s *Service) ActiveDecoys() []*DecoyVault {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*DecoyVault, 0, len(s.decoys))
	for _, d := range s.decoys {
		if d.Active {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out
}

// Stats returns service counters.
func (s *Service) Stats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := 0
	for _, d := range s.decoys {
		if d.Active {
			active++
		}
	}
	return map[string]interface{}{
		"honeypots_built":     s.potsBuilt,
		"traps_built":         s.trapsBuilt,
		"honeypots_triggered": s.triggered,
		"honeypots_used":      len(s.used),
		"decoys_total":        len(s.decoys),
		"decoys_active":       active,
	}
}

// Reset drops all decoys and the used-honeypot set.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used = make(map[string]bool)
	s.decoys = make(map[string]*DecoyVault)
	s.triggered = 0
	s.logger.Info().Msg("honeytoken state reset")
}

// Categories returns the valid decoy categories.
func Categories() []string {
	out := make([]string, len(decoyCategories))
	copy(out, decoyCategories)
	return out
}

// Package oneway enforces the vault's asymmetric boundary: data enters with
// light verification and leaves only through an ordered multi-step exit
// ceremony bound to a single-use token.
package oneway

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaultmaze-project/vaultmaze/internal/core"
)

// Exit attempt lifecycle. Transitions are forward-only:
// pending -> verified -> completed, with failed reachable from pending.
const (
	ExitPending   = "pending"
	ExitVerified  = "verified"
	ExitCompleted = "completed"
	ExitFailed    = "failed"
)

// sourceLevels ranks how much trust each ingress path needs. Unknown sources
// rank above every configured entry level and are denied.
var sourceLevels = map[string]int{
	"user_input": 1,
	"import":     2,
	"sync":       3,
	"api":        4,
}

// EntryRecord is an append-only log line for one data entry, allowed or not.
type EntryRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Source    string    `json:"source"`
	Level     int       `json:"level"`
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason,omitempty"`
	Size      int       `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// VerificationToken is minted once per exit attempt and dies on use or expiry.
type VerificationToken struct {
	Value     string    `json:"value"`
	ExitID    string    `json:"exit_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
}

// ExitAttempt tracks one attempt to take data out of the vault.
type ExitAttempt struct {
	ID             string             `json:"id"`
	UserID         string             `json:"user_id"`
	DataType       string             `json:"data_type"`
	DataID         string             `json:"data_id"`
	Status         string             `json:"status"`
	RequiredSteps  []string           `json:"required_steps"`
	CompletedSteps []string           `json:"completed_steps"`
	Token          *VerificationToken `json:"token"`
	Reason         string             `json:"reason,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// ExportRecord is the immutable receipt for a completed exit.
type ExportRecord struct {
	ID        string    `json:"id"`
	ExitID    string    `json:"exit_id"`
	UserID    string    `json:"user_id"`
	DataType  string    `json:"data_type"`
	DataID    string    `json:"data_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Violation describes a detected breach of the one-way invariant.
type Violation struct {
	Type     string        `json:"type"`
	Severity core.Severity `json:"severity"`
	UserID   string        `json:"user_id"`
	Detail   string        `json:"detail"`
}

// ExportRecorder persists export receipts. A nil recorder is valid; receipts
// then live only in memory.
type ExportRecorder interface {
	RecordExport(rec ExportRecord) error
}

// exitActionWords mark an action as data leaving the vault.
var exitActionWords = []string{"export", "download", "copy", "extract", "backup"}

// Service is the one-way boundary. One mutex guards all state; the service
// is safe for concurrent use.
type Service struct {
	logger   zerolog.Logger
	sink     core.EventSink
	recorder ExportRecorder
	verifier StepVerifier

	mu         sync.Mutex
	cfg        core.OneWayConfig
	entries    []EntryRecord
	exits      map[string]*ExitAttempt
	entryTimes map[string][]time.Time
	exitTimes  map[string][]time.Time
	exports    []ExportRecord

	entriesDenied  int64
	exitsInitiated int64
	exitsDenied    int64
	exitsCompleted int64
	exitsFailed    int64
	violations     int64

	now func() time.Time
}

// NewService creates the boundary service. recorder may be nil.
func NewService(cfg core.OneWayConfig, sink core.EventSink, recorder ExportRecorder, logger zerolog.Logger) *Service {
	return &Service{
		logger:     logger.With().Str("component", "oneway").Logger(),
		sink:       sink,
		recorder:   recorder,
		verifier:   credentialVerifier{},
		cfg:        cfg,
		exits:      make(map[string]*ExitAttempt),
		entryTimes: make(map[string][]time.Time),
		exitTimes:  make(map[string][]time.Time),
		now:        time.Now,
	}
}

// SetVerifier swaps the step verifier. Meant for wiring, before traffic.
func (s *Service) SetVerifier(v StepVerifier) {
	s.mu.Lock()
	s.verifier = v
	s.mu.Unlock()
}

// ProcessDataEntry admits or denies one piece of data. The record is logged
// either way; a denial is a normal outcome, not an error.
func (s *Service) ProcessDataEntry(data map[string]interface{}, userID, source string) EntryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	level, known := sourceLevels[source]
	if !known {
		level = len(sourceLevels) + 1
	}

	rec := EntryRecord{
		ID:        uuid.New().String(),
		UserID:    userID,
		Source:    source,
		Level:     level,
		Allowed:   true,
		Size:      len(data),
		Timestamp: now,
	}

	recent := pruneTimes(s.entryTimes[userID], now, s.cfg.EntryCooldown)
	switch {
	case level > s.cfg.EntryVerificationLevels:
		rec.Allowed = false
		rec.Reason = fmt.Sprintf("source %s needs verification level %d, limit is %d", source, level, s.cfg.EntryVerificationLevels)
	case len(recent) >= s.cfg.MaxEntryAttempts:
		rec.Allowed = false
		rec.Reason = fmt.Sprintf("entry rate limit: %d entries within %s", len(recent), s.cfg.EntryCooldown)
	}

	s.entryTimes[userID] = append(recent, now)
	s.entries = append(s.entries, rec)

	if !rec.Allowed {
		s.entriesDenied++
		ev := core.NewSecurityEvent("oneway", "entry_denied", core.SeverityMedium, rec.Reason)
		ev.UserID = userID
		s.sink.Emit(ev)
	}
	return rec
}

// InitiateDataExit opens an exit attempt. Hammering the exit inside the
// cooldown is denied outright and announced as critical.
func (s *Service) InitiateDataExit(userID, dataType, dataID string) (*ExitAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	recent := pruneTimes(s.exitTimes[userID], now, s.cfg.ExitCooldown)
	s.exitTimes[userID] = append(recent, now)

	if len(recent) >= s.cfg.MaxExitAttempts {
		s.exitsDenied++
		ev := core.NewSecurityEvent("oneway", "exit_rate_limited", core.SeverityCritical,
			fmt.Sprintf("user %s exceeded %d exit attempts within %s", userID, s.cfg.MaxExitAttempts, s.cfg.ExitCooldown))
		ev.UserID = userID
		s.sink.Emit(ev)
		return nil, fmt.Errorf("exit rate limit exceeded for user %s", userID)
	}

	exitID := uuid.New().String()
	attempt := &ExitAttempt{
		ID:            exitID,
		UserID:        userID,
		DataType:      dataType,
		DataID:        dataID,
		Status:        ExitPending,
		RequiredSteps: requiredSteps(dataType),
		Token: &VerificationToken{
			Value:     uuid.New().String(),
			ExitID:    exitID,
			CreatedAt: now,
			ExpiresAt: now.Add(s.cfg.TimeWindow),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.exits[exitID] = attempt
	s.exitsInitiated++

	s.logger.Info().Str("user_id", userID).Str("exit_id", exitID).
		Str("data_type", dataType).Int("steps", len(attempt.RequiredSteps)).
		Msg("exit attempt initiated")
	return snapshotExit(attempt), nil
}

// VerifyExitStep completes the next required step. Steps are strictly
// ordered; an out-of-order step is rejected without advancing. Once every
// step is done the attempt becomes verified.
func (s *Service) VerifyExitStep(userID, exitID, step string, data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.exits[exitID]
	if !ok || attempt.UserID != userID {
		return fmt.Errorf("no exit attempt %s for user %s", exitID, userID)
	}
	if attempt.Status != ExitPending {
		return fmt.Errorf("exit %s is %s, steps no longer apply", exitID, attempt.Status)
	}

	idx := len(attempt.CompletedSteps)
	if idx >= len(attempt.RequiredSteps) {
		return fmt.Errorf("exit %s has no remaining steps", exitID)
	}
	expected := attempt.RequiredSteps[idx]
	if step != expected {
		return fmt.Errorf("step %s out of order, expected %s", step, expected)
	}

	now := s.now()
	if step == StepTimeWindow {
		if now.After(attempt.Token.ExpiresAt) {
			s.failExit(attempt, "verification window expired", now)
			return fmt.Errorf("verification token expired at %s", attempt.Token.ExpiresAt.Format(time.RFC3339))
		}
	} else if err := s.verifier.Verify(step, userID, data); err != nil {
		return fmt.Errorf("step %s failed: %w", step, err)
	}

	attempt.CompletedSteps = append(attempt.CompletedSteps, step)
	attempt.UpdatedAt = now
	if len(attempt.CompletedSteps) == len(attempt.RequiredSteps) {
		attempt.Status = ExitVerified
		s.logger.Info().Str("exit_id", exitID).Msg("exit fully verified")
	}
	return nil
}

// ExecuteDataExit finalizes a verified exit: the token is spent, the attempt
// completes, and an immutable export receipt is written. Anything but a
// verified attempt fails, including a second call on a completed one.
func (s *Service) ExecuteDataExit(userID, exitID string) (*ExportRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.exits[exitID]
	if !ok || attempt.UserID != userID {
		return nil, fmt.Errorf("no exit attempt %s for user %s", exitID, userID)
	}
	if attempt.Status != ExitVerified {
		return nil, fmt.Errorf("exit %s is %s, not verified", exitID, attempt.Status)
	}
	now := s.now()
	if now.After(attempt.Token.ExpiresAt) {
		s.failExit(attempt, "token expired before execution", now)
		return nil, fmt.Errorf("verification token expired")
	}
	if attempt.Token.Used {
		s.failExit(attempt, "token replay", now)
		return nil, fmt.Errorf("verification token already used")
	}

	attempt.Token.Used = true
	attempt.Status = ExitCompleted
	attempt.UpdatedAt = now
	s.exitsCompleted++

	rec := ExportRecord{
		ID:        uuid.New().String(),
		ExitID:    exitID,
		UserID:    userID,
		DataType:  attempt.DataType,
		DataID:    attempt.DataID,
		Timestamp: now,
	}
	s.exports = append(s.exports, rec)
	if s.recorder != nil {
		if err := s.recorder.RecordExport(rec); err != nil {
			s.logger.Error().Err(err).Str("export_id", rec.ID).Msg("export receipt not persisted")
		}
	}

	ev := core.NewSecurityEvent("oneway", "data_exported", core.SeverityInfo,
		fmt.Sprintf("user %s exported %s through verified exit", userID, attempt.DataType))
	ev.UserID = userID
	ev.Details["export_id"] = rec.ID
	s.sink.Emit(ev)

	out := rec
	return &out, nil
}

// DetectOneWayViolation checks an observed action against the boundary. An
// exfil action with no recently completed exit is critical; hammering the
// exit gate is high.
func (s *Service) DetectOneWayViolation(userID, action string, data map[string]interface{}) *Violation {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	lower := strings.ToLower(action)
	exfil := false
	for _, w := range exitActionWords {
		if strings.Contains(lower, w) {
			exfil = true
			break
		}
	}

	if exfil && !s.recentCompletedExit(userID, now) {
		s.violations++
		v := &Violation{
			Type:     "unverified_exit",
			Severity: core.SeverityCritical,
			UserID:   userID,
			Detail:   fmt.Sprintf("action %q without a verified exit", action),
		}
		ev := core.NewSecurityEvent("oneway", "one_way_violation", core.SeverityCritical, v.Detail)
		ev.UserID = userID
		s.sink.Emit(ev)
		return v
	}

	if len(pruneTimes(s.exitTimes[userID], now, s.cfg.ExitCooldown)) > s.cfg.MaxExitAttempts {
		s.violations++
		v := &Violation{
			Type:     "exit_flood",
			Severity: core.SeverityHigh,
			UserID:   userID,
			Detail:   fmt.Sprintf("more than %d exit attempts within %s", s.cfg.MaxExitAttempts, s.cfg.ExitCooldown),
		}
		ev := core.NewSecurityEvent("oneway", "one_way_violation", core.SeverityHigh, v.Detail)
		ev.UserID = userID
		s.sink.Emit(ev)
		return v
	}
	return nil
}

// Exit returns a snapshot of one exit attempt.
func (s *Service) Exit(exitID string) (*ExitAttempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.exits[exitID]
	if !ok {
		return nil, false
	}
	return snapshotExit(attempt), true
}

// Entries returns the full entry log, oldest first.
func (s *Service) Entries() []EntryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EntryRecord, len(s.entries))
	copy(out, s.entries)
	return out
}

// Exports returns receipts for completed exits, oldest first.
func (s *Service) Exports() []ExportRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ExportRecord, len(s.exports))
	copy(out, s.exports)
	return out
}

// Config returns the current boundary configuration.
func (s *Service) Config() core.OneWayConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// UpdateConfig applies a partial update: zero-valued fields keep their
// current setting. Booleans always apply.
func (s *Service) UpdateConfig(partial core.OneWayConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if partial.EntryVerificationLevels > 0 {
		s.cfg.EntryVerificationLevels = partial.EntryVerificationLevels
	}
	if partial.ExitVerificationLevels > 0 {
		s.cfg.ExitVerificationLevels = partial.ExitVerificationLevels
	}
	if partial.MaxEntryAttempts > 0 {
		s.cfg.MaxEntryAttempts = partial.MaxEntryAttempts
	}
	if partial.MaxExitAttempts > 0 {
		s.cfg.MaxExitAttempts = partial.MaxExitAttempts
	}
	if partial.EntryCooldown > 0 {
		s.cfg.EntryCooldown = partial.EntryCooldown
	}
	if partial.ExitCooldown > 0 {
		s.cfg.ExitCooldown = partial.ExitCooldown
	}
	if partial.TimeWindow > 0 {
		s.cfg.TimeWindow = partial.TimeWindow
	}
	s.cfg.RequireBiometric = partial.RequireBiometric
	s.cfg.RequireHardwareKey = partial.RequireHardwareKey
	s.logger.Info().Msg("boundary configuration updated")
}

// Stats returns boundary counters.
func (s *Service) Stats() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]int64{
		"entries_total":   int64(len(s.entries)),
		"entries_denied":  s.entriesDenied,
		"exits_initiated": s.exitsInitiated,
		"exits_denied":    s.exitsDenied,
		"exits_completed": s.exitsCompleted,
		"exits_failed":    s.exitsFailed,
		"violations":      s.violations,
	}
}

// failExit marks an attempt failed. Caller holds the lock.
func (s *Service) failExit(attempt *ExitAttempt, reason string, now time.Time) {
	attempt.Status = ExitFailed
	attempt.Reason = reason
	attempt.UpdatedAt = now
	s.exitsFailed++
	ev := core.NewSecurityEvent("oneway", "exit_failed", core.SeverityHigh,
		fmt.Sprintf("exit %s failed: %s", attempt.ID, reason))
	ev.UserID = attempt.UserID
	s.sink.Emit(ev)
}

// recentCompletedExit reports whether the user completed an exit inside the
// time window. Caller holds the lock.
func (s *Service) recentCompletedExit(userID string, now time.Time) bool {
	for i := len(s.exports) - 1; i >= 0; i-- {
		rec := s.exports[i]
		if now.Sub(rec.Timestamp) > s.cfg.TimeWindow {
			return false
		}
		if rec.UserID == userID {
			return true
		}
	}
	return false
}

// pruneTimes drops timestamps older than the window.
func pruneTimes(times []time.Time, now time.Time, window time.Duration) []time.Time {
	var out []time.Time
	for _, t := range times {
		if now.Sub(t) < window {
			out = append(out, t)
		}
	}
	return out
}

func snapshotExit(attempt *ExitAttempt) *ExitAttempt {
	cp := *attempt
	cp.RequiredSteps = append([]string(nil), attempt.RequiredSteps...)
	cp.CompletedSteps = append([]string(nil), attempt.CompletedSteps...)
	tok := *attempt.Token
	cp.Token = &tok
	return &cp
}

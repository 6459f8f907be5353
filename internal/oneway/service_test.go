package oneway

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaultmaze-project/vaultmaze/internal/core"
)

type collectorSink struct {
	mu     sync.Mutex
	events []*core.SecurityEvent
}

func (c *collectorSink) Emit(event *core.SecurityEvent) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
}

func (c *collectorSink) byType(eventType string) []*core.SecurityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*core.SecurityEvent
	for _, e := range c.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type memoryRecorder struct {
	mu   sync.Mutex
	recs []ExportRecord
}

func (m *memoryRecorder) RecordExport(rec ExportRecord) error {
	m.mu.Lock()
	m.recs = append(m.recs, rec)
	m.mu.Unlock()
	return nil
}

// clock is an adjustable test clock.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestService() (*Service, *collectorSink, *memoryRecorder, *clock) {
	sink := &collectorSink{}
	rec := &memoryRecorder{}
	clk := newClock()
	s := NewService(core.DefaultConfig().OneWay, sink, rec, zerolog.Nop())
	s.now = clk.now
	return s, sink, rec, clk
}

func passwordEvidence() map[string]interface{} {
	return map[string]interface{}{
		"password":  "hunter2",
		"device_id": "dev-1",
		"code":      "123456",
	}
}

// completeExit walks every required step for an attempt.
func completeExit(t *testing.T, s *Service, userID, exitID string, evidence map[string]interface{}) {
	t.Helper()
	attempt, ok := s.Exit(exitID)
	if !ok {
		t.Fatalf("exit %s not found", exitID)
	}
	for _, step := range attempt.RequiredSteps {
		if err := s.VerifyExitStep(userID, exitID, step, evidence); err != nil {
			t.Fatalf("step %s: %v", step, err)
		}
	}
}

func TestProcessDataEntry_SourceLevels(t *testing.T) {
	cases := []struct {
		source  string
		level   int
		allowed bool // defaults admit up to level 2
	}{
		{"user_input", 1, true},
		{"import", 2, true},
		{"sync", 3, false},
		{"api", 4, false},
		{"carrier_pigeon", 5, false},
	}
	for _, tc := range cases {
		s, _, _, _ := newTestService()
		rec := s.ProcessDataEntry(map[string]interface{}{"k": "v"}, "alice", tc.source)
		if rec.Level != tc.level {
			t.Errorf("%s: level = %d, want %d", tc.source, rec.Level, tc.level)
		}
		if rec.Allowed != tc.allowed {
			t.Errorf("%s: allowed = %v, want %v", tc.source, rec.Allowed, tc.allowed)
		}
	}
}

func TestProcessDataEntry_AlwaysLogged(t *testing.T) {
	s, sink, _, _ := newTestService()

	s.ProcessDataEntry(nil, "alice", "user_input")
	s.ProcessDataEntry(nil, "alice", "api")

	entries := s.Entries()
	if len(entries) != 2 {
		t.Fatalf("entry log has %d records, want 2", len(entries))
	}
	if entries[0].Allowed == entries[1].Allowed {
		t.Error("expected one allowed and one denied record")
	}
	if len(sink.byType("entry_denied")) != 1 {
		t.Error("denied entry should emit one event")
	}
}

func TestProcessDataEntry_RateLimit(t *testing.T) {
	s, _, _, clk := newTestService()

	for i := 0; i < 5; i++ {
		if rec := s.ProcessDataEntry(nil, "alice", "user_input"); !rec.Allowed {
			t.Fatalf("entry %d denied early: %s", i, rec.Reason)
		}
	}
	if rec := s.ProcessDataEntry(nil, "alice", "user_input"); rec.Allowed {
		t.Error("6th entry inside the cooldown should be denied")
	}

	// Another user is unaffected.
	if rec := s.ProcessDataEntry(nil, "bob", "user_input"); !rec.Allowed {
		t.Errorf("bob denied by alice's rate limit: %s", rec.Reason)
	}

	// Cooldown passes, limit resets.
	clk.advance(6 * time.Second)
	if rec := s.ProcessDataEntry(nil, "alice", "user_input"); !rec.Allowed {
		t.Errorf("entry after cooldown denied: %s", rec.Reason)
	}
}

func TestInitiateDataExit_RequiredStepsPerType(t *testing.T) {
	cases := []struct {
		dataType string
		want     []string
	}{
		{"password", []string{StepUserAuth, StepDeviceVerify, StepTimeWindow, StepTwoFactor}},
		{"note", []string{StepUserAuth, StepDeviceVerify, StepTimeWindow, StepBiometric}},
		{"credit_card", []string{StepUserAuth, StepDeviceVerify, StepTimeWindow, StepHardwareKey, StepTwoFactor}},
		{"all", []string{StepUserAuth, StepDeviceVerify, StepTimeWindow, StepBiometric, StepHardwareKey, StepSecurityQuestions, StepTwoFactor, StepSession}},
		{"bookmark", []string{StepUserAuth, StepDeviceVerify, StepTimeWindow}},
	}
	for _, tc := range cases {
		s, _, _, _ := newTestService()
		attempt, err := s.InitiateDataExit("alice", tc.dataType, "item-1")
		if err != nil {
			t.Fatalf("%s: %v", tc.dataType, err)
		}
		if len(attempt.RequiredSteps) != len(tc.want) {
			t.Fatalf("%s: %d steps, want %d", tc.dataType, len(attempt.RequiredSteps), len(tc.want))
		}
		for i, step := range tc.want {
			if attempt.RequiredSteps[i] != step {
				t.Errorf("%s: step[%d] = %s, want %s", tc.dataType, i, attempt.RequiredSteps[i], step)
			}
		}
		if attempt.Status != ExitPending {
			t.Errorf("%s: status = %s, want pending", tc.dataType, attempt.Status)
		}
	}
}

func TestInitiateDataExit_RateLimited(t *testing.T) {
	s, sink, _, clk := newTestService()

	for i := 0; i < 3; i++ {
		if _, err := s.InitiateDataExit("alice", "password", "item-1"); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if _, err := s.InitiateDataExit("alice", "password", "item-1"); err == nil {
		t.Error("4th exit attempt within the cooldown should be denied")
	}
	evs := sink.byType("exit_rate_limited")
	if len(evs) != 1 {
		t.Fatalf("expected 1 rate limit event, got %d", len(evs))
	}
	if evs[0].Severity != core.SeverityCritical {
		t.Errorf("rate limit severity = %v, want critical", evs[0].Severity)
	}

	clk.advance(31 * time.Second)
	if _, err := s.InitiateDataExit("alice", "password", "item-1"); err != nil {
		t.Errorf("exit after cooldown denied: %v", err)
	}
}

func TestVerifyExitStep_OrderEnforced(t *testing.T) {
	s, _, _, _ := newTestService()
	attempt, _ := s.InitiateDataExit("alice", "password", "item-1")

	err := s.VerifyExitStep("alice", attempt.ID, StepTwoFactor, passwordEvidence())
	if err == nil {
		t.Fatal("out-of-order step should be rejected")
	}

	// The rejection must not advance progress.
	got, _ := s.Exit(attempt.ID)
	if len(got.CompletedSteps) != 0 {
		t.Errorf("completed steps = %v, want none", got.CompletedSteps)
	}

	if err := s.VerifyExitStep("alice", attempt.ID, StepUserAuth, passwordEvidence()); err != nil {
		t.Fatalf("first step in order: %v", err)
	}
}

func TestVerifyExitStep_WrongUser(t *testing.T) {
	s, _, _, _ := newTestService()
	attempt, _ := s.InitiateDataExit("alice", "password", "item-1")

	if err := s.VerifyExitStep("mallory", attempt.ID, StepUserAuth, passwordEvidence()); err == nil {
		t.Error("another user must not advance someone else's exit")
	}
}

func TestVerifyExitStep_MissingEvidence(t *testing.T) {
	s, _, _, _ := newTestService()
	attempt, _ := s.InitiateDataExit("alice", "password", "item-1")

	err := s.VerifyExitStep("alice", attempt.ID, StepUserAuth, map[string]interface{}{})
	if err == nil {
		t.Error("step without evidence should fail")
	}
}

func TestVerifyExitStep_TimeWindowExpiry(t *testing.T) {
	s, _, _, clk := newTestService()
	attempt, _ := s.InitiateDataExit("alice", "password", "item-1")

	ev := passwordEvidence()
	if err := s.VerifyExitStep("alice", attempt.ID, StepUserAuth, ev); err != nil {
		t.Fatal(err)
	}
	if err := s.VerifyExitStep("alice", attempt.ID, StepDeviceVerify, ev); err != nil {
		t.Fatal(err)
	}

	clk.advance(5*time.Minute + time.Second)
	if err := s.VerifyExitStep("alice", attempt.ID, StepTimeWindow, ev); err == nil {
		t.Fatal("time window step should fail after token expiry")
	}

	got, _ := s.Exit(attempt.ID)
	if got.Status != ExitFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	// A failed attempt accepts no more steps.
	if err := s.VerifyExitStep("alice", attempt.ID, StepTimeWindow, ev); err == nil {
		t.Error("failed attempt accepted another step")
	}
}

func TestExecuteDataExit_FullPasswordRoundTrip(t *testing.T) {
	s, sink, rec, _ := newTestService()
	attempt, _ := s.InitiateDataExit("alice", "password", "item-1")
	completeExit(t, s, "alice", attempt.ID, passwordEvidence())

	got, _ := s.Exit(attempt.ID)
	if got.Status != ExitVerified {
		t.Fatalf("status = %s, want verified", got.Status)
	}

	export, err := s.ExecuteDataExit("alice", attempt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if export.DataType != "password" || export.UserID != "alice" {
		t.Errorf("export = %+v", export)
	}

	if n := len(s.Exports()); n != 1 {
		t.Errorf("%d export records, want exactly 1", n)
	}
	if len(rec.recs) != 1 {
		t.Errorf("recorder saw %d records, want 1", len(rec.recs))
	}
	if len(sink.byType("data_exported")) != 1 {
		t.Error("expected one data_exported event")
	}

	got, _ = s.Exit(attempt.ID)
	if got.Status != ExitCompleted || !got.Token.Used {
		t.Errorf("attempt after execution = %+v", got)
	}
}

func TestExecuteDataExit_RepeatFails(t *testing.T) {
	s, _, _, _ := newTestService()
	attempt, _ := s.InitiateDataExit("alice", "password", "item-1")
	completeExit(t, s, "alice", attempt.ID, passwordEvidence())

	if _, err := s.ExecuteDataExit("alice", attempt.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ExecuteDataExit("alice", attempt.ID); err == nil {
		t.Error("second execution of the same exit must fail")
	}
	if n := len(s.Exports()); n != 1 {
		t.Errorf("%d export records after replay, want 1", n)
	}
}

func TestExecuteDataExit_UnverifiedFails(t *testing.T) {
	s, _, _, _ := newTestService()
	attempt, _ := s.InitiateDataExit("alice", "password", "item-1")

	if _, err := s.ExecuteDataExit("alice", attempt.ID); err == nil {
		t.Error("pending exit must not execute")
	}
}

func TestDetectOneWayViolation(t *testing.T) {
	s, sink, _, _ := newTestService()

	v := s.DetectOneWayViolation("alice", "export all passwords", nil)
	if v == nil || v.Severity != core.SeverityCritical {
		t.Fatalf("violation = %+v, want critical", v)
	}
	if len(sink.byType("one_way_violation")) != 1 {
		t.Error("expected a violation event")
	}

	if v := s.DetectOneWayViolation("alice", "view item", nil); v != nil {
		t.Errorf("benign action flagged: %+v", v)
	}
}

func TestDetectOneWayViolation_VerifiedExitClears(t *testing.T) {
	s, _, _, _ := newTestService()
	attempt, _ := s.InitiateDataExit("alice", "password", "item-1")
	completeExit(t, s, "alice", attempt.ID, passwordEvidence())
	if _, err := s.ExecuteDataExit("alice", attempt.ID); err != nil {
		t.Fatal(err)
	}

	if v := s.DetectOneWayViolation("alice", "download password", nil); v != nil {
		t.Errorf("export after a verified exit flagged: %+v", v)
	}
}

func TestUpdateConfig_PartialKeepsZeroFields(t *testing.T) {
	s, _, _, _ := newTestService()

	s.UpdateConfig(core.OneWayConfig{MaxExitAttempts: 10, RequireHardwareKey: true})

	cfg := s.Config()
	if cfg.MaxExitAttempts != 10 {
		t.Errorf("MaxExitAttempts = %d, want 10", cfg.MaxExitAttempts)
	}
	if cfg.TimeWindow != 5*time.Minute {
		t.Errorf("TimeWindow = %v, want unchanged 5m", cfg.TimeWindow)
	}
	if cfg.EntryVerificationLevels != 2 {
		t.Errorf("EntryVerificationLevels = %d, want unchanged 2", cfg.EntryVerificationLevels)
	}
}

func TestStats(t *testing.T) {
	s, _, _, _ := newTestService()
	s.ProcessDataEntry(nil, "alice", "user_input")
	s.ProcessDataEntry(nil, "alice", "api")
	attempt, _ := s.InitiateDataExit("alice", "password", "item-1")
	completeExit(t, s, "alice", attempt.ID, passwordEvidence())
	s.ExecuteDataExit("alice", attempt.ID)

	stats := s.Stats()
	want := map[string]int64{
		"entries_total":   2,
		"entries_denied":  1,
		"exits_initiated": 1,
		"exits_completed": 1,
		"exits_failed":    0,
	}
	for k, v := range want {
		if stats[k] != v {
			t.Errorf("%s = %d, want %d", k, stats[k], v)
		}
	}
}

package maze

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaultmaze-project/vaultmaze/internal/guardian"
)

// AdaptiveScheduler shifts the maze on a cadence that tightens as the threat
// level rises. A tick that arrives while the previous shift is still running
// is silently skipped; the busy guard is a mutex, not a boolean.
type AdaptiveScheduler struct {
	logger zerolog.Logger
	engine *Engine
	base   time.Duration
	min    time.Duration

	busy sync.Mutex

	mu    sync.Mutex
	rng   *rand.Rand
	ticks int64
	skips int64

	wg sync.WaitGroup
}

// NewAdaptiveScheduler creates a scheduler. Non-positive intervals fall back
// to 30s base and 5s floor.
func NewAdaptiveScheduler(engine *Engine, base, min time.Duration, logger zerolog.Logger) *AdaptiveScheduler {
	if base <= 0 {
		base = 30 * time.Second
	}
	if min <= 0 {
		min = 5 * time.Second
	}
	return &AdaptiveScheduler{
		logger: logger.With().Str("component", "maze_scheduler").Logger(),
		engine: engine,
		base:   base,
		min:    min,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// cadence returns the interval until the next shift for a threat band. The
// multiplier shrinks as the level rises; the floor keeps shifts from
// thrashing under sustained critical traffic.
func (s *AdaptiveScheduler) cadence(level guardian.ThreatLevel) time.Duration {
	mult := 1.0
	switch level {
	case guardian.ThreatMedium:
		mult = 0.7
	case guardian.ThreatHigh:
		mult = 0.4
	case guardian.ThreatCritical:
		mult = 0.1
	}
	interval := time.Duration(float64(s.base) * mult)
	if interval < s.min {
		interval = s.min
	}
	return interval
}

// Start launches the scheduling loop. The loop re-reads the threat level on
// every tick so a level change takes effect at the next interval. Cancel the
// context to stop; an in-flight shift completes first.
func (s *AdaptiveScheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			interval := s.cadence(s.engine.ThreatLevel())
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
				s.shift(s.engine.ThreatLevel())
			}
		}
	}()
	s.logger.Info().Dur("base_interval", s.base).Msg("adaptive scheduler started")
}

// Wait blocks until the scheduling loop has exited.
func (s *AdaptiveScheduler) Wait() {
	s.wg.Wait()
}

// shift performs one maze mutation appropriate to the threat level. Skipped
// entirely if the previous shift still holds the busy guard.
func (s *AdaptiveScheduler) shift(level guardian.ThreatLevel) {
	if !s.busy.TryLock() {
		s.mu.Lock()
		s.skips++
		s.mu.Unlock()
		s.logger.Debug().Msg("shift skipped, previous still running")
		return
	}
	defer s.busy.Unlock()

	s.mu.Lock()
	s.ticks++
	roll := s.rng.Float64()
	s.mu.Unlock()

	switch level {
	case guardian.ThreatCritical:
		s.engine.Reconfigure()
	case guardian.ThreatHigh:
		if roll < 0.5 {
			s.engine.Reconfigure()
		} else {
			s.rotateRandomLayer()
		}
	case guardian.ThreatMedium:
		if roll < 0.4 {
			s.rotateRandomLayer()
		} else {
			s.engine.RelocateHoneypots()
		}
	default:
		if roll < 0.3 {
			s.engine.RelocateHoneypots()
		} else {
			s.engine.RepositionTraps()
		}
	}
}

func (s *AdaptiveScheduler) rotateRandomLayer() {
	s.mu.Lock()
	n := s.rng.Intn(LayerCount)
	s.mu.Unlock()
	s.engine.RotateLayer(n)
}

// Stats returns tick counters.
func (s *AdaptiveScheduler) Stats() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]int64{
		"ticks": s.ticks,
		"skips": s.skips,
	}
}

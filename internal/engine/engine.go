// Package engine wires the deception stack together: guardian scoring,
// honeytoken generation, the maze router and its scheduler, the one-way
// boundary, the audit trail, and the event bus they all feed.
package engine

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaultmaze-project/vaultmaze/internal/audit"
	"github.com/vaultmaze-project/vaultmaze/internal/core"
	"github.com/vaultmaze-project/vaultmaze/internal/guardian"
	"github.com/vaultmaze-project/vaultmaze/internal/honeytoken"
	"github.com/vaultmaze-project/vaultmaze/internal/maze"
	"github.com/vaultmaze-project/vaultmaze/internal/oneway"
)

const ingressDurable = "vaultmaze-attack-ingress"

// Engine owns every component and their lifecycles.
type Engine struct {
	Config    *core.Config
	Logger    zerolog.Logger
	Bus       *core.EventBus
	Pipeline  *core.AlertPipeline
	Guardian  *guardian.Guardian
	Tokens    *honeytoken.Service
	Maze      *maze.Engine
	Scheduler *maze.AdaptiveScheduler
	OneWay    *oneway.Service
	Audit     *audit.Store

	dedup       *core.EventDedup
	webhooks    *core.WebhookDispatcher
	batcher     *core.AlertBatcher
	escalation  *core.EscalationManager
	stopCleanup func()

	configPath string

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds the full component graph from config. The event bus is not
// started here; Start owns everything with external side effects.
func New(cfg *core.Config) (*Engine, error) {
	var logger zerolog.Logger
	if cfg.Logging.Format == "json" {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}

	switch cfg.LogLevel() {
	case "debug":
		logger = logger.Level(zerolog.DebugLevel)
	case "warn":
		logger = logger.Level(zerolog.WarnLevel)
	case "error":
		logger = logger.Level(zerolog.ErrorLevel)
	default:
		logger = logger.Level(zerolog.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		Config:   cfg,
		Logger:   logger.With().Str("component", "engine").Logger(),
		Pipeline: core.NewAlertPipeline(logger, cfg.Alerts.MaxStore),
		dedup:    core.NewEventDedup(30*time.Second, 10000),
		ctx:      ctx,
		cancel:   cancel,
	}

	var recorder oneway.ExportRecorder
	if cfg.Audit.Enabled {
		store, err := audit.Open(cfg.Audit.Path, logger)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("opening audit store: %w", err)
		}
		e.Audit = store
		recorder = store
	}

	sink := core.EventSinkFunc(e.emit)

	e.Guardian = guardian.New(cfg.Guardian, logger)
	e.Tokens = honeytoken.NewService(cfg.Honeytoken, logger)
	e.Maze = maze.NewEngine(e.Guardian, e.Tokens, sink, logger)
	e.Scheduler = maze.NewAdaptiveScheduler(e.Maze, cfg.Maze.ShiftBaseInterval, cfg.Maze.ShiftMinInterval, logger)
	e.OneWay = oneway.NewService(cfg.OneWay, sink, recorder, logger)

	if cfg.Alerts.EnableConsole {
		e.Pipeline.AddHandler(func(alert *core.Alert) {
			e.Logger.Warn().
				Str("alert_id", alert.ID).
				Str("component", alert.Component).
				Str("severity", alert.Severity.String()).
				Str("title", alert.Title).
				Str("description", alert.Description).
				Msg("SECURITY ALERT")
		})
	}

	if len(cfg.Alerts.WebhookURLs) > 0 {
		e.webhooks = core.NewWebhookDispatcher(logger, core.DefaultWebhookRetryConfig())
		urls := cfg.Alerts.WebhookURLs
		e.batcher = core.NewAlertBatcher(logger, cfg.Alerts.Batch)
		e.batcher.AddHandler(func(batch *core.BatchedNotification) {
			payload := map[string]interface{}{
				"batch_id":         batch.BatchID,
				"component":        batch.Component,
				"source_ip":        batch.SourceIP,
				"alert_count":      batch.AlertCount,
				"highest_severity": batch.HighestSev.String(),
				"severity_counts":  batch.SeverityCounts,
				"sample_alert_ids": batch.SampleAlertIDs,
				"first_seen":       batch.FirstSeen,
				"last_seen":        batch.LastSeen,
			}
			for _, url := range urls {
				e.webhooks.Enqueue(url, payload, nil)
			}
		})
		e.Pipeline.AddHandler(func(alert *core.Alert) {
			if e.batcher.Ingest(alert) {
				return
			}
			payload := map[string]interface{}{
				"id":          alert.ID,
				"component":   alert.Component,
				"type":        alert.Type,
				"severity":    alert.Severity.String(),
				"title":       alert.Title,
				"description": alert.Description,
				"timestamp":   alert.Timestamp,
			}
			for _, url := range urls {
				e.webhooks.Enqueue(url, payload, nil)
			}
		})
	}

	if cfg.Alerts.Escalation.Enabled {
		e.escalation = core.NewEscalationManager(logger, cfg.Alerts.Escalation, e.Pipeline)
		e.Pipeline.AddHandler(func(alert *core.Alert) {
			if alert.Type != "escalation" {
				e.escalation.Track(alert)
			}
		})
	}

	return e, nil
}

// emit is the shared event sink. Deduped events go to the audit trail, the
// bus, and (for critical ones) the alert pipeline.
func (e *Engine) emit(event *core.SecurityEvent) {
	if e.dedup.IsDuplicate(event) {
		return
	}

	if e.Audit != nil {
		if err := e.Audit.RecordEvent(event); err != nil {
			e.Logger.Error().Err(err).Str("event_id", event.ID).Msg("event not persisted")
		}
	}

	if e.Bus != nil && e.Bus.IsConnected() {
		if err := e.Bus.PublishEvent(event); err != nil {
			e.Logger.Error().Err(err).Str("event_id", event.ID).Msg("event not published")
		}
	}

	if event.Severity >= core.SeverityCritical {
		alert := core.NewAlert(event,
			fmt.Sprintf("critical %s from %s", event.Type, event.Component),
			event.Summary)
		e.Pipeline.Process(alert)
	}
}

// Start brings up the event bus, subscribes to attack ingress, and starts
// the maze shift scheduler.
func (e *Engine) Start() error {
	e.Logger.Info().Msg("starting vaultmaze engine")

	bus, err := core.NewEventBus(&e.Config.Bus, e.Logger)
	if err != nil {
		return fmt.Errorf("starting event bus: %w", err)
	}
	e.Bus = bus

	e.Pipeline.AddHandler(func(alert *core.Alert) {
		if err := e.Bus.PublishAlert(alert); err != nil {
			e.Logger.Error().Err(err).Str("alert_id", alert.ID).Msg("alert not published")
		}
	})

	if err := e.Bus.SubscribeToIngress("attack", ingressDurable, func(data []byte) {
		attack, err := core.UnmarshalAttackDescriptor(data)
		if err != nil {
			e.Logger.Warn().Err(err).Msg("undecodable attack on ingress")
			return
		}
		decision := e.Maze.Route(attack)
		e.Logger.Debug().
			Str("attack_id", attack.ID).
			Str("source_ip", attack.SourceIP).
			Int("layer", decision.Layer).
			Bool("allowed", decision.Allowed).
			Msg("attack routed")
	}); err != nil {
		return fmt.Errorf("subscribing to attack ingress: %w", err)
	}

	e.Scheduler.Start(e.ctx)
	e.stopCleanup = e.dedup.StartCleanup(time.Minute)

	e.Logger.Info().
		Int("maze_layers", maze.LayerCount).
		Bool("audit", e.Audit != nil).
		Msg("vaultmaze engine started")
	return nil
}

// SetConfigPath records where the config was loaded from, for hot reload.
func (e *Engine) SetConfigPath(path string) {
	e.configPath = path
}

// Reload re-reads the config file and applies the hot-reloadable subset:
// guardian tuning and the one-way boundary limits. Bus, maze cadence, and
// logging format need a restart. Returns a list of what changed.
func (e *Engine) Reload() ([]string, error) {
	if e.configPath == "" {
		return nil, fmt.Errorf("no config path set, cannot reload")
	}
	newCfg, err := core.LoadConfig(e.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	var changes []string

	if newCfg.Guardian.LearningRate != e.Config.Guardian.LearningRate {
		e.Guardian.SetLearningRate(newCfg.Guardian.LearningRate)
		e.Config.Guardian.LearningRate = newCfg.Guardian.LearningRate
		changes = append(changes, fmt.Sprintf("guardian.learning_rate -> %v", newCfg.Guardian.LearningRate))
	}
	if newCfg.Guardian.ConfidenceThreshold != e.Config.Guardian.ConfidenceThreshold {
		e.Guardian.SetConfidenceThreshold(newCfg.Guardian.ConfidenceThreshold)
		e.Config.Guardian.ConfidenceThreshold = newCfg.Guardian.ConfidenceThreshold
		changes = append(changes, fmt.Sprintf("guardian.confidence_threshold -> %v", newCfg.Guardian.ConfidenceThreshold))
	}
	if newCfg.OneWay != e.Config.OneWay {
		e.OneWay.UpdateConfig(newCfg.OneWay)
		e.Config.OneWay = e.OneWay.Config()
		changes = append(changes, "oneway limits reloaded")
	}
	if newCfg.LogLevel() != e.Config.LogLevel() {
		e.Config.Logging.Level = newCfg.Logging.Level
		changes = append(changes, "logging.level -> "+newCfg.LogLevel()+" (applies on restart)")
	}

	e.Logger.Info().Int("changes", len(changes)).Msg("configuration reloaded")
	return changes, nil
}

// Run starts the engine and blocks until a shutdown signal arrives. SIGHUP
// triggers a config reload instead of stopping.
func (e *Engine) Run() error {
	if err := e.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				changes, err := e.Reload()
				if err != nil {
					e.Logger.Error().Err(err).Msg("config reload failed")
					continue
				}
				for _, c := range changes {
					e.Logger.Info().Str("change", c).Msg("config change applied")
				}
				continue
			}
			e.Logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
			return e.Shutdown()
		case <-e.ctx.Done():
			e.Logger.Info().Msg("context cancelled")
			return e.Shutdown()
		}
	}
}

// Shutdown stops everything in reverse dependency order. An in-flight maze
// shift completes before the scheduler exits.
func (e *Engine) Shutdown() error {
	e.Logger.Info().Msg("shutting down vaultmaze engine")
	e.cancel()
	e.Scheduler.Wait()

	if e.stopCleanup != nil {
		e.stopCleanup()
	}
	if e.escalation != nil {
		e.escalation.Stop()
	}
	if e.batcher != nil {
		e.batcher.Stop()
	}
	if e.webhooks != nil {
		e.webhooks.Stop()
	}
	if e.Bus != nil {
		if err := e.Bus.Close(); err != nil {
			e.Logger.Error().Err(err).Msg("error closing event bus")
		}
	}
	if e.Audit != nil {
		if err := e.Audit.Close(); err != nil {
			e.Logger.Error().Err(err).Msg("error closing audit store")
		}
	}

	e.Logger.Info().Msg("vaultmaze engine stopped")
	return nil
}

// Context returns the engine's root context.
func (e *Engine) Context() context.Context {
	return e.ctx
}

// Status returns a point-in-time snapshot of every component's counters.
func (e *Engine) Status() map[string]interface{} {
	status := map[string]interface{}{
		"threat_level": string(e.Maze.ThreatLevel()),
		"maze":         e.Maze.Metrics(),
		"scheduler":    e.Scheduler.Stats(),
		"guardian":     e.Guardian.Intelligence(),
		"honeytokens":  e.Tokens.Stats(),
		"oneway":       e.OneWay.Stats(),
		"alerts":       e.Pipeline.Count(),
	}
	if e.Bus != nil {
		status["bus"] = e.Bus.GetMetrics()
	}
	if e.batcher != nil {
		status["alert_batches"] = e.batcher.Stats()
	}
	if e.escalation != nil {
		status["escalation"] = e.escalation.Stats()
	}
	return status
}

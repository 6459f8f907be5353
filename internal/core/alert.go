package core

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AlertStatus represents the triage state of an alert.
type AlertStatus int

const (
	AlertStatusOpen AlertStatus = iota
	AlertStatusAcknowledged
	AlertStatusResolved
	AlertStatusFalsePositive
)

func (s AlertStatus) String() string {
	switch s {
	case AlertStatusOpen:
		return "OPEN"
	case AlertStatusAcknowledged:
		return "ACKNOWLEDGED"
	case AlertStatusResolved:
		return "RESOLVED"
	case AlertStatusFalsePositive:
		return "FALSE_POSITIVE"
	default:
		return "UNKNOWN"
	}
}

func (s AlertStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ParseAlertStatus converts a user-supplied string into an AlertStatus.
// Accepts "ACK" as shorthand for ACKNOWLEDGED. Case-insensitive.
func ParseAlertStatus(s string) (AlertStatus, bool) {
	switch strings.ToUpper(s) {
	case "OPEN":
		return AlertStatusOpen, true
	case "ACKNOWLEDGED", "ACK":
		return AlertStatusAcknowledged, true
	case "RESOLVED":
		return AlertStatusResolved, true
	case "FALSE_POSITIVE":
		return AlertStatusFalsePositive, true
	default:
		return AlertStatusOpen, false
	}
}

// Alert is a triaged security finding derived from one or more events.
type Alert struct {
	ID          string                 `json:"id"`
	Component   string                 `json:"component"`
	Type        string                 `json:"type"`
	Severity    Severity               `json:"severity"`
	Status      AlertStatus            `json:"status"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	EventIDs    []string               `json:"event_ids"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Mitigations []string               `json:"mitigations,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// NewAlert creates an alert from a source event. Severity, component and type
// are inherited from the event.
func NewAlert(event *SecurityEvent, title, description string) *Alert {
	return &Alert{
		ID:          uuid.New().String(),
		Component:   event.Component,
		Type:        event.Type,
		Severity:    event.Severity,
		Status:      AlertStatusOpen,
		Title:       title,
		Description: description,
		EventIDs:    []string{event.ID},
		Metadata:    make(map[string]interface{}),
		Timestamp:   time.Now().UTC(),
	}
}

// Marshal serializes the alert to JSON.
func (a *Alert) Marshal() ([]byte, error) {
	return json.Marshal(a)
}

// AlertPipeline stores alerts in memory and fans them out to registered
// handlers (console, bus, webhooks).
type AlertPipeline struct {
	logger   zerolog.Logger
	mu       sync.RWMutex
	alerts   []*Alert
	byID     map[string]*Alert
	handlers []func(*Alert)
	maxStore int
}

// NewAlertPipeline creates a pipeline. maxStore caps the in-memory alert
// store; non-positive values use the default of 10000.
func NewAlertPipeline(logger zerolog.Logger, maxStore int) *AlertPipeline {
	if maxStore <= 0 {
		maxStore = 10000
	}
	return &AlertPipeline{
		logger:   logger.With().Str("component", "alert_pipeline").Logger(),
		alerts:   make([]*Alert, 0, 256),
		byID:     make(map[string]*Alert),
		maxStore: maxStore,
	}
}

// AddHandler registers a handler invoked synchronously for every alert.
func (p *AlertPipeline) AddHandler(h func(*Alert)) {
	p.mu.Lock()
	p.handlers = append(p.handlers, h)
	p.mu.Unlock()
}

// Process stores the alert and invokes all handlers.
func (p *AlertPipeline) Process(alert *Alert) {
	p.mu.Lock()
	if len(p.alerts) >= p.maxStore {
		// Drop the oldest 10% when full.
		drop := p.maxStore / 10
		if drop < 1 {
			drop = 1
		}
		for _, old := range p.alerts[:drop] {
			delete(p.byID, old.ID)
		}
		p.alerts = p.alerts[drop:]
	}
	p.alerts = append(p.alerts, alert)
	p.byID[alert.ID] = alert
	handlers := make([]func(*Alert), len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.Unlock()

	for _, h := range handlers {
		h(alert)
	}
}

// Count returns the number of stored alerts.
func (p *AlertPipeline) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.alerts)
}

// GetAlerts returns stored alerts at or above minSeverity, most recent first,
// up to limit.
func (p *AlertPipeline) GetAlerts(minSeverity Severity, limit int) []*Alert {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*Alert, 0, limit)
	for i := len(p.alerts) - 1; i >= 0 && len(result) < limit; i-- {
		if p.alerts[i].Severity >= minSeverity {
			result = append(result, p.alerts[i])
		}
	}
	return result
}

// GetAlertByID returns the alert with the given ID, or nil.
func (p *AlertPipeline) GetAlertByID(id string) *Alert {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.byID[id]
}

// UpdateAlertStatus transitions an alert to a new status.
func (p *AlertPipeline) UpdateAlertStatus(id string, status AlertStatus) (*Alert, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	alert, ok := p.byID[id]
	if !ok {
		return nil, false
	}
	alert.Status = status
	return alert, true
}

// DeleteAlert removes an alert from the store.
func (p *AlertPipeline) DeleteAlert(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byID[id]; !ok {
		return false
	}
	delete(p.byID, id)
	for i, a := range p.alerts {
		if a.ID == id {
			p.alerts = append(p.alerts[:i], p.alerts[i+1:]...)
			break
		}
	}
	return true
}

// ClearAlerts removes all stored alerts and returns how many were dropped.
func (p *AlertPipeline) ClearAlerts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.alerts)
	p.alerts = p.alerts[:0]
	p.byID = make(map[string]*Alert)
	return n
}

package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// ---------------------------------------------------------------------------
// webhook.go — reliable webhook delivery with exponential backoff, a dead
// letter buffer, and a per-URL circuit breaker.
//
// Operators depend on webhook notifications reaching PagerDuty/Slack/etc.
// A transient 503 from Slack shouldn't silently drop a CRITICAL alert.
// ---------------------------------------------------------------------------

// WebhookDelivery represents a single webhook delivery attempt.
type WebhookDelivery struct {
	ID        string                 `json:"id"`
	URL       string                 `json:"url"`
	Payload   map[string]interface{} `json:"payload"`
	Headers   map[string]string      `json:"headers,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	Attempts  int                    `json:"attempts"`
	LastError string                 `json:"last_error,omitempty"`
	Status    string                 `json:"status"` // "pending", "delivered", "dead_letter"
}

// DeadLetterEntry is a failed delivery preserved for inspection.
type DeadLetterEntry struct {
	Delivery  WebhookDelivery `json:"delivery"`
	FailedAt  time.Time       `json:"failed_at"`
	LastError string          `json:"last_error"`
}

// WebhookRetryConfig controls retry behavior.
type WebhookRetryConfig struct {
	MaxRetries     int           `yaml:"max_retries" json:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	QueueSize      int           `yaml:"queue_size" json:"queue_size"`
	Workers        int           `yaml:"workers" json:"workers"`
	CircuitBreaker int           `yaml:"circuit_breaker_threshold" json:"circuit_breaker_threshold"`
	CircuitPause   time.Duration `yaml:"circuit_pause" json:"circuit_pause"`
}

// DefaultWebhookRetryConfig returns sane defaults.
func DefaultWebhookRetryConfig() WebhookRetryConfig {
	return WebhookRetryConfig{
		MaxRetries:     5,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		QueueSize:      1000,
		Workers:        4,
		CircuitBreaker: 5,
		CircuitPause:   60 * time.Second,
	}
}

// WebhookDispatcher manages reliable webhook delivery.
type WebhookDispatcher struct {
	logger     zerolog.Logger
	cfg        WebhookRetryConfig
	queue      chan *WebhookDelivery
	deadLetter []*DeadLetterEntry
	dlMu       sync.RWMutex
	maxDL      int

	cbMu     sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWebhookDispatcher creates a dispatcher with background workers.
func NewWebhookDispatcher(logger zerolog.Logger, cfg WebhookRetryConfig) *WebhookDispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &WebhookDispatcher{
		logger:     logger.With().Str("component", "webhook_dispatcher").Logger(),
		cfg:        cfg,
		queue:      make(chan *WebhookDelivery, cfg.QueueSize),
		deadLetter: make([]*DeadLetterEntry, 0, 100),
		maxDL:      500,
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
		ctx:        ctx,
		cancel:     cancel,
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	d.logger.Info().Int("workers", workers).Int("queue_size", cfg.QueueSize).Msg("webhook dispatcher started")
	return d
}

// Enqueue adds a webhook delivery to the async queue.
// Returns immediately. Delivery happens in background with retries.
func (d *WebhookDispatcher) Enqueue(url string, payload map[string]interface{}, headers map[string]string) string {
	delivery := &WebhookDelivery{
		ID:        uuid.New().String(),
		URL:       url,
		Payload:   payload,
		Headers:   headers,
		CreatedAt: time.Now().UTC(),
		Status:    "pending",
	}

	select {
	case d.queue <- delivery:
		d.logger.Debug().Str("id", delivery.ID).Str("url", url).Msg("webhook enqueued")
	default:
		d.logger.Warn().Str("url", url).Msg("webhook queue full — delivery dropped")
		d.addDeadLetter(delivery, "queue full — delivery dropped")
	}
	return delivery.ID
}

// GetDeadLetters returns failed deliveries for inspection.
func (d *WebhookDispatcher) GetDeadLetters(limit int) []*DeadLetterEntry {
	d.dlMu.RLock()
	defer d.dlMu.RUnlock()

	if limit <= 0 || limit > len(d.deadLetter) {
		limit = len(d.deadLetter)
	}
	result := make([]*DeadLetterEntry, 0, limit)
	start := len(d.deadLetter) - limit
	if start < 0 {
		start = 0
	}
	for i := start; i < len(d.deadLetter); i++ {
		result = append(result, d.deadLetter[i])
	}
	return result
}

// RetryDeadLetter re-enqueues a dead letter entry by ID.
func (d *WebhookDispatcher) RetryDeadLetter(id string) bool {
	d.dlMu.Lock()
	defer d.dlMu.Unlock()

	for i, dl := range d.deadLetter {
		if dl.Delivery.ID == id {
			dl.Delivery.Attempts = 0
			dl.Delivery.Status = "pending"
			dl.Delivery.LastError = ""
			select {
			case d.queue <- &dl.Delivery:
				d.deadLetter = append(d.deadLetter[:i], d.deadLetter[i+1:]...)
				return true
			default:
				return false
			}
		}
	}
	return false
}

// Stats returns dispatcher statistics.
func (d *WebhookDispatcher) Stats() map[string]interface{} {
	d.dlMu.RLock()
	dlCount := len(d.deadLetter)
	d.dlMu.RUnlock()

	d.cbMu.Lock()
	openCircuits := 0
	for _, cb := range d.breakers {
		if cb.State() == gobreaker.StateOpen {
			openCircuits++
		}
	}
	d.cbMu.Unlock()

	return map[string]interface{}{
		"queue_depth":    len(d.queue),
		"queue_capacity": d.cfg.QueueSize,
		"dead_letters":   dlCount,
		"open_circuits":  openCircuits,
		"workers":        d.cfg.Workers,
		"max_retries":    d.cfg.MaxRetries,
	}
}

// Stop gracefully shuts down the dispatcher.
func (d *WebhookDispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
	d.logger.Info().Int("dead_letters", len(d.deadLetter)).Msg("webhook dispatcher stopped")
}

func (d *WebhookDispatcher) worker() {
	defer d.wg.Done()
	client := &http.Client{Timeout: 15 * time.Second}

	for {
		select {
		case <-d.ctx.Done():
			return
		case delivery, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(client, delivery)
		}
	}
}

// breakerFor returns the circuit breaker for a URL, creating it on first use.
func (d *WebhookDispatcher) breakerFor(url string) *gobreaker.CircuitBreaker {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	if cb, ok := d.breakers[url]; ok {
		return cb
	}
	threshold := uint32(d.cfg.CircuitBreaker)
	if threshold == 0 {
		threshold = 5
	}
	logger := d.logger
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        url,
		MaxRequests: 1,
		Timeout:     d.cfg.CircuitPause,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("url", name).Str("from", from.String()).Str("to", to.String()).Msg("webhook circuit state changed")
		},
	})
	d.breakers[url] = cb
	return cb
}

func (d *WebhookDispatcher) deliver(client *http.Client, delivery *WebhookDelivery) {
	cb := d.breakerFor(delivery.URL)

	data, err := json.Marshal(delivery.Payload)
	if err != nil {
		delivery.LastError = fmt.Sprintf("marshal error: %v", err)
		d.addDeadLetter(delivery, delivery.LastError)
		return
	}

	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		delivery.Attempts = attempt + 1

		result, err := cb.Execute(func() (interface{}, error) {
			return d.post(client, delivery, data)
		})
		if err == nil {
			status := result.(int)
			delivery.Status = "delivered"
			d.logger.Debug().
				Str("id", delivery.ID).
				Str("url", delivery.URL).
				Int("attempts", delivery.Attempts).
				Int("status", status).
				Msg("webhook delivered")
			return
		}

		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			delivery.LastError = "circuit breaker open for URL"
			d.addDeadLetter(delivery, delivery.LastError)
			return
		}

		var pe permanentError
		if ok := asPermanent(err, &pe); ok {
			delivery.LastError = pe.Error()
			d.addDeadLetter(delivery, delivery.LastError)
			return
		}

		delivery.LastError = err.Error()
		if attempt < d.cfg.MaxRetries {
			d.backoff(attempt)
		}
	}

	d.addDeadLetter(delivery, delivery.LastError)
}

// permanentError marks a delivery failure that retrying cannot fix (4xx).
type permanentError struct{ msg string }

func (e permanentError) Error() string { return e.msg }

func asPermanent(err error, target *permanentError) bool {
	pe, ok := err.(permanentError)
	if ok {
		*target = pe
	}
	return ok
}

// post performs a single delivery attempt. Returns the HTTP status on
// success, a permanentError on non-retryable 4xx, or a plain error otherwise.
func (d *WebhookDispatcher) post(client *http.Client, delivery *WebhookDelivery, data []byte) (int, error) {
	req, err := http.NewRequestWithContext(d.ctx, "POST", delivery.URL, bytes.NewReader(data))
	if err != nil {
		return 0, permanentError{msg: fmt.Sprintf("request creation error: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "vaultmaze-webhook-dispatcher/1.0")
	req.Header.Set("X-VaultMaze-Delivery-ID", delivery.ID)
	req.Header.Set("X-VaultMaze-Attempt", fmt.Sprintf("%d", delivery.Attempts))
	for k, v := range delivery.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, nil
	}

	// Retry on 5xx and 429, dead-letter on other 4xx.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
		return 0, permanentError{msg: fmt.Sprintf("client error: HTTP %d", resp.StatusCode)}
	}
	return 0, fmt.Errorf("server error: HTTP %d", resp.StatusCode)
}

func (d *WebhookDispatcher) backoff(attempt int) {
	delay := time.Duration(float64(d.cfg.InitialBackoff) * math.Pow(2, float64(attempt)))
	if delay > d.cfg.MaxBackoff {
		delay = d.cfg.MaxBackoff
	}
	select {
	case <-time.After(delay):
	case <-d.ctx.Done():
	}
}

func (d *WebhookDispatcher) addDeadLetter(delivery *WebhookDelivery, reason string) {
	delivery.Status = "dead_letter"
	d.dlMu.Lock()
	if len(d.deadLetter) >= d.maxDL {
		d.deadLetter = d.deadLetter[d.maxDL/10:]
	}
	d.deadLetter = append(d.deadLetter, &DeadLetterEntry{
		Delivery:  *delivery,
		FailedAt:  time.Now().UTC(),
		LastError: reason,
	})
	d.dlMu.Unlock()
	d.logger.Warn().
		Str("id", delivery.ID).
		Str("url", delivery.URL).
		Int("attempts", delivery.Attempts).
		Str("error", reason).
		Msg("webhook moved to dead letter")
}

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/opsflow/backend/internal/application/integration"
	"github.com/opsflow/backend/internal/domain/shared"
)

const (
	defaultTimeout = 5 * time.Second
	// sentTTL bounds how long an event id counts as already delivered.
	sentTTL = 24 * time.Hour
)

// Emitter posts event envelopes to the configured endpoint. It never
// raises: every failure path logs a warning and reports false. Repeated
// event ids short-circuit through the idempotency store so an event goes
// out at most once.
type Emitter struct {
	url    string
	client *http.Client
	sent   shared.IdempotencyStore
	logger *zap.Logger
}

// NewEmitter creates an Emitter. An empty URL disables sending.
func NewEmitter(url string, timeout time.Duration, sent shared.IdempotencyStore, logger *zap.Logger) *Emitter {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Emitter{
		url:    url,
		client: &http.Client{Timeout: timeout},
		sent:   sent,
		logger: logger,
	}
}

// Emit sends one envelope. True means the send was accepted with a 2xx
// status, or the event id was already delivered earlier.
func (e *Emitter) Emit(ctx context.Context, envelope integration.Envelope) bool {
	if e.url == "" {
		e.logger.Warn("webhook url not configured, dropping event",
			zap.String("event", envelope.Event))
		return false
	}
	if envelope.EventID == "" {
		e.logger.Warn("webhook envelope has no event id, dropping",
			zap.String("event", envelope.Event))
		return false
	}

	fresh, err := e.sent.MarkProcessed(ctx, envelope.EventID, sentTTL)
	if err != nil {
		e.logger.Warn("idempotency check failed",
			zap.String("event_id", envelope.EventID),
			zap.Error(err))
		return false
	}
	if !fresh {
		return true
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		e.logger.Warn("failed to serialise webhook envelope",
			zap.String("event_id", envelope.EventID),
			zap.Error(err))
		e.release(ctx, envelope.EventID)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		e.logger.Warn("failed to build webhook request", zap.Error(err))
		e.release(ctx, envelope.EventID)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Id", envelope.EventID)

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Warn("webhook send failed",
			zap.String("event_id", envelope.EventID),
			zap.Error(err))
		e.release(ctx, envelope.EventID)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e.logger.Warn("webhook endpoint rejected event",
			zap.String("event_id", envelope.EventID),
			zap.Int("status", resp.StatusCode))
		e.release(ctx, envelope.EventID)
		return false
	}
	return true
}

// release frees the claimed event id after a failed send so a later
// retry of the same event is not dropped as a duplicate.
func (e *Emitter) release(ctx context.Context, eventID string) {
	if err := e.sent.Forget(ctx, eventID); err != nil {
		e.logger.Warn("failed to release event id",
			zap.String("event_id", eventID),
			zap.Error(err))
	}
}

var _ integration.Emitter = (*Emitter)(nil)

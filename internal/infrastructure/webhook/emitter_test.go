package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opsflow/backend/internal/application/integration"
	"github.com/opsflow/backend/internal/infrastructure/cache"
)

func newTestEmitter(t *testing.T, url string) *Emitter {
	t.Helper()
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	return NewEmitter(url, time.Second, store, zap.NewNop())
}

func testEnvelope(eventID string) integration.Envelope {
	return integration.Envelope{
		Version:     "1.0",
		Event:       "order.created",
		EventID:     eventID,
		OccurredAt:  time.Now().UTC().Format(time.RFC3339),
		Environment: "test",
		Source:      "opsflow-backend",
		Data:        map[string]any{"order_type": "agentRestock"},
	}
}

func TestEmitPostsEnvelope(t *testing.T) {
	var got integration.Envelope
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Event-Id")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	emitter := newTestEmitter(t, srv.URL)
	ok := emitter.Emit(context.Background(), testEnvelope("evt-1"))

	assert.True(t, ok)
	assert.Equal(t, "evt-1", gotHeader)
	assert.Equal(t, "order.created", got.Event)
	assert.Equal(t, "test", got.Environment)
}

func TestEmitAtMostOncePerEventID(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	emitter := newTestEmitter(t, srv.URL)
	assert.True(t, emitter.Emit(context.Background(), testEnvelope("evt-1")))
	assert.True(t, emitter.Emit(context.Background(), testEnvelope("evt-1")))
	assert.Equal(t, 1, calls)
}

func TestEmitRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	emitter := newTestEmitter(t, srv.URL)
	assert.False(t, emitter.Emit(context.Background(), testEnvelope("evt-1")))
}

func TestEmitRetriesAfterRejectedSend(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	emitter := newTestEmitter(t, srv.URL)
	assert.False(t, emitter.Emit(context.Background(), testEnvelope("evt-1")))
	// The failed send released the event id, so the retry goes out.
	assert.True(t, emitter.Emit(context.Background(), testEnvelope("evt-1")))
	assert.Equal(t, 2, calls)
}

func TestEmitUnreachableEndpoint(t *testing.T) {
	emitter := newTestEmitter(t, "http://127.0.0.1:1")
	assert.False(t, emitter.Emit(context.Background(), testEnvelope("evt-1")))
}

func TestEmitMissingEventID(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
	}))
	defer srv.Close()

	emitter := newTestEmitter(t, srv.URL)
	assert.False(t, emitter.Emit(context.Background(), testEnvelope("")))
	assert.Zero(t, calls)
}

func TestEmitWithoutURL(t *testing.T) {
	emitter := newTestEmitter(t, "")
	assert.False(t, emitter.Emit(context.Background(), testEnvelope("evt-1")))
}

package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-storefront-sse/internal/infrastructure/hub"
	"go-storefront-sse/internal/infrastructure/logger"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingBroadcaster) Broadcast(event any) hub.BroadcastResult {
	b, err := json.Marshal(event)
	if err != nil {
		return hub.BroadcastResult{Err: err}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, string(b))
	return hub.BroadcastResult{Recipients: 1, Delivered: 1}
}

func (r *recordingBroadcaster) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		env     Envelope
		want    string
		outcome Outcome
	}{
		{
			name:    "structured object passes through",
			env:     Envelope{Kind: KindStructured, Body: []byte(`{"order":{"items":[{"quantity":2}]}}`)},
			want:    `{"order":{"items":[{"quantity":2}]}}`,
			outcome: OutcomeDirect,
		},
		{
			name:    "structured data member is not unwrapped",
			env:     Envelope{Kind: KindStructured, Body: []byte(`{"data":{"order":1},"id":"x"}`)},
			want:    `{"data":{"order":1},"id":"x"}`,
			outcome: OutcomeDirect,
		},
		{
			name:    "text cloud event is unwrapped",
			env:     Envelope{Kind: KindText, Body: []byte(`{"specversion":"1.0","type":"com.dapr.event.sent","data":{"order":{"items":[]}}}`)},
			want:    `{"order":{"items":[]}}`,
			outcome: OutcomeUnwrapped,
		},
		{
			name:    "text without data is the whole object",
			env:     Envelope{Kind: KindText, Body: []byte(`{"event_type":"cart_updated","order_id":1}`)},
			want:    `{"event_type":"cart_updated","order_id":1}`,
			outcome: OutcomeWhole,
		},
		{
			name:    "null data falls back to the whole object",
			env:     Envelope{Kind: KindText, Body: []byte(`{"data":null,"order_id":1}`)},
			want:    `{"data":null,"order_id":1}`,
			outcome: OutcomeWhole,
		},
		{
			name:    "unparseable text",
			env:     Envelope{Kind: KindText, Body: []byte(`not json`)},
			want:    `{}`,
			outcome: OutcomeMalformed,
		},
		{
			name:    "empty text",
			env:     Envelope{Kind: KindText},
			want:    `{}`,
			outcome: OutcomeMalformed,
		},
		{
			name:    "text null document",
			env:     Envelope{Kind: KindText, Body: []byte(`null`)},
			want:    `{}`,
			outcome: OutcomeMalformed,
		},
		{
			name:    "text array document is the whole document",
			env:     Envelope{Kind: KindText, Body: []byte(`[{"order":1}]`)},
			want:    `[{"order":1}]`,
			outcome: OutcomeWhole,
		},
		{
			name:    "array data member is unwrapped",
			env:     Envelope{Kind: KindText, Body: []byte(`{"data":[{"quantity":1}]}`)},
			want:    `[{"quantity":1}]`,
			outcome: OutcomeUnwrapped,
		},
		{
			name:    "string data member is unwrapped",
			env:     Envelope{Kind: KindText, Body: []byte(`{"data":"cart-updated"}`)},
			want:    `"cart-updated"`,
			outcome: OutcomeUnwrapped,
		},
		{
			name:    "empty object data member is unwrapped",
			env:     Envelope{Kind: KindText, Body: []byte(`{"data":{},"id":"x"}`)},
			want:    `{}`,
			outcome: OutcomeUnwrapped,
		},
		{
			name:    "false data falls back to the whole object",
			env:     Envelope{Kind: KindText, Body: []byte(`{"data":false,"order_id":7}`)},
			want:    `{"data":false,"order_id":7}`,
			outcome: OutcomeWhole,
		},
		{
			name:    "zero data falls back to the whole object",
			env:     Envelope{Kind: KindText, Body: []byte(`{"data":0.0,"order_id":7}`)},
			want:    `{"data":0.0,"order_id":7}`,
			outcome: OutcomeWhole,
		},
		{
			name:    "empty string data falls back to the whole object",
			env:     Envelope{Kind: KindText, Body: []byte(`{"data":"","order_id":7}`)},
			want:    `{"data":"","order_id":7}`,
			outcome: OutcomeWhole,
		},
		{
			name:    "structured array passes through",
			env:     Envelope{Kind: KindStructured, Body: []byte(`[{"order":1}]`)},
			want:    `[{"order":1}]`,
			outcome: OutcomeDirect,
		},
		{
			name:    "structured string passes through",
			env:     Envelope{Kind: KindStructured, Body: []byte(`"just a string"`)},
			want:    `"just a string"`,
			outcome: OutcomeDirect,
		},
		{
			name:    "structured invalid bytes",
			env:     Envelope{Kind: KindStructured, Body: []byte(`{"order":`)},
			want:    `{}`,
			outcome: OutcomeMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize(tt.env)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.JSONEq(t, tt.want, res.Event.String())
			if tt.outcome == OutcomeMalformed {
				assert.ErrorIs(t, res.Err, ErrMalformedEnvelope)
			} else {
				assert.NoError(t, res.Err)
			}
		})
	}
}

func TestKindFromContentType(t *testing.T) {
	assert.Equal(t, KindStructured, KindFromContentType("application/json"))
	assert.Equal(t, KindStructured, KindFromContentType("application/json; charset=utf-8"))
	assert.Equal(t, KindText, KindFromContentType("application/cloudevents+json"))
	assert.Equal(t, KindText, KindFromContentType("text/plain"))
	assert.Equal(t, KindText, KindFromContentType(""))
}

func TestService_IngestDirectObject(t *testing.T) {
	b := &recordingBroadcaster{}
	svc := NewService(b, logger.Nop(), nil)

	ack := svc.Ingest(context.Background(), "http", Envelope{
		Kind: KindStructured,
		Body: []byte(`{ "order": {"items":[{"quantity":2}]} }`),
	})

	assert.Equal(t, AckSuccess, ack.Status)
	assert.Equal(t, OutcomeDirect, ack.Outcome)
	require.Len(t, b.Events(), 1)
	assert.Equal(t, `{"order":{"items":[{"quantity":2}]}}`, b.Events()[0])
}

func TestService_IngestWrappedString(t *testing.T) {
	b := &recordingBroadcaster{}
	svc := NewService(b, logger.Nop(), nil)

	ack := svc.Ingest(context.Background(), "http", Envelope{
		Kind: KindText,
		Body: []byte(`{"data":{"order":{"items":[]}}}`),
	})

	assert.Equal(t, AckSuccess, ack.Status)
	require.Len(t, b.Events(), 1)
	assert.Equal(t, `{"order":{"items":[]}}`, b.Events()[0])
}

func TestService_IngestMalformedStillAcknowledges(t *testing.T) {
	b := &recordingBroadcaster{}
	svc := NewService(b, logger.Nop(), nil)

	ack := svc.Ingest(context.Background(), "http", Envelope{Kind: KindText, Body: []byte(`not json`)})

	assert.Equal(t, AckSuccess, ack.Status)
	assert.Equal(t, OutcomeMalformed, ack.Outcome)
	assert.Equal(t, []string{`{}`}, b.Events())
}

func TestService_EndToEndWithHub(t *testing.T) {
	h := hub.New(logger.Nop())
	svc := NewService(h, logger.Nop(), nil)

	a := newCapture("A")
	b := newCapture("B")
	require.NoError(t, h.Register(a))
	require.NoError(t, h.Register(b))

	svc.Ingest(context.Background(), "http", Envelope{
		Kind: KindStructured,
		Body: []byte(`{"order":{"items":[{"quantity":1},{"quantity":3}]}}`),
	})
	h.Unregister(a)
	svc.Ingest(context.Background(), "http", Envelope{
		Kind: KindText,
		Body: []byte(`{"data":{"order":{"items":[]}}}`),
	})

	assert.Equal(t, []string{
		`{"type":"connected"}`,
		`{"order":{"items":[{"quantity":1},{"quantity":3}]}}`,
	}, a.Frames())
	assert.Equal(t, []string{
		`{"type":"connected"}`,
		`{"order":{"items":[{"quantity":1},{"quantity":3}]}}`,
		`{"order":{"items":[]}}`,
	}, b.Frames())
}

// capture is a hub.Connection that records frames synchronously.
type capture struct {
	id     string
	mu     sync.Mutex
	state  hub.State
	frames []string
}

func newCapture(id string) *capture { return &capture{id: id} }

func (c *capture) ID() string               { return c.id }
func (c *capture) Type() string             { return "capture" }
func (c *capture) Context() context.Context { return context.Background() }
func (c *capture) IsClosed() bool           { return c.State() == hub.StateClosed }

func (c *capture) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, string(frame))
	return nil
}

func (c *capture) Activate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != hub.StateOpen {
		return false
	}
	c.state = hub.StateActive
	return true
}

func (c *capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = hub.StateClosed
	return nil
}

func (c *capture) State() hub.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *capture) Frames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

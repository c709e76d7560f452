package eventstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
	"git.home.luguber.info/inful/mdcompile/internal/logfields"
)

// Sink receives build events. Emitting never fails a build: sinks log their
// own errors.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// Noop discards events.
type Noop struct{}

func (Noop) Emit(context.Context, Event) {}

// Multi fans events out to several sinks in order.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, e)
		}
	}
}

// StoreSink appends events to a Store.
type StoreSink struct {
	Store Store
}

func (s StoreSink) Emit(ctx context.Context, e Event) {
	// Recording the end of a canceled build still matters.
	ctx = context.WithoutCancel(ctx)
	if err := s.Store.Append(ctx, e.BuildID(), e.Type(), e.Payload(), e.Metadata()); err != nil {
		slog.Warn("Failed to record build event", logfields.BuildID(e.BuildID()), slog.String("type", e.Type()), logfields.Error(err))
	}
}

// MemorySink keeps events in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (s *MemorySink) Emit(_ context.Context, e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns the events emitted so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Types returns the type of every event emitted so far.
func (s *MemorySink) Types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, len(s.events))
	for i, e := range s.events {
		types[i] = e.Type()
	}
	return types
}

// NATSPublisher publishes events on <subject>.<type>.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// envelope is the wire format of published events.
type envelope struct {
	BuildID   string            `json:"build_id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("mdcompile"), nats.Timeout(2*time.Second))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "connect to NATS").
			WithContext("url", url).
			Build()
	}
	slog.Info("NATS event publisher connected", slog.String("url", url), slog.String("subject", subject))
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

func (p *NATSPublisher) Emit(_ context.Context, e Event) {
	data, err := json.Marshal(envelope{
		BuildID:   e.BuildID(),
		Type:      e.Type(),
		Timestamp: e.Timestamp(),
		Payload:   e.Payload(),
		Metadata:  e.Metadata(),
	})
	if err == nil {
		err = p.conn.Publish(p.subject+"."+e.Type(), data)
	}
	if err != nil {
		slog.Warn("Failed to publish build event", logfields.BuildID(e.BuildID()), slog.String("type", e.Type()), logfields.Error(err))
	}
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

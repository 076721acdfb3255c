// Package notify delivers booking lifecycle events to users. Delivery is
// best-effort: a failed or missing delivery never fails the booking operation
// that produced it.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event names emitted by the booking engine.
const (
	EventBookingCreated   = "booking_created"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingDeclined  = "booking_declined"
	EventBookingCancelled = "booking_cancelled"
	EventBookingDone      = "booking_done"
)

// Message is one notification addressed to a single user.
type Message struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}

// Notifier fans a message out to a user. Implementations must not block the
// caller on slow consumers and must swallow delivery failures.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event string, payload map[string]any)
}

// Nop discards every notification. Used when no delivery channel is
// configured.
type Nop struct{}

func (Nop) Notify(context.Context, uuid.UUID, string, map[string]any) {}

// Recorder captures notifications in memory for tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(_ context.Context, userID uuid.UUID, event string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Message{
		ID:        uuid.New(),
		UserID:    userID,
		Event:     event,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
}

// Sent returns a copy of everything recorded so far.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.sent))
	copy(out, r.sent)
	return out
}

// SentTo returns the messages recorded for one user.
func (r *Recorder) SentTo(userID uuid.UUID) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.sent {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out
}

// HubNotifier persists each message and pushes it to connected WebSocket
// clients. Persistence failures are logged and dropped.
type HubNotifier struct {
	hub   *Hub
	store Store
	log   zerolog.Logger
}

func NewHubNotifier(hub *Hub, store Store, log zerolog.Logger) *HubNotifier {
	return &HubNotifier{hub: hub, store: store, log: log}
}

func (n *HubNotifier) Notify(ctx context.Context, userID uuid.UUID, event string, payload map[string]any) {
	msg := Message{
		ID:        uuid.New(),
		UserID:    userID,
		Event:     event,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	if n.store != nil {
		if err := n.store.Insert(ctx, &msg); err != nil {
			n.log.Error().Err(err).
				Str("user_id", userID.String()).
				Str("event", event).
				Msg("failed to persist notification")
		}
	}

	if n.hub != nil {
		n.hub.Push(msg)
	}
}

// Fanout delivers every message through each of its children in order.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, userID uuid.UUID, event string, payload map[string]any) {
	for _, n := range f {
		n.Notify(ctx, userID, event, payload)
	}
}

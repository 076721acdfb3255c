package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestClient(userID uuid.UUID) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Send:   make(chan []byte, 4),
	}
}

func TestHub_PushReachesOwnSessionsOnly(t *testing.T) {
	hub := NewHub()
	alice := uuid.New()
	bob := uuid.New()

	ca := newTestClient(alice)
	cb := newTestClient(bob)
	hub.Register(ca)
	hub.Register(cb)

	hub.Push(Message{ID: uuid.New(), UserID: alice, Event: EventBookingCreated})

	select {
	case data := <-ca.Send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("invalid payload: %v", err)
		}
		if msg.Event != EventBookingCreated {
			t.Errorf("expected event %q, got %q", EventBookingCreated, msg.Event)
		}
	case <-time.After(time.Second):
		t.Fatal("expected alice's session to receive the push")
	}

	select {
	case <-cb.Send:
		t.Fatal("bob must not receive alice's notification")
	default:
	}
}

func TestHub_PushFansOutToAllSessions(t *testing.T) {
	hub := NewHub()
	user := uuid.New()

	c1 := newTestClient(user)
	c2 := newTestClient(user)
	hub.Register(c1)
	hub.Register(c2)

	if got := hub.UserSessionCount(user); got != 2 {
		t.Fatalf("expected 2 sessions, got %d", got)
	}

	hub.Push(Message{ID: uuid.New(), UserID: user, Event: EventBookingConfirmed})

	for i, ch := range []chan []byte{c1.Send, c2.Send} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("session %d did not receive the push", i)
		}
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	user := uuid.New()
	c := newTestClient(user)
	hub.Register(c)

	hub.Unregister(c)

	if _, open := <-c.Send; open {
		t.Error("expected Send channel to be closed after unregister")
	}
	if got := hub.UserSessionCount(user); got != 0 {
		t.Errorf("expected 0 sessions, got %d", got)
	}

	// Double unregister must not panic.
	hub.Unregister(c)
}

func TestHub_PushSkipsFullBuffers(t *testing.T) {
	hub := NewHub()
	user := uuid.New()
	c := &Client{ID: uuid.NewString(), UserID: user, Send: make(chan []byte)}
	hub.Register(c)

	done := make(chan struct{})
	go func() {
		// Nobody reads c.Send; Push must not block.
		hub.Push(Message{ID: uuid.New(), UserID: user, Event: EventBookingDeclined})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Push blocked on a session with a full buffer")
	}
}

func TestHubNotifier_RecordsAndPushes(t *testing.T) {
	hub := NewHub()
	user := uuid.New()
	c := newTestClient(user)
	hub.Register(c)

	store := &memStore{}
	n := NewHubNotifier(hub, store, zerolog.Nop())

	n.Notify(context.Background(), user, EventBookingCreated, map[string]any{"serial": 3})

	if len(store.inserted) != 1 {
		t.Fatalf("expected 1 stored notification, got %d", len(store.inserted))
	}
	if store.inserted[0].Event != EventBookingCreated {
		t.Errorf("unexpected stored event %q", store.inserted[0].Event)
	}

	select {
	case <-c.Send:
	case <-time.After(time.Second):
		t.Fatal("expected push to connected session")
	}
}

type memStore struct {
	inserted []*Message
}

func (s *memStore) Insert(_ context.Context, msg *Message) error {
	s.inserted = append(s.inserted, msg)
	return nil
}

func (s *memStore) ListByUser(_ context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Message, int, error) {
	var out []*Message
	for _, m := range s.inserted {
		if m.UserID == userID && (!unreadOnly || !m.Read) {
			out = append(out, m)
		}
	}
	return out, len(out), nil
}

func (s *memStore) MarkRead(_ context.Context, id, userID uuid.UUID) (bool, error) {
	for _, m := range s.inserted {
		if m.ID == id && m.UserID == userID && !m.Read {
			m.Read = true
			return true, nil
		}
	}
	return false, nil
}

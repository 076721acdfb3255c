package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// AMQPNotifier publishes each notification onto a RabbitMQ queue so external
// workers (SMS, email, push gateways) can deliver it out-of-band. Publishing
// is fire-and-forget; failures are logged and dropped. One broker connection
// and channel are held across notifications and re-established on demand.
type AMQPNotifier struct {
	url   string
	queue string
	log   zerolog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPNotifier(url, queue string, log zerolog.Logger) *AMQPNotifier {
	return &AMQPNotifier{url: url, queue: queue, log: log}
}

// channel returns the cached publish channel, dialing the broker and
// declaring the durable queue when none is open. Callers hold n.mu.
func (n *AMQPNotifier) channel() (*amqp.Channel, error) {
	if n.ch != nil && n.conn != nil && !n.conn.IsClosed() && !n.ch.IsClosed() {
		return n.ch, nil
	}
	n.reset()

	conn, err := amqp.Dial(n.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(n.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	n.conn, n.ch = conn, ch
	return ch, nil
}

// reset drops the cached connection so the next notification re-dials.
// Callers hold n.mu.
func (n *AMQPNotifier) reset() {
	if n.ch != nil {
		n.ch.Close()
		n.ch = nil
	}
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
}

// Close releases the broker connection. Safe to call at shutdown.
func (n *AMQPNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset()
}

func (n *AMQPNotifier) Notify(ctx context.Context, userID uuid.UUID, event string, payload map[string]any) {
	body, err := json.Marshal(Message{
		ID:        uuid.New(),
		UserID:    userID,
		Event:     event,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		n.log.Error().Err(err).Str("event", event).Msg("marshal amqp notification")
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	ch, err := n.channel()
	if err != nil {
		n.log.Error().Err(err).Msg("connect amqp broker")
		return
	}

	err = ch.PublishWithContext(ctx, "", n.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		// Drop the cached channel; a stale broker session would otherwise
		// fail every subsequent notification.
		n.reset()
		n.log.Error().Err(err).Str("queue", n.queue).Msg("publish amqp notification")
	}
}

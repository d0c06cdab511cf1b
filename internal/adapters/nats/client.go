package natsadapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	nats "github.com/nats-io/nats.go"
)

// Connect dials the broker with exponential backoff so the service survives
// a broker that comes up slightly after it.
func Connect(ctx context.Context, url string) (*nats.Conn, error) {
	var conn *nats.Conn
	op := func() error {
		c, err := nats.Connect(url,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 15 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return conn, nil
}

// EventPublisher emits account lifecycle events on a single subject.
// Subscribers are decoupled, so publishes are fire-and-forget.
type EventPublisher struct {
	conn    *nats.Conn
	subject string
}

type userEvent struct {
	Event  string `json:"event"`
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Source string `json:"source,omitempty"`
	At     string `json:"at"`
}

func NewEventPublisher(conn *nats.Conn, subject string) *EventPublisher {
	return &EventPublisher{conn: conn, subject: subject}
}

func (p *EventPublisher) UserRegistered(ctx context.Context, userID, email, source string) error {
	return p.publish(userEvent{Event: "user_registered", UserID: userID, Email: email, Source: source})
}

func (p *EventPublisher) UserDeactivated(ctx context.Context, userID string) error {
	return p.publish(userEvent{Event: "user_deactivated", UserID: userID})
}

func (p *EventPublisher) publish(ev userEvent) error {
	ev.At = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject, data)
}

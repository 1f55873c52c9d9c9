package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Subjects for billing lifecycle events.
const (
	SubjectChargeCreated = "rentroll.charge.created"
	SubjectRunCompleted  = "rentroll.billing.run.completed"
)

// NATSPublisher publishes billing events to a NATS server.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Compile-time check that NATSPublisher implements Publisher.
var _ Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher connects to the given NATS URL.
func NewNATSPublisher(url string, logger *slog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("rentroll"))
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn, logger: logger}, nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	_ = p.conn.Drain()
}

// PublishChargeCreated emits a charge.created event.
func (p *NATSPublisher) PublishChargeCreated(_ context.Context, ev ChargeCreated) {
	p.publish(SubjectChargeCreated, ev)
}

// PublishRunCompleted emits a billing.run.completed event.
func (p *NATSPublisher) PublishRunCompleted(_ context.Context, ev RunCompleted) {
	p.publish(SubjectRunCompleted, ev)
}

func (p *NATSPublisher) publish(subject string, ev any) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("failed to encode event", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Error("failed to publish event", "subject", subject, "error", err)
	}
}

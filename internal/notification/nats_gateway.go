package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// NATSGateway publishes workflow events to a NATS subject per event type:
// <prefix>.<event_type>, e.g. notifications.hr.request_approved. Publish
// failures are logged and swallowed; notification delivery is best-effort by
// contract and must never fail a workflow transition.
type NATSGateway struct {
	conn          *nats.Conn
	subjectPrefix string
}

func NewNATSGateway(url, subjectPrefix string) (*NATSGateway, error) {
	conn, err := nats.Connect(url, nats.Name("hrflow-notifications"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if subjectPrefix == "" {
		subjectPrefix = "notifications.hr"
	}
	return &NATSGateway{conn: conn, subjectPrefix: subjectPrefix}, nil
}

func (g *NATSGateway) Notify(ctx context.Context, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Warn("notification: failed to marshal event",
			"event", event.EventType,
			"requestID", event.RequestID,
			"error", err)
		return
	}

	subject := fmt.Sprintf("%s.%s", g.subjectPrefix, event.EventType)
	if err := g.conn.Publish(subject, data); err != nil {
		slog.Warn("notification: publish failed",
			"subject", subject,
			"requestID", event.RequestID,
			"error", err)
	}
}

// Close drains the underlying connection.
func (g *NATSGateway) Close() error {
	return g.conn.Drain()
}

package notification

import (
	"context"
	"log/slog"
)

// LogGateway is the default Gateway: it records each event in the structured
// log and delivers nothing. Useful for development and as a safe fallback
// when no broker is configured.
type LogGateway struct{}

func NewLogGateway() *LogGateway {
	return &LogGateway{}
}

func (g *LogGateway) Notify(ctx context.Context, event Event) {
	slog.InfoContext(ctx, "workflow notification",
		"event", event.EventType,
		"requestID", event.RequestID,
		"recipients", len(event.Recipients),
	)
}

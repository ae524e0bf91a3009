package notification

import (
	"context"

	"github.com/google/uuid"
)

// EventType labels a workflow notification.
type EventType string

const (
	EventRequestSubmitted EventType = "request_submitted"
	EventApprovalRequired EventType = "approval_required"
	EventRequestApproved  EventType = "request_approved"
	EventRequestRejected  EventType = "request_rejected"
	EventRequestWithdrawn EventType = "request_withdrawn"
	EventStageEscalated   EventType = "stage_escalated"
	EventSLAWarning       EventType = "sla_warning"
	EventApprovalReminder EventType = "approval_reminder"
)

// Event is one workflow notification. Recipients are employee user IDs.
type Event struct {
	EventType  EventType      `json:"event_type"`
	CompanyID  uuid.UUID      `json:"company_id"`
	RequestID  uuid.UUID      `json:"request_id"`
	ActorID    *uuid.UUID     `json:"actor_id,omitempty"`
	Recipients []uuid.UUID    `json:"recipients"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Gateway delivers workflow events. Implementations are best-effort:
// delivery failures are logged and swallowed, never returned to the caller,
// and Notify must not block workflow transitions.
type Gateway interface {
	Notify(ctx context.Context, event Event)
}

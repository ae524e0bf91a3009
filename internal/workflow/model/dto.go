package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmitRequestDTO is the payload for submitting a new request. SubmittedBy
// is filled from the acting user; EmployeeID may differ for on-behalf
// submissions by managers or admins.
type SubmitRequestDTO struct {
	WorkflowType WorkflowType   `json:"workflowType" binding:"required"`
	EmployeeID   uuid.UUID      `json:"employeeId" binding:"required"`
	RequestData  map[string]any `json:"requestData"`
	LeaveTypeID  *uuid.UUID     `json:"leaveTypeId,omitempty"` // Pulls leave balance into the evaluation context when set
}

// DecisionDTO is the payload for approve/reject endpoints.
type DecisionDTO struct {
	Remarks string `json:"remarks"`
}

// WithdrawDTO is the payload for the withdraw endpoint.
type WithdrawDTO struct {
	Remarks string `json:"remarks"`
}

// RequestDetailsDTO is the full outward view of a request.
type RequestDetailsDTO struct {
	ID                uuid.UUID            `json:"id"`
	RequestNumber     string               `json:"requestNumber"`
	WorkflowType      WorkflowType         `json:"workflowType"`
	EmployeeID        uuid.UUID            `json:"employeeId"`
	SubmittedBy       uuid.UUID            `json:"submittedBy"`
	RequestData       map[string]any       `json:"requestData"`
	RequestStatus     RequestStatus        `json:"requestStatus"`
	OverallStatus     OverallStatus        `json:"overallStatus"`
	CurrentStageID    *uuid.UUID           `json:"currentStageId,omitempty"`
	CurrentStageOrder int                  `json:"currentStageOrder"`
	SLADueDate        *time.Time           `json:"slaDueDate,omitempty"`
	CreatedAt         time.Time            `json:"createdAt"`
	CompletedAt       *time.Time           `json:"completedAt,omitempty"`
	Assignments       []StageAssignment    `json:"assignments"`
	Actions           []Action             `json:"actions"`
}

// PendingApprovalDTO is one entry in a user's pending-approvals list.
type PendingApprovalDTO struct {
	AssignmentID  uuid.UUID    `json:"assignmentId"`
	RequestID     uuid.UUID    `json:"requestId"`
	RequestNumber string       `json:"requestNumber"`
	WorkflowType  WorkflowType `json:"workflowType"`
	EmployeeID    uuid.UUID    `json:"employeeId"`
	StageOrder    int          `json:"stageOrder"`
	DueDate       *time.Time   `json:"dueDate,omitempty"`
	SubmittedAt   time.Time    `json:"submittedAt"`
}

// RequestFilter narrows request list queries.
type RequestFilter struct {
	EmployeeID    *uuid.UUID
	RequestStatus *RequestStatus
	WorkflowType  *WorkflowType
	Offset        *int
	Limit         *int
}

// SweepResultDTO summarizes one scheduler sweep for the manual trigger endpoint.
type SweepResultDTO struct {
	Examined     int `json:"examined"`
	AutoApproved int `json:"autoApproved"`
	AutoRejected int `json:"autoRejected"`
	Escalated    int `json:"escalated"`
	Reminded     int `json:"reminded"`
	Failed       int `json:"failed"`
}

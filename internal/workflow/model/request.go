package model

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the fine-grained lifecycle status of a request.
type RequestStatus string

const (
	RequestStatusSubmitted    RequestStatus = "submitted"
	RequestStatusPending      RequestStatus = "pending"
	RequestStatusInProgress   RequestStatus = "in_progress"
	RequestStatusApproved     RequestStatus = "approved"
	RequestStatusRejected     RequestStatus = "rejected"
	RequestStatusWithdrawn    RequestStatus = "withdrawn"
	RequestStatusAutoApproved RequestStatus = "auto_approved"
	RequestStatusAutoRejected RequestStatus = "auto_rejected"
)

// Terminal reports whether the status finalizes a request.
func (s RequestStatus) Terminal() bool {
	switch s {
	case RequestStatusApproved, RequestStatusRejected, RequestStatusWithdrawn,
		RequestStatusAutoApproved, RequestStatusAutoRejected:
		return true
	}
	return false
}

// OverallStatus is the coarse outcome derived at finalization.
type OverallStatus string

const (
	OverallStatusInProgress OverallStatus = "in_progress"
	OverallStatusCompleted  OverallStatus = "completed"
	OverallStatusRejected   OverallStatus = "rejected"
	OverallStatusWithdrawn  OverallStatus = "withdrawn"
)

// Request is the unit of work: one submitted attendance request moving
// through its definition's stages. Only the execution engine and the SLA
// scheduler mutate it; it is terminal once OverallStatus leaves in_progress.
type Request struct {
	BaseModel
	RequestNumber        string         `gorm:"type:varchar(40);column:request_number;not null;uniqueIndex" json:"requestNumber"`
	WorkflowDefinitionID uuid.UUID      `gorm:"type:uuid;column:workflow_definition_id;not null;index" json:"workflowDefinitionId"`
	WorkflowType         WorkflowType   `gorm:"type:varchar(50);column:workflow_type;not null" json:"workflowType"`
	CompanyID            uuid.UUID      `gorm:"type:uuid;column:company_id;not null;index" json:"companyId"`
	EmployeeID           uuid.UUID      `gorm:"type:uuid;column:employee_id;not null;index" json:"employeeId"`
	SubmittedBy          uuid.UUID      `gorm:"type:uuid;column:submitted_by;not null" json:"submittedBy"`
	RequestData          map[string]any `gorm:"type:jsonb;column:request_data;serializer:json" json:"requestData"`
	CurrentStageID       *uuid.UUID     `gorm:"type:uuid;column:current_stage_id" json:"currentStageId,omitempty"`
	CurrentStageOrder    int            `gorm:"column:current_stage_order;not null;default:0" json:"currentStageOrder"`
	RequestStatus        RequestStatus  `gorm:"type:varchar(20);column:request_status;not null;index" json:"requestStatus"`
	OverallStatus        OverallStatus  `gorm:"type:varchar(20);column:overall_status;not null;index" json:"overallStatus"`
	SLADueDate           *time.Time     `gorm:"type:timestamptz;column:sla_due_date;index" json:"slaDueDate,omitempty"`
	CompletedAt          *time.Time     `gorm:"type:timestamptz;column:completed_at" json:"completedAt,omitempty"`

	// Relationships
	WorkflowDefinition *WorkflowDefinition `gorm:"foreignKey:WorkflowDefinitionID;references:ID" json:"-"`
	Assignments        []StageAssignment   `gorm:"foreignKey:RequestID;references:ID" json:"assignments,omitempty"`
	Actions            []Action            `gorm:"foreignKey:RequestID;references:ID" json:"actions,omitempty"`
}

func (r *Request) TableName() string {
	return "workflow_requests"
}

// AssignmentStatus is the state of one approver's responsibility on one stage.
type AssignmentStatus string

const (
	AssignmentStatusPending   AssignmentStatus = "pending"
	AssignmentStatusApproved  AssignmentStatus = "approved"
	AssignmentStatusRejected  AssignmentStatus = "rejected"
	AssignmentStatusDelegated AssignmentStatus = "delegated"
	AssignmentStatusSkipped   AssignmentStatus = "skipped"
	AssignmentStatusExpired   AssignmentStatus = "expired"
	AssignmentStatusWithdrawn AssignmentStatus = "withdrawn"
)

// StageAssignment records one approver's pending/decided responsibility for
// one stage of one request. At most one active assignment set exists per
// (request, stage); stale sets are marked withdrawn, never deleted.
type StageAssignment struct {
	BaseModel
	RequestID        uuid.UUID        `gorm:"type:uuid;column:request_id;not null;index" json:"requestId"`
	StageID          uuid.UUID        `gorm:"type:uuid;column:stage_id;not null;index" json:"stageId"`
	StageOrder       int              `gorm:"column:stage_order;not null" json:"stageOrder"`
	ApproverUserID   uuid.UUID        `gorm:"type:uuid;column:approver_user_id;not null;index" json:"approverUserId"`
	ApproverType     ApproverType     `gorm:"type:varchar(40);column:approver_type;not null" json:"approverType"`
	ApproverLogic    ApproverLogic    `gorm:"type:varchar(10);column:approver_logic;not null" json:"approverLogic"`
	AssignmentStatus AssignmentStatus `gorm:"type:varchar(20);column:assignment_status;not null;index" json:"assignmentStatus"`
	Order            int              `gorm:"column:approver_order;not null;default:1" json:"order"`
	AllowDelegation  bool             `gorm:"column:allow_delegation;not null;default:false" json:"allowDelegation"`
	DueDate          *time.Time       `gorm:"type:timestamptz;column:due_date" json:"dueDate,omitempty"`
	ActedAt          *time.Time       `gorm:"type:timestamptz;column:acted_at" json:"actedAt,omitempty"`
	ActionID         *uuid.UUID       `gorm:"type:uuid;column:action_id" json:"actionId,omitempty"`
	ReminderCount    int              `gorm:"column:reminder_count;not null;default:0" json:"reminderCount"`
}

func (sa *StageAssignment) TableName() string {
	return "workflow_stage_assignments"
}

// ActionType labels an audit-trail entry.
type ActionType string

const (
	ActionTypeSubmit      ActionType = "submit"
	ActionTypeApprove     ActionType = "approve"
	ActionTypeReject      ActionType = "reject"
	ActionTypeWithdraw    ActionType = "withdraw"
	ActionTypeAutoApprove ActionType = "auto_approve"
	ActionTypeAutoReject  ActionType = "auto_reject"
	ActionTypeEscalate    ActionType = "escalate"
	ActionTypeDelegate    ActionType = "delegate"
	ActionTypeSkip        ActionType = "skip"
	ActionTypeSendBack    ActionType = "send_back"
	ActionTypeNotify      ActionType = "notify"
	ActionTypeRemind      ActionType = "remind"
)

// ActorType distinguishes human decisions from system ones.
type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

// Action is one append-only audit trail row per decision. Rows are never
// updated or deleted; they are the canonical history of a request.
type Action struct {
	BaseModel
	RequestID    uuid.UUID  `gorm:"type:uuid;column:request_id;not null;index" json:"requestId"`
	StageID      *uuid.UUID `gorm:"type:uuid;column:stage_id" json:"stageId,omitempty"`
	ActionType   ActionType `gorm:"type:varchar(20);column:action_type;not null" json:"actionType"`
	ActionBy     *uuid.UUID `gorm:"type:uuid;column:action_by" json:"actionBy,omitempty"`
	ActionByType ActorType  `gorm:"type:varchar(10);column:action_by_type;not null;default:'user'" json:"actionByType"`
	Remarks      string     `gorm:"type:text;column:remarks" json:"remarks"`
}

func (a *Action) TableName() string {
	return "workflow_actions"
}

// RequestSequence backs per (workflow type, company, year) request numbering.
type RequestSequence struct {
	WorkflowType WorkflowType `gorm:"type:varchar(50);column:workflow_type;not null;primaryKey" json:"workflowType"`
	CompanyID    uuid.UUID    `gorm:"type:uuid;column:company_id;not null;primaryKey" json:"companyId"`
	Year         int          `gorm:"column:year;not null;primaryKey" json:"year"`
	LastValue    int64        `gorm:"column:last_value;not null;default:0" json:"lastValue"`
}

func (rs *RequestSequence) TableName() string {
	return "workflow_request_sequences"
}

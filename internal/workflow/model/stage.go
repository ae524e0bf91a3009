package model

import "github.com/google/uuid"

// StageType distinguishes how a stage is processed.
type StageType string

const (
	StageTypeApproval   StageType = "approval"    // Requires human (or system) decisions
	StageTypeNotifyOnly StageType = "notify_only" // Sends notifications, completes immediately
	StageTypeAutoAction StageType = "auto_action" // Completes by system action without assignees
)

// ApproverLogic decides how many assignees must approve before a stage completes.
type ApproverLogic string

const (
	ApproverLogicAll ApproverLogic = "ALL" // Every assignment must be approved
	ApproverLogicAny ApproverLogic = "ANY" // A single approval completes the stage
)

// TimeoutAction is the policy applied when a stage's SLA window elapses.
type TimeoutAction string

const (
	TimeoutActionAutoApprove TimeoutAction = "auto_approve"
	TimeoutActionAutoReject  TimeoutAction = "auto_reject"
	TimeoutActionEscalate    TimeoutAction = "escalate"
	TimeoutActionRemind      TimeoutAction = "remind"
)

// RejectAction is the routing applied when any assignee rejects at a stage.
type RejectAction string

const (
	RejectActionFinalReject RejectAction = "final_reject"
	RejectActionMoveToStage RejectAction = "move_to_stage"
	RejectActionSendBack    RejectAction = "send_back"
)

// ApproverType is the abstract token a stage approver is configured with,
// dereferenced against the employee's organizational graph at runtime.
type ApproverType string

const (
	ApproverTypeReportingManager  ApproverType = "reporting_manager"
	ApproverTypeManagersManager   ApproverType = "managers_manager"
	ApproverTypeSecondaryManager  ApproverType = "secondary_reporting_manager"
	ApproverTypeDepartmentHead    ApproverType = "department_head"
	ApproverTypeHRAdmin           ApproverType = "hr_admin"
	ApproverTypeSubAdmin          ApproverType = "sub_admin"
	ApproverTypeSelf              ApproverType = "self"
	ApproverTypeFixedUser         ApproverType = "fixed_user"
	ApproverTypeAutoApprove       ApproverType = "auto_approve"
)

// Stage is one step of a multi-step approval pipeline, with its own approvers,
// SLA window, and routing rules. Order is unique per definition, starting at 1.
type Stage struct {
	BaseModel
	DefinitionID         uuid.UUID     `gorm:"type:uuid;column:definition_id;not null;index" json:"definitionId"`
	Order                int           `gorm:"column:stage_order;not null" json:"order"`
	Name                 string        `gorm:"type:varchar(255);column:name" json:"name"`
	Type                 StageType     `gorm:"type:varchar(20);column:type;not null;default:'approval'" json:"type"`
	ApproverLogic        ApproverLogic `gorm:"type:varchar(10);column:approver_logic;not null;default:'ALL'" json:"approverLogic"`
	SLADays              int           `gorm:"column:sla_days;not null;default:0" json:"slaDays"`
	SLAHours             int           `gorm:"column:sla_hours;not null;default:0" json:"slaHours"`
	OnTimeoutAction      TimeoutAction `gorm:"type:varchar(20);column:on_timeout_action" json:"onTimeoutAction"`
	EscalateToStageID    *uuid.UUID    `gorm:"type:uuid;column:escalate_to_stage_id" json:"escalateToStageId,omitempty"`
	NextStageOnApproveID *uuid.UUID    `gorm:"type:uuid;column:next_stage_on_approve_id" json:"nextStageOnApproveId,omitempty"`
	OnRejectAction       RejectAction  `gorm:"type:varchar(20);column:on_reject_action;not null;default:'final_reject'" json:"onRejectAction"`
	RejectTargetStageID  *uuid.UUID    `gorm:"type:uuid;column:reject_target_stage_id" json:"rejectTargetStageId,omitempty"`

	// Relationships
	Approvers []StageApprover `gorm:"foreignKey:StageID;references:ID" json:"approvers,omitempty"`
}

func (s *Stage) TableName() string {
	return "workflow_stages"
}

// HasSLA reports whether the stage carries a service-level window.
func (s *Stage) HasSLA() bool {
	return s.SLADays > 0 || s.SLAHours > 0
}

// StageApprover configures one abstract approver slot on a stage.
type StageApprover struct {
	BaseModel
	StageID         uuid.UUID    `gorm:"type:uuid;column:stage_id;not null;index" json:"stageId"`
	ApproverType    ApproverType `gorm:"type:varchar(40);column:approver_type;not null" json:"approverType"`
	Order           int          `gorm:"column:approver_order;not null;default:1" json:"order"`
	ConditionID     *uuid.UUID   `gorm:"type:uuid;column:condition_id" json:"conditionId,omitempty"` // Optional guard; approver is skipped when it does not match
	FixedUserID     *uuid.UUID   `gorm:"type:uuid;column:fixed_user_id" json:"fixedUserId,omitempty"`
	AllowDelegation bool         `gorm:"column:allow_delegation;not null;default:false" json:"allowDelegation"`

	// Relationships
	Condition *Condition `gorm:"foreignKey:ConditionID;references:ID" json:"condition,omitempty"`
}

func (sa *StageApprover) TableName() string {
	return "workflow_stage_approvers"
}

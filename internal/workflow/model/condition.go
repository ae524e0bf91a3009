package model

import "github.com/google/uuid"

// Combinator joins the rules of a condition.
type Combinator string

const (
	CombinatorAnd Combinator = "AND"
	CombinatorOr  Combinator = "OR"
)

// ConditionAction is what a matched (or else-branch) condition instructs the engine to do.
type ConditionAction string

const (
	ActionContinue       ConditionAction = "continue"
	ActionAutoApprove    ConditionAction = "auto_approve"
	ActionAutoReject     ConditionAction = "auto_reject"
	ActionMoveToStage    ConditionAction = "move_to_stage"
	ActionSkipStage      ConditionAction = "skip_stage"
	ActionAssignApprover ConditionAction = "assign_approver"
)

// Operator compares an extracted context value against the rule's compare value.
type Operator string

const (
	OperatorEq          Operator = "="
	OperatorNeq         Operator = "!="
	OperatorGt          Operator = ">"
	OperatorLt          Operator = "<"
	OperatorGte         Operator = ">="
	OperatorLte         Operator = "<="
	OperatorIn          Operator = "IN"
	OperatorNotIn       Operator = "NOT IN"
	OperatorContains    Operator = "CONTAINS"
	OperatorNotContains Operator = "NOT CONTAINS"
	OperatorIsNull      Operator = "IS NULL"
	OperatorIsNotNull   Operator = "IS NOT NULL"
)

// FieldSource names the part of the evaluation context a rule reads from.
type FieldSource string

const (
	FieldSourceEmployee     FieldSource = "employee"
	FieldSourceRequest      FieldSource = "request"
	FieldSourceLeaveBalance FieldSource = "leave_balance"
	FieldSourceCustom       FieldSource = "custom"
)

// Condition is a named, prioritized group of rules bound to a whole definition
// (StageID nil, "global") or to one stage. Conditions are evaluated in
// ascending priority; the first whose rule set matches wins. When the rule set
// does not match, ElseActionType (default continue) is applied instead.
type Condition struct {
	BaseModel
	DefinitionID       uuid.UUID       `gorm:"type:uuid;column:definition_id;not null;index" json:"definitionId"`
	StageID            *uuid.UUID      `gorm:"type:uuid;column:stage_id;index" json:"stageId,omitempty"`
	Name               string          `gorm:"type:varchar(255);column:name;not null" json:"name"`
	Priority           int             `gorm:"column:priority;not null;default:1" json:"priority"`
	Combinator         Combinator      `gorm:"type:varchar(5);column:combinator;not null;default:'AND'" json:"combinator"`
	ActionType         ConditionAction `gorm:"type:varchar(30);column:action_type;not null" json:"actionType"`
	ElseActionType     ConditionAction `gorm:"type:varchar(30);column:else_action_type;not null;default:'continue'" json:"elseActionType"`
	TargetStageID      *uuid.UUID      `gorm:"type:uuid;column:target_stage_id" json:"targetStageId,omitempty"`
	TargetApproverType *ApproverType   `gorm:"type:varchar(40);column:target_approver_type" json:"targetApproverType,omitempty"`
	IsActive           bool            `gorm:"column:is_active;not null;default:true" json:"isActive"`

	// Relationships
	Rules []ConditionRule `gorm:"foreignKey:ConditionID;references:ID" json:"rules,omitempty"`
}

func (c *Condition) TableName() string {
	return "workflow_conditions"
}

// ConditionRule compares one context field against a static value, another
// field, or a computed value. FieldType drives coercion before comparison;
// IS NULL / IS NOT NULL bypass coercion entirely.
type ConditionRule struct {
	BaseModel
	ConditionID        uuid.UUID    `gorm:"type:uuid;column:condition_id;not null;index" json:"conditionId"`
	FieldSource        FieldSource  `gorm:"type:varchar(20);column:field_source;not null" json:"fieldSource"`
	FieldName          string       `gorm:"type:varchar(100);column:field_name;not null" json:"fieldName"`
	FieldType          ValueKind    `gorm:"type:varchar(10);column:field_type;not null;default:'string'" json:"fieldType"`
	Operator           Operator     `gorm:"type:varchar(15);column:operator;not null" json:"operator"`
	CompareValue       string       `gorm:"type:text;column:compare_value" json:"compareValue"`
	CompareFieldSource *FieldSource `gorm:"type:varchar(20);column:compare_field_source" json:"compareFieldSource,omitempty"`
	CompareFieldName   *string      `gorm:"type:varchar(100);column:compare_field_name" json:"compareFieldName,omitempty"`

	staticValue    *Value
	staticValueErr error
}

// StaticValue resolves the rule's static compare value into the typed union
// once per loaded rule; subsequent calls return the cached result.
func (cr *ConditionRule) StaticValue() (Value, error) {
	if cr.staticValue == nil && cr.staticValueErr == nil {
		v, err := ParseStaticValue(cr.CompareValue, cr.FieldType, cr.Operator)
		if err != nil {
			cr.staticValueErr = err
		} else {
			cr.staticValue = &v
		}
	}
	if cr.staticValueErr != nil {
		return Value{}, cr.staticValueErr
	}
	return *cr.staticValue, nil
}

func (cr *ConditionRule) TableName() string {
	return "workflow_condition_rules"
}

// ComparesAgainstField reports whether the rule's right-hand side is another
// context field rather than the static CompareValue.
func (cr *ConditionRule) ComparesAgainstField() bool {
	return cr.CompareFieldSource != nil && cr.CompareFieldName != nil && *cr.CompareFieldName != ""
}

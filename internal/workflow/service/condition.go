package service

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/peoplecore/hrflow/internal/workflow/model"
)

// Verdict is the result of evaluating a condition set: the action to take plus
// optional routing targets. The zero Verdict means continue.
type Verdict struct {
	Matched            bool
	Action             model.ConditionAction
	TargetStageID      *uuid.UUID
	TargetApproverType *model.ApproverType
}

// ContinueVerdict is the verdict when no condition fires.
func ContinueVerdict() Verdict {
	return Verdict{Action: model.ActionContinue}
}

// ConditionEvaluator evaluates declarative rule sets against an EvalContext.
// It is stateless; all inputs arrive per call.
type ConditionEvaluator struct{}

func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{}
}

// Evaluate walks the conditions in ascending priority and returns the verdict
// of the first one that fires. A condition fires either because its rule set
// matched (ActionType) or because it did not and the condition carries an
// else-action other than continue (ElseActionType). A rule that cannot be
// evaluated (bad coercion) counts as not matching and is logged.
func (e *ConditionEvaluator) Evaluate(conditions []model.Condition, evalCtx *EvalContext) Verdict {
	ordered := make([]model.Condition, 0, len(conditions))
	for _, c := range conditions {
		if c.IsActive {
			ordered = append(ordered, c)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	for i := range ordered {
		cond := &ordered[i]
		matched := e.ruleSetMatches(cond, evalCtx)
		if matched {
			return Verdict{
				Matched:            true,
				Action:             cond.ActionType,
				TargetStageID:      cond.TargetStageID,
				TargetApproverType: cond.TargetApproverType,
			}
		}
		if cond.ElseActionType != "" && cond.ElseActionType != model.ActionContinue {
			return Verdict{
				Matched:            false,
				Action:             cond.ElseActionType,
				TargetStageID:      cond.TargetStageID,
				TargetApproverType: cond.TargetApproverType,
			}
		}
	}
	return ContinueVerdict()
}

// EvaluateGuard evaluates a single condition used as an approver guard and
// reports whether its rule set matched.
func (e *ConditionEvaluator) EvaluateGuard(cond *model.Condition, evalCtx *EvalContext) bool {
	if cond == nil {
		return true
	}
	return e.ruleSetMatches(cond, evalCtx)
}

// ruleSetMatches applies the condition's combinator over its rules. An empty
// rule set never matches.
func (e *ConditionEvaluator) ruleSetMatches(cond *model.Condition, evalCtx *EvalContext) bool {
	if len(cond.Rules) == 0 {
		return false
	}
	for i := range cond.Rules {
		ok, err := e.ruleMatches(&cond.Rules[i], evalCtx)
		if err != nil {
			slog.Warn("condition rule evaluation failed",
				"conditionID", cond.ID,
				"field", cond.Rules[i].FieldName,
				"error", err)
			ok = false
		}
		if cond.Combinator == model.CombinatorOr {
			if ok {
				return true
			}
		} else if !ok {
			return false
		}
	}
	return cond.Combinator != model.CombinatorOr
}

// ruleMatches evaluates one field/operator/value triple.
func (e *ConditionEvaluator) ruleMatches(rule *model.ConditionRule, evalCtx *EvalContext) (bool, error) {
	raw, present := evalCtx.Field(rule.FieldSource, rule.FieldName)

	// Null checks bypass coercion entirely.
	switch rule.Operator {
	case model.OperatorIsNull:
		return !present, nil
	case model.OperatorIsNotNull:
		return present, nil
	}

	left := model.NullValue()
	if present {
		coerced, err := model.CoerceValue(raw, rule.FieldType)
		if err != nil {
			return false, err
		}
		left = coerced
	}

	right, err := e.rightHandValue(rule, evalCtx)
	if err != nil {
		return false, err
	}

	switch rule.Operator {
	case model.OperatorEq:
		return left.Equal(right), nil
	case model.OperatorNeq:
		return !left.Equal(right), nil
	case model.OperatorGt:
		return !left.Null && !right.Null && right.Less(left), nil
	case model.OperatorLt:
		return !left.Null && !right.Null && left.Less(right), nil
	case model.OperatorGte:
		return !left.Null && !right.Null && !left.Less(right), nil
	case model.OperatorLte:
		return !left.Null && !right.Null && !right.Less(left), nil
	case model.OperatorIn:
		return left.In(right), nil
	case model.OperatorNotIn:
		return !left.Null && !left.In(right), nil
	case model.OperatorContains:
		return left.Contains(right), nil
	case model.OperatorNotContains:
		return !left.Null && !left.Contains(right), nil
	}
	return false, fmt.Errorf("unsupported operator %q", rule.Operator)
}

// rightHandValue resolves the rule's comparison target: another context field
// when configured, the static compare value otherwise.
func (e *ConditionEvaluator) rightHandValue(rule *model.ConditionRule, evalCtx *EvalContext) (model.Value, error) {
	if rule.ComparesAgainstField() {
		raw, present := evalCtx.Field(*rule.CompareFieldSource, *rule.CompareFieldName)
		if !present {
			return model.NullValue(), nil
		}
		return model.CoerceValue(raw, rule.FieldType)
	}
	return rule.StaticValue()
}

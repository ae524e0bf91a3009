package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peoplecore/hrflow/internal/directory"
	"github.com/peoplecore/hrflow/internal/workflow/model"
)

// ApplicabilityService selects the single workflow definition that governs an
// employee's request of a given type, using the fixed dimension-priority
// ordering in model.DimensionPriority.
type ApplicabilityService struct {
	db *gorm.DB
}

func NewApplicabilityService(db *gorm.DB) *ApplicabilityService {
	return &ApplicabilityService{db: db}
}

// Resolve returns the most specific active definition for (employee, workflow
// type). It returns ErrNoDefinitionConfigured when the company has none for
// the type, and ErrNoApplicableDefinition when none matches the employee.
func (s *ApplicabilityService) Resolve(ctx context.Context, employee *directory.Employee, workflowType model.WorkflowType) (*model.WorkflowDefinition, error) {
	if employee == nil {
		return nil, fmt.Errorf("employee cannot be nil")
	}

	definitions, err := s.loadDefinitions(ctx, employee.CompanyID, workflowType)
	if err != nil {
		return nil, err
	}
	if len(definitions) == 0 {
		return nil, ErrNoDefinitionConfigured
	}

	return SelectDefinition(definitions, employee)
}

// ResolveInTx is Resolve running against an open transaction.
func (s *ApplicabilityService) ResolveInTx(ctx context.Context, tx *gorm.DB, employee *directory.Employee, workflowType model.WorkflowType) (*model.WorkflowDefinition, error) {
	scoped := &ApplicabilityService{db: tx}
	return scoped.Resolve(ctx, employee, workflowType)
}

func (s *ApplicabilityService) loadDefinitions(ctx context.Context, companyID uuid.UUID, workflowType model.WorkflowType) ([]model.WorkflowDefinition, error) {
	var definitions []model.WorkflowDefinition
	result := s.db.WithContext(ctx).
		Preload("ApplicabilityRules", "is_active = ?", true).
		Where("company_id = ? AND workflow_type = ? AND is_active = ?", companyID, workflowType, true).
		Find(&definitions)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load workflow definitions: %w", result.Error)
	}
	return definitions, nil
}

// candidate pairs a definition with the priority of the rule that matched it.
type candidate struct {
	definition  *model.WorkflowDefinition
	priority    int
	ruleCreated int64 // Unix nanos of the matching rule, for recency tie-break
}

// SelectDefinition applies the applicability algorithm to pre-loaded
// definitions: each matching, non-excluded rule contributes a candidate at
// its dimension priority; a rule-less default definition is a fallback
// candidate at the lowest priority. Among equal-priority candidates the most
// recently created rule wins.
func SelectDefinition(definitions []model.WorkflowDefinition, employee *directory.Employee) (*model.WorkflowDefinition, error) {
	var best *candidate

	for i := range definitions {
		def := &definitions[i]

		if len(def.ApplicabilityRules) == 0 {
			if def.IsDefault {
				consider(&best, &candidate{definition: def, priority: model.DefaultFallbackPriority})
			}
			continue
		}

		excluded := false
		var defBest *candidate
		for j := range def.ApplicabilityRules {
			rule := &def.ApplicabilityRules[j]
			if !ruleMatches(rule, employee) {
				continue
			}
			if rule.IsExcluded {
				excluded = true
				break
			}
			c := &candidate{
				definition:  def,
				priority:    rule.Priority(),
				ruleCreated: rule.CreatedAt.UnixNano(),
			}
			consider(&defBest, c)
		}
		if excluded || defBest == nil {
			continue
		}
		consider(&best, defBest)
	}

	if best == nil {
		return nil, ErrNoApplicableDefinition
	}
	return best.definition, nil
}

// consider keeps the stronger of the current best and the challenger: lower
// priority number wins; on equal priority the newer rule wins.
func consider(best **candidate, challenger *candidate) {
	if *best == nil {
		*best = challenger
		return
	}
	if challenger.priority < (*best).priority {
		*best = challenger
		return
	}
	if challenger.priority == (*best).priority && challenger.ruleCreated > (*best).ruleCreated {
		*best = challenger
	}
}

// ruleMatches tests whether the employee falls inside the rule's dimension
// value set. A company-dimension rule with no value list matches the
// employee's company directly.
func ruleMatches(rule *model.ApplicabilityRule, employee *directory.Employee) bool {
	targets := rule.TargetIDs()

	if rule.Dimension == model.DimensionCompany && len(targets) == 0 {
		return true
	}
	if len(targets) == 0 {
		return false
	}

	value, ok := dimensionValue(rule.Dimension, employee)
	if !ok {
		return false
	}
	for _, target := range targets {
		if target == value {
			return true
		}
	}
	return false
}

func dimensionValue(dim model.Dimension, employee *directory.Employee) (string, bool) {
	switch dim {
	case model.DimensionEmployee:
		return employee.ID.String(), true
	case model.DimensionCompany:
		return employee.CompanyID.String(), true
	case model.DimensionDepartment:
		return uuidString(employee.DepartmentID)
	case model.DimensionSubDepartment:
		return uuidString(employee.SubDepartmentID)
	case model.DimensionDesignation:
		return uuidString(employee.DesignationID)
	case model.DimensionLevel:
		return uuidString(employee.LevelID)
	case model.DimensionGrade:
		return uuidString(employee.GradeID)
	case model.DimensionLocation:
		return uuidString(employee.LocationID)
	case model.DimensionEntity:
		return uuidString(employee.EntityID)
	}
	return "", false
}

func uuidString(id *uuid.UUID) (string, bool) {
	if id == nil {
		return "", false
	}
	return id.String(), true
}

package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/peoplecore/hrflow/internal/directory"
	"github.com/peoplecore/hrflow/internal/workflow/model"
)

func testEmployee() *directory.Employee {
	departmentID := uuid.New()
	subDepartmentID := uuid.New()
	gradeID := uuid.New()
	return &directory.Employee{
		ID:              uuid.New(),
		CompanyID:       uuid.New(),
		DepartmentID:    &departmentID,
		SubDepartmentID: &subDepartmentID,
		GradeID:         &gradeID,
	}
}

func definitionWithRule(name string, dimension model.Dimension, targets string, createdAt time.Time) model.WorkflowDefinition {
	return model.WorkflowDefinition{
		BaseModel: model.BaseModel{ID: uuid.New()},
		Name:      name,
		IsActive:  true,
		ApplicabilityRules: []model.ApplicabilityRule{
			{
				BaseModel:    model.BaseModel{ID: uuid.New(), CreatedAt: createdAt},
				Dimension:    dimension,
				TargetValues: targets,
				IsActive:     true,
			},
		},
	}
}

func TestSelectDefinitionPrefersMoreSpecificDimension(t *testing.T) {
	employee := testEmployee()
	now := time.Now()

	departmentDef := definitionWithRule("department policy", model.DimensionDepartment, employee.DepartmentID.String(), now)
	subDepartmentDef := definitionWithRule("sub-department policy", model.DimensionSubDepartment, employee.SubDepartmentID.String(), now)
	employeeDef := definitionWithRule("personal override", model.DimensionEmployee, employee.ID.String(), now)

	selected, err := SelectDefinition([]model.WorkflowDefinition{departmentDef, subDepartmentDef}, employee)
	assert.NoError(t, err)
	assert.Equal(t, "sub-department policy", selected.Name)

	selected, err = SelectDefinition([]model.WorkflowDefinition{departmentDef, subDepartmentDef, employeeDef}, employee)
	assert.NoError(t, err)
	assert.Equal(t, "personal override", selected.Name)
}

func TestSelectDefinitionEqualPriorityPrefersNewerRule(t *testing.T) {
	employee := testEmployee()
	older := definitionWithRule("older grade policy", model.DimensionGrade, employee.GradeID.String(), time.Now().Add(-time.Hour))
	newer := definitionWithRule("newer grade policy", model.DimensionGrade, employee.GradeID.String(), time.Now())

	selected, err := SelectDefinition([]model.WorkflowDefinition{older, newer}, employee)
	assert.NoError(t, err)
	assert.Equal(t, "newer grade policy", selected.Name)
}

func TestSelectDefinitionExclusionSkipsWholeDefinition(t *testing.T) {
	employee := testEmployee()
	now := time.Now()

	excluding := definitionWithRule("department policy", model.DimensionDepartment, employee.DepartmentID.String(), now)
	excluding.ApplicabilityRules = append(excluding.ApplicabilityRules, model.ApplicabilityRule{
		BaseModel:    model.BaseModel{ID: uuid.New(), CreatedAt: now},
		Dimension:    model.DimensionEmployee,
		TargetValues: employee.ID.String(),
		IsExcluded:   true,
		IsActive:     true,
	})

	fallback := model.WorkflowDefinition{
		BaseModel: model.BaseModel{ID: uuid.New()},
		Name:      "company default",
		IsDefault: true,
		IsActive:  true,
	}

	selected, err := SelectDefinition([]model.WorkflowDefinition{excluding, fallback}, employee)
	assert.NoError(t, err)
	assert.Equal(t, "company default", selected.Name)
}

func TestSelectDefinitionDefaultFallback(t *testing.T) {
	employee := testEmployee()
	otherDepartment := uuid.New()

	nonMatching := definitionWithRule("someone else's policy", model.DimensionDepartment, otherDepartment.String(), time.Now())
	fallback := model.WorkflowDefinition{
		BaseModel: model.BaseModel{ID: uuid.New()},
		Name:      "company default",
		IsDefault: true,
		IsActive:  true,
	}

	selected, err := SelectDefinition([]model.WorkflowDefinition{nonMatching, fallback}, employee)
	assert.NoError(t, err)
	assert.Equal(t, "company default", selected.Name)
}

func TestSelectDefinitionNoneApplicable(t *testing.T) {
	employee := testEmployee()
	otherDepartment := uuid.New()

	nonMatching := definitionWithRule("someone else's policy", model.DimensionDepartment, otherDepartment.String(), time.Now())

	_, err := SelectDefinition([]model.WorkflowDefinition{nonMatching}, employee)
	assert.ErrorIs(t, err, ErrNoApplicableDefinition)
}

func TestSelectDefinitionCompanyRuleWithoutTargets(t *testing.T) {
	employee := testEmployee()

	companyWide := definitionWithRule("company policy", model.DimensionCompany, "", time.Now())
	selected, err := SelectDefinition([]model.WorkflowDefinition{companyWide}, employee)
	assert.NoError(t, err)
	assert.Equal(t, "company policy", selected.Name)
}

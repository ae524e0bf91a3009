package model

import (
	"strings"

	"github.com/google/uuid"
)

// Dimension is the organizational axis an applicability rule scopes a definition by.
type Dimension string

const (
	DimensionEmployee      Dimension = "employee"
	DimensionSubDepartment Dimension = "sub_department"
	DimensionDepartment    Dimension = "department"
	DimensionDesignation   Dimension = "designation"
	DimensionLevel         Dimension = "level"
	DimensionLocation      Dimension = "location"
	DimensionEntity        Dimension = "entity"
	DimensionCompany       Dimension = "company"
	DimensionGrade         Dimension = "grade"
)

// DimensionPriority orders applicability dimensions from most to least specific
// (lower number wins). sub_department outranks department: the narrower
// organizational unit is the more specific match. The company-wide default
// definition sits at DefaultFallbackPriority, below every explicit rule.
var DimensionPriority = map[Dimension]int{
	DimensionEmployee:      1,
	DimensionSubDepartment: 2,
	DimensionDepartment:    3,
	DimensionDesignation:   4,
	DimensionLevel:         5,
	DimensionLocation:      6,
	DimensionEntity:        7,
	DimensionCompany:       8,
	DimensionGrade:         9,
}

// DefaultFallbackPriority is the priority assigned to a company-wide default definition.
const DefaultFallbackPriority = 1000

// WorkflowDefinition is one approval process configuration for a workflow type
// within a company. It is shared read-only by requests; edits are expected to
// create a new version rather than mutate a definition referenced in flight.
type WorkflowDefinition struct {
	BaseModel
	CompanyID    uuid.UUID    `gorm:"type:uuid;column:company_id;not null;index" json:"companyId"`
	WorkflowType WorkflowType `gorm:"type:varchar(50);column:workflow_type;not null;index" json:"workflowType"`
	Name         string       `gorm:"type:varchar(255);column:name;not null" json:"name"`
	Description  string       `gorm:"type:text;column:description" json:"description"`
	Version      int          `gorm:"column:version;not null;default:1" json:"version"`
	IsDefault    bool         `gorm:"column:is_default;not null;default:false" json:"isDefault"`
	IsActive     bool         `gorm:"column:is_active;not null;default:true" json:"isActive"`

	// Relationships
	Stages             []Stage             `gorm:"foreignKey:DefinitionID;references:ID" json:"stages,omitempty"`
	ApplicabilityRules []ApplicabilityRule `gorm:"foreignKey:DefinitionID;references:ID" json:"applicabilityRules,omitempty"`
	Conditions         []Condition         `gorm:"foreignKey:DefinitionID;references:ID" json:"conditions,omitempty"`
}

func (wd *WorkflowDefinition) TableName() string {
	return "workflow_definitions"
}

// ApplicabilityRule scopes a workflow definition to a subset of employees by
// organizational dimension. TargetValues is a comma-separated list of IDs for
// the dimension; an empty list with dimension "company" matches by company ID.
type ApplicabilityRule struct {
	BaseModel
	DefinitionID uuid.UUID `gorm:"type:uuid;column:definition_id;not null;index" json:"definitionId"`
	Dimension    Dimension `gorm:"type:varchar(30);column:dimension;not null" json:"dimension"`
	TargetValues string    `gorm:"type:text;column:target_values" json:"targetValues"`
	IsExcluded   bool      `gorm:"column:is_excluded;not null;default:false" json:"isExcluded"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true" json:"isActive"`
}

func (ar *ApplicabilityRule) TableName() string {
	return "workflow_applicability_rules"
}

// TargetIDs splits the comma-separated target value list into trimmed entries.
func (ar *ApplicabilityRule) TargetIDs() []string {
	if ar.TargetValues == "" {
		return nil
	}
	parts := strings.Split(ar.TargetValues, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

// Priority returns the fixed dimension priority for the rule.
func (ar *ApplicabilityRule) Priority() int {
	if p, ok := DimensionPriority[ar.Dimension]; ok {
		return p
	}
	return DefaultFallbackPriority
}

package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a directory lookup has no matching row.
var ErrNotFound = errors.New("directory: not found")

// Employee is the organizational snapshot the workflow engine evaluates
// applicability rules and conditions against.
type Employee struct {
	ID                          uuid.UUID  `gorm:"type:uuid;column:id;not null;primaryKey" json:"id"`
	CompanyID                   uuid.UUID  `gorm:"type:uuid;column:company_id;not null;index" json:"companyId"`
	EntityID                    *uuid.UUID `gorm:"type:uuid;column:entity_id" json:"entityId,omitempty"`
	DepartmentID                *uuid.UUID `gorm:"type:uuid;column:department_id" json:"departmentId,omitempty"`
	SubDepartmentID             *uuid.UUID `gorm:"type:uuid;column:sub_department_id" json:"subDepartmentId,omitempty"`
	DesignationID               *uuid.UUID `gorm:"type:uuid;column:designation_id" json:"designationId,omitempty"`
	LevelID                     *uuid.UUID `gorm:"type:uuid;column:level_id" json:"levelId,omitempty"`
	GradeID                     *uuid.UUID `gorm:"type:uuid;column:grade_id" json:"gradeId,omitempty"`
	LocationID                  *uuid.UUID `gorm:"type:uuid;column:location_id" json:"locationId,omitempty"`
	ReportingManagerID          *uuid.UUID `gorm:"type:uuid;column:reporting_manager_id" json:"reportingManagerId,omitempty"`
	SecondaryReportingManagerID *uuid.UUID `gorm:"type:uuid;column:secondary_reporting_manager_id" json:"secondaryReportingManagerId,omitempty"`
	Name                        string     `gorm:"type:varchar(255);column:name" json:"name"`
	Email                       string     `gorm:"type:varchar(255);column:email" json:"email"`
	IsDepartmentHead            bool       `gorm:"column:is_department_head;not null;default:false" json:"isDepartmentHead"`
	IsHRAdmin                   bool       `gorm:"column:is_hr_admin;not null;default:false" json:"isHrAdmin"`
	IsSubAdmin                  bool       `gorm:"column:is_sub_admin;not null;default:false" json:"isSubAdmin"`
	IsActive                    bool       `gorm:"column:is_active;not null;default:true" json:"isActive"`
	CreatedAt                   time.Time  `gorm:"type:timestamptz;column:created_at" json:"createdAt"`
	UpdatedAt                   time.Time  `gorm:"type:timestamptz;column:updated_at" json:"updatedAt"`
}

func (e *Employee) TableName() string {
	return "employees"
}

// LeaveBalance carries the available balance used as extra condition context
// for leave-type workflows.
type LeaveBalance struct {
	EmployeeID       uuid.UUID `gorm:"type:uuid;column:employee_id;not null;primaryKey" json:"employeeId"`
	LeaveTypeID      uuid.UUID `gorm:"type:uuid;column:leave_type_id;not null;primaryKey" json:"leaveTypeId"`
	AvailableBalance float64   `gorm:"column:available_balance;not null;default:0" json:"availableBalance"`
	UpdatedAt        time.Time `gorm:"type:timestamptz;column:updated_at" json:"updatedAt"`
}

func (lb *LeaveBalance) TableName() string {
	return "leave_balances"
}

// Directory exposes the organizational graph lookups the approver resolver
// and applicability resolver consume.
type Directory interface {
	// GetEmployee returns the employee snapshot for the given ID.
	GetEmployee(ctx context.Context, employeeID uuid.UUID) (*Employee, error)

	// GetDepartmentHead returns the designated head of a department.
	GetDepartmentHead(ctx context.Context, companyID, departmentID uuid.UUID) (*Employee, error)

	// GetHRAdmin returns the company's HR admin.
	GetHRAdmin(ctx context.Context, companyID uuid.UUID) (*Employee, error)

	// GetSubAdmin returns the company's HR sub-admin.
	GetSubAdmin(ctx context.Context, companyID uuid.UUID) (*Employee, error)
}

// BalanceProvider exposes leave balances for condition evaluation.
type BalanceProvider interface {
	// GetLeaveBalance returns the balance row for (employee, leave type).
	GetLeaveBalance(ctx context.Context, employeeID, leaveTypeID uuid.UUID) (*LeaveBalance, error)
}

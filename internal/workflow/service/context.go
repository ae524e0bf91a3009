package service

import (
	"strings"

	"github.com/google/uuid"

	"github.com/peoplecore/hrflow/internal/directory"
	"github.com/peoplecore/hrflow/internal/workflow/model"
)

// EvalContext is the snapshot a request's conditions are evaluated against:
// the employee's organizational fields, the request payload, an optional
// leave balance, and free-form custom fields.
type EvalContext struct {
	Employee     *directory.Employee
	Request      map[string]any
	LeaveBalance *directory.LeaveBalance
	Custom       map[string]any
}

// Field extracts the named value from the given source. The second return is
// false when the field is absent or nil, which condition rules treat as NULL.
// Request and custom fields support dot-separated paths into nested maps.
func (c *EvalContext) Field(source model.FieldSource, name string) (any, bool) {
	switch source {
	case model.FieldSourceEmployee:
		return c.employeeField(name)
	case model.FieldSourceRequest:
		return lookupPath(c.Request, name)
	case model.FieldSourceLeaveBalance:
		return c.balanceField(name)
	case model.FieldSourceCustom:
		return lookupPath(c.Custom, name)
	}
	return nil, false
}

func (c *EvalContext) employeeField(name string) (any, bool) {
	if c.Employee == nil {
		return nil, false
	}
	e := c.Employee
	switch name {
	case "id":
		return e.ID.String(), true
	case "company_id":
		return e.CompanyID.String(), true
	case "entity_id":
		return uuidPtrField(e.EntityID)
	case "department_id":
		return uuidPtrField(e.DepartmentID)
	case "sub_department_id":
		return uuidPtrField(e.SubDepartmentID)
	case "designation_id":
		return uuidPtrField(e.DesignationID)
	case "level_id":
		return uuidPtrField(e.LevelID)
	case "grade_id":
		return uuidPtrField(e.GradeID)
	case "location_id":
		return uuidPtrField(e.LocationID)
	case "reporting_manager_id":
		return uuidPtrField(e.ReportingManagerID)
	case "secondary_reporting_manager_id":
		return uuidPtrField(e.SecondaryReportingManagerID)
	case "name":
		return e.Name, true
	case "email":
		return e.Email, true
	case "is_department_head":
		return e.IsDepartmentHead, true
	case "is_hr_admin":
		return e.IsHRAdmin, true
	}
	return nil, false
}

func (c *EvalContext) balanceField(name string) (any, bool) {
	if c.LeaveBalance == nil {
		return nil, false
	}
	switch name {
	case "available_balance":
		return c.LeaveBalance.AvailableBalance, true
	case "leave_type_id":
		return c.LeaveBalance.LeaveTypeID.String(), true
	}
	return nil, false
}

func uuidPtrField(id *uuid.UUID) (any, bool) {
	if id == nil {
		return nil, false
	}
	return id.String(), true
}

// lookupPath walks a dot-separated path through nested string-keyed maps.
func lookupPath(m map[string]any, path string) (any, bool) {
	if m == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var current any = m
	for _, part := range parts {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = asMap[part]
		if !ok {
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service is the gorm-backed Directory and BalanceProvider implementation.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// GetEmployee returns the employee snapshot for the given ID.
func (s *Service) GetEmployee(ctx context.Context, employeeID uuid.UUID) (*Employee, error) {
	if employeeID == uuid.Nil {
		return nil, fmt.Errorf("employee ID cannot be nil")
	}

	var employee Employee
	result := s.db.WithContext(ctx).First(&employee, "id = ? AND is_active = ?", employeeID, true)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("employee %s: %w", employeeID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve employee: %w", result.Error)
	}
	return &employee, nil
}

// GetDepartmentHead returns the designated head of a department.
func (s *Service) GetDepartmentHead(ctx context.Context, companyID, departmentID uuid.UUID) (*Employee, error) {
	var employee Employee
	result := s.db.WithContext(ctx).
		Where("company_id = ? AND department_id = ? AND is_department_head = ? AND is_active = ?",
			companyID, departmentID, true, true).
		First(&employee)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("department head for department %s: %w", departmentID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve department head: %w", result.Error)
	}
	return &employee, nil
}

// GetHRAdmin returns the company's HR admin.
func (s *Service) GetHRAdmin(ctx context.Context, companyID uuid.UUID) (*Employee, error) {
	return s.firstWithFlag(ctx, companyID, "is_hr_admin", "HR admin")
}

// GetSubAdmin returns the company's HR sub-admin.
func (s *Service) GetSubAdmin(ctx context.Context, companyID uuid.UUID) (*Employee, error) {
	return s.firstWithFlag(ctx, companyID, "is_sub_admin", "sub-admin")
}

func (s *Service) firstWithFlag(ctx context.Context, companyID uuid.UUID, flagColumn, label string) (*Employee, error) {
	var employee Employee
	result := s.db.WithContext(ctx).
		Where(fmt.Sprintf("company_id = ? AND %s = ? AND is_active = ?", flagColumn), companyID, true, true).
		Order("created_at ASC").
		First(&employee)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s for company %s: %w", label, companyID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve %s: %w", label, result.Error)
	}
	return &employee, nil
}

// GetLeaveBalance returns the balance row for (employee, leave type).
func (s *Service) GetLeaveBalance(ctx context.Context, employeeID, leaveTypeID uuid.UUID) (*LeaveBalance, error) {
	var balance LeaveBalance
	result := s.db.WithContext(ctx).
		Where("employee_id = ? AND leave_type_id = ?", employeeID, leaveTypeID).
		First(&balance)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("leave balance for employee %s: %w", employeeID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve leave balance: %w", result.Error)
	}
	return &balance, nil
}

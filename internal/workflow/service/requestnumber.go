package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peoplecore/hrflow/internal/workflow/model"
)

// RequestNumberService issues unique, strictly increasing request numbers per
// (workflow type, company, year), formatted "<PREFIX>-<year>-<sequence>".
type RequestNumberService struct {
	db *gorm.DB
}

func NewRequestNumberService(db *gorm.DB) *RequestNumberService {
	return &RequestNumberService{db: db}
}

// Next allocates the next number in its own transaction.
func (s *RequestNumberService) Next(ctx context.Context, workflowType model.WorkflowType, companyID uuid.UUID) (string, error) {
	var number string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.NextInTx(ctx, tx, workflowType, companyID)
		if err != nil {
			return err
		}
		number = n
		return nil
	})
	return number, err
}

// NextInTx allocates the next number inside an open transaction. The sequence
// row is locked FOR UPDATE so concurrent submissions serialize on it and can
// never collide.
func (s *RequestNumberService) NextInTx(ctx context.Context, tx *gorm.DB, workflowType model.WorkflowType, companyID uuid.UUID) (string, error) {
	year := time.Now().UTC().Year()

	var seq model.RequestSequence
	result := withUpdateLock(tx).
		Where("workflow_type = ? AND company_id = ? AND year = ?", workflowType, companyID, year).
		First(&seq)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("failed to load request sequence: %w", result.Error)
		}
		seq = model.RequestSequence{
			WorkflowType: workflowType,
			CompanyID:    companyID,
			Year:         year,
		}
		if err := tx.Create(&seq).Error; err != nil {
			return "", fmt.Errorf("failed to create request sequence: %w", err)
		}
	}

	seq.LastValue++
	if err := tx.Model(&model.RequestSequence{}).
		Where("workflow_type = ? AND company_id = ? AND year = ?", workflowType, companyID, year).
		Update("last_value", seq.LastValue).Error; err != nil {
		return "", fmt.Errorf("failed to advance request sequence: %w", err)
	}

	return fmt.Sprintf("%s-%d-%06d", workflowType.Prefix(), year, seq.LastValue), nil
}

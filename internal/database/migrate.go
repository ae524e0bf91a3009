package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/peoplecore/hrflow/internal/attachments"
	"github.com/peoplecore/hrflow/internal/auth"
	"github.com/peoplecore/hrflow/internal/directory"
	"github.com/peoplecore/hrflow/internal/workflow/model"
)

// Migrate creates or updates the schema for every persisted model.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&directory.Employee{},
		&directory.LeaveBalance{},
		&auth.APIToken{},
		&model.WorkflowDefinition{},
		&model.ApplicabilityRule{},
		&model.Stage{},
		&model.StageApprover{},
		&model.Condition{},
		&model.ConditionRule{},
		&model.Request{},
		&model.StageAssignment{},
		&model.Action{},
		&model.RequestSequence{},
		&attachments.Attachment{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

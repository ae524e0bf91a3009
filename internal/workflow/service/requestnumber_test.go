package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peoplecore/hrflow/internal/workflow/model"
)

func TestRequestNumbersAreMonotonic(t *testing.T) {
	db := newTestDB(t)
	svc := NewRequestNumberService(db)
	company := uuid.New()
	year := time.Now().UTC().Year()

	for i := 1; i <= 3; i++ {
		number, err := svc.Next(context.Background(), model.WorkflowTypeLeave, company)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("LV-%d-%06d", year, i), number)
	}
}

func TestRequestNumbersIsolatedPerTypeAndCompany(t *testing.T) {
	db := newTestDB(t)
	svc := NewRequestNumberService(db)
	companyA := uuid.New()
	companyB := uuid.New()
	year := time.Now().UTC().Year()

	first, err := svc.Next(context.Background(), model.WorkflowTypeLeave, companyA)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("LV-%d-000001", year), first)

	// A different workflow type starts its own sequence.
	wfh, err := svc.Next(context.Background(), model.WorkflowTypeWFH, companyA)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("WF-%d-000001", year), wfh)

	// So does a different company.
	other, err := svc.Next(context.Background(), model.WorkflowTypeLeave, companyB)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("LV-%d-000001", year), other)

	second, err := svc.Next(context.Background(), model.WorkflowTypeLeave, companyA)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("LV-%d-000002", year), second)
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peoplecore/hrflow/internal/notification"
	"github.com/peoplecore/hrflow/internal/workflow/model"
)

// backdateSLA pushes the request's SLA window into the past so the next sweep
// picks it up.
func (f *engineFixture) backdateSLA(t *testing.T, requestID uuid.UUID) {
	t.Helper()
	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, f.db.Model(&model.Request{}).
		Where("id = ?", requestID).
		Update("sla_due_date", past).Error)
}

func newTestScheduler(f *engineFixture) *Scheduler {
	return NewScheduler(f.db, f.engine, time.Minute, 50, time.Hour)
}

func TestSweepAutoApprovesExpiredStage(t *testing.T) {
	f := newEngineFixture(t)
	request := f.submit(t, map[string]any{"duration": 2})
	f.backdateSLA(t, request.ID)

	result, err := newTestScheduler(f).RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Examined)
	assert.Equal(t, 1, result.AutoApproved)
	assert.Zero(t, result.Failed)

	reloaded := f.reload(t, request.ID)
	assert.Equal(t, 2, reloaded.CurrentStageOrder)
	assert.Equal(t, model.RequestStatusPending, reloaded.RequestStatus)
	require.NotNil(t, reloaded.SLADueDate)
	assert.True(t, reloaded.SLADueDate.After(time.Now().UTC()))

	assignments := f.assignments(t, request.ID)
	require.Len(t, assignments, 2)
	assert.Equal(t, model.AssignmentStatusExpired, assignments[0].AssignmentStatus)
	assert.Equal(t, model.AssignmentStatusPending, assignments[1].AssignmentStatus)

	var autoApprovals int64
	require.NoError(t, f.db.Model(&model.Action{}).
		Where("request_id = ? AND action_type = ? AND action_by_type = ?",
			request.ID, model.ActionTypeAutoApprove, model.ActorTypeSystem).
		Count(&autoApprovals).Error)
	assert.EqualValues(t, 1, autoApprovals)

	// The new stage's window is in the future, so a second sweep is a no-op.
	result, err = newTestScheduler(f).RunSweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Examined)
}

func TestSweepAutoRejectsExpiredStage(t *testing.T) {
	f := newEngineFixture(t)
	require.NoError(t, f.db.Model(&model.Stage{}).Where("id = ?", f.stage1ID).
		Update("on_timeout_action", model.TimeoutActionAutoReject).Error)

	request := f.submit(t, map[string]any{"duration": 2})
	f.backdateSLA(t, request.ID)

	result, err := newTestScheduler(f).RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.AutoRejected)

	reloaded := f.reload(t, request.ID)
	assert.Equal(t, model.RequestStatusAutoRejected, reloaded.RequestStatus)
	assert.Equal(t, model.OverallStatusRejected, reloaded.OverallStatus)
	assert.Nil(t, reloaded.CurrentStageID)

	assignments := f.assignments(t, request.ID)
	require.Len(t, assignments, 1)
	assert.Equal(t, model.AssignmentStatusExpired, assignments[0].AssignmentStatus)
}

func TestSweepEscalatesToConfiguredStage(t *testing.T) {
	f := newEngineFixture(t)
	require.NoError(t, f.db.Model(&model.Stage{}).Where("id = ?", f.stage1ID).
		Updates(map[string]any{
			"on_timeout_action":    model.TimeoutActionEscalate,
			"escalate_to_stage_id": f.stage2ID,
		}).Error)

	request := f.submit(t, map[string]any{"duration": 2})
	f.backdateSLA(t, request.ID)

	result, err := newTestScheduler(f).RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Escalated)

	reloaded := f.reload(t, request.ID)
	assert.Equal(t, 2, reloaded.CurrentStageOrder)

	// The expired stage's assignment set is retired, not decided.
	assignments := f.assignments(t, request.ID)
	require.Len(t, assignments, 2)
	assert.Equal(t, model.AssignmentStatusWithdrawn, assignments[0].AssignmentStatus)
	assert.Equal(t, f.hrAdmin.ID, assignments[1].ApproverUserID)

	var escalations int64
	require.NoError(t, f.db.Model(&model.Action{}).
		Where("request_id = ? AND action_type = ?", request.ID, model.ActionTypeEscalate).
		Count(&escalations).Error)
	assert.EqualValues(t, 1, escalations)
}

func TestSweepEscalateWithoutTargetFallsBackToReminder(t *testing.T) {
	f := newEngineFixture(t)
	require.NoError(t, f.db.Model(&model.Stage{}).Where("id = ?", f.stage1ID).
		Update("on_timeout_action", model.TimeoutActionEscalate).Error)

	request := f.submit(t, map[string]any{"duration": 2})
	f.backdateSLA(t, request.ID)

	result, err := newTestScheduler(f).RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Reminded)
	assert.Zero(t, result.Escalated)

	assert.Equal(t, 1, f.reload(t, request.ID).CurrentStageOrder)
}

func TestSweepRemindsAndRearmsWindow(t *testing.T) {
	f := newEngineFixture(t)
	request := f.submit(t, map[string]any{"duration": 2})
	_, err := f.engine.Approve(context.Background(), request.ID, f.manager.ID, "")
	require.NoError(t, err)

	// Stage two times out with the remind policy.
	f.backdateSLA(t, request.ID)

	result, err := newTestScheduler(f).RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Reminded)

	reloaded := f.reload(t, request.ID)
	assert.Equal(t, model.RequestStatusPending, reloaded.RequestStatus)
	assert.Equal(t, 2, reloaded.CurrentStageOrder)
	require.NotNil(t, reloaded.SLADueDate)
	assert.True(t, reloaded.SLADueDate.After(time.Now().UTC()))

	var assignment model.StageAssignment
	require.NoError(t, f.db.First(&assignment,
		"request_id = ? AND stage_id = ?", request.ID, f.stage2ID).Error)
	assert.Equal(t, 1, assignment.ReminderCount)
	assert.Equal(t, model.AssignmentStatusPending, assignment.AssignmentStatus)
	require.NotNil(t, assignment.DueDate)
	assert.True(t, assignment.DueDate.After(time.Now().UTC()))

	var reminders int64
	require.NoError(t, f.db.Model(&model.Action{}).
		Where("request_id = ? AND action_type = ?", request.ID, model.ActionTypeRemind).
		Count(&reminders).Error)
	assert.EqualValues(t, 1, reminders)

	// Re-armed window keeps the next sweep away from this request.
	result, err = newTestScheduler(f).RunSweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Examined)
}

type recordingGateway struct {
	events []notification.Event
}

func (g *recordingGateway) Notify(_ context.Context, event notification.Event) {
	g.events = append(g.events, event)
}

func TestWarningSweepEmitsWithoutMutating(t *testing.T) {
	f := newEngineFixture(t)
	request := f.submit(t, map[string]any{"duration": 2})

	rec := &recordingGateway{}
	f.engine.notifier = rec

	// Deadline still outside the one-hour warning window: nothing fires.
	scheduler := newTestScheduler(f)
	require.NoError(t, scheduler.RunWarningSweep(context.Background()))
	assert.Empty(t, rec.events)

	soon := time.Now().UTC().Add(30 * time.Minute)
	require.NoError(t, f.db.Model(&model.Request{}).
		Where("id = ?", request.ID).
		Update("sla_due_date", soon).Error)

	require.NoError(t, scheduler.RunWarningSweep(context.Background()))
	require.Len(t, rec.events, 1)
	assert.Equal(t, notification.EventSLAWarning, rec.events[0].EventType)
	assert.Equal(t, []uuid.UUID{f.manager.ID}, rec.events[0].Recipients)

	// The sweep is read-only: the request and its assignment are untouched.
	reloaded := f.reload(t, request.ID)
	assert.Equal(t, model.RequestStatusPending, reloaded.RequestStatus)
	assert.Equal(t, 1, reloaded.CurrentStageOrder)
	assignments := f.assignments(t, request.ID)
	require.Len(t, assignments, 1)
	assert.Equal(t, model.AssignmentStatusPending, assignments[0].AssignmentStatus)
	assert.Zero(t, assignments[0].ReminderCount)
}

func TestApplyTimeoutIsNoOpBeforeDueDate(t *testing.T) {
	f := newEngineFixture(t)
	request := f.submit(t, map[string]any{"duration": 2})

	outcome, err := f.engine.ApplyTimeout(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNone, outcome)
	assert.Equal(t, 1, f.reload(t, request.ID).CurrentStageOrder)
}

func TestApplyTimeoutIsNoOpOnTerminalRequest(t *testing.T) {
	f := newEngineFixture(t)
	request := f.submit(t, map[string]any{"duration": 2})
	_, err := f.engine.Reject(context.Background(), request.ID, f.manager.ID, "")
	require.NoError(t, err)

	outcome, err := f.engine.ApplyTimeout(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNone, outcome)
}

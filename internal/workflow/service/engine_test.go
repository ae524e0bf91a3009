package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/peoplecore/hrflow/internal/directory"
	"github.com/peoplecore/hrflow/internal/workflow/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every session on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&directory.Employee{},
		&directory.LeaveBalance{},
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
	))
	return db
}

// engineFixture is a two-stage leave workflow: reporting manager first, HR
// admin second, both ALL logic with SLA windows.
type engineFixture struct {
	db       *gorm.DB
	engine   *Engine
	company  uuid.UUID
	employee *directory.Employee
	manager  *directory.Employee
	hrAdmin  *directory.Employee
	def      *model.WorkflowDefinition
	stage1ID uuid.UUID
	stage2ID uuid.UUID
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	db := newTestDB(t)

	company := uuid.New()
	manager := &directory.Employee{ID: uuid.New(), CompanyID: company, Name: "Meera", IsActive: true}
	hrAdmin := &directory.Employee{ID: uuid.New(), CompanyID: company, Name: "Harish", IsHRAdmin: true, IsActive: true}
	employee := &directory.Employee{
		ID:                 uuid.New(),
		CompanyID:          company,
		Name:               "Priya",
		ReportingManagerID: &manager.ID,
		IsActive:           true,
	}
	require.NoError(t, db.Create(manager).Error)
	require.NoError(t, db.Create(hrAdmin).Error)
	require.NoError(t, db.Create(employee).Error)

	stage1ID := uuid.New()
	stage2ID := uuid.New()
	def := &model.WorkflowDefinition{
		CompanyID:    company,
		WorkflowType: model.WorkflowTypeLeave,
		Name:         "standard leave",
		IsDefault:    true,
		IsActive:     true,
		Stages: []model.Stage{
			{
				BaseModel:            model.BaseModel{ID: stage1ID},
				Order:                1,
				Name:                 "manager approval",
				Type:                 model.StageTypeApproval,
				ApproverLogic:        model.ApproverLogicAll,
				SLADays:              2,
				OnTimeoutAction:      model.TimeoutActionAutoApprove,
				NextStageOnApproveID: &stage2ID,
				OnRejectAction:       model.RejectActionFinalReject,
				Approvers: []model.StageApprover{
					{ApproverType: model.ApproverTypeReportingManager, Order: 1},
				},
			},
			{
				BaseModel:       model.BaseModel{ID: stage2ID},
				Order:           2,
				Name:            "hr approval",
				Type:            model.StageTypeApproval,
				ApproverLogic:   model.ApproverLogicAll,
				SLADays:         1,
				OnTimeoutAction: model.TimeoutActionRemind,
				OnRejectAction:  model.RejectActionFinalReject,
				Approvers: []model.StageApprover{
					{ApproverType: model.ApproverTypeHRAdmin, Order: 1},
				},
			},
		},
	}
	require.NoError(t, db.Create(def).Error)

	dir := directory.NewService(db)
	evaluator := NewConditionEvaluator()
	engine := NewEngine(db,
		NewApplicabilityService(db),
		evaluator,
		NewApproverResolver(dir, evaluator),
		dir, dir,
		NewRequestNumberService(db),
		nil)

	return &engineFixture{
		db:       db,
		engine:   engine,
		company:  company,
		employee: employee,
		manager:  manager,
		hrAdmin:  hrAdmin,
		def:      def,
		stage1ID: stage1ID,
		stage2ID: stage2ID,
	}
}

func (f *engineFixture) submit(t *testing.T, data map[string]any) *model.Request {
	t.Helper()
	request, err := f.engine.Submit(context.Background(), &model.SubmitRequestDTO{
		WorkflowType: model.WorkflowTypeLeave,
		EmployeeID:   f.employee.ID,
		RequestData:  data,
	}, f.employee.ID)
	require.NoError(t, err)
	return request
}

func (f *engineFixture) assignments(t *testing.T, requestID uuid.UUID) []model.StageAssignment {
	t.Helper()
	var rows []model.StageAssignment
	require.NoError(t, f.db.Order("created_at ASC").Find(&rows, "request_id = ?", requestID).Error)
	return rows
}

func (f *engineFixture) actions(t *testing.T, requestID uuid.UUID) []model.Action {
	t.Helper()
	var rows []model.Action
	require.NoError(t, f.db.Order("created_at ASC").Find(&rows, "request_id = ?", requestID).Error)
	return rows
}

func (f *engineFixture) reload(t *testing.T, requestID uuid.UUID) *model.Request {
	t.Helper()
	var req model.Request
	require.NoError(t, f.db.First(&req, "id = ?", requestID).Error)
	return &req
}

func TestSubmitCreatesAssignmentAndNumber(t *testing.T) {
	f := newEngineFixture(t)

	request := f.submit(t, map[string]any{"duration": 2})

	year := time.Now().UTC().Year()
	assert.Equal(t, fmt.Sprintf("LV-%d-000001", year), request.RequestNumber)
	assert.Equal(t, model.RequestStatusPending, request.RequestStatus)
	assert.Equal(t, model.OverallStatusInProgress, request.OverallStatus)
	assert.Equal(t, 1, request.CurrentStageOrder)
	require.NotNil(t, request.SLADueDate)
	assert.True(t, request.SLADueDate.After(time.Now().UTC()))

	assignments := f.assignments(t, request.ID)
	require.Len(t, assignments, 1)
	assert.Equal(t, f.manager.ID, assignments[0].ApproverUserID)
	assert.Equal(t, model.AssignmentStatusPending, assignments[0].AssignmentStatus)

	actions := f.actions(t, request.ID)
	require.Len(t, actions, 1)
	assert.Equal(t, model.ActionTypeSubmit, actions[0].ActionType)

	second := f.submit(t, map[string]any{"duration": 1})
	assert.Equal(t, fmt.Sprintf("LV-%d-000002", year), second.RequestNumber)
}

func TestApproveThroughBothStages(t *testing.T) {
	f := newEngineFixture(t)
	request := f.submit(t, map[string]any{"duration": 2})

	afterManager, err := f.engine.Approve(context.Background(), request.ID, f.manager.ID, "ok")
	require.NoError(t, err)
	assert.Equal(t, 2, afterManager.CurrentStageOrder)
	assert.Equal(t, model.RequestStatusPending, afterManager.RequestStatus)

	assignments := f.assignments(t, request.ID)
	require.Len(t, assignments, 2)
	assert.Equal(t, model.AssignmentStatusApproved, assignments[0].AssignmentStatus)
	assert.NotNil(t, assignments[0].ActedAt)
	assert.Equal(t, f.hrAdmin.ID, assignments[1].ApproverUserID)

	final, err := f.engine.Approve(context.Background(), request.ID, f.hrAdmin.ID, "approved")
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusApproved, final.RequestStatus)
	assert.Equal(t, model.OverallStatusCompleted, final.OverallStatus)
	assert.Nil(t, final.CurrentStageID)
	assert.NotNil(t, final.CompletedAt)
	assert.Nil(t, final.SLADueDate)
}

func TestRejectFinalizesRequest(t *testing.T) {
	f := newEngineFixture(t)
	request := f.submit(t, map[string]any{"duration": 2})

	rejected, err := f.engine.Reject(context.Background(), request.ID, f.manager.ID, "not now")
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusRejected, rejected.RequestStatus)
	assert.Equal(t, model.OverallStatusRejected, rejected.OverallStatus)
	assert.Nil(t, rejected.CurrentStageID)

	assignments := f.assignments(t, request.ID)
	require.Len(t, assignments, 1)
	assert.Equal(t, model.AssignmentStatusRejected, assignments[0].AssignmentStatus)
}

func TestSecondDecisionOnSameAssignmentConflicts(t *testing.T) {
	f := newEngineFixture(t)
	request := f.submit(t, map[string]any{"duration": 2})

	_, err := f.engine.Approve(context.Background(), request.ID, f.manager.ID, "")
	require.NoError(t, err)

	// The manager's assignment is already decided; a second decision must
	// fail and must not write another action for stage one.
	_, err = f.engine.Approve(context.Background(), request.ID, f.manager.ID, "")
	assert.ErrorIs(t, err, ErrNoPendingAssignment)

	// An actor with no assignment on the current stage gets the same error.
	_, err = f.engine.Reject(context.Background(), request.ID, f.employee.ID, "")
	assert.ErrorIs(t, err, ErrNoPendingAssignment)

	actions := f.actions(t, request.ID)
	var approvals int
	for _, a := range actions {
		if a.ActionType == model.ActionTypeApprove {
			approvals++
		}
	}
	assert.Equal(t, 1, approvals)
}

func TestDecisionOnTerminalRequestConflicts(t *testing.T) {
	f := newEngineFixture(t)
	request := f.submit(t, map[string]any{"duration": 2})

	_, err := f.engine.Reject(context.Background(), request.ID, f.manager.ID, "")
	require.NoError(t, err)

	_, err = f.engine.Approve(context.Background(), request.ID, f.hrAdmin.ID, "")
	assert.ErrorIs(t, err, ErrRequestNotPending)
}

func TestWithdrawOnlyBySubmitter(t *testing.T) {
	f := newEngineFixture(t)
	request := f.submit(t, map[string]any{"duration": 2})

	_, err := f.engine.Withdraw(context.Background(), request.ID, f.manager.ID, "")
	assert.ErrorIs(t, err, ErrNotSubmitter)

	withdrawn, err := f.engine.Withdraw(context.Background(), request.ID, f.employee.ID, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusWithdrawn, withdrawn.RequestStatus)
	assert.Equal(t, model.OverallStatusWithdrawn, withdrawn.OverallStatus)

	assignments := f.assignments(t, request.ID)
	require.Len(t, assignments, 1)
	assert.Equal(t, model.AssignmentStatusWithdrawn, assignments[0].AssignmentStatus)

	// Terminal requests cannot be withdrawn again.
	_, err = f.engine.Withdraw(context.Background(), request.ID, f.employee.ID, "")
	assert.ErrorIs(t, err, ErrRequestNotPending)
}

func TestAnyLogicSingleApprovalAdvances(t *testing.T) {
	f := newEngineFixture(t)

	// Rework stage two to ANY logic with two approvers.
	subAdmin := &directory.Employee{ID: uuid.New(), CompanyID: f.company, Name: "Sana", IsSubAdmin: true, IsActive: true}
	require.NoError(t, f.db.Create(subAdmin).Error)
	require.NoError(t, f.db.Model(&model.Stage{}).Where("id = ?", f.stage2ID).
		Update("approver_logic", model.ApproverLogicAny).Error)
	require.NoError(t, f.db.Create(&model.StageApprover{
		StageID:      f.stage2ID,
		ApproverType: model.ApproverTypeSubAdmin,
		Order:        2,
	}).Error)

	request := f.submit(t, map[string]any{"duration": 2})
	_, err := f.engine.Approve(context.Background(), request.ID, f.manager.ID, "")
	require.NoError(t, err)

	final, err := f.engine.Approve(context.Background(), request.ID, f.hrAdmin.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusApproved, final.RequestStatus)

	// The sibling assignment is left pending for the audit trail.
	assignments := f.assignments(t, request.ID)
	var siblingStatus model.AssignmentStatus
	for _, a := range assignments {
		if a.ApproverUserID == subAdmin.ID {
			siblingStatus = a.AssignmentStatus
		}
	}
	assert.Equal(t, model.AssignmentStatusPending, siblingStatus)
}

func TestRejectWithSendBackReturnsToEarlierStage(t *testing.T) {
	f := newEngineFixture(t)

	require.NoError(t, f.db.Model(&model.Stage{}).Where("id = ?", f.stage2ID).
		Updates(map[string]any{
			"on_reject_action":       model.RejectActionSendBack,
			"reject_target_stage_id": f.stage1ID,
		}).Error)

	request := f.submit(t, map[string]any{"duration": 2})
	_, err := f.engine.Approve(context.Background(), request.ID, f.manager.ID, "")
	require.NoError(t, err)

	returned, err := f.engine.Reject(context.Background(), request.ID, f.hrAdmin.ID, "needs manager confirmation")
	require.NoError(t, err)
	assert.Equal(t, 1, returned.CurrentStageOrder)
	assert.Equal(t, model.RequestStatusPending, returned.RequestStatus)

	// A fresh manager assignment exists; the original approved one is untouched.
	assignments := f.assignments(t, request.ID)
	var pendingManager, approvedManager int
	for _, a := range assignments {
		if a.ApproverUserID != f.manager.ID {
			continue
		}
		switch a.AssignmentStatus {
		case model.AssignmentStatusPending:
			pendingManager++
		case model.AssignmentStatusApproved:
			approvedManager++
		}
	}
	assert.Equal(t, 1, pendingManager)
	assert.Equal(t, 1, approvedManager)

	// The request can complete normally after the send-back loop.
	_, err = f.engine.Approve(context.Background(), request.ID, f.manager.ID, "")
	require.NoError(t, err)
	final, err := f.engine.Approve(context.Background(), request.ID, f.hrAdmin.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusApproved, final.RequestStatus)
}

func TestGlobalConditionShortCircuits(t *testing.T) {
	f := newEngineFixture(t)

	// Requests of a single day auto-approve before any stage is entered.
	cond := model.Condition{
		DefinitionID: f.def.ID,
		Name:         "single day auto approval",
		Priority:     1,
		Combinator:   model.CombinatorAnd,
		ActionType:   model.ActionAutoApprove,
		IsActive:     true,
		Rules: []model.ConditionRule{
			{
				FieldSource:  model.FieldSourceRequest,
				FieldName:    "duration",
				FieldType:    model.ValueKindNumber,
				Operator:     model.OperatorLte,
				CompareValue: "1",
			},
		},
	}
	require.NoError(t, f.db.Create(&cond).Error)

	request := f.submit(t, map[string]any{"duration": 1})
	assert.Equal(t, model.RequestStatusAutoApproved, request.RequestStatus)
	assert.Equal(t, model.OverallStatusCompleted, request.OverallStatus)
	assert.Empty(t, f.assignments(t, request.ID))

	actions := f.actions(t, request.ID)
	require.Len(t, actions, 2)
	assert.Equal(t, model.ActionTypeSubmit, actions[0].ActionType)
	assert.Equal(t, model.ActionTypeAutoApprove, actions[1].ActionType)
	assert.Equal(t, model.ActorTypeSystem, actions[1].ActionByType)

	// Longer requests still take the normal path.
	normal := f.submit(t, map[string]any{"duration": 4})
	assert.Equal(t, model.RequestStatusPending, normal.RequestStatus)
}

func TestStageConditionSkipsStage(t *testing.T) {
	f := newEngineFixture(t)

	cond := model.Condition{
		DefinitionID: f.def.ID,
		StageID:      &f.stage1ID,
		Name:         "skip manager for short leave",
		Priority:     1,
		Combinator:   model.CombinatorAnd,
		ActionType:   model.ActionSkipStage,
		IsActive:     true,
		Rules: []model.ConditionRule{
			{
				FieldSource:  model.FieldSourceRequest,
				FieldName:    "duration",
				FieldType:    model.ValueKindNumber,
				Operator:     model.OperatorLt,
				CompareValue: "2",
			},
		},
	}
	require.NoError(t, f.db.Create(&cond).Error)

	request := f.submit(t, map[string]any{"duration": 1})
	assert.Equal(t, 2, request.CurrentStageOrder)

	assignments := f.assignments(t, request.ID)
	require.Len(t, assignments, 1)
	assert.Equal(t, f.hrAdmin.ID, assignments[0].ApproverUserID)

	var skip int64
	require.NoError(t, f.db.Model(&model.Action{}).
		Where("request_id = ? AND action_type = ?", request.ID, model.ActionTypeSkip).
		Count(&skip).Error)
	assert.EqualValues(t, 1, skip)
}

func TestSubmitWithoutDefinitionFails(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.Submit(context.Background(), &model.SubmitRequestDTO{
		WorkflowType: model.WorkflowTypeWFH,
		EmployeeID:   f.employee.ID,
	}, f.employee.ID)
	assert.ErrorIs(t, err, ErrNoDefinitionConfigured)
}

func TestGetPendingApprovalsFor(t *testing.T) {
	f := newEngineFixture(t)
	request := f.submit(t, map[string]any{"duration": 2})

	pending, err := f.engine.GetPendingApprovalsFor(context.Background(), f.manager.ID, 0, 20)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, request.ID, pending[0].RequestID)
	assert.Equal(t, request.RequestNumber, pending[0].RequestNumber)
	assert.Equal(t, 1, pending[0].StageOrder)

	// Nothing pending for the HR admin until stage two opens.
	pending, err = f.engine.GetPendingApprovalsFor(context.Background(), f.hrAdmin.ID, 0, 20)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGetDetailsIncludesTrail(t *testing.T) {
	f := newEngineFixture(t)
	request := f.submit(t, map[string]any{"duration": 2})
	_, err := f.engine.Approve(context.Background(), request.ID, f.manager.ID, "fine by me")
	require.NoError(t, err)

	details, err := f.engine.GetDetails(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, request.RequestNumber, details.RequestNumber)
	assert.Len(t, details.Assignments, 2)
	assert.Len(t, details.Actions, 2)

	_, err = f.engine.GetDetails(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/peoplecore/hrflow/internal/directory"
	"github.com/peoplecore/hrflow/internal/metrics"
	"github.com/peoplecore/hrflow/internal/notification"
	"github.com/peoplecore/hrflow/internal/workflow/model"
)

// maxStageHops bounds skip/move routing within one transition so a
// misconfigured definition cannot loop forever.
const maxStageHops = 32

// Engine is the workflow execution core: it orchestrates submission, stage
// transitions, decision recording, withdrawal, and finalization for one
// request at a time. Every transition runs as a single transaction against
// the request, assignment, and action tables; notification dispatch happens
// after commit and is best-effort.
type Engine struct {
	db            *gorm.DB
	applicability *ApplicabilityService
	evaluator     *ConditionEvaluator
	approvers     *ApproverResolver
	dir           directory.Directory
	balances      directory.BalanceProvider
	numbers       *RequestNumberService
	notifier      notification.Gateway
}

func NewEngine(
	db *gorm.DB,
	applicability *ApplicabilityService,
	evaluator *ConditionEvaluator,
	approvers *ApproverResolver,
	dir directory.Directory,
	balances directory.BalanceProvider,
	numbers *RequestNumberService,
	notifier notification.Gateway,
) *Engine {
	return &Engine{
		db:            db,
		applicability: applicability,
		evaluator:     evaluator,
		approvers:     approvers,
		dir:           dir,
		balances:      balances,
		numbers:       numbers,
		notifier:      notifier,
	}
}

// Submit creates a request for the employee, selects the applicable
// definition, evaluates global conditions, and either finalizes immediately
// or enters the first stage.
func (e *Engine) Submit(ctx context.Context, dto *model.SubmitRequestDTO, submittedBy uuid.UUID) (*model.Request, error) {
	if dto == nil {
		return nil, fmt.Errorf("submit payload cannot be nil")
	}
	if !dto.WorkflowType.Valid() {
		return nil, fmt.Errorf("unknown workflow type %q", dto.WorkflowType)
	}

	employee, err := e.dir.GetEmployee(ctx, dto.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}

	definition, err := e.applicability.Resolve(ctx, employee, dto.WorkflowType)
	if err != nil {
		return nil, err
	}
	definition, err = e.loadDefinitionGraph(ctx, definition.ID)
	if err != nil {
		return nil, err
	}

	requestData := dto.RequestData
	if requestData == nil {
		requestData = map[string]any{}
	}
	if dto.LeaveTypeID != nil {
		requestData["leave_type_id"] = dto.LeaveTypeID.String()
	}

	evalCtx := e.buildEvalContext(ctx, employee, requestData)

	var request *model.Request
	var events []notification.Event

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := e.numbers.NextInTx(ctx, tx, dto.WorkflowType, employee.CompanyID)
		if err != nil {
			return err
		}

		request = &model.Request{
			RequestNumber:        number,
			WorkflowDefinitionID: definition.ID,
			WorkflowType:         dto.WorkflowType,
			CompanyID:            employee.CompanyID,
			EmployeeID:           employee.ID,
			SubmittedBy:          submittedBy,
			RequestData:          requestData,
			RequestStatus:        model.RequestStatusSubmitted,
			OverallStatus:        model.OverallStatusInProgress,
		}
		if err := tx.Create(request).Error; err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		if err := e.writeAction(tx, request.ID, nil, model.ActionTypeSubmit, &submittedBy, model.ActorTypeUser, ""); err != nil {
			return err
		}

		verdict := e.evaluator.Evaluate(globalConditions(definition), evalCtx)
		switch verdict.Action {
		case model.ActionAutoApprove:
			events = append(events, e.finalEvent(request, notification.EventRequestApproved, nil))
			return e.finalizeInTx(tx, request, model.RequestStatusAutoApproved, model.ActionTypeAutoApprove, nil, "auto-approved by workflow condition")
		case model.ActionAutoReject:
			events = append(events, e.finalEvent(request, notification.EventRequestRejected, nil))
			return e.finalizeInTx(tx, request, model.RequestStatusAutoRejected, model.ActionTypeAutoReject, nil, "auto-rejected by workflow condition")
		}

		entry, err := e.entryStage(definition, verdict)
		if err != nil {
			return err
		}
		return e.processStage(ctx, tx, request, definition, entry, evalCtx, 0, &events)
	})
	if err != nil {
		return nil, err
	}

	metrics.RequestsSubmitted.WithLabelValues(string(dto.WorkflowType)).Inc()
	events = append([]notification.Event{{
		EventType:  notification.EventRequestSubmitted,
		CompanyID:  request.CompanyID,
		RequestID:  request.ID,
		ActorID:    &submittedBy,
		Recipients: []uuid.UUID{request.EmployeeID},
	}}, events...)
	e.emit(ctx, events)

	return request, nil
}

// Approve records an approval decision by the actor on the request's current stage.
func (e *Engine) Approve(ctx context.Context, requestID, actorID uuid.UUID, remarks string) (*model.Request, error) {
	req, err := e.recordDecision(ctx, requestID, actorID, model.ActorTypeUser, true, remarks)
	if err == nil {
		metrics.DecisionsRecorded.WithLabelValues("approve").Inc()
	}
	return req, err
}

// Reject records a rejection by the actor on the request's current stage.
func (e *Engine) Reject(ctx context.Context, requestID, actorID uuid.UUID, remarks string) (*model.Request, error) {
	req, err := e.recordDecision(ctx, requestID, actorID, model.ActorTypeUser, false, remarks)
	if err == nil {
		metrics.DecisionsRecorded.WithLabelValues("reject").Inc()
	}
	return req, err
}

// recordDecision is the shared approve/reject path. actorType system is used
// by the SLA scheduler to apply timeout decisions through the same logic.
func (e *Engine) recordDecision(ctx context.Context, requestID, actorID uuid.UUID, actorType model.ActorType, approve bool, remarks string) (*model.Request, error) {
	var request *model.Request
	var events []notification.Event

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := lockRequest(tx, requestID)
		if err != nil {
			return err
		}
		request = req

		if req.RequestStatus != model.RequestStatusPending && req.RequestStatus != model.RequestStatusInProgress {
			return ErrRequestNotPending
		}
		if req.CurrentStageID == nil {
			return ErrNoPendingAssignment
		}

		definition, err := e.loadDefinitionGraphInTx(tx, req.WorkflowDefinitionID)
		if err != nil {
			return err
		}
		stage, err := stageByID(definition, *req.CurrentStageID)
		if err != nil {
			return err
		}

		actionType := model.ActionTypeApprove
		status := model.AssignmentStatusApproved
		if !approve {
			actionType = model.ActionTypeReject
			status = model.AssignmentStatusRejected
		}
		if actorType == model.ActorTypeSystem {
			if approve {
				actionType = model.ActionTypeAutoApprove
			} else {
				actionType = model.ActionTypeAutoReject
			}
		}

		action := &model.Action{
			RequestID:    req.ID,
			StageID:      req.CurrentStageID,
			ActionType:   actionType,
			ActionBy:     &actorID,
			ActionByType: actorType,
			Remarks:      remarks,
		}
		if err := tx.Create(action).Error; err != nil {
			return fmt.Errorf("failed to write action: %w", err)
		}

		// Compare-and-set against pending status: if another actor already
		// decided this assignment, zero rows update and the transaction rolls
		// back, leaving no duplicate action row.
		now := time.Now().UTC()
		result := tx.Model(&model.StageAssignment{}).
			Where("request_id = ? AND stage_id = ? AND approver_user_id = ? AND assignment_status = ?",
				req.ID, *req.CurrentStageID, actorID, model.AssignmentStatusPending).
			Updates(map[string]any{
				"assignment_status": status,
				"acted_at":          now,
				"action_id":         action.ID,
				"updated_at":        now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update assignment: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNoPendingAssignment
		}

		if !approve {
			return e.applyRejection(ctx, tx, req, definition, stage, &actorID, actorType, &events)
		}

		complete, err := stageComplete(tx, req, stage)
		if err != nil {
			return err
		}
		if !complete {
			// More approvals outstanding under ALL logic; keep the stage open.
			req.RequestStatus = model.RequestStatusInProgress
			return saveRequest(tx, req)
		}
		return e.advanceAfterApproval(ctx, tx, req, definition, stage, &events)
	})
	if err != nil {
		return nil, err
	}

	e.emit(ctx, events)
	return request, nil
}

// Withdraw cancels a non-terminal request. Only the original submitter may
// withdraw; outstanding pending assignments are marked withdrawn and the
// action history is preserved.
func (e *Engine) Withdraw(ctx context.Context, requestID, actorID uuid.UUID, remarks string) (*model.Request, error) {
	var request *model.Request

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := lockRequest(tx, requestID)
		if err != nil {
			return err
		}
		request = req

		if req.RequestStatus.Terminal() {
			return ErrRequestNotPending
		}
		if req.SubmittedBy != actorID {
			return ErrNotSubmitter
		}

		if err := e.writeAction(tx, req.ID, req.CurrentStageID, model.ActionTypeWithdraw, &actorID, model.ActorTypeUser, remarks); err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := tx.Model(&model.StageAssignment{}).
			Where("request_id = ? AND assignment_status = ?", req.ID, model.AssignmentStatusPending).
			Updates(map[string]any{
				"assignment_status": model.AssignmentStatusWithdrawn,
				"updated_at":        now,
			}).Error; err != nil {
			return fmt.Errorf("failed to withdraw assignments: %w", err)
		}

		req.RequestStatus = model.RequestStatusWithdrawn
		req.OverallStatus = model.OverallStatusWithdrawn
		req.CurrentStageID = nil
		req.CurrentStageOrder = 0
		req.CompletedAt = &now
		return saveRequest(tx, req)
	})
	if err != nil {
		return nil, err
	}

	e.emit(ctx, []notification.Event{e.finalEvent(request, notification.EventRequestWithdrawn, &actorID)})
	return request, nil
}

// GetDetails returns the full view of a request including its assignments and
// append-only action trail.
func (e *Engine) GetDetails(ctx context.Context, requestID uuid.UUID) (*model.RequestDetailsDTO, error) {
	var req model.Request
	result := e.db.WithContext(ctx).
		Preload("Assignments").
		Preload("Actions").
		First(&req, "id = ?", requestID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to load request: %w", result.Error)
	}

	return &model.RequestDetailsDTO{
		ID:                req.ID,
		RequestNumber:     req.RequestNumber,
		WorkflowType:      req.WorkflowType,
		EmployeeID:        req.EmployeeID,
		SubmittedBy:       req.SubmittedBy,
		RequestData:       req.RequestData,
		RequestStatus:     req.RequestStatus,
		OverallStatus:     req.OverallStatus,
		CurrentStageID:    req.CurrentStageID,
		CurrentStageOrder: req.CurrentStageOrder,
		SLADueDate:        req.SLADueDate,
		CreatedAt:         req.CreatedAt,
		CompletedAt:       req.CompletedAt,
		Assignments:       req.Assignments,
		Actions:           req.Actions,
	}, nil
}

// GetPendingApprovalsFor lists the acting user's pending assignments on
// non-terminal requests, newest submissions first.
func (e *Engine) GetPendingApprovalsFor(ctx context.Context, userID uuid.UUID, offset, limit int) ([]model.PendingApprovalDTO, error) {
	var assignments []model.StageAssignment
	err := e.db.WithContext(ctx).
		Joins("JOIN workflow_requests ON workflow_requests.id = workflow_stage_assignments.request_id").
		Where("workflow_stage_assignments.approver_user_id = ? AND workflow_stage_assignments.assignment_status = ?",
			userID, model.AssignmentStatusPending).
		Where("workflow_requests.overall_status = ?", model.OverallStatusInProgress).
		Where("workflow_requests.current_stage_id = workflow_stage_assignments.stage_id").
		Order("workflow_stage_assignments.created_at DESC").
		Offset(offset).Limit(limit).
		Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending approvals: %w", err)
	}

	dtos := make([]model.PendingApprovalDTO, 0, len(assignments))
	for _, a := range assignments {
		var req model.Request
		if err := e.db.WithContext(ctx).Select("id", "request_number", "workflow_type", "employee_id", "created_at").
			First(&req, "id = ?", a.RequestID).Error; err != nil {
			return nil, fmt.Errorf("failed to load request %s: %w", a.RequestID, err)
		}
		dtos = append(dtos, model.PendingApprovalDTO{
			AssignmentID:  a.ID,
			RequestID:     a.RequestID,
			RequestNumber: req.RequestNumber,
			WorkflowType:  req.WorkflowType,
			EmployeeID:    req.EmployeeID,
			StageOrder:    a.StageOrder,
			DueDate:       a.DueDate,
			SubmittedAt:   req.CreatedAt,
		})
	}
	return dtos, nil
}

// ListRequests returns requests matching the filter, newest first.
func (e *Engine) ListRequests(ctx context.Context, filter model.RequestFilter, offset, limit int) ([]model.Request, error) {
	query := e.db.WithContext(ctx).Model(&model.Request{})
	if filter.EmployeeID != nil {
		query = query.Where("employee_id = ?", *filter.EmployeeID)
	}
	if filter.RequestStatus != nil {
		query = query.Where("request_status = ?", *filter.RequestStatus)
	}
	if filter.WorkflowType != nil {
		query = query.Where("workflow_type = ?", *filter.WorkflowType)
	}

	var requests []model.Request
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, nil
}

// ── Stage processing ──

// processStage routes the request into the given stage: stage-scoped
// conditions may skip or reroute; otherwise approvers are resolved,
// assignments created, and the SLA window started. hops guards routing loops.
func (e *Engine) processStage(ctx context.Context, tx *gorm.DB, req *model.Request, definition *model.WorkflowDefinition, stage *model.Stage, evalCtx *EvalContext, hops int, events *[]notification.Event) error {
	if hops >= maxStageHops {
		return fmt.Errorf("stage routing exceeded %d hops on request %s", maxStageHops, req.ID)
	}

	verdict := e.evaluator.Evaluate(stageConditions(definition, stage.ID), evalCtx)
	var approverOverride *model.ApproverType
	switch verdict.Action {
	case model.ActionAutoApprove:
		*events = append(*events, e.finalEvent(req, notification.EventRequestApproved, nil))
		return e.finalizeInTx(tx, req, model.RequestStatusAutoApproved, model.ActionTypeAutoApprove, &stage.ID, "auto-approved by stage condition")
	case model.ActionAutoReject:
		*events = append(*events, e.finalEvent(req, notification.EventRequestRejected, nil))
		return e.finalizeInTx(tx, req, model.RequestStatusAutoRejected, model.ActionTypeAutoReject, &stage.ID, "auto-rejected by stage condition")
	case model.ActionSkipStage:
		if err := e.writeAction(tx, req.ID, &stage.ID, model.ActionTypeSkip, nil, model.ActorTypeSystem, "stage skipped by condition"); err != nil {
			return err
		}
		return e.advanceToNext(ctx, tx, req, definition, stage, evalCtx, hops+1, model.RequestStatusAutoApproved, events)
	case model.ActionMoveToStage:
		if verdict.TargetStageID == nil {
			return fmt.Errorf("move_to_stage condition on stage %s has no target", stage.ID)
		}
		target, err := stageByID(definition, *verdict.TargetStageID)
		if err != nil {
			return err
		}
		return e.processStage(ctx, tx, req, definition, target, evalCtx, hops+1, events)
	case model.ActionAssignApprover:
		approverOverride = verdict.TargetApproverType
	}

	if stage.Type == model.StageTypeNotifyOnly {
		if err := e.writeAction(tx, req.ID, &stage.ID, model.ActionTypeNotify, nil, model.ActorTypeSystem, "notify-only stage"); err != nil {
			return err
		}
		*events = append(*events, notification.Event{
			EventType:  notification.EventApprovalRequired,
			CompanyID:  req.CompanyID,
			RequestID:  req.ID,
			Recipients: []uuid.UUID{req.EmployeeID},
			Payload:    map[string]any{"stage": stage.Order, "notify_only": true},
		})
		return e.advanceToNext(ctx, tx, req, definition, stage, evalCtx, hops+1, model.RequestStatusAutoApproved, events)
	}

	employee := evalCtx.Employee
	resolved, err := e.resolveStageApprovers(ctx, stage, employee, evalCtx, approverOverride)
	if err != nil {
		return err
	}

	if stage.Type == model.StageTypeAutoAction || autoSatisfied(stage, resolved) {
		if err := e.writeAction(tx, req.ID, &stage.ID, model.ActionTypeAutoApprove, nil, model.ActorTypeSystem, "stage satisfied automatically"); err != nil {
			return err
		}
		return e.advanceToNext(ctx, tx, req, definition, stage, evalCtx, hops+1, model.RequestStatusAutoApproved, events)
	}

	// Retire any assignment set left on this stage by a prior visit so at
	// most one active set exists per (request, stage).
	if err := retireStageAssignments(tx, req.ID, stage.ID); err != nil {
		return err
	}

	now := time.Now().UTC()
	due := slaDueDate(stage, now)
	recipients := make([]uuid.UUID, 0, len(resolved))
	for _, approver := range resolved {
		if approver.Auto {
			continue
		}
		assignment := model.StageAssignment{
			RequestID:        req.ID,
			StageID:          stage.ID,
			StageOrder:       stage.Order,
			ApproverUserID:   approver.UserID,
			ApproverType:     approver.ApproverType,
			ApproverLogic:    stage.ApproverLogic,
			AssignmentStatus: model.AssignmentStatusPending,
			Order:            approver.Order,
			AllowDelegation:  approver.AllowDelegation,
			DueDate:          due,
		}
		if err := tx.Create(&assignment).Error; err != nil {
			return fmt.Errorf("failed to create assignment: %w", err)
		}
		recipients = append(recipients, approver.UserID)
	}

	req.CurrentStageID = &stage.ID
	req.CurrentStageOrder = stage.Order
	req.RequestStatus = model.RequestStatusPending
	req.SLADueDate = due
	if err := saveRequest(tx, req); err != nil {
		return err
	}

	*events = append(*events, notification.Event{
		EventType:  notification.EventApprovalRequired,
		CompanyID:  req.CompanyID,
		RequestID:  req.ID,
		Recipients: recipients,
		Payload:    map[string]any{"stage": stage.Order},
	})
	return nil
}

// resolveStageApprovers resolves the stage's configured approvers, or the
// single overriding token when an assign_approver condition fired.
func (e *Engine) resolveStageApprovers(ctx context.Context, stage *model.Stage, employee *directory.Employee, evalCtx *EvalContext, override *model.ApproverType) ([]ResolvedApprover, error) {
	if override != nil {
		synthetic := *stage
		synthetic.Approvers = []model.StageApprover{{
			StageID:      stage.ID,
			ApproverType: *override,
			Order:        1,
		}}
		return e.approvers.Resolve(ctx, &synthetic, employee, evalCtx)
	}
	return e.approvers.Resolve(ctx, stage, employee, evalCtx)
}

// advanceToNext moves past a completed/skipped stage: to the configured next
// stage, or to finalization with the given terminal status when none is
// configured. Human approvals finalize as approved, system paths as
// auto_approved.
func (e *Engine) advanceToNext(ctx context.Context, tx *gorm.DB, req *model.Request, definition *model.WorkflowDefinition, stage *model.Stage, evalCtx *EvalContext, hops int, finalStatus model.RequestStatus, events *[]notification.Event) error {
	if stage.NextStageOnApproveID != nil {
		next, err := stageByID(definition, *stage.NextStageOnApproveID)
		if err != nil {
			return err
		}
		return e.processStage(ctx, tx, req, definition, next, evalCtx, hops, events)
	}
	*events = append(*events, e.finalEvent(req, notification.EventRequestApproved, nil))
	return e.finalizeInTx(tx, req, finalStatus, "", nil, "")
}

// advanceAfterApproval handles a stage completed by approvals.
func (e *Engine) advanceAfterApproval(ctx context.Context, tx *gorm.DB, req *model.Request, definition *model.WorkflowDefinition, stage *model.Stage, events *[]notification.Event) error {
	evalCtx, err := e.rebuildEvalContext(ctx, req)
	if err != nil {
		return err
	}
	return e.advanceToNext(ctx, tx, req, definition, stage, evalCtx, 0, model.RequestStatusApproved, events)
}

// applyRejection applies the stage's on-reject routing after a rejection was
// recorded. Rejection is never outvoted: a single reject finalizes or
// reroutes regardless of approver logic.
func (e *Engine) applyRejection(ctx context.Context, tx *gorm.DB, req *model.Request, definition *model.WorkflowDefinition, stage *model.Stage, actorID *uuid.UUID, actorType model.ActorType, events *[]notification.Event) error {
	switch stage.OnRejectAction {
	case model.RejectActionMoveToStage, model.RejectActionSendBack:
		if stage.RejectTargetStageID == nil {
			break // Fall through to final rejection when no target is configured.
		}
		target, err := stageByID(definition, *stage.RejectTargetStageID)
		if err != nil {
			return err
		}
		if err := retireStageAssignments(tx, req.ID, stage.ID); err != nil {
			return err
		}
		actionType := model.ActionTypeSendBack
		if stage.OnRejectAction == model.RejectActionMoveToStage {
			actionType = model.ActionTypeEscalate
		}
		if err := e.writeAction(tx, req.ID, &stage.ID, actionType, actorID, actorType, "rerouted after rejection"); err != nil {
			return err
		}
		evalCtx, err := e.rebuildEvalContext(ctx, req)
		if err != nil {
			return err
		}
		return e.processStage(ctx, tx, req, definition, target, evalCtx, 0, events)
	}

	status := model.RequestStatusRejected
	if actorType == model.ActorTypeSystem {
		status = model.RequestStatusAutoRejected
	}
	*events = append(*events, e.finalEvent(req, notification.EventRequestRejected, actorID))
	return e.finalizeInTx(tx, req, status, "", nil, "")
}

// finalizeInTx stamps the terminal status. When auditAction is non-empty a
// system action row is written first (auto approve/reject short circuits).
// The status update is compare-and-set against non-terminal statuses so two
// racing finalizers cannot both succeed.
func (e *Engine) finalizeInTx(tx *gorm.DB, req *model.Request, status model.RequestStatus, auditAction model.ActionType, stageID *uuid.UUID, remarks string) error {
	if auditAction != "" {
		if err := e.writeAction(tx, req.ID, stageID, auditAction, nil, model.ActorTypeSystem, remarks); err != nil {
			return err
		}
	}

	overall := model.OverallStatusRejected
	if status == model.RequestStatusApproved || status == model.RequestStatusAutoApproved {
		overall = model.OverallStatusCompleted
	} else if status == model.RequestStatusWithdrawn {
		overall = model.OverallStatusWithdrawn
	}

	now := time.Now().UTC()
	result := tx.Model(&model.Request{}).
		Where("id = ? AND request_status IN ?", req.ID, []model.RequestStatus{
			model.RequestStatusSubmitted, model.RequestStatusPending, model.RequestStatusInProgress,
		}).
		Updates(map[string]any{
			"request_status":      status,
			"overall_status":      overall,
			"current_stage_id":    nil,
			"current_stage_order": 0,
			"sla_due_date":        nil,
			"completed_at":        now,
			"updated_at":          now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to finalize request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRequestNotPending
	}

	req.RequestStatus = status
	req.OverallStatus = overall
	req.CurrentStageID = nil
	req.CurrentStageOrder = 0
	req.SLADueDate = nil
	req.CompletedAt = &now
	return nil
}

// ── Helpers ──

func (e *Engine) writeAction(tx *gorm.DB, requestID uuid.UUID, stageID *uuid.UUID, actionType model.ActionType, actionBy *uuid.UUID, actorType model.ActorType, remarks string) error {
	action := &model.Action{
		RequestID:    requestID,
		StageID:      stageID,
		ActionType:   actionType,
		ActionBy:     actionBy,
		ActionByType: actorType,
		Remarks:      remarks,
	}
	if err := tx.Create(action).Error; err != nil {
		return fmt.Errorf("failed to write %s action: %w", actionType, err)
	}
	return nil
}

// buildEvalContext assembles the condition-evaluation snapshot. A missing
// leave balance degrades to absent context rather than failing the operation.
func (e *Engine) buildEvalContext(ctx context.Context, employee *directory.Employee, requestData map[string]any) *EvalContext {
	evalCtx := &EvalContext{
		Employee: employee,
		Request:  requestData,
	}
	if raw, ok := requestData["leave_type_id"].(string); ok && e.balances != nil {
		if leaveTypeID, err := uuid.Parse(raw); err == nil {
			balance, err := e.balances.GetLeaveBalance(ctx, employee.ID, leaveTypeID)
			if err != nil {
				slog.Warn("leave balance unavailable for condition context",
					"employeeID", employee.ID,
					"leaveTypeID", leaveTypeID,
					"error", err)
			} else {
				evalCtx.LeaveBalance = balance
			}
		}
	}
	return evalCtx
}

func (e *Engine) rebuildEvalContext(ctx context.Context, req *model.Request) (*EvalContext, error) {
	employee, err := e.dir.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}
	return e.buildEvalContext(ctx, employee, req.RequestData), nil
}

func (e *Engine) loadDefinitionGraph(ctx context.Context, definitionID uuid.UUID) (*model.WorkflowDefinition, error) {
	return e.loadDefinitionGraphInTx(e.db.WithContext(ctx), definitionID)
}

func (e *Engine) loadDefinitionGraphInTx(tx *gorm.DB, definitionID uuid.UUID) (*model.WorkflowDefinition, error) {
	var definition model.WorkflowDefinition
	result := tx.
		Preload("Stages", func(db *gorm.DB) *gorm.DB { return db.Order("stage_order ASC") }).
		Preload("Stages.Approvers").
		Preload("Stages.Approvers.Condition").
		Preload("Stages.Approvers.Condition.Rules").
		Preload("Conditions").
		Preload("Conditions.Rules").
		First(&definition, "id = ?", definitionID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("workflow definition %s not found", definitionID)
		}
		return nil, fmt.Errorf("failed to load workflow definition: %w", result.Error)
	}
	return &definition, nil
}

func (e *Engine) entryStage(definition *model.WorkflowDefinition, verdict Verdict) (*model.Stage, error) {
	if verdict.Action == model.ActionMoveToStage && verdict.TargetStageID != nil {
		return stageByID(definition, *verdict.TargetStageID)
	}
	return stageByOrder(definition, 1)
}

func (e *Engine) finalEvent(req *model.Request, eventType notification.EventType, actorID *uuid.UUID) notification.Event {
	recipients := []uuid.UUID{req.EmployeeID}
	if req.SubmittedBy != req.EmployeeID {
		recipients = append(recipients, req.SubmittedBy)
	}
	return notification.Event{
		EventType:  eventType,
		CompanyID:  req.CompanyID,
		RequestID:  req.ID,
		ActorID:    actorID,
		Recipients: recipients,
	}
}

func (e *Engine) emit(ctx context.Context, events []notification.Event) {
	if e.notifier == nil {
		return
	}
	for _, event := range events {
		e.notifier.Notify(ctx, event)
	}
}

// withUpdateLock adds FOR UPDATE where the dialect supports it. sqlite has no
// row locks; its transactions already serialize writers.
func withUpdateLock(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func lockRequest(tx *gorm.DB, requestID uuid.UUID) (*model.Request, error) {
	var req model.Request
	result := withUpdateLock(tx).First(&req, "id = ?", requestID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to load request: %w", result.Error)
	}
	return &req, nil
}

func saveRequest(tx *gorm.DB, req *model.Request) error {
	if err := tx.Save(req).Error; err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

// stageComplete reports whether the current stage is satisfied after an
// approval: under ANY logic a single approval suffices; under ALL logic no
// pending assignment may remain. Sibling pending assignments under ANY are
// deliberately left untouched so their audit rows survive.
func stageComplete(tx *gorm.DB, req *model.Request, stage *model.Stage) (bool, error) {
	if stage.ApproverLogic == model.ApproverLogicAny {
		return true, nil
	}
	var pending int64
	err := tx.Model(&model.StageAssignment{}).
		Where("request_id = ? AND stage_id = ? AND assignment_status = ?",
			req.ID, stage.ID, model.AssignmentStatusPending).
		Count(&pending).Error
	if err != nil {
		return false, fmt.Errorf("failed to count pending assignments: %w", err)
	}
	return pending == 0, nil
}

func retireStageAssignments(tx *gorm.DB, requestID, stageID uuid.UUID) error {
	now := time.Now().UTC()
	err := tx.Model(&model.StageAssignment{}).
		Where("request_id = ? AND stage_id = ? AND assignment_status = ?",
			requestID, stageID, model.AssignmentStatusPending).
		Updates(map[string]any{
			"assignment_status": model.AssignmentStatusWithdrawn,
			"updated_at":        now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to retire stage assignments: %w", err)
	}
	return nil
}

// autoSatisfied reports whether the resolved approver set completes the stage
// without human action: any auto entry under ANY logic, or an all-auto set.
func autoSatisfied(stage *model.Stage, resolved []ResolvedApprover) bool {
	autoCount := 0
	for _, approver := range resolved {
		if approver.Auto {
			autoCount++
		}
	}
	if autoCount == len(resolved) {
		return true
	}
	return stage.ApproverLogic == model.ApproverLogicAny && autoCount > 0
}

func slaDueDate(stage *model.Stage, now time.Time) *time.Time {
	if !stage.HasSLA() {
		return nil
	}
	due := now.Add(time.Duration(stage.SLADays)*24*time.Hour + time.Duration(stage.SLAHours)*time.Hour)
	return &due
}

func stageByID(definition *model.WorkflowDefinition, stageID uuid.UUID) (*model.Stage, error) {
	for i := range definition.Stages {
		if definition.Stages[i].ID == stageID {
			return &definition.Stages[i], nil
		}
	}
	return nil, fmt.Errorf("stage %s: %w", stageID, ErrStageNotFound)
}

func stageByOrder(definition *model.WorkflowDefinition, order int) (*model.Stage, error) {
	for i := range definition.Stages {
		if definition.Stages[i].Order == order {
			return &definition.Stages[i], nil
		}
	}
	return nil, fmt.Errorf("stage with order %d: %w", order, ErrStageNotFound)
}

func globalConditions(definition *model.WorkflowDefinition) []model.Condition {
	conditions := make([]model.Condition, 0, len(definition.Conditions))
	for _, c := range definition.Conditions {
		if c.StageID == nil {
			conditions = append(conditions, c)
		}
	}
	return conditions
}

func stageConditions(definition *model.WorkflowDefinition, stageID uuid.UUID) []model.Condition {
	conditions := make([]model.Condition, 0)
	for _, c := range definition.Conditions {
		if c.StageID != nil && *c.StageID == stageID {
			conditions = append(conditions, c)
		}
	}
	return conditions
}

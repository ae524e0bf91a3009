package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peoplecore/hrflow/internal/metrics"
	"github.com/peoplecore/hrflow/internal/notification"
	"github.com/peoplecore/hrflow/internal/workflow/model"
)

// TimeoutOutcome is what one expired request resolved to during a sweep.
type TimeoutOutcome string

const (
	OutcomeNone         TimeoutOutcome = "none"
	OutcomeAutoApproved TimeoutOutcome = "auto_approved"
	OutcomeAutoRejected TimeoutOutcome = "auto_rejected"
	OutcomeEscalated    TimeoutOutcome = "escalated"
	OutcomeReminded     TimeoutOutcome = "reminded"
)

// ApplyTimeout resolves an expired SLA window on one request according to the
// current stage's timeout policy. The due date is re-checked under the row
// lock, so concurrent sweeps and racing human decisions degrade to a no-op.
func (e *Engine) ApplyTimeout(ctx context.Context, requestID uuid.UUID) (TimeoutOutcome, error) {
	outcome := OutcomeNone
	var events []notification.Event

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := lockRequest(tx, requestID)
		if err != nil {
			return err
		}
		if req.RequestStatus.Terminal() || req.CurrentStageID == nil {
			return nil
		}
		now := time.Now().UTC()
		if req.SLADueDate == nil || req.SLADueDate.After(now) {
			return nil
		}

		definition, err := e.loadDefinitionGraphInTx(tx, req.WorkflowDefinitionID)
		if err != nil {
			return err
		}
		stage, err := stageByID(definition, *req.CurrentStageID)
		if err != nil {
			return err
		}

		switch stage.OnTimeoutAction {
		case model.TimeoutActionAutoApprove:
			if err := expireStageAssignments(tx, req.ID, stage.ID); err != nil {
				return err
			}
			if err := e.writeAction(tx, req.ID, &stage.ID, model.ActionTypeAutoApprove, nil, model.ActorTypeSystem, "approval window elapsed"); err != nil {
				return err
			}
			evalCtx, err := e.rebuildEvalContext(ctx, req)
			if err != nil {
				return err
			}
			outcome = OutcomeAutoApproved
			return e.advanceToNext(ctx, tx, req, definition, stage, evalCtx, 0, model.RequestStatusAutoApproved, &events)

		case model.TimeoutActionAutoReject:
			if err := expireStageAssignments(tx, req.ID, stage.ID); err != nil {
				return err
			}
			outcome = OutcomeAutoRejected
			events = append(events, e.finalEvent(req, notification.EventRequestRejected, nil))
			return e.finalizeInTx(tx, req, model.RequestStatusAutoRejected, model.ActionTypeAutoReject, &stage.ID, "approval window elapsed")

		case model.TimeoutActionEscalate:
			if stage.EscalateToStageID != nil {
				target, err := stageByID(definition, *stage.EscalateToStageID)
				if err != nil {
					return err
				}
				if err := retireStageAssignments(tx, req.ID, stage.ID); err != nil {
					return err
				}
				if err := e.writeAction(tx, req.ID, &stage.ID, model.ActionTypeEscalate, nil, model.ActorTypeSystem, "escalated after SLA expiry"); err != nil {
					return err
				}
				evalCtx, err := e.rebuildEvalContext(ctx, req)
				if err != nil {
					return err
				}
				outcome = OutcomeEscalated
				events = append(events, notification.Event{
					EventType:  notification.EventStageEscalated,
					CompanyID:  req.CompanyID,
					RequestID:  req.ID,
					Recipients: []uuid.UUID{req.EmployeeID},
					Payload:    map[string]any{"from_stage": stage.Order, "to_stage": target.Order},
				})
				return e.processStage(ctx, tx, req, definition, target, evalCtx, 0, &events)
			}
			// No escalation target configured; fall through to reminders.
			fallthrough

		default:
			recipients, err := remindStageAssignments(tx, req, stage)
			if err != nil {
				return err
			}
			if len(recipients) == 0 {
				return nil
			}
			if err := e.writeAction(tx, req.ID, &stage.ID, model.ActionTypeRemind, nil, model.ActorTypeSystem, "reminder after SLA expiry"); err != nil {
				return err
			}
			outcome = OutcomeReminded
			events = append(events, notification.Event{
				EventType:  notification.EventApprovalReminder,
				CompanyID:  req.CompanyID,
				RequestID:  req.ID,
				Recipients: recipients,
				Payload:    map[string]any{"stage": stage.Order},
			})
			return nil
		}
	})
	if err != nil {
		return OutcomeNone, err
	}

	if outcome != OutcomeNone {
		metrics.AutoActions.WithLabelValues(string(outcome)).Inc()
	}
	e.emit(ctx, events)
	return outcome, nil
}

func expireStageAssignments(tx *gorm.DB, requestID, stageID uuid.UUID) error {
	now := time.Now().UTC()
	err := tx.Model(&model.StageAssignment{}).
		Where("request_id = ? AND stage_id = ? AND assignment_status = ?",
			requestID, stageID, model.AssignmentStatusPending).
		Updates(map[string]any{
			"assignment_status": model.AssignmentStatusExpired,
			"updated_at":        now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to expire stage assignments: %w", err)
	}
	return nil
}

// remindStageAssignments bumps the reminder counter on every pending
// assignment of the stage and re-arms the SLA window so the next sweep does
// not remind again immediately.
func remindStageAssignments(tx *gorm.DB, req *model.Request, stage *model.Stage) ([]uuid.UUID, error) {
	var assignments []model.StageAssignment
	err := tx.Where("request_id = ? AND stage_id = ? AND assignment_status = ?",
		req.ID, stage.ID, model.AssignmentStatusPending).
		Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load pending assignments: %w", err)
	}
	if len(assignments) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	due := slaDueDate(stage, now)
	recipients := make([]uuid.UUID, 0, len(assignments))
	for _, a := range assignments {
		err := tx.Model(&model.StageAssignment{}).
			Where("id = ?", a.ID).
			Updates(map[string]any{
				"reminder_count": gorm.Expr("reminder_count + 1"),
				"due_date":       due,
				"updated_at":     now,
			}).Error
		if err != nil {
			return nil, fmt.Errorf("failed to update reminder count: %w", err)
		}
		recipients = append(recipients, a.ApproverUserID)
	}

	req.SLADueDate = due
	if err := saveRequest(tx, req); err != nil {
		return nil, err
	}
	return recipients, nil
}

// Scheduler periodically sweeps in-progress requests whose SLA window has
// elapsed and applies each stage's timeout policy through the engine. Sweeps
// are idempotent, so an external trigger may run alongside the ticker.
type Scheduler struct {
	db            *gorm.DB
	engine        *Engine
	interval      time.Duration
	batchSize     int
	warningWindow time.Duration // 0 disables the pre-deadline warning sweep

	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(db *gorm.DB, engine *Engine, interval time.Duration, batchSize int, warningWindow time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Scheduler{
		db:            db,
		engine:        engine,
		interval:      interval,
		batchSize:     batchSize,
		warningWindow: warningWindow,
	}
}

// Start launches the background sweep loop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		slog.Info("SLA scheduler started", "interval", s.interval)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("SLA scheduler stopped")
				return
			case <-ticker.C:
				if _, err := s.RunSweep(ctx); err != nil {
					slog.Error("SLA sweep failed", "error", err)
				}
				if err := s.RunWarningSweep(ctx); err != nil {
					slog.Error("SLA warning sweep failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// RunSweep processes one batch of expired requests and reports what happened.
// Per-request failures are logged and counted without aborting the sweep.
func (s *Scheduler) RunSweep(ctx context.Context) (*model.SweepResultDTO, error) {
	metrics.SweepRuns.Inc()

	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&model.Request{}).
		Where("overall_status = ? AND sla_due_date IS NOT NULL AND sla_due_date <= ?",
			model.OverallStatusInProgress, time.Now().UTC()).
		Order("sla_due_date ASC").
		Limit(s.batchSize).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired requests: %w", err)
	}

	result := &model.SweepResultDTO{Examined: len(ids)}
	for _, id := range ids {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		outcome, err := s.engine.ApplyTimeout(ctx, id)
		if err != nil {
			result.Failed++
			slog.Error("failed to apply SLA timeout", "requestID", id, "error", err)
			continue
		}
		switch outcome {
		case OutcomeAutoApproved:
			result.AutoApproved++
		case OutcomeAutoRejected:
			result.AutoRejected++
		case OutcomeEscalated:
			result.Escalated++
		case OutcomeReminded:
			result.Reminded++
		}
	}

	slog.Info("SLA sweep complete",
		"examined", result.Examined,
		"autoApproved", result.AutoApproved,
		"autoRejected", result.AutoRejected,
		"escalated", result.Escalated,
		"reminded", result.Reminded,
		"failed", result.Failed)
	return result, nil
}

// RunWarningSweep emits sla_warning events for in-progress requests whose SLA
// deadline falls inside the warning window. It mutates nothing, so warnings
// repeat each sweep until the deadline passes and the timeout policy takes
// over.
func (s *Scheduler) RunWarningSweep(ctx context.Context) error {
	if s.warningWindow <= 0 {
		return nil
	}

	now := time.Now().UTC()
	var requests []model.Request
	err := s.db.WithContext(ctx).
		Where("overall_status = ? AND sla_due_date > ? AND sla_due_date <= ?",
			model.OverallStatusInProgress, now, now.Add(s.warningWindow)).
		Order("sla_due_date ASC").
		Limit(s.batchSize).
		Find(&requests).Error
	if err != nil {
		return fmt.Errorf("failed to list requests nearing SLA: %w", err)
	}

	for _, req := range requests {
		if req.CurrentStageID == nil {
			continue
		}
		var recipients []uuid.UUID
		err := s.db.WithContext(ctx).Model(&model.StageAssignment{}).
			Where("request_id = ? AND stage_id = ? AND assignment_status = ?",
				req.ID, *req.CurrentStageID, model.AssignmentStatusPending).
			Pluck("approver_user_id", &recipients).Error
		if err != nil {
			slog.Error("failed to load assignees for SLA warning", "requestID", req.ID, "error", err)
			continue
		}
		if len(recipients) == 0 {
			continue
		}
		s.engine.emit(ctx, []notification.Event{{
			EventType:  notification.EventSLAWarning,
			CompanyID:  req.CompanyID,
			RequestID:  req.ID,
			Recipients: recipients,
			Payload: map[string]any{
				"stage":        req.CurrentStageOrder,
				"sla_due_date": req.SLADueDate,
			},
		}})
	}

	if len(requests) > 0 {
		slog.Info("SLA warning sweep complete", "warned", len(requests))
	}
	return nil
}

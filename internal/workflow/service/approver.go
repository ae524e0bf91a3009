package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/peoplecore/hrflow/internal/directory"
	"github.com/peoplecore/hrflow/internal/workflow/model"
)

// ResolvedApprover is one concrete actor produced for a stage. Auto marks the
// synthetic no-op approver representing automatic approval: no human actor,
// immediately satisfied.
type ResolvedApprover struct {
	UserID          uuid.UUID
	ApproverType    model.ApproverType
	Order           int
	AllowDelegation bool
	Auto            bool
}

// approverResolverFunc dereferences one approver-type token against the
// employee's organizational graph.
type approverResolverFunc func(ctx context.Context, dir directory.Directory, employee *directory.Employee, cfg *model.StageApprover) (*ResolvedApprover, error)

// ApproverResolver maps abstract stage approver tokens to concrete actors.
// Each token has one resolver function registered in a lookup table, so adding
// an approver type is a pure addition.
type ApproverResolver struct {
	dir       directory.Directory
	evaluator *ConditionEvaluator
	registry  map[model.ApproverType]approverResolverFunc
}

func NewApproverResolver(dir directory.Directory, evaluator *ConditionEvaluator) *ApproverResolver {
	r := &ApproverResolver{
		dir:       dir,
		evaluator: evaluator,
	}
	r.registry = map[model.ApproverType]approverResolverFunc{
		model.ApproverTypeReportingManager: resolveReportingManager,
		model.ApproverTypeManagersManager:  resolveManagersManager,
		model.ApproverTypeSecondaryManager: resolveSecondaryManager,
		model.ApproverTypeDepartmentHead:   resolveDepartmentHead,
		model.ApproverTypeHRAdmin:          resolveHRAdmin,
		model.ApproverTypeSubAdmin:         resolveSubAdmin,
		model.ApproverTypeSelf:             resolveSelf,
		model.ApproverTypeFixedUser:        resolveFixedUser,
		model.ApproverTypeAutoApprove:      resolveAutoApprove,
	}
	return r
}

// Resolve produces the concrete approver set for a stage. Approvers with a
// conditional guard that does not match are skipped; entries whose graph edge
// is absent are logged and omitted. It fails with ErrNoApproversResolved only
// when the resulting set is empty.
func (r *ApproverResolver) Resolve(ctx context.Context, stage *model.Stage, employee *directory.Employee, evalCtx *EvalContext) ([]ResolvedApprover, error) {
	configured := make([]model.StageApprover, len(stage.Approvers))
	copy(configured, stage.Approvers)
	sort.SliceStable(configured, func(i, j int) bool { return configured[i].Order < configured[j].Order })

	resolved := make([]ResolvedApprover, 0, len(configured))
	seen := make(map[uuid.UUID]bool)

	for i := range configured {
		cfg := &configured[i]

		if cfg.Condition != nil && !r.evaluator.EvaluateGuard(cfg.Condition, evalCtx) {
			continue
		}

		resolverFn, ok := r.registry[cfg.ApproverType]
		if !ok {
			slog.Warn("unknown approver type configured on stage",
				"stageID", stage.ID,
				"approverType", cfg.ApproverType)
			continue
		}

		approver, err := resolverFn(ctx, r.dir, employee, cfg)
		if err != nil {
			slog.Warn("approver lookup failed, omitting entry",
				"stageID", stage.ID,
				"approverType", cfg.ApproverType,
				"employeeID", employee.ID,
				"error", err)
			continue
		}

		if !approver.Auto {
			if seen[approver.UserID] {
				continue
			}
			seen[approver.UserID] = true
		}
		resolved = append(resolved, *approver)
	}

	if len(resolved) == 0 {
		return nil, fmt.Errorf("stage %s: %w", stage.ID, ErrNoApproversResolved)
	}
	return resolved, nil
}

func resolveReportingManager(ctx context.Context, dir directory.Directory, employee *directory.Employee, cfg *model.StageApprover) (*ResolvedApprover, error) {
	if employee.ReportingManagerID == nil {
		return nil, fmt.Errorf("employee %s has no reporting manager: %w", employee.ID, ErrApproverLookupFailed)
	}
	return fromConfig(cfg, *employee.ReportingManagerID), nil
}

func resolveManagersManager(ctx context.Context, dir directory.Directory, employee *directory.Employee, cfg *model.StageApprover) (*ResolvedApprover, error) {
	if employee.ReportingManagerID == nil {
		return nil, fmt.Errorf("employee %s has no reporting manager: %w", employee.ID, ErrApproverLookupFailed)
	}
	manager, err := dir.GetEmployee(ctx, *employee.ReportingManagerID)
	if err != nil {
		return nil, fmt.Errorf("manager lookup: %w", ErrApproverLookupFailed)
	}
	if manager.ReportingManagerID == nil {
		return nil, fmt.Errorf("manager %s has no reporting manager: %w", manager.ID, ErrApproverLookupFailed)
	}
	return fromConfig(cfg, *manager.ReportingManagerID), nil
}

func resolveSecondaryManager(ctx context.Context, dir directory.Directory, employee *directory.Employee, cfg *model.StageApprover) (*ResolvedApprover, error) {
	if employee.SecondaryReportingManagerID == nil {
		return nil, fmt.Errorf("employee %s has no secondary reporting manager: %w", employee.ID, ErrApproverLookupFailed)
	}
	return fromConfig(cfg, *employee.SecondaryReportingManagerID), nil
}

func resolveDepartmentHead(ctx context.Context, dir directory.Directory, employee *directory.Employee, cfg *model.StageApprover) (*ResolvedApprover, error) {
	if employee.DepartmentID == nil {
		return nil, fmt.Errorf("employee %s has no department: %w", employee.ID, ErrApproverLookupFailed)
	}
	head, err := dir.GetDepartmentHead(ctx, employee.CompanyID, *employee.DepartmentID)
	if err != nil {
		return nil, fmt.Errorf("department head lookup: %w", ErrApproverLookupFailed)
	}
	return fromConfig(cfg, head.ID), nil
}

func resolveHRAdmin(ctx context.Context, dir directory.Directory, employee *directory.Employee, cfg *model.StageApprover) (*ResolvedApprover, error) {
	admin, err := dir.GetHRAdmin(ctx, employee.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("HR admin lookup: %w", ErrApproverLookupFailed)
	}
	return fromConfig(cfg, admin.ID), nil
}

func resolveSubAdmin(ctx context.Context, dir directory.Directory, employee *directory.Employee, cfg *model.StageApprover) (*ResolvedApprover, error) {
	admin, err := dir.GetSubAdmin(ctx, employee.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("sub-admin lookup: %w", ErrApproverLookupFailed)
	}
	return fromConfig(cfg, admin.ID), nil
}

func resolveSelf(ctx context.Context, dir directory.Directory, employee *directory.Employee, cfg *model.StageApprover) (*ResolvedApprover, error) {
	return fromConfig(cfg, employee.ID), nil
}

func resolveFixedUser(ctx context.Context, dir directory.Directory, employee *directory.Employee, cfg *model.StageApprover) (*ResolvedApprover, error) {
	if cfg.FixedUserID == nil {
		return nil, fmt.Errorf("fixed_user approver has no user configured: %w", ErrApproverLookupFailed)
	}
	return fromConfig(cfg, *cfg.FixedUserID), nil
}

func resolveAutoApprove(ctx context.Context, dir directory.Directory, employee *directory.Employee, cfg *model.StageApprover) (*ResolvedApprover, error) {
	return &ResolvedApprover{
		ApproverType: cfg.ApproverType,
		Order:        cfg.Order,
		Auto:         true,
	}, nil
}

func fromConfig(cfg *model.StageApprover, userID uuid.UUID) *ResolvedApprover {
	return &ResolvedApprover{
		UserID:          userID,
		ApproverType:    cfg.ApproverType,
		Order:           cfg.Order,
		AllowDelegation: cfg.AllowDelegation,
	}
}

package workflow

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/peoplecore/hrflow/internal/attachments"
	"github.com/peoplecore/hrflow/internal/config"
	"github.com/peoplecore/hrflow/internal/directory"
	"github.com/peoplecore/hrflow/internal/notification"
	"github.com/peoplecore/hrflow/internal/workflow/router"
	"github.com/peoplecore/hrflow/internal/workflow/service"
)

// Manager wires the workflow services together and owns the background
// lifecycle: the notification dispatcher and the SLA scheduler.
type Manager struct {
	engine        *service.Engine
	scheduler     *service.Scheduler
	dispatcher    *notification.Dispatcher
	workflowRoute *router.WorkflowRouter
}

// NewManager builds the full workflow stack on top of the shared database
// connection. gateway delivers notification events; attachmentService may be
// nil when attachment routes are not mounted.
func NewManager(db *gorm.DB, cfg *config.Config, gateway notification.Gateway, attachmentService *attachments.Service) *Manager {
	dispatcher := notification.NewDispatcher(gateway)

	dir := directory.NewService(db)
	evaluator := service.NewConditionEvaluator()
	applicability := service.NewApplicabilityService(db)
	approvers := service.NewApproverResolver(dir, evaluator)
	numbers := service.NewRequestNumberService(db)

	engine := service.NewEngine(db, applicability, evaluator, approvers, dir, dir, numbers, dispatcher)
	scheduler := service.NewScheduler(db, engine,
		time.Duration(cfg.Scheduler.SweepIntervalSeconds)*time.Second,
		cfg.Scheduler.BatchSize,
		time.Duration(cfg.Scheduler.WarningWindowSeconds)*time.Second)

	return &Manager{
		engine:        engine,
		scheduler:     scheduler,
		dispatcher:    dispatcher,
		workflowRoute: router.NewWorkflowRouter(engine, scheduler, attachmentService),
	}
}

// Engine exposes the execution core for other packages.
func (m *Manager) Engine() *service.Engine {
	return m.engine
}

// Scheduler exposes the SLA scheduler for external triggering.
func (m *Manager) Scheduler() *service.Scheduler {
	return m.scheduler
}

// RegisterRoutes mounts the workflow HTTP surface on the API group.
func (m *Manager) RegisterRoutes(api *gin.RouterGroup) {
	m.workflowRoute.Register(api)
}

// Start launches the SLA scheduler. The notification dispatcher starts with
// the manager and only needs stopping.
func (m *Manager) Start() {
	m.scheduler.Start()
}

// Stop halts the background workers, draining queued notifications.
func (m *Manager) Stop() {
	m.scheduler.Stop()
	m.dispatcher.Stop()
}

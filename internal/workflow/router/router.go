package router

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/peoplecore/hrflow/internal/attachments"
	"github.com/peoplecore/hrflow/internal/auth"
	"github.com/peoplecore/hrflow/internal/workflow/model"
	"github.com/peoplecore/hrflow/internal/workflow/service"
	"github.com/peoplecore/hrflow/utils"
)

// WorkflowRouter exposes the workflow engine over HTTP.
type WorkflowRouter struct {
	engine      *service.Engine
	scheduler   *service.Scheduler
	attachments *attachments.Service
}

func NewWorkflowRouter(engine *service.Engine, scheduler *service.Scheduler, attachmentService *attachments.Service) *WorkflowRouter {
	return &WorkflowRouter{
		engine:      engine,
		scheduler:   scheduler,
		attachments: attachmentService,
	}
}

// Register mounts all workflow routes on the group. The group is expected to
// carry the auth middleware already.
func (wr *WorkflowRouter) Register(api *gin.RouterGroup) {
	protected := api.Group("", auth.RequireAuth())

	protected.POST("/requests", wr.handleSubmitRequest)
	protected.GET("/requests", wr.handleListRequests)
	protected.GET("/requests/:requestId", wr.handleGetRequest)
	protected.POST("/requests/:requestId/approve", wr.handleApprove)
	protected.POST("/requests/:requestId/reject", wr.handleReject)
	protected.POST("/requests/:requestId/withdraw", wr.handleWithdraw)
	protected.GET("/approvals/pending", wr.handlePendingApprovals)

	protected.POST("/requests/:requestId/attachments", wr.handleUploadAttachment)
	protected.GET("/requests/:requestId/attachments", wr.handleListAttachments)
	protected.GET("/attachments/:attachmentId", wr.handleDownloadAttachment)

	protected.POST("/scheduler/sweep", wr.handleSweep)
}

// handleSubmitRequest handles POST /api/requests
func (wr *WorkflowRouter) handleSubmitRequest(c *gin.Context) {
	actor := auth.GetActorContext(c)

	var dto model.SubmitRequestDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	request, err := wr.engine.Submit(c.Request.Context(), &dto, actor.UserID)
	if err != nil {
		wr.writeError(c, err, "failed to submit request")
		return
	}
	c.JSON(http.StatusCreated, request)
}

// handleGetRequest handles GET /api/requests/{requestId}
func (wr *WorkflowRouter) handleGetRequest(c *gin.Context) {
	requestID, ok := pathUUID(c, "requestId")
	if !ok {
		return
	}

	details, err := wr.engine.GetDetails(c.Request.Context(), requestID)
	if err != nil {
		wr.writeError(c, err, "failed to get request")
		return
	}
	c.JSON(http.StatusOK, details)
}

// handleListRequests handles GET /api/requests
// Optional query filters: employeeId, status, type, offset, limit
func (wr *WorkflowRouter) handleListRequests(c *gin.Context) {
	var filter model.RequestFilter

	if employeeID := c.Query("employeeId"); employeeID != "" {
		parsed, err := uuid.Parse(employeeID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid employeeId: %v", err)})
			return
		}
		filter.EmployeeID = &parsed
	}
	if status := c.Query("status"); status != "" {
		s := model.RequestStatus(status)
		filter.RequestStatus = &s
	}
	if workflowType := c.Query("type"); workflowType != "" {
		t := model.WorkflowType(workflowType)
		if !t.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown workflow type %q", workflowType)})
			return
		}
		filter.WorkflowType = &t
	}

	offset, limit := paginationFromQuery(c)
	requests, err := wr.engine.ListRequests(c.Request.Context(), filter, offset, limit)
	if err != nil {
		wr.writeError(c, err, "failed to list requests")
		return
	}
	c.JSON(http.StatusOK, requests)
}

// handleApprove handles POST /api/requests/{requestId}/approve
func (wr *WorkflowRouter) handleApprove(c *gin.Context) {
	wr.handleDecision(c, true)
}

// handleReject handles POST /api/requests/{requestId}/reject
func (wr *WorkflowRouter) handleReject(c *gin.Context) {
	wr.handleDecision(c, false)
}

func (wr *WorkflowRouter) handleDecision(c *gin.Context, approve bool) {
	actor := auth.GetActorContext(c)
	requestID, ok := pathUUID(c, "requestId")
	if !ok {
		return
	}

	var dto model.DecisionDTO
	if err := c.ShouldBindJSON(&dto); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	var request *model.Request
	var err error
	if approve {
		request, err = wr.engine.Approve(c.Request.Context(), requestID, actor.UserID, dto.Remarks)
	} else {
		request, err = wr.engine.Reject(c.Request.Context(), requestID, actor.UserID, dto.Remarks)
	}
	if err != nil {
		wr.writeError(c, err, "failed to record decision")
		return
	}
	c.JSON(http.StatusOK, request)
}

// handleWithdraw handles POST /api/requests/{requestId}/withdraw
func (wr *WorkflowRouter) handleWithdraw(c *gin.Context) {
	actor := auth.GetActorContext(c)
	requestID, ok := pathUUID(c, "requestId")
	if !ok {
		return
	}

	var dto model.WithdrawDTO
	if err := c.ShouldBindJSON(&dto); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	request, err := wr.engine.Withdraw(c.Request.Context(), requestID, actor.UserID, dto.Remarks)
	if err != nil {
		wr.writeError(c, err, "failed to withdraw request")
		return
	}
	c.JSON(http.StatusOK, request)
}

// handlePendingApprovals handles GET /api/approvals/pending
func (wr *WorkflowRouter) handlePendingApprovals(c *gin.Context) {
	actor := auth.GetActorContext(c)
	offset, limit := paginationFromQuery(c)

	pending, err := wr.engine.GetPendingApprovalsFor(c.Request.Context(), actor.UserID, offset, limit)
	if err != nil {
		wr.writeError(c, err, "failed to list pending approvals")
		return
	}
	c.JSON(http.StatusOK, pending)
}

// handleUploadAttachment handles POST /api/requests/{requestId}/attachments
func (wr *WorkflowRouter) handleUploadAttachment(c *gin.Context) {
	actor := auth.GetActorContext(c)
	requestID, ok := pathUUID(c, "requestId")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("missing file: %v", err)})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to open file: %v", err)})
		return
	}
	defer file.Close()

	attachment, err := wr.attachments.Attach(c.Request.Context(), requestID, actor.UserID,
		fileHeader.Filename, file, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		wr.writeError(c, err, "failed to store attachment")
		return
	}
	c.JSON(http.StatusCreated, attachment)
}

// handleListAttachments handles GET /api/requests/{requestId}/attachments
func (wr *WorkflowRouter) handleListAttachments(c *gin.Context) {
	requestID, ok := pathUUID(c, "requestId")
	if !ok {
		return
	}

	rows, err := wr.attachments.List(c.Request.Context(), requestID)
	if err != nil {
		wr.writeError(c, err, "failed to list attachments")
		return
	}
	c.JSON(http.StatusOK, rows)
}

// handleDownloadAttachment handles GET /api/attachments/{attachmentId}
func (wr *WorkflowRouter) handleDownloadAttachment(c *gin.Context) {
	attachmentID, ok := pathUUID(c, "attachmentId")
	if !ok {
		return
	}

	attachment, reader, err := wr.attachments.Open(c.Request.Context(), attachmentID)
	if err != nil {
		wr.writeError(c, err, "failed to open attachment")
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.FileName))
	c.DataFromReader(http.StatusOK, attachment.SizeBytes, attachment.MimeType, reader, nil)
}

// handleSweep handles POST /api/scheduler/sweep. Sweeps are idempotent, so an
// external cron may drive this alongside the internal ticker.
func (wr *WorkflowRouter) handleSweep(c *gin.Context) {
	result, err := wr.scheduler.RunSweep(c.Request.Context())
	if err != nil {
		wr.writeError(c, err, "sweep failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

// writeError maps service sentinels to HTTP statuses.
func (wr *WorkflowRouter) writeError(c *gin.Context, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrRequestNotFound),
		errors.Is(err, attachments.ErrAttachmentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrNoPendingAssignment),
		errors.Is(err, service.ErrRequestNotPending):
		status = http.StatusConflict
	case errors.Is(err, service.ErrNotSubmitter):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNoDefinitionConfigured),
		errors.Is(err, service.ErrNoApplicableDefinition),
		errors.Is(err, service.ErrNoApproversResolved):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": fmt.Sprintf("%s: %v", msg, err)})
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s: %v", name, err)})
		return uuid.Nil, false
	}
	return id, true
}

func paginationFromQuery(c *gin.Context) (int, int) {
	var offsetPtr, limitPtr *int
	var offset, limit int
	if _, err := fmt.Sscanf(c.Query("offset"), "%d", &offset); err == nil {
		offsetPtr = &offset
	}
	if _, err := fmt.Sscanf(c.Query("limit"), "%d", &limit); err == nil {
		limitPtr = &limit
	}
	return utils.GetPaginationParams(offsetPtr, limitPtr)
}

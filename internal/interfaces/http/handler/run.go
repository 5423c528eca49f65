package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arflow/backend/internal/application/dunning"
	"github.com/arflow/backend/internal/domain/campaign"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/interfaces/http/dto"
)

// RunResponse represents a dunning run in API responses
type RunResponse struct {
	ID                 uuid.UUID  `json:"id"`
	TriggerSource      string     `json:"trigger_source"`
	Status             string     `json:"status"`
	IsTest             bool       `json:"is_test"`
	InvoicesSynced     int        `json:"invoices_synced"`
	InvoicesInserted   int        `json:"invoices_inserted"`
	InvoicesUpdated    int        `json:"invoices_updated"`
	InvoicesDeleted    int        `json:"invoices_deleted"`
	CampaignsEvaluated int        `json:"campaigns_evaluated"`
	SendsScheduled     int        `json:"sends_scheduled"`
	SendsDelivered     int        `json:"sends_delivered"`
	SendsFailed        int        `json:"sends_failed"`
	SendsSkipped       int        `json:"sends_skipped"`
	TestRowsPurged     int        `json:"test_rows_purged"`
	ErrorDetail        string     `json:"error_detail,omitempty"`
	StartedAt          time.Time  `json:"started_at"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
}

func toRunResponse(r *campaign.DunningRun) RunResponse {
	return RunResponse{
		ID:                 r.ID,
		TriggerSource:      string(r.TriggerSource),
		Status:             string(r.Status),
		IsTest:             r.IsTest,
		InvoicesSynced:     r.InvoicesSynced,
		InvoicesInserted:   r.InvoicesInserted,
		InvoicesUpdated:    r.InvoicesUpdated,
		InvoicesDeleted:    r.InvoicesDeleted,
		CampaignsEvaluated: r.CampaignsEvaluated,
		SendsScheduled:     r.SendsScheduled,
		SendsDelivered:     r.SendsDelivered,
		SendsFailed:        r.SendsFailed,
		SendsSkipped:       r.SendsSkipped,
		TestRowsPurged:     r.TestRowsPurged,
		ErrorDetail:        r.ErrorDetail,
		StartedAt:          r.StartedAt,
		FinishedAt:         r.FinishedAt,
	}
}

// RunHandler exposes dunning run triggering and history.
type RunHandler struct {
	BaseHandler
	orchestrator *dunning.RunOrchestrator
	runRepo      campaign.RunRepository
	logger       *zap.Logger
}

// NewRunHandler creates a RunHandler.
func NewRunHandler(orchestrator *dunning.RunOrchestrator, runRepo campaign.RunRepository, logger *zap.Logger) *RunHandler {
	return &RunHandler{
		orchestrator: orchestrator,
		runRepo:      runRepo,
		logger:       logger,
	}
}

// RegisterRoutes registers run routes
func (h *RunHandler) RegisterRoutes(rg *gin.RouterGroup) {
	runs := rg.Group("/runs")
	{
		runs.POST("", h.Trigger)
		runs.GET("", h.List)
		runs.GET("/:id", h.Get)
	}
}

// Trigger starts a dunning run in the background. With ?test=1 the run is a
// dry pass: sends are routed to the test recipient and purged afterwards.
func (h *RunHandler) Trigger(c *gin.Context) {
	isTest := c.Query("test") == "1" || c.Query("test") == "true"
	source := campaign.TriggerSourceManual
	if isTest {
		source = campaign.TriggerSourceTest
	}

	// The run outlives the request; progress is observable via GET /runs.
	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()
		_, err := h.orchestrator.Execute(runCtx, source, isTest)
		if err != nil && !errors.Is(err, shared.ErrRunInProgress) {
			h.logger.Error("Triggered dunning run failed", zap.Error(err))
		}
	}()

	h.Accepted(c, gin.H{"triggered": true, "test": isTest})
}

// List returns recent runs, newest first.
func (h *RunHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	runs, err := h.runRepo.FindRecent(c.Request.Context(), req.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]RunResponse, 0, len(runs))
	for _, r := range runs {
		out = append(out, toRunResponse(r))
	}
	h.Success(c, out)
}

// Get returns one run by id.
func (h *RunHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid run id")
		return
	}
	run, err := h.runRepo.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRunResponse(run))
}

package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arflow/backend/internal/application/dunning"
	"github.com/arflow/backend/internal/domain/campaign"
)

// CampaignResponse represents a campaign in API responses
type CampaignResponse struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	TriggerDays        int       `json:"trigger_days"`
	RepeatIntervalDays int       `json:"repeat_interval_days,omitempty"`
	Active             bool      `json:"active"`
	SubjectTemplate    string    `json:"subject_template"`
	BodyTemplate       string    `json:"body_template"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func toCampaignResponse(c *campaign.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:                 c.ID,
		Name:               c.Name,
		Type:               string(c.Type),
		TriggerDays:        c.TriggerDays,
		RepeatIntervalDays: c.RepeatIntervalDays,
		Active:             c.Active,
		SubjectTemplate:    c.SubjectTemplate,
		BodyTemplate:       c.BodyTemplate,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

// UpdateTemplatesRequest carries a template edit
type UpdateTemplatesRequest struct {
	SubjectTemplate string `json:"subject_template" binding:"required"`
	BodyTemplate    string `json:"body_template" binding:"required"`
}

// TestSendRequest carries an ad hoc sample send
type TestSendRequest struct {
	OrderID   int64  `json:"order_id" binding:"required"`
	Recipient string `json:"recipient" binding:"required,email"`
}

// CampaignHandler exposes campaign administration.
type CampaignHandler struct {
	BaseHandler
	campaignRepo campaign.Repository
	governor     *dunning.SafetyGovernor
	pipeline     *dunning.SendPipeline
}

// NewCampaignHandler creates a CampaignHandler.
func NewCampaignHandler(campaignRepo campaign.Repository, governor *dunning.SafetyGovernor, pipeline *dunning.SendPipeline) *CampaignHandler {
	return &CampaignHandler{
		campaignRepo: campaignRepo,
		governor:     governor,
		pipeline:     pipeline,
	}
}

// RegisterRoutes registers campaign routes
func (h *CampaignHandler) RegisterRoutes(rg *gin.RouterGroup) {
	campaigns := rg.Group("/campaigns")
	{
		campaigns.GET("", h.List)
		campaigns.GET("/:id", h.Get)
		campaigns.POST("/:id/enable", h.Enable)
		campaigns.POST("/:id/disable", h.Disable)
		campaigns.PUT("/:id/templates", h.UpdateTemplates)
		campaigns.POST("/:id/test-send", h.TestSend)
		campaigns.POST("/emergency-stop", h.EmergencyStop)
	}
}

// List returns all campaigns.
func (h *CampaignHandler) List(c *gin.Context) {
	campaigns, err := h.campaignRepo.FindAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]CampaignResponse, 0, len(campaigns))
	for _, cp := range campaigns {
		out = append(out, toCampaignResponse(cp))
	}
	h.Success(c, out)
}

// Get returns one campaign by id.
func (h *CampaignHandler) Get(c *gin.Context) {
	cp, ok := h.load(c)
	if !ok {
		return
	}
	h.Success(c, toCampaignResponse(cp))
}

// Enable activates a campaign.
func (h *CampaignHandler) Enable(c *gin.Context) {
	h.setActive(c, true)
}

// Disable deactivates a campaign.
func (h *CampaignHandler) Disable(c *gin.Context) {
	h.setActive(c, false)
}

// UpdateTemplates replaces both templates of a campaign.
func (h *CampaignHandler) UpdateTemplates(c *gin.Context) {
	var req UpdateTemplatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	cp, ok := h.load(c)
	if !ok {
		return
	}
	if err := cp.EditTemplates(req.SubjectTemplate, req.BodyTemplate); err != nil {
		h.HandleError(c, err)
		return
	}
	if err := h.campaignRepo.Update(c.Request.Context(), cp); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCampaignResponse(cp))
}

// TestSend delivers one rendered sample of the campaign for a real invoice to
// an explicit recipient, without touching the schedule ledger.
func (h *CampaignHandler) TestSend(c *gin.Context) {
	campaignID, ok := h.parseID(c)
	if !ok {
		return
	}
	var req TestSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	messageID, err := h.pipeline.SendSample(c.Request.Context(), campaignID, req.OrderID, req.Recipient)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"message_id": messageID})
}

// EmergencyStop deactivates every campaign in one statement.
func (h *CampaignHandler) EmergencyStop(c *gin.Context) {
	disabled, err := h.governor.EmergencyStop(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"campaigns_disabled": disabled})
}

func (h *CampaignHandler) parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.BadRequest(c, "invalid campaign id")
		return 0, false
	}
	return id, true
}

func (h *CampaignHandler) load(c *gin.Context) (*campaign.Campaign, bool) {
	id, ok := h.parseID(c)
	if !ok {
		return nil, false
	}
	cp, err := h.campaignRepo.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	return cp, true
}

func (h *CampaignHandler) setActive(c *gin.Context, active bool) {
	cp, ok := h.load(c)
	if !ok {
		return
	}
	if active {
		cp.Enable()
	} else {
		cp.Disable()
	}
	if err := h.campaignRepo.Update(c.Request.Context(), cp); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCampaignResponse(cp))
}

package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arflow/backend/internal/domain/campaign"
	"github.com/arflow/backend/internal/interfaces/http/dto"
)

// ScheduleResponse represents a scheduled send in API responses
type ScheduleResponse struct {
	ID             uuid.UUID  `json:"id"`
	CampaignID     int64      `json:"campaign_id"`
	OrderID        int64      `json:"order_id"`
	RecipientEmail string     `json:"recipient_email"`
	ScheduledDate  time.Time  `json:"scheduled_date"`
	Status         string     `json:"status"`
	SkipReason     string     `json:"skip_reason,omitempty"`
	AttemptCount   int        `json:"attempt_count"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	MessageID      string     `json:"message_id,omitempty"`
	ErrorDetail    string     `json:"error_detail,omitempty"`
	IsTest         bool       `json:"is_test"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toScheduleResponse(s *campaign.ScheduledSend) ScheduleResponse {
	return ScheduleResponse{
		ID:             s.ID,
		CampaignID:     s.CampaignID,
		OrderID:        s.OrderID,
		RecipientEmail: s.RecipientEmail,
		ScheduledDate:  s.ScheduledDate,
		Status:         string(s.Status),
		SkipReason:     s.SkipReason,
		AttemptCount:   s.AttemptCount,
		LastAttemptAt:  s.LastAttemptAt,
		SentAt:         s.SentAt,
		MessageID:      s.MessageID,
		ErrorDetail:    s.ErrorDetail,
		IsTest:         s.IsTest,
		CreatedAt:      s.CreatedAt,
	}
}

// ScheduleHandler exposes the dedup ledger read-only.
type ScheduleHandler struct {
	BaseHandler
	scheduleRepo campaign.ScheduleRepository
}

// NewScheduleHandler creates a ScheduleHandler.
func NewScheduleHandler(scheduleRepo campaign.ScheduleRepository) *ScheduleHandler {
	return &ScheduleHandler{scheduleRepo: scheduleRepo}
}

// RegisterRoutes registers schedule routes
func (h *ScheduleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	schedules := rg.Group("/schedules")
	{
		schedules.GET("", h.List)
		schedules.GET("/:id", h.Get)
	}
}

// List returns schedule rows with optional campaign and status filters.
func (h *ScheduleHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	var campaignID *int64
	if raw := c.Query("campaign_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.BadRequest(c, "invalid campaign_id")
			return
		}
		campaignID = &id
	}
	var status *campaign.ScheduleStatus
	if raw := c.Query("status"); raw != "" {
		st := campaign.ScheduleStatus(raw)
		if !st.IsValid() {
			h.BadRequest(c, "invalid status")
			return
		}
		status = &st
	}

	offset := (req.Page - 1) * req.PageSize
	rows, total, err := h.scheduleRepo.List(c.Request.Context(), campaignID, status, req.PageSize, offset)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]ScheduleResponse, 0, len(rows))
	for _, s := range rows {
		out = append(out, toScheduleResponse(s))
	}
	h.SuccessWithMeta(c, out, total, req.Page, req.PageSize)
}

// Get returns one schedule row by id.
func (h *ScheduleHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid schedule id")
		return
	}
	row, err := h.scheduleRepo.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toScheduleResponse(row))
}

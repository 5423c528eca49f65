package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arflow/backend/internal/application/dunning"
	"github.com/arflow/backend/internal/domain/campaign"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/infrastructure/config"
)

// PreferenceResponse represents a customer preference in API responses
type PreferenceResponse struct {
	Email               string     `json:"email"`
	OptedOutAll         bool       `json:"opted_out_all"`
	OptedOutReminders   bool       `json:"opted_out_reminders"`
	OptedOutCollections bool       `json:"opted_out_collections"`
	OptOutAt            *time.Time `json:"opt_out_at,omitempty"`
	Source              string     `json:"source,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func toPreferenceResponse(p *campaign.CustomerPreference) PreferenceResponse {
	return PreferenceResponse{
		Email:               p.Email,
		OptedOutAll:         p.OptedOutAll,
		OptedOutReminders:   p.OptedOutReminders,
		OptedOutCollections: p.OptedOutCollections,
		OptOutAt:            p.OptOutAt,
		Source:              p.Source,
		UpdatedAt:           p.UpdatedAt,
	}
}

// OptOutRequest carries an administrative opt-out. Scope defaults to all
// tiers; "reminders" and "collections" narrow it.
type OptOutRequest struct {
	Email  string `json:"email" binding:"required,email"`
	Scope  string `json:"scope"`
	Source string `json:"source"`
}

// OptInRequest carries an administrative opt-in
type OptInRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// PreferenceHandler manages per-recipient opt-outs. The unauthenticated
// opt-out endpoint serves the link embedded in dunning emails; everything
// else is admin surface.
type PreferenceHandler struct {
	BaseHandler
	prefRepo campaign.PreferenceRepository
	cfg      config.DunningConfig
}

// NewPreferenceHandler creates a PreferenceHandler.
func NewPreferenceHandler(prefRepo campaign.PreferenceRepository, cfg config.DunningConfig) *PreferenceHandler {
	return &PreferenceHandler{prefRepo: prefRepo, cfg: cfg}
}

// RegisterRoutes registers the admin preference routes
func (h *PreferenceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	prefs := rg.Group("/preferences")
	{
		prefs.GET("/opted-out", h.ListOptedOut)
		prefs.POST("/opt-out", h.OptOut)
		prefs.POST("/opt-in", h.OptIn)
	}
}

// RegisterPublicRoutes registers the token-protected opt-out link endpoint
// outside the admin group.
func (h *PreferenceHandler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/optout", h.OptOutByLink)
}

// ListOptedOut returns every opted-out recipient.
func (h *PreferenceHandler) ListOptedOut(c *gin.Context) {
	prefs, err := h.prefRepo.FindOptedOut(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]PreferenceResponse, 0, len(prefs))
	for _, p := range prefs {
		out = append(out, toPreferenceResponse(p))
	}
	h.Success(c, out)
}

// OptOut suppresses future sends for a recipient, optionally scoped to the
// reminder or collection tiers.
func (h *PreferenceHandler) OptOut(c *gin.Context) {
	var req OptOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	scope := campaign.OptOutScope(req.Scope)
	if req.Scope == "" {
		scope = campaign.OptOutScopeAll
	}
	if !scope.IsValid() {
		h.BadRequest(c, "scope must be one of: all, reminders, collections")
		return
	}
	source := req.Source
	if source == "" {
		source = "admin"
	}
	pref, err := h.upsertOptOut(c, req.Email, scope, source)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPreferenceResponse(pref))
}

// OptIn clears an opt-out.
func (h *PreferenceHandler) OptIn(c *gin.Context) {
	var req OptInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	pref, err := h.prefRepo.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	pref.OptIn(time.Now())
	if err := h.prefRepo.Save(c.Request.Context(), pref); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPreferenceResponse(pref))
}

// OptOutByLink handles the opt-out URL embedded in dunning emails. The HMAC
// token scopes the link to one recipient; a bad token is rejected without
// revealing whether the address is known.
func (h *PreferenceHandler) OptOutByLink(c *gin.Context) {
	email := c.Query("email")
	token := c.Query("token")
	if email == "" || token == "" {
		h.BadRequest(c, "email and token are required")
		return
	}
	if !dunning.VerifyOptOut(h.cfg.OptOutSecret, email, token) {
		h.Forbidden(c, "invalid opt-out token")
		return
	}

	if _, err := h.upsertOptOut(c, email, campaign.OptOutScopeAll, "link"); err != nil {
		h.HandleError(c, err)
		return
	}
	c.String(http.StatusOK, "You have been unsubscribed from payment reminders.")
}

func (h *PreferenceHandler) upsertOptOut(c *gin.Context, email string, scope campaign.OptOutScope, source string) (*campaign.CustomerPreference, error) {
	ctx := c.Request.Context()
	pref, err := h.prefRepo.FindByEmail(ctx, email)
	if errors.Is(err, shared.ErrNotFound) {
		pref, err = campaign.NewCustomerPreference(email)
	}
	if err != nil {
		return nil, err
	}
	if err := pref.OptOut(scope, source, time.Now()); err != nil {
		return nil, err
	}
	if err := h.prefRepo.Save(ctx, pref); err != nil {
		return nil, err
	}
	return pref, nil
}

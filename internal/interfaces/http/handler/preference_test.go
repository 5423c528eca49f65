package handler

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arflow/backend/internal/application/dunning"
	"github.com/arflow/backend/internal/domain/campaign"
	"github.com/arflow/backend/internal/infrastructure/config"
)

const optOutSecret = "0123456789abcdef0123456789abcdef"

func newPreferenceRouter(prefs *mockPreferenceRepo) *gin.Engine {
	h := NewPreferenceHandler(prefs, config.DunningConfig{OptOutSecret: optOutSecret})
	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))
	h.RegisterPublicRoutes(router.Group("/public"))
	return router
}

func TestPreferenceHandler_OptOut(t *testing.T) {
	t.Run("default scope opts out of everything", func(t *testing.T) {
		prefs := newMockPreferenceRepo()
		router := newPreferenceRouter(prefs)

		w := performJSON(t, router, "POST", "/api/v1/preferences/opt-out", OptOutRequest{
			Email: "Jo@Example.com",
		})
		require.Equal(t, http.StatusOK, w.Code)

		var out PreferenceResponse
		decodeResponse(t, w, &out)
		assert.Equal(t, "jo@example.com", out.Email)
		assert.True(t, out.OptedOutAll)
		assert.False(t, out.OptedOutReminders)
		assert.Equal(t, "admin", out.Source)
	})

	t.Run("reminders scope sets only the reminders flag", func(t *testing.T) {
		prefs := newMockPreferenceRepo()
		router := newPreferenceRouter(prefs)

		w := performJSON(t, router, "POST", "/api/v1/preferences/opt-out", OptOutRequest{
			Email:  "jo@example.com",
			Scope:  "reminders",
			Source: "phone",
		})
		require.Equal(t, http.StatusOK, w.Code)

		var out PreferenceResponse
		decodeResponse(t, w, &out)
		assert.False(t, out.OptedOutAll)
		assert.True(t, out.OptedOutReminders)
		assert.False(t, out.OptedOutCollections)
		assert.Equal(t, "phone", out.Source)

		pref, err := prefs.FindByEmail(context.Background(), "jo@example.com")
		require.NoError(t, err)
		assert.True(t, pref.OptedOutFor(campaign.TypeReminder6190))
		assert.False(t, pref.OptedOutFor(campaign.TypeCollection91Once))
	})

	t.Run("unknown scope is rejected", func(t *testing.T) {
		router := newPreferenceRouter(newMockPreferenceRepo())
		w := performJSON(t, router, "POST", "/api/v1/preferences/opt-out", OptOutRequest{
			Email: "jo@example.com",
			Scope: "weekly",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid email is rejected", func(t *testing.T) {
		router := newPreferenceRouter(newMockPreferenceRepo())
		w := performJSON(t, router, "POST", "/api/v1/preferences/opt-out", gin.H{"email": "not-an-email"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPreferenceHandler_OptIn(t *testing.T) {
	prefs := newMockPreferenceRepo()
	pref, err := campaign.NewCustomerPreference("jo@example.com")
	require.NoError(t, err)
	require.NoError(t, pref.OptOut(campaign.OptOutScopeAll, "link", time.Now()))
	require.NoError(t, pref.OptOut(campaign.OptOutScopeReminders, "admin", time.Now()))
	require.NoError(t, prefs.Save(context.Background(), pref))

	router := newPreferenceRouter(prefs)
	w := performJSON(t, router, "POST", "/api/v1/preferences/opt-in", OptInRequest{Email: "jo@example.com"})
	require.Equal(t, http.StatusOK, w.Code)

	var out PreferenceResponse
	decodeResponse(t, w, &out)
	assert.False(t, out.OptedOutAll)
	assert.False(t, out.OptedOutReminders)
}

func TestPreferenceHandler_ListOptedOut(t *testing.T) {
	prefs := newMockPreferenceRepo()
	pref, err := campaign.NewCustomerPreference("jo@example.com")
	require.NoError(t, err)
	require.NoError(t, pref.OptOut(campaign.OptOutScopeCollections, "link", time.Now()))
	require.NoError(t, prefs.Save(context.Background(), pref))

	router := newPreferenceRouter(prefs)
	w := performRequest(router, "GET", "/api/v1/preferences/opted-out")
	require.Equal(t, http.StatusOK, w.Code)

	var out []PreferenceResponse
	decodeResponse(t, w, &out)
	require.Len(t, out, 1)
	assert.Equal(t, "jo@example.com", out[0].Email)
}

func TestPreferenceHandler_OptOutByLink(t *testing.T) {
	linkFor := func(email string) string {
		token := dunning.SignOptOut(optOutSecret, email)
		return "/public/optout?email=" + url.QueryEscape(email) + "&token=" + token
	}

	t.Run("valid token unsubscribes", func(t *testing.T) {
		prefs := newMockPreferenceRepo()
		router := newPreferenceRouter(prefs)

		w := performRequest(router, "GET", linkFor("jo@example.com"))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "unsubscribed")

		pref, err := prefs.FindByEmail(context.Background(), "jo@example.com")
		require.NoError(t, err)
		assert.True(t, pref.OptedOutAll)
		assert.Equal(t, "link", pref.Source)
	})

	t.Run("forged token is rejected", func(t *testing.T) {
		prefs := newMockPreferenceRepo()
		router := newPreferenceRouter(prefs)

		token := dunning.SignOptOut(optOutSecret, "victim@example.com")
		w := performRequest(router, "GET", "/public/optout?email=jo%40example.com&token="+token)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, prefs.prefs)
	})

	t.Run("missing parameters are rejected", func(t *testing.T) {
		router := newPreferenceRouter(newMockPreferenceRepo())
		w := performRequest(router, "GET", "/public/optout?email=jo%40example.com")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

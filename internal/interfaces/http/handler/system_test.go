package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arflow/backend/internal/infrastructure/persistence"
)

func newSystemRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	h := NewSystemHandler(&persistence.Database{DB: db}, nil, &mockRunRepo{}, "test")
	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestSystemHandler_Health(t *testing.T) {
	router := newSystemRouter(t)

	w := performRequest(router, "GET", "/api/v1/health")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `"status":"ok"`)
	assert.Contains(t, body, `"version":"test"`)
	assert.Contains(t, body, `"database":"ok"`)
	assert.Contains(t, body, `"run_failures_24":0`)
	assert.NotContains(t, body, `"redis"`, "redis is omitted when the in-memory coordinator is in use")
}

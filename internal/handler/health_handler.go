package handler

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/zone-density/internal/metrics"
	"github.com/jengzang/zone-density/pkg/response"
)

// HealthHandler reports liveness and database reachability
type HealthHandler struct {
	db *sql.DB
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health pings the database
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		response.Error(c, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	metrics.UpdateDBStats(h.db)

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Zone density API is running",
	})
}

package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/zone-density/internal/density"
	"github.com/jengzang/zone-density/internal/middleware"
	"github.com/jengzang/zone-density/internal/models"
	"github.com/jengzang/zone-density/internal/repository"
	"github.com/jengzang/zone-density/internal/service"
	"github.com/jengzang/zone-density/internal/stats"
	"github.com/jengzang/zone-density/pkg/response"
)

// DefaultHistogramBins is used when the bins query parameter is absent
const DefaultHistogramBins = 10

// RunHandler handles HTTP requests for density runs
type RunHandler struct {
	service *service.DensityService
}

// NewRunHandler creates a new run handler
func NewRunHandler(service *service.DensityService) *RunHandler {
	return &RunHandler{service: service}
}

// CreateRunRequest represents the request body for creating a run
type CreateRunRequest struct {
	Radius float64 `json:"radius"` // optional, overrides the configured radius
}

// CreateRun starts a density run in the background
// POST /api/v1/runs
func (h *RunHandler) CreateRun(c *gin.Context) {
	var req CreateRunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
	}

	createdBy := c.GetString(middleware.UserKey)
	if createdBy == "" {
		createdBy = "anonymous"
	}

	run, err := h.service.CreateRun(service.RunRequest{Radius: req.Radius, CreatedBy: createdBy})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Accepted(c, run)
}

// ListRuns lists runs newest first
// GET /api/v1/runs
func (h *RunHandler) ListRuns(c *gin.Context) {
	var filter models.RunFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}
	filter.Normalize()

	runs, total, err := h.service.ListRuns(filter)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, response.Page{Items: runs, Total: total, Limit: filter.Limit, Offset: filter.Offset})
}

// GetRun retrieves a run with its diagnostics
// GET /api/v1/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, run)
}

// CancelRun cancels a pending or running run
// DELETE /api/v1/runs/:id
func (h *RunHandler) CancelRun(c *gin.Context) {
	if err := h.service.CancelRun(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "Run cancelled"})
}

// GetCounts lists the zone counts of a completed run
// GET /api/v1/runs/:id/counts
func (h *RunHandler) GetCounts(c *gin.Context) {
	var filter models.CountFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}
	if filter.Order != "" && filter.Order != "zone" && filter.Order != "count" {
		response.BadRequest(c, "order must be zone or count")
		return
	}

	counts, err := h.service.GetCounts(c.Param("id"), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, counts)
}

// GetGeoJSON returns the run's counts on the zone boundaries
// GET /api/v1/runs/:id/geojson
func (h *RunHandler) GetGeoJSON(c *gin.Context) {
	data, err := h.service.GetResultGeoJSON(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}

// GetHistogram buckets the run's zone counts
// GET /api/v1/runs/:id/histogram?bins=10
func (h *RunHandler) GetHistogram(c *gin.Context) {
	bins, err := strconv.Atoi(c.DefaultQuery("bins", strconv.Itoa(DefaultHistogramBins)))
	if err != nil || bins < 1 || bins > 1000 {
		response.BadRequest(c, "bins must be between 1 and 1000")
		return
	}

	hist, err := h.service.GetHistogram(c.Param("id"), bins)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, hist)
}

func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrRunNotCompleted),
		errors.Is(err, service.ErrRunNotActive),
		errors.Is(err, service.ErrNoZones),
		errors.Is(err, service.ErrZonesChanged):
		response.Conflict(c, err.Error())
	case errors.Is(err, density.ErrInvalidRadius),
		errors.Is(err, stats.ErrInvalidBins):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrServiceShutdown):
		response.Error(c, http.StatusServiceUnavailable, err.Error())
	default:
		response.InternalError(c, err.Error())
	}
}

package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook-insights/internal/dto"
	"github.com/noah-isme/gradebook-insights/internal/middleware"
	"github.com/noah-isme/gradebook-insights/internal/models"
	appErrors "github.com/noah-isme/gradebook-insights/pkg/errors"
	"github.com/noah-isme/gradebook-insights/pkg/response"
)

type insightsService interface {
	Compute(ctx context.Context, req dto.ComputeInsightsRequest, source models.ComputeSource) (*dto.InsightsResponse, bool, error)
	Import(ctx context.Context, courseID, filename string, r io.Reader) (*dto.InsightsResponse, bool, error)
	Latest(ctx context.Context, courseID string) (*models.InsightsSnapshot, error)
	Snapshot(ctx context.Context, id string) (*models.InsightsSnapshot, error)
	List(ctx context.Context, req dto.SnapshotListRequest) ([]dto.SnapshotSummary, *models.Pagination, error)
}

// InsightsHandler exposes the gradebook analytics endpoints.
type InsightsHandler struct {
	insights       insightsService
	maxUploadBytes int64
}

// NewInsightsHandler constructs the handler.
func NewInsightsHandler(insights insightsService, maxUploadBytes int64) *InsightsHandler {
	return &InsightsHandler{insights: insights, maxUploadBytes: maxUploadBytes}
}

// Compute godoc
// @Summary Compute gradebook insights
// @Description Runs every analyzer over the submitted gradebook. Identical gradebooks are served from cache.
// @Tags Insights
// @Accept json
// @Produce json
// @Param payload body dto.ComputeInsightsRequest true "Gradebook"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Security BearerAuth
// @Router /insights [post]
func (h *InsightsHandler) Compute(c *gin.Context) {
	var req dto.ComputeInsightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid gradebook payload"))
		return
	}
	result, cacheHit, err := h.insights.Compute(c.Request.Context(), req, models.SourceAPI)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, result, cacheHit)
}

// Import godoc
// @Summary Import a gradebook file and compute insights
// @Tags Insights
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Gradebook (.json, .csv or .xlsx)"
// @Param course_id formData string false "Course ID, overrides the file"
// @Success 200 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Security BearerAuth
// @Router /insights/import [post]
func (h *InsightsHandler) Import(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)
	}
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.ErrPayloadTooLarge)
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	result, cacheHit, err := h.insights.Import(c.Request.Context(), c.PostForm("course_id"), header.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, result, cacheHit)
}

func (h *InsightsHandler) respond(c *gin.Context, result *dto.InsightsResponse, cacheHit bool) {
	middleware.SetCacheHit(c, cacheHit)
	middleware.SetMeta(c, "fingerprint", result.Fingerprint)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Latest godoc
// @Summary Latest stored insights for a course
// @Tags Insights
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /insights/courses/{courseId}/latest [get]
func (h *InsightsHandler) Latest(c *gin.Context) {
	snap, err := h.insights.Latest(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snap, nil)
}

// ListSnapshots godoc
// @Summary List stored snapshots for a course
// @Tags Insights
// @Produce json
// @Param courseId path string true "Course ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /insights/courses/{courseId}/snapshots [get]
func (h *InsightsHandler) ListSnapshots(c *gin.Context) {
	req := dto.SnapshotListRequest{CourseID: c.Param("courseId")}
	var err error
	if raw := c.Query("page"); raw != "" {
		if req.Page, err = strconv.Atoi(raw); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "page must be a number"))
			return
		}
	}
	if raw := c.Query("page_size"); raw != "" {
		if req.PageSize, err = strconv.Atoi(raw); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "page_size must be a number"))
			return
		}
	}
	items, pagination, err := h.insights.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Snapshot godoc
// @Summary Stored insights snapshot
// @Tags Insights
// @Produce json
// @Param id path string true "Snapshot ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /insights/snapshots/{id} [get]
func (h *InsightsHandler) Snapshot(c *gin.Context) {
	snap, err := h.insights.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snap, nil)
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-insights/internal/dto"
	"github.com/noah-isme/gradebook-insights/internal/middleware"
	"github.com/noah-isme/gradebook-insights/internal/models"
	appErrors "github.com/noah-isme/gradebook-insights/pkg/errors"
	"github.com/noah-isme/gradebook-insights/pkg/response"
)

type insightsServiceMock struct {
	result   *dto.InsightsResponse
	cacheHit bool
	err      error
	snapshot *models.InsightsSnapshot
	list     []dto.SnapshotSummary
	page     *models.Pagination

	gotSource   models.ComputeSource
	gotCourse   string
	gotFilename string
	gotBody     string
	gotList     dto.SnapshotListRequest
}

func (m *insightsServiceMock) Compute(ctx context.Context, req dto.ComputeInsightsRequest, source models.ComputeSource) (*dto.InsightsResponse, bool, error) {
	m.gotSource = source
	m.gotCourse = req.CourseID
	return m.result, m.cacheHit, m.err
}

func (m *insightsServiceMock) Import(ctx context.Context, courseID, filename string, r io.Reader) (*dto.InsightsResponse, bool, error) {
	body, _ := io.ReadAll(r)
	m.gotCourse, m.gotFilename, m.gotBody = courseID, filename, string(body)
	return m.result, m.cacheHit, m.err
}

func (m *insightsServiceMock) Latest(ctx context.Context, courseID string) (*models.InsightsSnapshot, error) {
	m.gotCourse = courseID
	return m.snapshot, m.err
}

func (m *insightsServiceMock) Snapshot(ctx context.Context, id string) (*models.InsightsSnapshot, error) {
	return m.snapshot, m.err
}

func (m *insightsServiceMock) List(ctx context.Context, req dto.SnapshotListRequest) ([]dto.SnapshotSummary, *models.Pagination, error) {
	m.gotList = req
	return m.list, m.page, m.err
}

func decodeEnvelope(t *testing.T, body []byte) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}

func TestInsightsHandlerCompute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &insightsServiceMock{
		result:   &dto.InsightsResponse{CourseID: "course-1", Fingerprint: "abc123", ComputedAt: time.Now()},
		cacheHit: true,
	}
	handler := NewInsightsHandler(mockSvc, 0)

	payload, _ := json.Marshal(dto.ComputeInsightsRequest{CourseID: "course-1"})
	c, w := newGinContext(http.MethodPost, "/insights", payload)
	c.Set("response_started_at", time.Now())

	handler.Compute(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SourceAPI, mockSvc.gotSource)
	assert.Equal(t, "course-1", mockSvc.gotCourse)
	assert.Equal(t, "HIT", w.Header().Get(middleware.CacheHeader))

	env := decodeEnvelope(t, w.Body.Bytes())
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Equal(t, "abc123", env.Meta["fingerprint"])
	assert.Contains(t, env.Meta, "processing_time_ms")
}

func TestInsightsHandlerComputeEngineUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewInsightsHandler(&insightsServiceMock{err: appErrors.ErrEngineUnavailable}, 0)

	c, w := newGinContext(http.MethodPost, "/insights", []byte(`{"course_id":"course-1"}`))
	handler.Compute(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "ENGINE_UNAVAILABLE")
}

func TestInsightsHandlerComputeMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &insightsServiceMock{}
	handler := NewInsightsHandler(mockSvc, 0)

	c, w := newGinContext(http.MethodPost, "/insights", []byte(`{"course_id":`))
	handler.Compute(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mockSvc.gotSource)
}

func TestInsightsHandlerImport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &insightsServiceMock{
		result: &dto.InsightsResponse{CourseID: "course-9", Fingerprint: "fff"},
	}
	handler := NewInsightsHandler(mockSvc, 1<<20)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("course_id", "course-9"))
	part, err := mw.CreateFormFile("file", "grades.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte("student_id,assignment_id,score\ns1,a1,80\n"))
	require.NoError(t, mw.Close())

	c, w := newGinContext(http.MethodPost, "/insights/import", body.Bytes())
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())

	handler.Import(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "course-9", mockSvc.gotCourse)
	assert.Equal(t, "grades.csv", mockSvc.gotFilename)
	assert.Contains(t, mockSvc.gotBody, "s1,a1,80")
	assert.Equal(t, "MISS", w.Header().Get(middleware.CacheHeader))
}

func TestInsightsHandlerImportRequiresFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewInsightsHandler(&insightsServiceMock{}, 1<<20)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("course_id", "course-9"))
	require.NoError(t, mw.Close())

	c, w := newGinContext(http.MethodPost, "/insights/import", body.Bytes())
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())

	handler.Import(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInsightsHandlerLatestNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &insightsServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "no insights stored for course")}
	handler := NewInsightsHandler(mockSvc, 0)

	c, w := newGinContext(http.MethodGet, "/insights/courses/course-1/latest", nil)
	c.Params = gin.Params{{Key: "courseId", Value: "course-1"}}

	handler.Latest(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "course-1", mockSvc.gotCourse)
}

func TestInsightsHandlerSnapshot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &insightsServiceMock{snapshot: &models.InsightsSnapshot{ID: "snap-1", CourseID: "course-1"}}
	handler := NewInsightsHandler(mockSvc, 0)

	c, w := newGinContext(http.MethodGet, "/insights/snapshots/snap-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "snap-1"}}

	handler.Snapshot(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"snap-1"`)
}

func TestInsightsHandlerListSnapshots(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &insightsServiceMock{
		list: []dto.SnapshotSummary{{ID: "snap-1", CourseID: "course-1"}},
		page: &models.Pagination{Page: 2, PageSize: 10, TotalCount: 11},
	}
	handler := NewInsightsHandler(mockSvc, 0)

	c, w := newGinContext(http.MethodGet, "/insights/courses/course-1/snapshots?page=2&page_size=10", nil)
	c.Params = gin.Params{{Key: "courseId", Value: "course-1"}}

	handler.ListSnapshots(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.SnapshotListRequest{CourseID: "course-1", Page: 2, PageSize: 10}, mockSvc.gotList)

	env := decodeEnvelope(t, w.Body.Bytes())
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 11, env.Pagination.TotalCount)
}

func TestInsightsHandlerListSnapshotsBadPage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewInsightsHandler(&insightsServiceMock{}, 0)

	c, w := newGinContext(http.MethodGet, "/insights/courses/course-1/snapshots?page=two", nil)
	c.Params = gin.Params{{Key: "courseId", Value: "course-1"}}

	handler.ListSnapshots(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

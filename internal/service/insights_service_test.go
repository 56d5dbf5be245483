package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-insights/internal/analytics"
	"github.com/noah-isme/gradebook-insights/internal/dto"
	"github.com/noah-isme/gradebook-insights/internal/models"
	appErrors "github.com/noah-isme/gradebook-insights/pkg/errors"
)

type stubCacheRepo struct {
	store    map[string][]byte
	patterns []string
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.store {
		if strings.HasPrefix(key, prefix) {
			delete(s.store, key)
		}
	}
	return nil
}

type snapshotStoreStub struct {
	mu        sync.Mutex
	snapshots map[string]*models.InsightsSnapshot
	createErr error
}

func newSnapshotStoreStub() *snapshotStoreStub {
	return &snapshotStoreStub{snapshots: map[string]*models.InsightsSnapshot{}}
}

func (s *snapshotStoreStub) Create(_ context.Context, snap *models.InsightsSnapshot) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	copied := *snap
	s.snapshots[snap.ID] = &copied
	return nil
}

func (s *snapshotStoreStub) GetByID(_ context.Context, id string) (*models.InsightsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return snap, nil
}

func (s *snapshotStoreStub) LatestByCourse(_ context.Context, courseID string, now time.Time) (*models.InsightsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.InsightsSnapshot
	for _, snap := range s.snapshots {
		if snap.CourseID != courseID || snap.Expired(now) {
			continue
		}
		if latest == nil || snap.CreatedAt.After(latest.CreatedAt) {
			latest = snap
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	return latest, nil
}

func (s *snapshotStoreStub) ListByCourse(ctx context.Context, courseID string, now time.Time, _, _ int) ([]models.InsightsSnapshot, int, error) {
	latest, err := s.LatestByCourse(ctx, courseID, now)
	if err != nil {
		return nil, 0, nil
	}
	return []models.InsightsSnapshot{*latest}, 1, nil
}

func (s *snapshotStoreStub) DeleteExpired(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var courses []string
	for id, snap := range s.snapshots {
		if snap.Expired(now) {
			courses = append(courses, snap.CourseID)
			delete(s.snapshots, id)
		}
	}
	return courses, nil
}

type countingEngine struct {
	inner insightsEngine
	calls int
}

func (e *countingEngine) Compute(in models.GradebookInput) (*models.InsightsBundle, error) {
	e.calls++
	return e.inner.Compute(in)
}

type failingEngine struct{ err error }

func (e failingEngine) Compute(models.GradebookInput) (*models.InsightsBundle, error) {
	return nil, e.err
}

func sampleRequest() dto.ComputeInsightsRequest {
	return dto.ComputeInsightsRequest{
		CourseID: "course-1",
		Students: []models.Student{{ID: "s1", Name: "Ana"}, {ID: "s2", Name: "Budi"}},
		Assignments: []models.Assignment{
			{ID: "a1", Name: "Chapter 1 Quiz", MaxScore: 100},
			{ID: "a2", Name: "Chapter 2 Quiz", MaxScore: 100},
		},
		Grades: []models.Grade{
			{StudentID: "s1", AssignmentID: "a1", Score: 90, MaxScore: 100},
			{StudentID: "s1", AssignmentID: "a2", Score: 85, MaxScore: 100},
			{StudentID: "s2", AssignmentID: "a1", Score: 40, MaxScore: 100},
			{StudentID: "s2", AssignmentID: "a2", Score: 35, MaxScore: 100},
		},
	}
}

func newInsightsServiceForTest(engine insightsEngine, snapshots snapshotStore, cacheRepo *stubCacheRepo) (*InsightsService, *MetricsService) {
	metrics := NewMetricsService()
	cache := NewCacheService(cacheRepo, metrics, time.Minute, zap.NewNop(), cacheRepo != nil)
	svc := NewInsightsService(engine, snapshots, cache, metrics, nil, zap.NewNop(), InsightsServiceConfig{
		CacheTTL:       time.Minute,
		SnapshotTTL:    time.Hour,
		MaxUploadBytes: 1 << 20,
	})
	return svc, metrics
}

func TestInsightsServiceComputeCachesAndPersists(t *testing.T) {
	engine := &countingEngine{inner: analytics.New(nil)}
	store := newSnapshotStoreStub()
	svc, metrics := newInsightsServiceForTest(engine, store, &stubCacheRepo{})
	ctx := context.Background()

	first, hit, err := svc.Compute(ctx, sampleRequest(), models.SourceAPI)
	require.NoError(t, err)
	assert.False(t, hit)
	require.NotNil(t, first.SnapshotID)
	assert.Len(t, first.Fingerprint, 64)
	assert.Equal(t, 2, first.Insights.EarlyIntervention.TotalStudents)

	second, hit, err := svc.Compute(ctx, sampleRequest(), models.SourceAPI)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, engine.calls)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, *first.SnapshotID, *second.SnapshotID)
	assert.Equal(t, first.Insights, second.Insights)

	snap, err := svc.Latest(ctx, "course-1")
	require.NoError(t, err)
	assert.Equal(t, *first.SnapshotID, snap.ID)
	assert.Equal(t, 4, snap.GradeCount)
	assert.Equal(t, uint64(1), metrics.Snapshot().Computations)
}

func TestInsightsServiceComputeWithoutStores(t *testing.T) {
	svc, _ := newInsightsServiceForTest(analytics.New(nil), nil, nil)

	resp, hit, err := svc.Compute(context.Background(), sampleRequest(), models.SourceCLI)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, resp.SnapshotID)

	_, err = svc.Latest(context.Background(), "course-1")
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestInsightsServiceSnapshotFailureIsNotFatal(t *testing.T) {
	store := newSnapshotStoreStub()
	store.createErr = errors.New("db down")
	svc, _ := newInsightsServiceForTest(analytics.New(nil), store, nil)

	resp, _, err := svc.Compute(context.Background(), sampleRequest(), models.SourceAPI)
	require.NoError(t, err)
	assert.Nil(t, resp.SnapshotID)
}

func TestInsightsServiceValidation(t *testing.T) {
	svc, _ := newInsightsServiceForTest(analytics.New(nil), nil, nil)
	req := sampleRequest()
	req.CourseID = ""

	_, _, err := svc.Compute(context.Background(), req, models.SourceAPI)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestInsightsServiceEngineUnavailable(t *testing.T) {
	engine := failingEngine{err: &analytics.InitializationError{Err: errors.New("bad thresholds")}}
	svc, _ := newInsightsServiceForTest(engine, nil, nil)

	_, _, err := svc.Compute(context.Background(), sampleRequest(), models.SourceAPI)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.Status)
	assert.Equal(t, appErrors.ErrEngineUnavailable.Code, appErr.Code)
}

func TestInsightsServiceEmptyGradebookStillReturnsBundle(t *testing.T) {
	svc, _ := newInsightsServiceForTest(analytics.New(nil), nil, nil)

	resp, _, err := svc.Compute(context.Background(), dto.ComputeInsightsRequest{CourseID: "empty"}, models.SourceAPI)
	require.NoError(t, err)
	assert.Equal(t, models.ReliabilityInsufficientData, resp.Insights.AssessmentQuality.ReliabilityRating)
	assert.NotNil(t, resp.Insights.EarlyIntervention.HighRisk)
}

func TestInsightsServiceImport(t *testing.T) {
	svc, _ := newInsightsServiceForTest(analytics.New(nil), newSnapshotStoreStub(), nil)
	csv := "student_id,assignment_id,assignment_name,score\ns1,a1,Bab 1 Kuis,80\ns2,a1,Bab 1 Kuis,60\n"

	resp, _, err := svc.Import(context.Background(), "course-7", "grades.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, "course-7", resp.CourseID)
	assert.Equal(t, 2, resp.Insights.EarlyIntervention.TotalStudents)

	_, _, err = svc.Import(context.Background(), "course-7", "grades.txt", strings.NewReader(csv))
	assert.Equal(t, http.StatusUnsupportedMediaType, appErrors.FromError(err).Status)

	svc.cfg.MaxUploadBytes = 8
	_, _, err = svc.Import(context.Background(), "course-7", "grades.csv", strings.NewReader(csv))
	assert.Equal(t, http.StatusRequestEntityTooLarge, appErrors.FromError(err).Status)
}

func TestInsightsServiceImportRejectsNonFiniteScore(t *testing.T) {
	svc, _ := newInsightsServiceForTest(analytics.New(nil), newSnapshotStoreStub(), nil)
	csv := "student_id,assignment_id,score\ns1,a1,80\ns1,a2,NaN\n"

	_, _, err := svc.Import(context.Background(), "course-7", "grades.csv", strings.NewReader(csv))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestInsightsServiceSnapshotExpiryAndCleanup(t *testing.T) {
	store := newSnapshotStoreStub()
	cacheRepo := &stubCacheRepo{}
	svc, _ := newInsightsServiceForTest(analytics.New(nil), store, cacheRepo)
	ctx := context.Background()

	resp, _, err := svc.Compute(ctx, sampleRequest(), models.SourceAPI)
	require.NoError(t, err)
	_, err = svc.Snapshot(ctx, *resp.SnapshotID)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Snapshot(ctx, *resp.SnapshotID)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)

	svc.cleanupExpired(ctx)
	assert.Empty(t, store.snapshots)
	assert.Equal(t, []string{"insights:course-1:*"}, cacheRepo.patterns)
	assert.Empty(t, cacheRepo.store)
}

func TestInsightsServiceList(t *testing.T) {
	store := newSnapshotStoreStub()
	svc, _ := newInsightsServiceForTest(analytics.New(nil), store, nil)
	ctx := context.Background()
	_, _, err := svc.Compute(ctx, sampleRequest(), models.SourceAPI)
	require.NoError(t, err)

	items, page, err := svc.List(ctx, dto.SnapshotListRequest{CourseID: "course-1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, 20, page.PageSize)

	_, _, err = svc.List(ctx, dto.SnapshotListRequest{CourseID: "course-1", PageSize: 500})
	assert.Error(t, err)
}

func TestFingerprintIsStable(t *testing.T) {
	a, err := Fingerprint(sampleRequest().Gradebook())
	require.NoError(t, err)
	b, err := Fingerprint(sampleRequest().Gradebook())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	changed := sampleRequest()
	changed.Grades[0].Score = 91
	c, err := Fingerprint(changed.Gradebook())
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

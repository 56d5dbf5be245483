package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-insights/internal/analytics"
	"github.com/noah-isme/gradebook-insights/internal/dto"
	"github.com/noah-isme/gradebook-insights/internal/models"
	appErrors "github.com/noah-isme/gradebook-insights/pkg/errors"
	"github.com/noah-isme/gradebook-insights/pkg/importer"
)

type insightsEngine interface {
	Compute(in models.GradebookInput) (*models.InsightsBundle, error)
}

type snapshotStore interface {
	Create(ctx context.Context, snap *models.InsightsSnapshot) error
	GetByID(ctx context.Context, id string) (*models.InsightsSnapshot, error)
	LatestByCourse(ctx context.Context, courseID string, now time.Time) (*models.InsightsSnapshot, error)
	ListByCourse(ctx context.Context, courseID string, now time.Time, page, pageSize int) ([]models.InsightsSnapshot, int, error)
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
}

// InsightsServiceConfig tunes caching and snapshot retention.
type InsightsServiceConfig struct {
	CacheTTL        time.Duration
	SnapshotTTL     time.Duration
	CleanupInterval time.Duration
	MaxUploadBytes  int64
}

// InsightsService runs the analytics engine behind a result cache and keeps
// computed bundles as expiring snapshots. snapshots may be nil, in which case
// nothing is persisted.
type InsightsService struct {
	engine    insightsEngine
	snapshots snapshotStore
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       InsightsServiceConfig
	now       func() time.Time
}

// NewInsightsService constructs the service.
func NewInsightsService(engine insightsEngine, snapshots snapshotStore, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg InsightsServiceConfig) *InsightsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = 24 * time.Hour
	}
	return &InsightsService{
		engine:    engine,
		snapshots: snapshots,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Fingerprint hashes the canonical JSON encoding of the gradebook.
func Fingerprint(in models.GradebookInput) (string, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("encode gradebook: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func insightsCacheKey(courseID, fingerprint string) string {
	return fmt.Sprintf("insights:%s:%s", courseID, fingerprint)
}

func insightsCachePattern(courseID string) string {
	return fmt.Sprintf("insights:%s:*", courseID)
}

// Compute returns the insights bundle for req and whether it came from cache.
func (s *InsightsService) Compute(ctx context.Context, req dto.ComputeInsightsRequest, source models.ComputeSource) (*dto.InsightsResponse, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid gradebook payload")
	}
	in := req.Gradebook()
	fingerprint, err := Fingerprint(in)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fingerprint gradebook")
	}

	key := insightsCacheKey(in.CourseID, fingerprint)
	var cached dto.InsightsResponse
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	bundle, err := s.engine.Compute(in)
	if err != nil {
		var initErr *analytics.InitializationError
		if errors.As(err, &initErr) {
			s.logger.Error("insights engine unavailable", zap.Error(err))
			return nil, false, appErrors.Wrap(err, appErrors.ErrEngineUnavailable.Code, appErrors.ErrEngineUnavailable.Status, appErrors.ErrEngineUnavailable.Message)
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute insights")
	}
	s.metrics.RecordComputation(source)

	resp := &dto.InsightsResponse{
		CourseID:    in.CourseID,
		Fingerprint: fingerprint,
		ComputedAt:  s.now().UTC(),
		Insights:    *bundle,
	}
	if snap, err := s.persist(ctx, in, fingerprint, source, bundle, resp.ComputedAt); err != nil {
		s.logger.Warn("failed to persist insights snapshot", zap.String("course_id", in.CourseID), zap.Error(err))
	} else if snap != nil {
		resp.SnapshotID = &snap.ID
	}

	_ = s.cache.Set(ctx, key, resp, s.cfg.CacheTTL)
	return resp, false, nil
}

func (s *InsightsService) persist(ctx context.Context, in models.GradebookInput, fingerprint string, source models.ComputeSource, bundle *models.InsightsBundle, at time.Time) (*models.InsightsSnapshot, error) {
	if s.snapshots == nil {
		return nil, nil
	}
	snap := &models.InsightsSnapshot{
		CourseID:        in.CourseID,
		Fingerprint:     fingerprint,
		Source:          source,
		StudentCount:    len(in.Students),
		AssignmentCount: len(in.Assignments),
		GradeCount:      len(in.Grades),
		Bundle:          *bundle,
		CreatedAt:       at,
		ExpiresAt:       at.Add(s.cfg.SnapshotTTL),
	}
	start := time.Now()
	err := s.snapshots.Create(ctx, snap)
	s.metrics.ObserveDBQuery("snapshot_create", time.Since(start))
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Import parses an uploaded gradebook file and computes its insights.
func (s *InsightsService) Import(ctx context.Context, courseID, filename string, r io.Reader) (*dto.InsightsResponse, bool, error) {
	in, err := importer.Parse(courseID, filename, r, s.cfg.MaxUploadBytes)
	if err != nil {
		return nil, false, mapImportError(err)
	}
	return s.Compute(ctx, dto.FromGradebook(in), models.SourceImport)
}

func mapImportError(err error) error {
	var schemaErr *importer.SchemaError
	switch {
	case errors.Is(err, importer.ErrUnsupportedFormat):
		return appErrors.Wrap(err, appErrors.ErrUnsupportedFormat.Code, appErrors.ErrUnsupportedFormat.Status, appErrors.ErrUnsupportedFormat.Message)
	case errors.Is(err, importer.ErrTooLarge):
		return appErrors.Wrap(err, appErrors.ErrPayloadTooLarge.Code, appErrors.ErrPayloadTooLarge.Status, appErrors.ErrPayloadTooLarge.Message)
	case errors.As(err, &schemaErr):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, schemaErr.Error())
	default:
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
}

// Latest returns the newest unexpired snapshot for a course.
func (s *InsightsService) Latest(ctx context.Context, courseID string) (*models.InsightsSnapshot, error) {
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "courseId is required")
	}
	if s.snapshots == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "snapshots are disabled")
	}
	snap, err := s.snapshots.LatestByCourse(ctx, courseID, s.now().UTC())
	if err != nil {
		return nil, snapshotLookupError(err)
	}
	return snap, nil
}

// Snapshot loads one snapshot by id. Expired snapshots are reported as missing.
func (s *InsightsService) Snapshot(ctx context.Context, id string) (*models.InsightsSnapshot, error) {
	if s.snapshots == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "snapshots are disabled")
	}
	snap, err := s.snapshots.GetByID(ctx, id)
	if err != nil {
		return nil, snapshotLookupError(err)
	}
	if snap.Expired(s.now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "snapshot expired")
	}
	return snap, nil
}

// List pages through a course's unexpired snapshots.
func (s *InsightsService) List(ctx context.Context, req dto.SnapshotListRequest) ([]dto.SnapshotSummary, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid snapshot query")
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if s.snapshots == nil {
		return []dto.SnapshotSummary{}, &models.Pagination{Page: req.Page, PageSize: req.PageSize}, nil
	}

	snaps, total, err := s.snapshots.ListByCourse(ctx, req.CourseID, s.now().UTC(), req.Page, req.PageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list snapshots")
	}
	out := make([]dto.SnapshotSummary, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, dto.SnapshotSummary{
			ID:              snap.ID,
			CourseID:        snap.CourseID,
			Fingerprint:     snap.Fingerprint,
			Source:          snap.Source,
			StudentCount:    snap.StudentCount,
			AssignmentCount: snap.AssignmentCount,
			GradeCount:      snap.GradeCount,
			CreatedAt:       snap.CreatedAt,
			ExpiresAt:       snap.ExpiresAt,
		})
	}
	return out, &models.Pagination{Page: req.Page, PageSize: req.PageSize, TotalCount: total}, nil
}

func snapshotLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "snapshot not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot")
}

// StartCleanup purges expired snapshots every CleanupInterval and drops the
// cached bundles of affected courses.
func (s *InsightsService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 || s.snapshots == nil {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *InsightsService) cleanupExpired(ctx context.Context) {
	courses, err := s.snapshots.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		s.logger.Warn("snapshot cleanup failed", zap.Error(err))
		return
	}
	for _, courseID := range courses {
		_ = s.cache.Invalidate(ctx, insightsCachePattern(courseID))
	}
	if len(courses) > 0 {
		s.logger.Info("expired insights snapshots removed", zap.Int("courses", len(courses)))
	}
}

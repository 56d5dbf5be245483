package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradebook-insights/internal/models"
)

const snapshotSummaryColumns = `id, course_id, fingerprint, source, student_count, assignment_count, grade_count, created_at, expires_at`

// SnapshotRepository persists computed insights bundles with an expiry.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository constructs the repository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create inserts a snapshot row, generating id and timestamps when unset.
func (r *SnapshotRepository) Create(ctx context.Context, snap *models.InsightsSnapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO insights_snapshots (id, course_id, fingerprint, source, student_count, assignment_count, grade_count, bundle, created_at, expires_at)
VALUES (:id, :course_id, :fingerprint, :source, :student_count, :assignment_count, :grade_count, :bundle, :created_at, :expires_at)`
	if _, err := r.db.NamedExecContext(ctx, query, snap); err != nil {
		return fmt.Errorf("create insights snapshot: %w", err)
	}
	return nil
}

// GetByID loads one snapshot including its bundle.
func (r *SnapshotRepository) GetByID(ctx context.Context, id string) (*models.InsightsSnapshot, error) {
	const query = `SELECT ` + snapshotSummaryColumns + `, bundle FROM insights_snapshots WHERE id = $1`
	var snap models.InsightsSnapshot
	if err := r.db.GetContext(ctx, &snap, query, id); err != nil {
		return nil, fmt.Errorf("get insights snapshot: %w", err)
	}
	return &snap, nil
}

// LatestByCourse returns the newest snapshot for a course that has not expired.
func (r *SnapshotRepository) LatestByCourse(ctx context.Context, courseID string, now time.Time) (*models.InsightsSnapshot, error) {
	const query = `SELECT ` + snapshotSummaryColumns + `, bundle FROM insights_snapshots
WHERE course_id = $1 AND expires_at > $2 ORDER BY created_at DESC LIMIT 1`
	var snap models.InsightsSnapshot
	if err := r.db.GetContext(ctx, &snap, query, courseID, now); err != nil {
		return nil, fmt.Errorf("latest insights snapshot: %w", err)
	}
	return &snap, nil
}

// ListByCourse pages through unexpired snapshot summaries, newest first. The
// bundle column is not loaded.
func (r *SnapshotRepository) ListByCourse(ctx context.Context, courseID string, now time.Time, page, pageSize int) ([]models.InsightsSnapshot, int, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	var total int
	const countQuery = `SELECT COUNT(*) FROM insights_snapshots WHERE course_id = $1 AND expires_at > $2`
	if err := r.db.GetContext(ctx, &total, countQuery, courseID, now); err != nil {
		return nil, 0, fmt.Errorf("count insights snapshots: %w", err)
	}

	const query = `SELECT ` + snapshotSummaryColumns + ` FROM insights_snapshots
WHERE course_id = $1 AND expires_at > $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`
	var snaps []models.InsightsSnapshot
	if err := r.db.SelectContext(ctx, &snaps, query, courseID, now, pageSize, (page-1)*pageSize); err != nil {
		return nil, 0, fmt.Errorf("list insights snapshots: %w", err)
	}
	return snaps, total, nil
}

// DeleteExpired removes snapshots past their expiry and returns the affected
// course ids so callers can invalidate caches.
func (r *SnapshotRepository) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	const query = `DELETE FROM insights_snapshots WHERE expires_at <= $1 RETURNING course_id`
	var courses []string
	if err := r.db.SelectContext(ctx, &courses, query, now); err != nil {
		return nil, fmt.Errorf("delete expired insights snapshots: %w", err)
	}
	return dedupe(courses), nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

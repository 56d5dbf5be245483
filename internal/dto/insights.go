package dto

import (
	"time"

	"github.com/noah-isme/gradebook-insights/internal/models"
)

// ComputeInsightsRequest is the POST /insights payload.
type ComputeInsightsRequest struct {
	CourseID    string              `json:"course_id" validate:"required,max=128"`
	Students    []models.Student    `json:"students" validate:"max=5000"`
	Assignments []models.Assignment `json:"assignments" validate:"max=2000"`
	Grades      []models.Grade      `json:"grades" validate:"max=1000000"`
}

// Gradebook converts the request to the engine input.
func (r ComputeInsightsRequest) Gradebook() models.GradebookInput {
	return models.GradebookInput{
		CourseID:    r.CourseID,
		Students:    r.Students,
		Assignments: r.Assignments,
		Grades:      r.Grades,
	}
}

// FromGradebook wraps an already parsed gradebook, e.g. from an upload.
func FromGradebook(in models.GradebookInput) ComputeInsightsRequest {
	return ComputeInsightsRequest{
		CourseID:    in.CourseID,
		Students:    in.Students,
		Assignments: in.Assignments,
		Grades:      in.Grades,
	}
}

// InsightsResponse is the computed bundle plus provenance.
type InsightsResponse struct {
	CourseID    string                `json:"course_id"`
	Fingerprint string                `json:"fingerprint"`
	SnapshotID  *string               `json:"snapshot_id,omitempty"`
	ComputedAt  time.Time             `json:"computed_at"`
	Insights    models.InsightsBundle `json:"insights"`
}

// SnapshotSummary lists a stored snapshot without its bundle.
type SnapshotSummary struct {
	ID              string               `json:"id"`
	CourseID        string               `json:"course_id"`
	Fingerprint     string               `json:"fingerprint"`
	Source          models.ComputeSource `json:"source"`
	StudentCount    int                  `json:"student_count"`
	AssignmentCount int                  `json:"assignment_count"`
	GradeCount      int                  `json:"grade_count"`
	CreatedAt       time.Time            `json:"created_at"`
	ExpiresAt       time.Time            `json:"expires_at"`
}

// SnapshotListRequest pages through a course's snapshots.
type SnapshotListRequest struct {
	CourseID string `validate:"required"`
	Page     int    `validate:"gte=0"`
	PageSize int    `validate:"gte=0,lte=100"`
}

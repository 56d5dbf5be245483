package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ComputeSource records which entry point produced a snapshot.
type ComputeSource string

const (
	SourceAPI    ComputeSource = "api"
	SourceImport ComputeSource = "import"
	SourceCLI    ComputeSource = "cli"
)

// InsightsSnapshot is a persisted bundle for one course, kept until ExpiresAt.
type InsightsSnapshot struct {
	ID              string         `db:"id" json:"id"`
	CourseID        string         `db:"course_id" json:"course_id"`
	Fingerprint     string         `db:"fingerprint" json:"fingerprint"`
	Source          ComputeSource  `db:"source" json:"source"`
	StudentCount    int            `db:"student_count" json:"student_count"`
	AssignmentCount int            `db:"assignment_count" json:"assignment_count"`
	GradeCount      int            `db:"grade_count" json:"grade_count"`
	Bundle          InsightsBundle `db:"bundle" json:"bundle"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	ExpiresAt       time.Time      `db:"expires_at" json:"expires_at"`
}

// Expired reports whether the snapshot is past its retention window.
func (s *InsightsSnapshot) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Value stores the bundle as JSONB.
func (b InsightsBundle) Value() (driver.Value, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal insights bundle: %w", err)
	}
	return data, nil
}

// Scan decodes a JSONB bundle column.
func (b *InsightsBundle) Scan(value interface{}) error {
	data, err := jsonBytes(value, "InsightsBundle")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*b = InsightsBundle{}
		return nil
	}
	if err := json.Unmarshal(data, b); err != nil {
		return fmt.Errorf("unmarshal insights bundle: %w", err)
	}
	return nil
}

package dto

import "github.com/noah-isme/gradebook-insights/internal/models"

// ExportRequest captures the POST /exports payload.
type ExportRequest struct {
	SnapshotID string              `json:"snapshotId" validate:"required"`
	Kind       models.ExportKind   `json:"kind" validate:"required,oneof=risk difficulty quality progression patterns"`
	Format     models.ExportFormat `json:"format" validate:"required,oneof=csv pdf xlsx"`
	RiskLevel  *models.RiskLevel   `json:"riskLevel,omitempty" validate:"omitempty,oneof=high medium low"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Kind      models.ExportKind   `json:"kind"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}

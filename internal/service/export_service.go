package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-insights/internal/models"
	"github.com/noah-isme/gradebook-insights/pkg/export"
	"github.com/noah-isme/gradebook-insights/pkg/storage"
)

type snapshotReader interface {
	GetByID(ctx context.Context, id string) (*models.InsightsSnapshot, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders one report of a stored snapshot and keeps the file
// behind a signed download URL.
type ExportService struct {
	snapshots snapshotReader
	storage   fileStorage
	renderers map[models.ExportFormat]export.Renderer
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
}

// DefaultRenderers returns the renderer for every supported format.
func DefaultRenderers() map[models.ExportFormat]export.Renderer {
	return map[models.ExportFormat]export.Renderer{
		models.ExportFormatCSV:  export.NewCSVExporter(),
		models.ExportFormatPDF:  export.NewPDFExporter(),
		models.ExportFormatXLSX: export.NewXLSXExporter(),
	}
}

// NewExportService constructs an ExportService. A nil renderer map uses
// DefaultRenderers.
func NewExportService(snapshots snapshotReader, files fileStorage, signer *storage.SignedURLSigner, renderers map[models.ExportFormat]export.Renderer, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if renderers == nil {
		renderers = DefaultRenderers()
	}
	return &ExportService{
		snapshots: snapshots,
		storage:   files,
		renderers: renderers,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
	}
}

// Generate renders the job's report from its snapshot and stores the file.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	renderer, ok := s.renderers[job.Params.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	snap, err := s.snapshots.GetByID(ctx, job.SnapshotID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", job.SnapshotID, err)
	}

	dataset, err := ReportDataset(snap.Bundle, job.Kind, snap.CourseID, job.Params.RiskLevel)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", job.Params.Format, err)
	}

	relPath, err := s.storage.Save(buildFilename(job, snap.CourseID, renderer.Extension()), payload)
	if err != nil {
		return nil, err
	}
	token, download, err := s.signer.Sign(job.ID, relPath)
	if err != nil {
		_ = s.storage.Delete(relPath)
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Debug("export rendered", zap.String("job_id", job.ID), zap.String("path", relPath), zap.Int("bytes", len(payload)))

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    download.ExpiresAt,
	}, nil
}

// Verify validates a download token.
func (s *ExportService) Verify(token string, allowExpired bool) (storage.Download, error) {
	return s.signer.Verify(token, allowExpired)
}

// ContentType returns the MIME type for format.
func (s *ExportService) ContentType(format models.ExportFormat) string {
	if r, ok := s.renderers[format]; ok {
		return r.ContentType()
	}
	return "application/octet-stream"
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl, or ResultTTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func buildFilename(job *models.ExportJob, courseID, ext string) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s/%s_%s_%s.%s", job.Kind, sanitizeFilename(courseID), timestamp, shortID(job.ID), ext)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
		if b.Len() >= 100 {
			break
		}
	}
	return b.String()
}

// ReportDataset flattens one report of a bundle into a table. riskLevel
// restricts the risk report to a single tier.
func ReportDataset(bundle models.InsightsBundle, kind models.ExportKind, courseID string, riskLevel *models.RiskLevel) (export.Dataset, error) {
	switch kind {
	case models.ExportKindRisk:
		return riskDataset(bundle.EarlyIntervention, courseID, riskLevel), nil
	case models.ExportKindDifficulty:
		return difficultyDataset(bundle.ChapterDifficulty, courseID), nil
	case models.ExportKindQuality:
		return qualityDataset(bundle.AssessmentQuality, courseID), nil
	case models.ExportKindProgression:
		return progressionDataset(bundle.LearningProgression, courseID), nil
	case models.ExportKindPatterns:
		return patternsDataset(bundle.PerformancePatterns, courseID), nil
	default:
		return export.Dataset{}, fmt.Errorf("unsupported report kind %q", kind)
	}
}

func riskDataset(r models.RiskReport, courseID string, only *models.RiskLevel) export.Dataset {
	headers := []string{"Student ID", "Risk Level", "Risk Score", "Factors", "Recommendations"}
	rows := make([]map[string]string, 0, r.TotalStudents)
	tiers := [][]models.RiskEntry{r.HighRisk, r.MediumRisk, r.LowRisk}
	for _, tier := range tiers {
		for _, e := range tier {
			if only != nil && e.RiskLevel != *only {
				continue
			}
			rows = append(rows, map[string]string{
				"Student ID":      e.StudentID,
				"Risk Level":      string(e.RiskLevel),
				"Risk Score":      formatFloat(e.RiskScore),
				"Factors":         strings.Join(e.Factors, "; "),
				"Recommendations": strings.Join(e.Recommendations, "; "),
			})
		}
	}
	return export.Dataset{
		Title: fmt.Sprintf("Early Intervention Report %s", courseID),
		Notes: []string{
			fmt.Sprintf("High risk: %d  Medium risk: %d  Low risk: %d", len(r.HighRisk), len(r.MediumRisk), len(r.LowRisk)),
			fmt.Sprintf("Students analysed: %d", r.TotalStudents),
		},
		Headers: headers,
		Rows:    rows,
	}
}

func difficultyDataset(r models.ChapterDifficultyReport, courseID string) export.Dataset {
	rows := make([]map[string]string, 0, len(r.Chapters))
	for _, ch := range r.Chapters {
		rows = append(rows, map[string]string{
			"Chapter":     ch.Name,
			"Average (%)": formatFloat(ch.AvgScore),
			"Std Dev":     formatFloat(ch.StdDeviation),
			"Assignments": strconv.Itoa(ch.AssignmentCount),
			"Students":    strconv.Itoa(ch.StudentCount),
			"Difficulty":  string(ch.DifficultyLevel),
		})
	}
	notes := []string{fmt.Sprintf("Chapters: %d", r.TotalChapters)}
	if r.HardestChapter != nil && r.EasiestChapter != nil {
		notes = append(notes, fmt.Sprintf("Hardest: %s  Easiest: %s", *r.HardestChapter, *r.EasiestChapter))
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Chapter Difficulty Report %s", courseID),
		Notes:   notes,
		Headers: []string{"Chapter", "Average (%)", "Std Dev", "Assignments", "Students", "Difficulty"},
		Rows:    rows,
	}
}

func qualityDataset(r models.AssessmentQualityReport, courseID string) export.Dataset {
	problematic := make(map[string]struct{}, len(r.ProblematicItems))
	for _, item := range r.ProblematicItems {
		problematic[item.ID] = struct{}{}
	}
	rows := make([]map[string]string, 0, len(r.Items))
	for _, item := range r.Items {
		flag := "no"
		if _, ok := problematic[item.ID]; ok {
			flag = "yes"
		}
		rows = append(rows, map[string]string{
			"Item ID":        item.ID,
			"Item":           item.Name,
			"Difficulty":     formatFloat(item.Difficulty),
			"Discrimination": formatFloat(item.Discrimination),
			"Quality":        string(item.QualityRating),
			"Problematic":    flag,
			"Recommendation": item.Recommendation,
		})
	}
	return export.Dataset{
		Title: fmt.Sprintf("Assessment Quality Report %s", courseID),
		Notes: []string{
			fmt.Sprintf("Cronbach's alpha: %s (%s)", formatFloat(r.Reliability), r.ReliabilityRating),
			fmt.Sprintf("Items: %d  Problematic: %d", r.TotalItems, len(r.ProblematicItems)),
		},
		Headers: []string{"Item ID", "Item", "Difficulty", "Discrimination", "Quality", "Problematic", "Recommendation"},
		Rows:    rows,
	}
}

func progressionDataset(r models.LearningProgressionReport, courseID string) export.Dataset {
	rows := make([]map[string]string, 0, len(r.StudentProgressions))
	for _, p := range r.StudentProgressions {
		rows = append(rows, map[string]string{
			"Student ID":  p.StudentID,
			"Trend":       string(p.Trend),
			"Data Points": strconv.Itoa(p.DataPoints),
			"Current (%)": formatFloat(p.Metrics.CurrentPerformance),
			"Velocity":    formatFloat(p.Metrics.Velocity),
			"Projected":   formatFloat(p.Metrics.ProjectedPerformance),
		})
	}
	return export.Dataset{
		Title: fmt.Sprintf("Learning Progression Report %s", courseID),
		Notes: []string{
			fmt.Sprintf("Overall trend: %s  Class velocity: %s", r.OverallTrend, formatFloat(r.ClassVelocity)),
			fmt.Sprintf("Class average trend: %s", r.ClassAverageTrend),
		},
		Headers: []string{"Student ID", "Trend", "Data Points", "Current (%)", "Velocity", "Projected"},
		Rows:    rows,
	}
}

func patternsDataset(r models.PerformancePatternsReport, courseID string) export.Dataset {
	rows := make([]map[string]string, 0, len(r.StudentPatterns))
	for _, sp := range r.StudentPatterns {
		types := make([]string, 0, len(sp.Patterns))
		descriptions := make([]string, 0, len(sp.Patterns))
		for _, p := range sp.Patterns {
			types = append(types, string(p.PatternType))
			descriptions = append(descriptions, p.Description)
		}
		rows = append(rows, map[string]string{
			"Student ID":  sp.StudentID,
			"Consistency": formatFloat(sp.ConsistencyScore),
			"Patterns":    strings.Join(types, ", "),
			"Details":     strings.Join(descriptions, "; "),
		})
	}
	return export.Dataset{
		Title: fmt.Sprintf("Performance Patterns Report %s", courseID),
		Notes: []string{
			fmt.Sprintf("Class consistency: %s  Students evaluated: %d", formatFloat(r.ClassConsistency), r.TotalStudents),
		},
		Headers: []string{"Student ID", "Consistency", "Patterns", "Details"},
		Rows:    rows,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

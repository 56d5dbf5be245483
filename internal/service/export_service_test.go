package service

import (
	"context"
	"encoding/csv"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-insights/internal/analytics"
	"github.com/noah-isme/gradebook-insights/internal/models"
	"github.com/noah-isme/gradebook-insights/pkg/storage"
)

func seededSnapshot(t *testing.T, store *snapshotStoreStub) *models.InsightsSnapshot {
	t.Helper()
	bundle, err := analytics.New(nil).Compute(sampleRequest().Gradebook())
	require.NoError(t, err)
	snap := &models.InsightsSnapshot{
		CourseID:  "course-1",
		Source:    models.SourceAPI,
		Bundle:    *bundle,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, store.Create(context.Background(), snap))
	return snap
}

func newExportServiceForTest(t *testing.T, snapshots snapshotReader) *ExportService {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	return NewExportService(snapshots, files, signer, nil, ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, zap.NewNop())
}

func TestExportServiceGenerateCSV(t *testing.T) {
	store := newSnapshotStoreStub()
	snap := seededSnapshot(t, store)
	svc := newExportServiceForTest(t, store)

	high := models.RiskHigh
	job := &models.ExportJob{
		ID:         "job-1",
		SnapshotID: snap.ID,
		Kind:       models.ExportKindRisk,
		Params:     models.ExportJobParams{Format: models.ExportFormatCSV, RiskLevel: &high},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))
	assert.True(t, strings.HasPrefix(result.RelativePath, "risk/course-1_"))
	assert.True(t, strings.HasSuffix(result.RelativePath, ".csv"))

	download, err := svc.Verify(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", download.JobID)

	f, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.Equal(t, []string{"Student ID", "Risk Level", "Risk Score", "Factors", "Recommendations"}, records[0])
	for _, row := range records[1:] {
		assert.Equal(t, "high", row[1])
	}
}

func TestExportServiceGenerateEveryKind(t *testing.T) {
	store := newSnapshotStoreStub()
	snap := seededSnapshot(t, store)
	svc := newExportServiceForTest(t, store)

	kinds := []models.ExportKind{
		models.ExportKindRisk, models.ExportKindDifficulty, models.ExportKindQuality,
		models.ExportKindProgression, models.ExportKindPatterns,
	}
	for _, format := range []models.ExportFormat{models.ExportFormatCSV, models.ExportFormatPDF, models.ExportFormatXLSX} {
		for _, kind := range kinds {
			job := &models.ExportJob{ID: "job-" + string(kind), SnapshotID: snap.ID, Kind: kind, Params: models.ExportJobParams{Format: format}}
			result, err := svc.Generate(context.Background(), job)
			require.NoError(t, err, "%s/%s", kind, format)

			f, err := svc.Open(result.RelativePath)
			require.NoError(t, err)
			body, err := io.ReadAll(f)
			require.NoError(t, f.Close())
			require.NoError(t, err)
			assert.NotEmpty(t, body)
		}
	}
}

func TestExportServiceRejectsUnknownInputs(t *testing.T) {
	store := newSnapshotStoreStub()
	snap := seededSnapshot(t, store)
	svc := newExportServiceForTest(t, store)

	_, err := svc.Generate(context.Background(), &models.ExportJob{ID: "j", SnapshotID: snap.ID, Kind: "grades", Params: models.ExportJobParams{Format: models.ExportFormatCSV}})
	assert.Error(t, err)

	_, err = svc.Generate(context.Background(), &models.ExportJob{ID: "j", SnapshotID: snap.ID, Kind: models.ExportKindRisk, Params: models.ExportJobParams{Format: "docx"}})
	assert.Error(t, err)

	_, err = svc.Generate(context.Background(), &models.ExportJob{ID: "j", SnapshotID: "missing", Kind: models.ExportKindRisk, Params: models.ExportJobParams{Format: models.ExportFormatCSV}})
	assert.Error(t, err)
}

func TestReportDatasetQualityFlagsProblematicItems(t *testing.T) {
	report := models.AssessmentQualityReport{
		Reliability:       0.81,
		ReliabilityRating: models.ReliabilityGood,
		Items: []models.ItemStat{
			{ID: "a1", Name: "Quiz 1", Difficulty: 0.5, Discrimination: 0.4, QualityRating: models.ItemExcellent},
			{ID: "a2", Name: "Quiz 2", Difficulty: 0.95, Discrimination: 0.1, QualityRating: models.ItemPoor},
		},
		ProblematicItems: []models.ItemStat{{ID: "a2"}},
		TotalItems:       2,
	}
	ds, err := ReportDataset(models.InsightsBundle{AssessmentQuality: report}, models.ExportKindQuality, "c1", nil)
	require.NoError(t, err)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "no", ds.Rows[0]["Problematic"])
	assert.Equal(t, "yes", ds.Rows[1]["Problematic"])
	assert.Contains(t, ds.Notes[0], "0.81")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "na", sanitizeFilename(""))
	assert.Equal(t, "MATH_101_2024", sanitizeFilename("MATH 101/2024"))
	assert.Len(t, sanitizeFilename(strings.Repeat("x", 300)), 100)
}

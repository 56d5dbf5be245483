package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-insights/internal/models"
)

func TestProgressionAnalyzerImprovingStudent(t *testing.T) {
	p := NewProgressionAnalyzer(DefaultThresholds().Progression)
	report := p.Analyze(BuildMatrix(gradebook(quizzes(4), map[string][]float64{
		"s1": {60, 70, 80, 90},
	})))

	require.Len(t, report.StudentProgressions, 1)
	sp := report.StudentProgressions[0]
	assert.Equal(t, models.TrendImproving, sp.Trend)
	assert.Equal(t, 4, sp.DataPoints)
	assert.InDelta(t, 10.0, sp.Metrics.Velocity, 1e-9)
	assert.Equal(t, 90.0, sp.Metrics.CurrentPerformance)
	assert.Equal(t, 100.0, sp.Metrics.ProjectedPerformance)
	assert.Greater(t, sp.Metrics.ProjectedPerformance, sp.Metrics.CurrentPerformance)

	assert.Equal(t, models.TrendImproving, report.OverallTrend)
	assert.Equal(t, models.TrendImproving, report.ClassAverageTrend)
	assert.InDelta(t, 10.0, report.ClassVelocity, 1e-9)
}

func TestProgressionAnalyzerClassTrends(t *testing.T) {
	p := NewProgressionAnalyzer(DefaultThresholds().Progression)
	report := p.Analyze(BuildMatrix(scenario()))

	require.Len(t, report.StudentProgressions, 3)
	byID := map[string]models.StudentProgression{}
	for _, sp := range report.StudentProgressions {
		byID[sp.StudentID] = sp
	}
	assert.Equal(t, models.TrendStable, byID["s1"].Trend)
	assert.Equal(t, models.TrendDeclining, byID["s3"].Trend)
	assert.InDelta(t, -23.0, byID["s3"].Metrics.Velocity, 1e-9)
	assert.Equal(t, 0.0, byID["s3"].Metrics.ProjectedPerformance)

	assert.InDelta(t, -23.0/3, report.ClassVelocity, 1e-4)
	assert.Equal(t, models.TrendDeclining, report.OverallTrend)
	assert.Equal(t, models.TrendDeclining, report.ClassAverageTrend)
}

func TestProgressionAnalyzerClassTrendFollowsVelocity(t *testing.T) {
	nan := math.NaN()
	p := NewProgressionAnalyzer(DefaultThresholds().Progression)
	// Column means fall (90, 40, 50) while the only student with a slope improves.
	report := p.Analyze(BuildMatrix(gradebook(quizzes(4), map[string][]float64{
		"s1": {90, nan, nan, nan},
		"s2": {nan, nan, 40, 50},
	})))

	assert.InDelta(t, 10.0, report.ClassVelocity, 1e-9)
	assert.Equal(t, models.TrendImproving, report.OverallTrend)
	assert.Equal(t, models.TrendImproving, report.ClassAverageTrend)
}

func TestProgressionAnalyzerSinglePoint(t *testing.T) {
	nan := math.NaN()
	p := NewProgressionAnalyzer(DefaultThresholds().Progression)
	report := p.Analyze(BuildMatrix(gradebook(quizzes(3), map[string][]float64{
		"s1": {nan, 72, nan},
		"s2": {nan, nan, nan},
	})))

	require.Len(t, report.StudentProgressions, 1)
	sp := report.StudentProgressions[0]
	assert.Equal(t, "s1", sp.StudentID)
	assert.Equal(t, models.TrendInsufficientData, sp.Trend)
	assert.Equal(t, 0.0, sp.Metrics.Velocity)
	assert.Equal(t, 72.0, sp.Metrics.CurrentPerformance)
	assert.Equal(t, 72.0, sp.Metrics.ProjectedPerformance)

	assert.Equal(t, models.TrendInsufficientData, report.OverallTrend)
	assert.Equal(t, models.TrendInsufficientData, report.ClassAverageTrend)
	assert.Equal(t, 0.0, report.ClassVelocity)
}

func TestProgressionAnalyzerEmpty(t *testing.T) {
	p := NewProgressionAnalyzer(DefaultThresholds().Progression)
	assert.Equal(t, models.LearningProgressionReport{
		OverallTrend:        models.TrendInsufficientData,
		ClassAverageTrend:   models.TrendInsufficientData,
		StudentProgressions: []models.StudentProgression{},
	}, p.Analyze(BuildMatrix(models.GradebookInput{})))
}

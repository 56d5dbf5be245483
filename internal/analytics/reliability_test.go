package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-insights/internal/models"
)

func TestReliabilityAnalyzerAlpha(t *testing.T) {
	r := NewReliabilityAnalyzer(DefaultThresholds().Reliability)
	report := r.Analyze(BuildMatrix(scenario()))

	assert.Equal(t, 4, report.TotalItems)
	require.Len(t, report.Items, 4)
	assert.InDelta(t, 0.9064, report.Reliability, 1e-3)
	assert.Equal(t, models.ReliabilityExcellent, report.ReliabilityRating)
	assert.GreaterOrEqual(t, report.Reliability, 0.0)
	assert.LessOrEqual(t, report.Reliability, 1.0)

	first := report.Items[0]
	assert.Equal(t, "a1", first.ID)
	assert.Equal(t, "Quiz 1", first.Name)
	assert.InDelta(t, 0.8, first.Difficulty, 1e-9)
	assert.Greater(t, first.Discrimination, 0.0)
}

func TestReliabilityAnalyzerFlagsProblematicItems(t *testing.T) {
	r := NewReliabilityAnalyzer(DefaultThresholds().Reliability)
	report := r.Analyze(BuildMatrix(gradebook(quizzes(3), map[string][]float64{
		"s1": {100, 90, 80},
		"s2": {100, 60, 50},
		"s3": {100, 30, 20},
	})))

	require.Len(t, report.Items, 3)
	ceiling := report.Items[0]
	assert.Equal(t, 1.0, ceiling.Difficulty)
	assert.Equal(t, 0.0, ceiling.Discrimination)
	assert.Equal(t, models.ItemPoor, ceiling.QualityRating)

	require.Len(t, report.ProblematicItems, 1)
	assert.Equal(t, "a1", report.ProblematicItems[0].ID)
}

func TestReliabilityAnalyzerInsufficientData(t *testing.T) {
	r := NewReliabilityAnalyzer(DefaultThresholds().Reliability)

	single := r.Analyze(BuildMatrix(gradebook(quizzes(1), map[string][]float64{
		"s1": {70},
		"s2": {90},
	})))
	assert.Equal(t, models.ReliabilityInsufficientData, single.ReliabilityRating)
	assert.Equal(t, 0.0, single.Reliability)
	assert.Equal(t, 1, single.TotalItems)
	assert.Len(t, single.Items, 1)

	flat := r.Analyze(BuildMatrix(gradebook(quizzes(3), map[string][]float64{
		"s1": {70, 70, 70},
		"s2": {70, 70, 70},
	})))
	assert.Equal(t, models.ReliabilityInsufficientData, flat.ReliabilityRating)
	assert.Equal(t, 0.0, flat.Reliability)

	lone := r.Analyze(BuildMatrix(gradebook(quizzes(2), map[string][]float64{
		"s1": {70, 80},
		"s2": {60, math.NaN()},
	})))
	assert.Equal(t, models.ItemInsufficientData, lone.Items[1].QualityRating)
	assert.Empty(t, lone.ProblematicItems)
}

func TestReliabilityAnalyzerSentinels(t *testing.T) {
	r := NewReliabilityAnalyzer(DefaultThresholds().Reliability)
	assert.Equal(t, models.AssessmentQualityReport{
		ReliabilityRating: models.ReliabilityInsufficientData,
		Items:             []models.ItemStat{},
		ProblematicItems:  []models.ItemStat{},
	}, r.Analyze(BuildMatrix(models.GradebookInput{})))
	assert.Equal(t, models.ReliabilityError, r.Failed().ReliabilityRating)
}

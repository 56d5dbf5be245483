package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-insights/internal/models"
)

func TestRiskClassifierTiers(t *testing.T) {
	r := NewRiskClassifier(DefaultThresholds().Risk)
	report := r.Analyze(BuildMatrix(scenario()))

	require.Len(t, report.HighRisk, 1)
	require.Len(t, report.MediumRisk, 1)
	require.Len(t, report.LowRisk, 1)
	assert.Equal(t, 3, report.TotalStudents)

	high := report.HighRisk[0]
	assert.Equal(t, "s3", high.StudentID)
	assert.Equal(t, models.RiskHigh, high.RiskLevel)
	assert.Equal(t, 100.0, high.RiskScore)
	require.Len(t, high.Factors, 3)
	assert.Contains(t, high.Factors[0], "Low average score")
	assert.Contains(t, high.Factors[1], "Declining performance trend")
	assert.Contains(t, high.Factors[2], "High score volatility")
	assert.Equal(t, []string{recScheduleMeeting, recStrugglingTopics, recStudyPlan}, high.Recommendations)

	medium := report.MediumRisk[0]
	assert.Equal(t, "s2", medium.StudentID)
	assert.Equal(t, 40.0, medium.RiskScore)

	low := report.LowRisk[0]
	assert.Equal(t, "s1", low.StudentID)
	assert.Empty(t, low.Factors)
	assert.Equal(t, []string{recMonitor}, low.Recommendations)
}

func TestRiskClassifierMissingSubmissions(t *testing.T) {
	nan := math.NaN()
	r := NewRiskClassifier(DefaultThresholds().Risk)
	report := r.Analyze(BuildMatrix(gradebook(quizzes(5), map[string][]float64{
		"s1": {90, 90, 90, 90, 90},
		"s2": {90, 90, 90, 90, nan},
		"s3": {90, 90, nan, nan, nan},
		"s4": {nan, nan, nan, nan, nan},
	})))

	assert.Equal(t, 4, report.TotalStudents)
	total := len(report.HighRisk) + len(report.MediumRisk) + len(report.LowRisk)
	assert.Equal(t, report.TotalStudents, total)

	byID := map[string]models.RiskEntry{}
	for _, tier := range [][]models.RiskEntry{report.HighRisk, report.MediumRisk, report.LowRisk} {
		for _, e := range tier {
			byID[e.StudentID] = e
		}
	}

	assert.Equal(t, 20.0, byID["s2"].RiskScore)
	assert.Equal(t, models.RiskLow, byID["s2"].RiskLevel)
	assert.Equal(t, []string{recSendReminder}, byID["s2"].Recommendations)

	assert.Equal(t, 40.0, byID["s3"].RiskScore)
	assert.Equal(t, models.RiskMedium, byID["s3"].RiskLevel)
	assert.Equal(t, []string{recCheckIssues}, byID["s3"].Recommendations)

	assert.Equal(t, models.RiskMedium, byID["s4"].RiskLevel)
	assert.Equal(t, "No graded submissions", byID["s4"].Factors[0])
}

func TestRiskClassifierHighScoreWithoutLowAverageIsMedium(t *testing.T) {
	r := NewRiskClassifier(DefaultThresholds().Risk)
	report := r.Analyze(BuildMatrix(gradebook(quizzes(10), map[string][]float64{
		"s1": {100, 100, 100, 100, 100, 100, 100, 40, 35, 30},
	})))

	require.Empty(t, report.HighRisk)
	require.Len(t, report.MediumRisk, 1)
	entry := report.MediumRisk[0]
	assert.Equal(t, 80.0, entry.RiskScore)
	require.Len(t, entry.Factors, 2)
	assert.Contains(t, entry.Factors[0], "Declining performance trend")
	assert.Contains(t, entry.Factors[1], "High score volatility")
}

func TestRiskClassifierOrdersByStudentID(t *testing.T) {
	r := NewRiskClassifier(DefaultThresholds().Risk)
	report := r.Analyze(BuildMatrix(gradebook(quizzes(2), map[string][]float64{
		"c": {95, 95},
		"a": {95, 95},
		"b": {95, 95},
	})))

	require.Len(t, report.LowRisk, 3)
	assert.Equal(t, "a", report.LowRisk[0].StudentID)
	assert.Equal(t, "b", report.LowRisk[1].StudentID)
	assert.Equal(t, "c", report.LowRisk[2].StudentID)
}

func TestRiskClassifierEmpty(t *testing.T) {
	r := NewRiskClassifier(DefaultThresholds().Risk)
	report := r.Analyze(BuildMatrix(models.GradebookInput{}))
	assert.Equal(t, models.RiskReport{
		HighRisk:   []models.RiskEntry{},
		MediumRisk: []models.RiskEntry{},
		LowRisk:    []models.RiskEntry{},
	}, report)
}

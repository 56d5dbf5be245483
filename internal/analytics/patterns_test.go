package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-insights/internal/models"
)

func patternTypes(sp models.StudentPattern) []models.PatternType {
	out := make([]models.PatternType, 0, len(sp.Patterns))
	for _, p := range sp.Patterns {
		out = append(out, p.PatternType)
	}
	return out
}

func TestPatternDetectorScenario(t *testing.T) {
	d := NewPatternDetector(DefaultThresholds().Patterns)
	report := d.Analyze(BuildMatrix(scenario()))

	require.Len(t, report.StudentPatterns, 3)
	assert.Equal(t, 3, report.TotalStudents)

	s1 := report.StudentPatterns[0]
	assert.Equal(t, "s1", s1.StudentID)
	assert.Equal(t, 1.0, s1.ConsistencyScore)
	assert.Empty(t, s1.Patterns)

	s3 := report.StudentPatterns[2]
	assert.Equal(t, "s3", s3.StudentID)
	assert.Contains(t, patternTypes(s3), models.PatternDeclining)
	assert.Contains(t, patternTypes(s3), models.PatternVolatile)
	for _, p := range s3.Patterns {
		assert.NotEmpty(t, p.Description)
	}

	assert.Less(t, report.ClassConsistency, s1.ConsistencyScore)
	assert.GreaterOrEqual(t, report.ClassConsistency, 0.0)
}

func TestPatternDetectorPlateau(t *testing.T) {
	d := NewPatternDetector(DefaultThresholds().Patterns)
	report := d.Analyze(BuildMatrix(gradebook(quizzes(6), map[string][]float64{
		"s1": {40, 70, 71, 70, 71, 70},
	})))

	require.Len(t, report.StudentPatterns, 1)
	assert.Equal(t, []models.PatternType{models.PatternPlateauing}, patternTypes(report.StudentPatterns[0]))
}

func TestPatternDetectorImproving(t *testing.T) {
	d := NewPatternDetector(DefaultThresholds().Patterns)
	report := d.Analyze(BuildMatrix(gradebook(quizzes(4), map[string][]float64{
		"s1": {60, 70, 80, 90},
	})))

	require.Len(t, report.StudentPatterns, 1)
	assert.Equal(t, []models.PatternType{models.PatternImproving}, patternTypes(report.StudentPatterns[0]))
}

func TestPatternDetectorChapterWeakness(t *testing.T) {
	d := NewPatternDetector(DefaultThresholds().Patterns)
	report := d.Analyze(BuildMatrix(gradebook(
		[]string{"Chapter 1 Quiz", "Chapter 2 Quiz", "Chapter 2 Test", "Chapter 1 Test"},
		map[string][]float64{"s1": {90, 60, 60, 90}},
	)))

	require.Len(t, report.StudentPatterns, 1)
	sp := report.StudentPatterns[0]
	require.Equal(t, []models.PatternType{models.PatternChapterWeakness}, patternTypes(sp))
	assert.Contains(t, sp.Patterns[0].Description, "Chapter 2")
}

func TestPatternDetectorSkipsSparseStudents(t *testing.T) {
	d := NewPatternDetector(DefaultThresholds().Patterns)
	report := d.Analyze(BuildMatrix(gradebook(quizzes(1), map[string][]float64{
		"s1": {80},
	})))

	assert.Equal(t, models.PerformancePatternsReport{StudentPatterns: []models.StudentPattern{}}, report)
}

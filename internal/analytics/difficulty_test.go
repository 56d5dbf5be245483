package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-insights/internal/models"
)

func TestDifficultyAnalyzerRanksChapters(t *testing.T) {
	d := NewDifficultyAnalyzer(DefaultThresholds().Difficulty)
	report := d.Analyze(BuildMatrix(gradebook(
		[]string{"Chapter 1 Quiz", "Chapter 2 Quiz", "Chapter 2 Test", "Week 3 Lab"},
		map[string][]float64{
			"s1": {90, 50, 40, 70},
			"s2": {80, 40, 50, 60},
		},
	)))

	require.Len(t, report.Chapters, 3)
	assert.Equal(t, 3, report.TotalChapters)

	hardest := report.Chapters[0]
	assert.Equal(t, "Chapter 2", hardest.Name)
	assert.Equal(t, 45.0, hardest.AvgScore)
	assert.Equal(t, 2, hardest.AssignmentCount)
	assert.Equal(t, 2, hardest.StudentCount)
	assert.Equal(t, models.DifficultyVeryHard, hardest.DifficultyLevel)

	assert.Equal(t, "Week 3", report.Chapters[1].Name)
	assert.Equal(t, models.DifficultyHard, report.Chapters[1].DifficultyLevel)
	assert.Equal(t, "Chapter 1", report.Chapters[2].Name)
	assert.Equal(t, models.DifficultyEasy, report.Chapters[2].DifficultyLevel)

	require.NotNil(t, report.HardestChapter)
	require.NotNil(t, report.EasiestChapter)
	assert.Equal(t, "Chapter 2", *report.HardestChapter)
	assert.Equal(t, "Chapter 1", *report.EasiestChapter)

	for _, ch := range report.Chapters {
		assert.GreaterOrEqual(t, ch.AvgScore, report.Chapters[0].AvgScore)
	}
}

func TestDifficultyAnalyzerTieBreaksByName(t *testing.T) {
	d := NewDifficultyAnalyzer(DefaultThresholds().Difficulty)
	report := d.Analyze(BuildMatrix(gradebook(
		[]string{"Unit 2 Quiz", "Unit 1 Quiz"},
		map[string][]float64{"s1": {75, 75}},
	)))

	require.Len(t, report.Chapters, 2)
	assert.Equal(t, "Unit 1", report.Chapters[0].Name)
	assert.Equal(t, "Unit 1", *report.HardestChapter)
	assert.Equal(t, "Unit 1", *report.EasiestChapter)
}

func TestDifficultyAnalyzerSkipsUnscoredChapters(t *testing.T) {
	d := NewDifficultyAnalyzer(DefaultThresholds().Difficulty)
	in := gradebook([]string{"Chapter 1 Quiz"}, map[string][]float64{"s1": {88}})
	in.Assignments = append(in.Assignments, models.Assignment{ID: "extra", Name: "Chapter 9 Quiz", MaxScore: 10})

	report := d.Analyze(BuildMatrix(in))
	require.Len(t, report.Chapters, 1)
	assert.Equal(t, 1, report.TotalChapters)
	assert.Equal(t, 1, report.Chapters[0].AssignmentCount)
}

func TestDifficultyAnalyzerEmpty(t *testing.T) {
	d := NewDifficultyAnalyzer(DefaultThresholds().Difficulty)
	report := d.Analyze(BuildMatrix(models.GradebookInput{}))
	assert.Equal(t, models.ChapterDifficultyReport{Chapters: []models.ChapterStat{}}, report)
	assert.Nil(t, report.HardestChapter)
	assert.Nil(t, report.EasiestChapter)
}

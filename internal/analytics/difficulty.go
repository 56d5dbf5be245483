package analytics

import (
	"sort"

	"github.com/noah-isme/gradebook-insights/internal/models"
)

// DifficultyAnalyzer ranks chapters by mean normalized score.
type DifficultyAnalyzer struct {
	cfg DifficultyThresholds
}

// NewDifficultyAnalyzer builds the analyzer.
func NewDifficultyAnalyzer(cfg DifficultyThresholds) DifficultyAnalyzer {
	return DifficultyAnalyzer{cfg: cfg}
}

// Name implements Analyzer.
func (DifficultyAnalyzer) Name() string { return "chapter_difficulty" }

// Empty implements Analyzer.
func (DifficultyAnalyzer) Empty() models.ChapterDifficultyReport {
	return models.ChapterDifficultyReport{Chapters: []models.ChapterStat{}}
}

type chapterAccumulator struct {
	scores      []float64
	assignments int
	students    map[int]struct{}
}

// Analyze implements Analyzer.
func (d DifficultyAnalyzer) Analyze(m *GradeMatrix) models.ChapterDifficultyReport {
	report := d.Empty()
	if m.IsEmpty() {
		return report
	}

	groups := make(map[string]*chapterAccumulator)
	for col := range m.assignments {
		var scored bool
		chapter := m.chapters[col]
		for row := range m.cells {
			c := m.cells[row][col]
			if !c.submitted {
				continue
			}
			acc, ok := groups[chapter]
			if !ok {
				acc = &chapterAccumulator{students: make(map[int]struct{})}
				groups[chapter] = acc
			}
			acc.scores = append(acc.scores, c.value)
			acc.students[row] = struct{}{}
			scored = true
		}
		if scored {
			groups[chapter].assignments++
		}
	}
	if len(groups) == 0 {
		return report
	}

	for name, acc := range groups {
		avg := round2(mean(acc.scores))
		report.Chapters = append(report.Chapters, models.ChapterStat{
			Name:            name,
			AvgScore:        avg,
			StdDeviation:    round2(sampleStdDev(acc.scores)),
			AssignmentCount: acc.assignments,
			StudentCount:    len(acc.students),
			DifficultyLevel: d.level(avg),
		})
	}

	sort.Slice(report.Chapters, func(i, j int) bool {
		a, b := report.Chapters[i], report.Chapters[j]
		if a.AvgScore != b.AvgScore {
			return a.AvgScore < b.AvgScore
		}
		return a.Name < b.Name
	})

	hardest := report.Chapters[0].Name
	easiest := report.Chapters[0]
	for _, ch := range report.Chapters[1:] {
		if ch.AvgScore > easiest.AvgScore || (ch.AvgScore == easiest.AvgScore && ch.Name < easiest.Name) {
			easiest = ch
		}
	}
	easiestName := easiest.Name

	report.TotalChapters = len(report.Chapters)
	report.HardestChapter = &hardest
	report.EasiestChapter = &easiestName
	return report
}

func (d DifficultyAnalyzer) level(avg float64) models.DifficultyLevel {
	switch {
	case avg >= d.cfg.Easy:
		return models.DifficultyEasy
	case avg >= d.cfg.Moderate:
		return models.DifficultyModerate
	case avg >= d.cfg.Hard:
		return models.DifficultyHard
	default:
		return models.DifficultyVeryHard
	}
}

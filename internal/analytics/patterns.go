package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/noah-isme/gradebook-insights/internal/models"
)

// PatternDetector flags behavioural signatures in each student's score series.
type PatternDetector struct {
	cfg PatternThresholds
}

// NewPatternDetector builds the detector.
func NewPatternDetector(cfg PatternThresholds) PatternDetector {
	return PatternDetector{cfg: cfg}
}

// Name implements Analyzer.
func (PatternDetector) Name() string { return "performance_patterns" }

// Empty implements Analyzer.
func (PatternDetector) Empty() models.PerformancePatternsReport {
	return models.PerformancePatternsReport{StudentPatterns: []models.StudentPattern{}}
}

// Analyze implements Analyzer. Only students with at least two scores are
// evaluated.
func (d PatternDetector) Analyze(m *GradeMatrix) models.PerformancePatternsReport {
	report := d.Empty()
	if m.IsEmpty() {
		return report
	}

	var consistency []float64
	for _, s := range m.students {
		points := m.Series(s.ID)
		if len(points) < 2 {
			continue
		}
		sp := d.student(s.ID, points)
		consistency = append(consistency, sp.ConsistencyScore)
		report.StudentPatterns = append(report.StudentPatterns, sp)
	}
	report.TotalStudents = len(report.StudentPatterns)
	if len(consistency) > 0 {
		report.ClassConsistency = round4(clamp(mean(consistency), 0, 1))
	}
	return report
}

func (d PatternDetector) student(id string, points []Point) models.StudentPattern {
	scores := values(points)
	sd := popStdDev(scores)
	_, velocity := linearFit(indices(points), scores)

	sp := models.StudentPattern{
		StudentID:        id,
		ConsistencyScore: round4(clamp(1-sd/d.cfg.ConsistencyScale, 0, 1)),
		Patterns:         []models.Pattern{},
	}
	add := func(t models.PatternType, format string, args ...any) {
		sp.Patterns = append(sp.Patterns, models.Pattern{PatternType: t, Description: fmt.Sprintf(format, args...)})
	}

	if sd > d.cfg.VolatileStdDev {
		add(models.PatternVolatile, "Scores vary widely (std dev %.1f points)", sd)
	}
	switch {
	case velocity < d.cfg.DecliningVelocity:
		add(models.PatternDeclining, "Scores dropping by %.1f points per assignment", math.Abs(velocity))
	case velocity > d.cfg.ImprovingVelocity:
		add(models.PatternImproving, "Scores rising by %.1f points per assignment", velocity)
	}
	if level, ok := d.plateau(points); ok {
		add(models.PatternPlateauing, "Performance has levelled off around %.1f%% after an initial change", level)
	}
	for _, weak := range d.weakChapters(points, mean(scores)) {
		add(models.PatternChapterWeakness, "%s average %.1f%% is well below overall %.1f%%", weak.name, weak.avg, mean(scores))
	}
	return sp
}

// plateau reports whether the second half of the series is flat after moving
// away from the opening score, returning the level it settled at.
func (d PatternDetector) plateau(points []Point) (float64, bool) {
	n := len(points)
	if n < d.cfg.PlateauMinScores {
		return 0, false
	}
	tail := points[n/2:]
	scores := values(tail)
	if popStdDev(scores) >= d.cfg.PlateauStdDev {
		return 0, false
	}
	_, slope := linearFit(indices(tail), scores)
	if math.Abs(slope) >= d.cfg.PlateauVelocity {
		return 0, false
	}
	level := mean(scores)
	if math.Abs(level-points[0].Score) < d.cfg.PlateauShift {
		return 0, false
	}
	return level, true
}

type chapterMean struct {
	name string
	avg  float64
}

func (d PatternDetector) weakChapters(points []Point, overall float64) []chapterMean {
	byChapter := make(map[string][]float64)
	for _, p := range points {
		byChapter[p.Chapter] = append(byChapter[p.Chapter], p.Score)
	}
	if len(byChapter) < 2 {
		return nil
	}
	var weak []chapterMean
	for name, scores := range byChapter {
		avg := mean(scores)
		if overall-avg >= d.cfg.ChapterWeaknessGap {
			weak = append(weak, chapterMean{name: name, avg: avg})
		}
	}
	sort.Slice(weak, func(i, j int) bool { return weak[i].name < weak[j].name })
	return weak
}

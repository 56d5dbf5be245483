package analytics

import (
	"github.com/noah-isme/gradebook-insights/internal/models"
)

// ProgressionAnalyzer fits a linear trend of normalized score over assignment
// sequence for every student and for the class average.
type ProgressionAnalyzer struct {
	cfg ProgressionThresholds
}

// NewProgressionAnalyzer builds the analyzer.
func NewProgressionAnalyzer(cfg ProgressionThresholds) ProgressionAnalyzer {
	return ProgressionAnalyzer{cfg: cfg}
}

// Name implements Analyzer.
func (ProgressionAnalyzer) Name() string { return "learning_progression" }

// Empty implements Analyzer.
func (ProgressionAnalyzer) Empty() models.LearningProgressionReport {
	return models.LearningProgressionReport{
		OverallTrend:        models.TrendInsufficientData,
		ClassAverageTrend:   models.TrendInsufficientData,
		StudentProgressions: []models.StudentProgression{},
	}
}

// Analyze implements Analyzer. Students without any submission are omitted;
// a single submission is reported with insufficient_data and zero velocity.
func (p ProgressionAnalyzer) Analyze(m *GradeMatrix) models.LearningProgressionReport {
	report := p.Empty()
	if m.IsEmpty() {
		return report
	}

	var velocities []float64
	for _, s := range m.students {
		points := m.Series(s.ID)
		if len(points) == 0 {
			continue
		}
		progression, slope := p.student(s.ID, points)
		if len(points) >= 2 {
			velocities = append(velocities, slope)
		}
		report.StudentProgressions = append(report.StudentProgressions, progression)
	}

	if len(velocities) > 0 {
		classVelocity := mean(velocities)
		report.ClassVelocity = round4(classVelocity)
		report.OverallTrend = p.trend(classVelocity)
		report.ClassAverageTrend = report.OverallTrend
	}
	return report
}

func (p ProgressionAnalyzer) student(id string, points []Point) (models.StudentProgression, float64) {
	scores := values(points)
	last := points[len(points)-1]
	out := models.StudentProgression{
		StudentID:  id,
		Trend:      models.TrendInsufficientData,
		DataPoints: len(points),
		Metrics: models.ProgressionMetrics{
			CurrentPerformance:   round2(last.Score),
			ProjectedPerformance: round2(last.Score),
		},
	}
	if len(points) < 2 {
		return out, 0
	}

	intercept, slope := linearFit(indices(points), scores)
	projected := clamp(intercept+slope*float64(last.Index+1), 0, 100)
	out.Trend = p.trend(slope)
	out.Metrics.Velocity = round4(slope)
	out.Metrics.ProjectedPerformance = round2(projected)
	return out, slope
}

func (p ProgressionAnalyzer) trend(velocity float64) models.Trend {
	switch {
	case velocity > p.cfg.ImprovingVelocity:
		return models.TrendImproving
	case velocity < p.cfg.DecliningVelocity:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

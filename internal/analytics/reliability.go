package analytics

import (
	"github.com/noah-isme/gradebook-insights/internal/models"
)

// ReliabilityAnalyzer estimates internal consistency (Cronbach's alpha) and
// runs classical item analysis over every scored assignment.
type ReliabilityAnalyzer struct {
	cfg ReliabilityThresholds
}

// NewReliabilityAnalyzer builds the analyzer.
func NewReliabilityAnalyzer(cfg ReliabilityThresholds) ReliabilityAnalyzer {
	return ReliabilityAnalyzer{cfg: cfg}
}

// Name implements Analyzer.
func (ReliabilityAnalyzer) Name() string { return "assessment_quality" }

// Empty implements Analyzer.
func (ReliabilityAnalyzer) Empty() models.AssessmentQualityReport {
	return models.AssessmentQualityReport{
		ReliabilityRating: models.ReliabilityInsufficientData,
		Items:             []models.ItemStat{},
		ProblematicItems:  []models.ItemStat{},
	}
}

// Failed is returned in place of the report when the analyzer panics.
func (ReliabilityAnalyzer) Failed() models.AssessmentQualityReport {
	return models.AssessmentQualityReport{
		ReliabilityRating: models.ReliabilityError,
		Items:             []models.ItemStat{},
		ProblematicItems:  []models.ItemStat{},
	}
}

// Analyze implements Analyzer. Missing submissions count as zero credit when
// building the item/total score table, so every responding student carries a
// full row.
func (r ReliabilityAnalyzer) Analyze(m *GradeMatrix) models.AssessmentQualityReport {
	report := r.Empty()
	if m.IsEmpty() {
		return report
	}

	var cols []int
	for col := range m.assignments {
		if len(m.column(col)) > 0 {
			cols = append(cols, col)
		}
	}
	var rows []int
	for row := range m.cells {
		if m.studentSubmitted(row) {
			rows = append(rows, row)
		}
	}
	k := len(cols)
	if k == 0 || len(rows) == 0 {
		return report
	}

	itemScores := make([][]float64, k)
	totals := make([]float64, len(rows))
	for i, col := range cols {
		itemScores[i] = make([]float64, len(rows))
		for j, row := range rows {
			v := m.cells[row][col].value
			itemScores[i][j] = v
			totals[j] += v
		}
	}

	var sumItemVariance float64
	for i, col := range cols {
		sumItemVariance += sampleVariance(itemScores[i])

		rest := make([]float64, len(rows))
		for j := range rows {
			rest[j] = totals[j] - itemScores[i][j]
		}
		submitted := m.column(col)
		item := models.ItemStat{
			ID:             m.assignments[col].ID,
			Name:           m.assignments[col].Name,
			Difficulty:     round4(mean(submitted) / 100),
			Discrimination: round4(correlation(itemScores[i], rest)),
		}
		item.QualityRating, item.Recommendation = r.rateItem(item, len(submitted))
		report.Items = append(report.Items, item)
		if item.QualityRating != models.ItemInsufficientData && r.problematic(item) {
			report.ProblematicItems = append(report.ProblematicItems, item)
		}
	}
	report.TotalItems = k

	totalVariance := sampleVariance(totals)
	if k < 2 || len(rows) < 2 || totalVariance == 0 {
		report.ReliabilityRating = models.ReliabilityInsufficientData
		return report
	}
	kf := float64(k)
	alpha := clamp((kf/(kf-1))*(1-sumItemVariance/totalVariance), 0, 1)
	report.Reliability = round4(alpha)
	report.ReliabilityRating = r.rate(report.Reliability)
	return report
}

func (r ReliabilityAnalyzer) rate(alpha float64) models.ReliabilityRating {
	switch {
	case alpha >= r.cfg.Excellent:
		return models.ReliabilityExcellent
	case alpha >= r.cfg.Good:
		return models.ReliabilityGood
	case alpha >= r.cfg.Acceptable:
		return models.ReliabilityAcceptable
	case alpha >= r.cfg.Questionable:
		return models.ReliabilityQuestionable
	default:
		return models.ReliabilityPoor
	}
}

func (r ReliabilityAnalyzer) problematic(item models.ItemStat) bool {
	return item.Discrimination < r.cfg.MinDiscrimination ||
		item.Difficulty < r.cfg.MinDifficulty ||
		item.Difficulty > r.cfg.MaxDifficulty
}

func (r ReliabilityAnalyzer) rateItem(item models.ItemStat, responses int) (models.ItemQuality, string) {
	if responses < 2 {
		return models.ItemInsufficientData, "Not enough responses to analyze"
	}
	if item.Discrimination < r.cfg.MinDiscrimination {
		return models.ItemPoor, "Low discrimination: consider revising or removing"
	}
	if item.Difficulty < r.cfg.MinDifficulty || item.Difficulty > r.cfg.MaxDifficulty {
		return models.ItemFair, "Extreme difficulty: most students scored very low or very high"
	}
	if item.Discrimination >= r.cfg.GoodDiscrimination && item.Difficulty >= 0.3 && item.Difficulty <= 0.7 {
		return models.ItemExcellent, "Well-designed item with good discrimination"
	}
	return models.ItemGood, "Acceptable item quality"
}

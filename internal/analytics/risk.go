package analytics

import (
	"fmt"
	"math"

	"github.com/noah-isme/gradebook-insights/internal/models"
)

const (
	recScheduleMeeting  = "Schedule one-on-one meeting"
	recReviewFoundation = "Review foundational material before the next assessment"
	recStrugglingTopics = "Identify struggling topics"
	recCheckIssues      = "Check for personal/technical issues"
	recSendReminder     = "Send a reminder about outstanding submissions"
	recStudyPlan        = "Provide a structured study plan"
	recMonitor          = "Continue monitoring progress"
)

// RiskClassifier triages students into intervention tiers.
type RiskClassifier struct {
	cfg RiskThresholds
}

// NewRiskClassifier builds a classifier with the given thresholds.
func NewRiskClassifier(cfg RiskThresholds) RiskClassifier {
	return RiskClassifier{cfg: cfg}
}

// Name implements Analyzer.
func (RiskClassifier) Name() string { return "early_intervention" }

// Empty implements Analyzer.
func (RiskClassifier) Empty() models.RiskReport {
	return models.RiskReport{
		HighRisk:   []models.RiskEntry{},
		MediumRisk: []models.RiskEntry{},
		LowRisk:    []models.RiskEntry{},
	}
}

type riskFeatures struct {
	submitted   int
	average     float64
	recent      float64
	missingRate float64
	volatility  float64
}

// Analyze implements Analyzer.
func (r RiskClassifier) Analyze(m *GradeMatrix) models.RiskReport {
	report := r.Empty()
	if m.IsEmpty() {
		return report
	}

	active := 0
	for col := range m.assignments {
		if len(m.column(col)) > 0 {
			active++
		}
	}

	for _, s := range m.students {
		entry := r.assess(s.ID, r.features(m.Series(s.ID), active))
		switch entry.RiskLevel {
		case models.RiskHigh:
			report.HighRisk = append(report.HighRisk, entry)
		case models.RiskMedium:
			report.MediumRisk = append(report.MediumRisk, entry)
		default:
			report.LowRisk = append(report.LowRisk, entry)
		}
	}
	report.TotalStudents = len(m.students)
	return report
}

func (r RiskClassifier) features(points []Point, active int) riskFeatures {
	f := riskFeatures{submitted: len(points)}
	if active > 0 {
		missing := active - len(points)
		if missing < 0 {
			missing = 0
		}
		f.missingRate = float64(missing) / float64(active) * 100
	}
	if len(points) == 0 {
		return f
	}
	scores := values(points)
	f.average = mean(scores)
	window := r.cfg.RecentWindow
	if window > len(scores) {
		window = len(scores)
	}
	f.recent = mean(scores[len(scores)-window:])
	f.volatility = popStdDev(scores)
	return f
}

func (r RiskClassifier) assess(studentID string, f riskFeatures) models.RiskEntry {
	var (
		score      float64
		lowAverage bool
		elevated   bool
		factors    = []string{}
		recs       = []string{}
	)
	addRec := func(rec string) {
		for _, existing := range recs {
			if existing == rec {
				return
			}
		}
		recs = append(recs, rec)
	}

	if f.submitted == 0 {
		factors = append(factors, "No graded submissions")
	} else {
		switch {
		case f.average < r.cfg.LowAverage:
			lowAverage = true
			score += r.cfg.StrongWeight
			factors = append(factors, fmt.Sprintf("Low average score: %.1f%%", f.average))
			addRec(recScheduleMeeting)
		case f.average < r.cfg.BelowAverage:
			score += r.cfg.ModerateWeight
			factors = append(factors, fmt.Sprintf("Below average score: %.1f%%", f.average))
			addRec(recReviewFoundation)
		}

		if f.submitted >= r.cfg.RecentWindow && f.recent < f.average-r.cfg.DecliningGap {
			score += r.cfg.StrongWeight
			factors = append(factors, fmt.Sprintf("Declining performance trend: recent %.1f%% vs %.1f%% overall", f.recent, f.average))
			addRec(recStrugglingTopics)
		}

		switch {
		case f.volatility >= r.cfg.HighVolatility:
			elevated = true
			score += r.cfg.StrongWeight
			factors = append(factors, fmt.Sprintf("High score volatility: std dev %.1f", f.volatility))
			addRec(recStudyPlan)
		case f.volatility >= r.cfg.ModerateVolatility:
			elevated = true
			score += r.cfg.ModerateWeight
			factors = append(factors, fmt.Sprintf("Inconsistent scores: std dev %.1f", f.volatility))
		}
	}

	switch {
	case f.missingRate > r.cfg.HighMissingRate:
		elevated = true
		score += r.cfg.StrongWeight
		factors = append(factors, fmt.Sprintf("High missing submission rate: %.0f%%", f.missingRate))
		addRec(recCheckIssues)
	case f.missingRate > r.cfg.SomeMissingRate:
		elevated = true
		score += r.cfg.ModerateWeight
		factors = append(factors, fmt.Sprintf("Some missing submissions: %.0f%%", f.missingRate))
		addRec(recSendReminder)
	}

	score = math.Min(score, 100)
	// High risk needs a low average together with volatile or missing work;
	// any other combination tops out at medium whatever its score.
	level := models.RiskLow
	switch {
	case score >= r.cfg.HighTierScore && lowAverage && elevated:
		level = models.RiskHigh
	case score >= r.cfg.MediumTierScore:
		level = models.RiskMedium
	}
	if len(recs) == 0 {
		addRec(recMonitor)
	}

	return models.RiskEntry{
		StudentID:       studentID,
		RiskLevel:       level,
		RiskScore:       score,
		Factors:         factors,
		Recommendations: recs,
	}
}

package models

// RiskLevel enumerates early-intervention triage tiers.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// RiskEntry captures the triage outcome for one student.
type RiskEntry struct {
	StudentID       string    `json:"student_id"`
	RiskLevel       RiskLevel `json:"risk_level"`
	RiskScore       float64   `json:"risk_score"`
	Factors         []string  `json:"factors"`
	Recommendations []string  `json:"recommendations"`
}

// RiskReport groups students per risk tier.
type RiskReport struct {
	HighRisk      []RiskEntry `json:"high_risk"`
	MediumRisk    []RiskEntry `json:"medium_risk"`
	LowRisk       []RiskEntry `json:"low_risk"`
	TotalStudents int         `json:"total_students"`
}

// DifficultyLevel buckets chapter averages.
type DifficultyLevel string

const (
	DifficultyEasy     DifficultyLevel = "easy"
	DifficultyModerate DifficultyLevel = "moderate"
	DifficultyHard     DifficultyLevel = "hard"
	DifficultyVeryHard DifficultyLevel = "very_hard"
)

// ChapterStat aggregates normalized scores for one chapter.
type ChapterStat struct {
	Name            string          `json:"name"`
	AvgScore        float64         `json:"avg_score"`
	StdDeviation    float64         `json:"std_deviation"`
	AssignmentCount int             `json:"assignment_count"`
	StudentCount    int             `json:"student_count"`
	DifficultyLevel DifficultyLevel `json:"difficulty_level"`
}

// ChapterDifficultyReport ranks chapters from hardest to easiest.
type ChapterDifficultyReport struct {
	Chapters       []ChapterStat `json:"chapters"`
	TotalChapters  int           `json:"total_chapters"`
	HardestChapter *string       `json:"hardest_chapter"`
	EasiestChapter *string       `json:"easiest_chapter"`
}

// ReliabilityRating is the closed set of internal-consistency buckets.
type ReliabilityRating string

const (
	ReliabilityExcellent        ReliabilityRating = "excellent"
	ReliabilityGood             ReliabilityRating = "good"
	ReliabilityAcceptable       ReliabilityRating = "acceptable"
	ReliabilityQuestionable     ReliabilityRating = "questionable"
	ReliabilityPoor             ReliabilityRating = "poor"
	ReliabilityInsufficientData ReliabilityRating = "insufficient_data"
	ReliabilityError            ReliabilityRating = "error"
)

// ItemQuality rates a single assessment item.
type ItemQuality string

const (
	ItemExcellent        ItemQuality = "excellent"
	ItemGood             ItemQuality = "good"
	ItemFair             ItemQuality = "fair"
	ItemPoor             ItemQuality = "poor"
	ItemInsufficientData ItemQuality = "insufficient_data"
)

// ItemStat reports classical item analysis for one assignment.
type ItemStat struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Difficulty     float64     `json:"difficulty"`
	Discrimination float64     `json:"discrimination"`
	QualityRating  ItemQuality `json:"quality_rating"`
	Recommendation string      `json:"recommendation"`
}

// AssessmentQualityReport summarises reliability across all items.
type AssessmentQualityReport struct {
	Reliability       float64           `json:"reliability"`
	ReliabilityRating ReliabilityRating `json:"reliability_rating"`
	Items             []ItemStat        `json:"items"`
	ProblematicItems  []ItemStat        `json:"problematic_items"`
	TotalItems        int               `json:"total_items"`
}

// Trend describes the direction of a score series.
type Trend string

const (
	TrendImproving        Trend = "improving"
	TrendStable           Trend = "stable"
	TrendDeclining        Trend = "declining"
	TrendInsufficientData Trend = "insufficient_data"
)

// ProgressionMetrics holds regression-derived figures for a student.
type ProgressionMetrics struct {
	CurrentPerformance   float64 `json:"current_performance"`
	Velocity             float64 `json:"velocity"`
	ProjectedPerformance float64 `json:"projected_performance"`
}

// StudentProgression is the per-student trend line.
type StudentProgression struct {
	StudentID  string             `json:"student_id"`
	Trend      Trend              `json:"trend"`
	DataPoints int                `json:"data_points"`
	Metrics    ProgressionMetrics `json:"metrics"`
}

// LearningProgressionReport summarises student and class trends.
type LearningProgressionReport struct {
	OverallTrend        Trend                `json:"overall_trend"`
	ClassVelocity       float64              `json:"class_velocity"`
	ClassAverageTrend   Trend                `json:"class_average_trend"`
	StudentProgressions []StudentProgression `json:"student_progressions"`
}

// PatternType names a detected behavioural signature.
type PatternType string

const (
	PatternVolatile        PatternType = "volatile_performance"
	PatternDeclining       PatternType = "declining_trend"
	PatternImproving       PatternType = "improving_trend"
	PatternPlateauing      PatternType = "plateauing"
	PatternChapterWeakness PatternType = "chapter_weakness"
)

// Pattern is one detected signature with a human readable description.
type Pattern struct {
	PatternType PatternType `json:"pattern_type"`
	Description string      `json:"description"`
}

// StudentPattern lists detected patterns for a student.
type StudentPattern struct {
	StudentID        string    `json:"student_id"`
	ConsistencyScore float64   `json:"consistency_score"`
	Patterns         []Pattern `json:"patterns"`
}

// PerformancePatternsReport aggregates per-student patterns.
type PerformancePatternsReport struct {
	StudentPatterns  []StudentPattern `json:"student_patterns"`
	ClassConsistency float64          `json:"class_consistency"`
	TotalStudents    int              `json:"total_students"`
}

// InsightsBundle is the combined output of one computation.
type InsightsBundle struct {
	EarlyIntervention   RiskReport                `json:"earlyIntervention"`
	ChapterDifficulty   ChapterDifficultyReport   `json:"chapterDifficulty"`
	AssessmentQuality   AssessmentQualityReport   `json:"assessmentQuality"`
	LearningProgression LearningProgressionReport `json:"learningProgression"`
	PerformancePatterns PerformancePatternsReport `json:"performancePatterns"`
}

package analytics

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RiskThresholds tunes the weighted early-intervention scoring.
type RiskThresholds struct {
	StrongWeight       float64 `yaml:"strong_weight"`
	ModerateWeight     float64 `yaml:"moderate_weight"`
	LowAverage         float64 `yaml:"low_average"`
	BelowAverage       float64 `yaml:"below_average"`
	RecentWindow       int     `yaml:"recent_window"`
	DecliningGap       float64 `yaml:"declining_gap"`
	HighMissingRate    float64 `yaml:"high_missing_rate"`
	SomeMissingRate    float64 `yaml:"some_missing_rate"`
	HighVolatility     float64 `yaml:"high_volatility"`
	ModerateVolatility float64 `yaml:"moderate_volatility"`
	HighTierScore      float64 `yaml:"high_tier_score"`
	MediumTierScore    float64 `yaml:"medium_tier_score"`
}

// DifficultyThresholds buckets chapter averages.
type DifficultyThresholds struct {
	Easy     float64 `yaml:"easy"`
	Moderate float64 `yaml:"moderate"`
	Hard     float64 `yaml:"hard"`
}

// ReliabilityThresholds holds alpha buckets and item screening limits.
type ReliabilityThresholds struct {
	Excellent          float64 `yaml:"excellent"`
	Good               float64 `yaml:"good"`
	Acceptable         float64 `yaml:"acceptable"`
	Questionable       float64 `yaml:"questionable"`
	MinDiscrimination  float64 `yaml:"min_discrimination"`
	GoodDiscrimination float64 `yaml:"good_discrimination"`
	MinDifficulty      float64 `yaml:"min_difficulty"`
	MaxDifficulty      float64 `yaml:"max_difficulty"`
}

// ProgressionThresholds separates improving from stable from declining.
type ProgressionThresholds struct {
	ImprovingVelocity float64 `yaml:"improving_velocity"`
	DecliningVelocity float64 `yaml:"declining_velocity"`
}

// PatternThresholds drives pattern detection.
type PatternThresholds struct {
	VolatileStdDev     float64 `yaml:"volatile_std_dev"`
	DecliningVelocity  float64 `yaml:"declining_velocity"`
	ImprovingVelocity  float64 `yaml:"improving_velocity"`
	PlateauMinScores   int     `yaml:"plateau_min_scores"`
	PlateauStdDev      float64 `yaml:"plateau_std_dev"`
	PlateauVelocity    float64 `yaml:"plateau_velocity"`
	PlateauShift       float64 `yaml:"plateau_shift"`
	ChapterWeaknessGap float64 `yaml:"chapter_weakness_gap"`
	ConsistencyScale   float64 `yaml:"consistency_scale"`
}

// Thresholds bundles every numeric literal used by the analyzers.
type Thresholds struct {
	Risk        RiskThresholds        `yaml:"risk"`
	Difficulty  DifficultyThresholds  `yaml:"difficulty"`
	Reliability ReliabilityThresholds `yaml:"reliability"`
	Progression ProgressionThresholds `yaml:"progression"`
	Patterns    PatternThresholds     `yaml:"patterns"`
}

// DefaultThresholds returns the calibrated defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Risk: RiskThresholds{
			StrongWeight:       40,
			ModerateWeight:     20,
			LowAverage:         60,
			BelowAverage:       70,
			RecentWindow:       3,
			DecliningGap:       10,
			HighMissingRate:    30,
			SomeMissingRate:    15,
			HighVolatility:     25,
			ModerateVolatility: 15,
			HighTierScore:      70,
			MediumTierScore:    40,
		},
		Difficulty: DifficultyThresholds{
			Easy:     85,
			Moderate: 70,
			Hard:     60,
		},
		Reliability: ReliabilityThresholds{
			Excellent:          0.9,
			Good:               0.8,
			Acceptable:         0.7,
			Questionable:       0.6,
			MinDiscrimination:  0.2,
			GoodDiscrimination: 0.4,
			MinDifficulty:      0.2,
			MaxDifficulty:      0.9,
		},
		Progression: ProgressionThresholds{
			ImprovingVelocity: 1,
			DecliningVelocity: -1,
		},
		Patterns: PatternThresholds{
			VolatileStdDev:     20,
			DecliningVelocity:  -5,
			ImprovingVelocity:  5,
			PlateauMinScores:   4,
			PlateauStdDev:      5,
			PlateauVelocity:    1,
			PlateauShift:       10,
			ChapterWeaknessGap: 15,
			ConsistencyScale:   50,
		},
	}
}

// Validate checks ordering constraints between related thresholds.
func (t Thresholds) Validate() error {
	var errs []error
	r := t.Risk
	if r.StrongWeight <= 0 || r.ModerateWeight <= 0 {
		errs = append(errs, errors.New("risk weights must be positive"))
	}
	if r.LowAverage > r.BelowAverage {
		errs = append(errs, errors.New("risk low_average must not exceed below_average"))
	}
	if r.RecentWindow < 1 {
		errs = append(errs, errors.New("risk recent_window must be at least 1"))
	}
	if r.SomeMissingRate > r.HighMissingRate {
		errs = append(errs, errors.New("risk some_missing_rate must not exceed high_missing_rate"))
	}
	if r.ModerateVolatility > r.HighVolatility {
		errs = append(errs, errors.New("risk moderate_volatility must not exceed high_volatility"))
	}
	if r.MediumTierScore <= 0 || r.MediumTierScore > r.HighTierScore {
		errs = append(errs, errors.New("risk tier scores must satisfy 0 < medium <= high"))
	}
	d := t.Difficulty
	if !(d.Easy >= d.Moderate && d.Moderate >= d.Hard) {
		errs = append(errs, errors.New("difficulty buckets must be descending"))
	}
	rel := t.Reliability
	if !(rel.Excellent >= rel.Good && rel.Good >= rel.Acceptable && rel.Acceptable >= rel.Questionable) {
		errs = append(errs, errors.New("reliability buckets must be descending"))
	}
	if rel.MinDifficulty < 0 || rel.MaxDifficulty > 1 || rel.MinDifficulty >= rel.MaxDifficulty {
		errs = append(errs, errors.New("reliability difficulty band must lie within [0,1]"))
	}
	if t.Progression.DecliningVelocity > t.Progression.ImprovingVelocity {
		errs = append(errs, errors.New("progression declining_velocity must not exceed improving_velocity"))
	}
	p := t.Patterns
	if p.ConsistencyScale <= 0 {
		errs = append(errs, errors.New("patterns consistency_scale must be positive"))
	}
	if p.DecliningVelocity > p.ImprovingVelocity {
		errs = append(errs, errors.New("patterns declining_velocity must not exceed improving_velocity"))
	}
	if p.PlateauMinScores < 2 {
		errs = append(errs, errors.New("patterns plateau_min_scores must be at least 2"))
	}
	return errors.Join(errs...)
}

// ThresholdSource supplies thresholds when the engine initializes.
type ThresholdSource interface {
	Load() (Thresholds, error)
}

// StaticThresholds serves a fixed value.
type StaticThresholds Thresholds

// Load implements ThresholdSource.
func (s StaticThresholds) Load() (Thresholds, error) {
	return Thresholds(s), nil
}

// FileThresholds overlays a YAML file on top of DefaultThresholds. Keys absent
// from the file keep their default value.
type FileThresholds struct {
	Path string
}

// Load implements ThresholdSource.
func (f FileThresholds) Load() (Thresholds, error) {
	t := DefaultThresholds()
	if f.Path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return Thresholds{}, fmt.Errorf("read thresholds %s: %w", f.Path, err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Thresholds{}, fmt.Errorf("parse thresholds %s: %w", f.Path, err)
	}
	return t, nil
}

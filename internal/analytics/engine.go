package analytics

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gradebook-insights/internal/models"
)

// Analyzer is the capability shared by every report producer. Implementations
// read the matrix only and must be safe to call concurrently.
type Analyzer[T any] interface {
	Name() string
	Analyze(m *GradeMatrix) T
	Empty() T
}

// Observer receives per-analyzer timings. degraded is true when the analyzer
// panicked and its sentinel was substituted.
type Observer interface {
	ObserveAnalyzer(name string, duration time.Duration, degraded bool)
}

// InitializationError reports that thresholds could not be loaded or were
// invalid. The engine stays uninitialized and retries on the next call.
type InitializationError struct {
	Err error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("insights engine initialization failed: %v", e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// Option customises an Engine.
type Option func(*Engine)

// WithParallel toggles concurrent analyzer execution. Enabled by default.
func WithParallel(enabled bool) Option {
	return func(e *Engine) { e.parallel = enabled }
}

// WithObserver attaches an analyzer observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithLogger sets the logger used for degraded analyzers.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

type suite struct {
	risk        Analyzer[models.RiskReport]
	difficulty  Analyzer[models.ChapterDifficultyReport]
	reliability Analyzer[models.AssessmentQualityReport]
	progression Analyzer[models.LearningProgressionReport]
	patterns    Analyzer[models.PerformancePatternsReport]
}

// Engine computes the insights bundle. It holds configuration only; no
// gradebook data survives a Compute call.
type Engine struct {
	source   ThresholdSource
	parallel bool
	observer Observer
	logger   *zap.Logger

	mu         sync.Mutex
	analyzers  *suite
	thresholds Thresholds
}

// New constructs an engine. A nil source uses DefaultThresholds.
func New(source ThresholdSource, opts ...Option) *Engine {
	if source == nil {
		source = StaticThresholds(DefaultThresholds())
	}
	e := &Engine{source: source, parallel: true, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize loads and validates thresholds. It is a no-op once successful.
func (e *Engine) Initialize() error {
	_, err := e.ensure()
	return err
}

// Thresholds returns the active thresholds, initializing if required.
func (e *Engine) Thresholds() (Thresholds, error) {
	if _, err := e.ensure(); err != nil {
		return Thresholds{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.thresholds, nil
}

func (e *Engine) ensure() (*suite, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.analyzers != nil {
		return e.analyzers, nil
	}
	t, err := e.source.Load()
	if err != nil {
		return nil, &InitializationError{Err: err}
	}
	if err := t.Validate(); err != nil {
		return nil, &InitializationError{Err: err}
	}
	e.thresholds = t
	e.analyzers = &suite{
		risk:        NewRiskClassifier(t.Risk),
		difficulty:  NewDifficultyAnalyzer(t.Difficulty),
		reliability: NewReliabilityAnalyzer(t.Reliability),
		progression: NewProgressionAnalyzer(t.Progression),
		patterns:    NewPatternDetector(t.Patterns),
	}
	return e.analyzers, nil
}

// Compute builds one GradeMatrix and runs all analyzers against it. The only
// error it returns is *InitializationError; malformed data degrades to
// sentinels inside the bundle.
func (e *Engine) Compute(in models.GradebookInput) (*models.InsightsBundle, error) {
	s, err := e.ensure()
	if err != nil {
		return nil, err
	}
	m := BuildMatrix(in)
	if m.Dropped() > 0 {
		e.logger.Debug("grades dropped during normalization",
			zap.String("course_id", m.CourseID()),
			zap.Int("dropped", m.Dropped()))
	}

	var bundle models.InsightsBundle
	tasks := []func() error{
		func() error { runAnalyzer(e, s.risk, m, &bundle.EarlyIntervention); return nil },
		func() error { runAnalyzer(e, s.difficulty, m, &bundle.ChapterDifficulty); return nil },
		func() error { runAnalyzer(e, s.reliability, m, &bundle.AssessmentQuality); return nil },
		func() error { runAnalyzer(e, s.progression, m, &bundle.LearningProgression); return nil },
		func() error { runAnalyzer(e, s.patterns, m, &bundle.PerformancePatterns); return nil },
	}

	if !e.parallel {
		for _, task := range tasks {
			if err := task(); err != nil {
				return nil, err
			}
		}
		return &bundle, nil
	}

	var g errgroup.Group
	for _, task := range tasks {
		g.Go(task)
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// runAnalyzer writes the analyzer result into dst. A panic is converted to the
// analyzer's failure sentinel (Failed when implemented, otherwise Empty).
func runAnalyzer[T any](e *Engine, a Analyzer[T], m *GradeMatrix, dst *T) {
	start := time.Now()
	degraded := false
	defer func() {
		if r := recover(); r != nil {
			degraded = true
			if f, ok := any(a).(interface{ Failed() T }); ok {
				*dst = f.Failed()
			} else {
				*dst = a.Empty()
			}
			e.logger.Warn("analyzer degraded to sentinel",
				zap.String("analyzer", a.Name()),
				zap.String("course_id", m.CourseID()),
				zap.Any("panic", r))
		}
		if e.observer != nil {
			e.observer.ObserveAnalyzer(a.Name(), time.Since(start), degraded)
		}
	}()
	*dst = a.Analyze(m)
}

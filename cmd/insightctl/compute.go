package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-insights/internal/analytics"
	"github.com/noah-isme/gradebook-insights/internal/dto"
	"github.com/noah-isme/gradebook-insights/internal/models"
	"github.com/noah-isme/gradebook-insights/internal/repository"
	"github.com/noah-isme/gradebook-insights/internal/service"
	"github.com/noah-isme/gradebook-insights/pkg/config"
	"github.com/noah-isme/gradebook-insights/pkg/database"
	"github.com/noah-isme/gradebook-insights/pkg/importer"
)

var (
	computeCourseID   string
	computePretty     bool
	computePersist    bool
	computeSequential bool
)

func init() {
	computeCmd.Flags().StringVar(&computeCourseID, "course-id", "", "course id, overrides the one in the file")
	computeCmd.Flags().BoolVar(&computePretty, "pretty", false, "indent JSON output")
	computeCmd.Flags().BoolVar(&computePersist, "persist", false, "store the result as a snapshot in Postgres")
	computeCmd.Flags().BoolVar(&computeSequential, "sequential", false, "run analyzers one after another")
}

var computeCmd = &cobra.Command{
	Use:   "compute <gradebook>",
	Short: "Compute insights for a gradebook file",
	Long: `Compute all five insight reports for a gradebook file and print the result
as JSON. The file format is chosen by extension (.json, .csv, .xlsx).

Examples:
  # Print insights for a CSV export
  insightctl compute grades.csv --course-id bio-101 --pretty

  # Store the result so the API serves it as the course's latest snapshot
  insightctl compute grades.json --persist`,
	Args: cobra.ExactArgs(1),
	RunE: runCompute,
}

func runCompute(cmd *cobra.Command, args []string) error {
	cfg, logr, err := loadConfig()
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	in, err := readGradebook(args[0], computeCourseID, cfg.Insights.MaxUploadBytes)
	if err != nil {
		return err
	}

	var snapshots *repository.SnapshotRepository
	if computePersist {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()
		if _, err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		snapshots = repository.NewSnapshotRepository(db)
	}

	svc := newCLIInsightsService(cfg, logr, snapshots)
	result, _, err := svc.Compute(ctx, dto.FromGradebook(in), models.SourceCLI)
	if err != nil {
		return err
	}
	if computePersist && result.SnapshotID == nil {
		return fmt.Errorf("insights computed but snapshot was not stored, see log output")
	}
	return writeJSON(cmd.OutOrStdout(), result, computePretty)
}

func newEngine(cfg *config.Config, logr *zap.Logger) *analytics.Engine {
	return analytics.New(
		analytics.FileThresholds{Path: cfg.Insights.ThresholdsFile},
		analytics.WithParallel(!computeSequential),
		analytics.WithLogger(logr),
	)
}

// newCLIInsightsService runs without a result cache. snapshots may be nil.
func newCLIInsightsService(cfg *config.Config, logr *zap.Logger, snapshots *repository.SnapshotRepository) *service.InsightsService {
	svcCfg := service.InsightsServiceConfig{
		SnapshotTTL:    cfg.Insights.SnapshotTTL,
		MaxUploadBytes: cfg.Insights.MaxUploadBytes,
	}
	engine := newEngine(cfg, logr)
	if snapshots == nil {
		return service.NewInsightsService(engine, nil, nil, nil, validator.New(), logr, svcCfg)
	}
	return service.NewInsightsService(engine, snapshots, nil, nil, validator.New(), logr, svcCfg)
}

func readGradebook(path, courseID string, maxBytes int64) (models.GradebookInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.GradebookInput{}, fmt.Errorf("open gradebook: %w", err)
	}
	defer f.Close()

	in, err := importer.Parse(courseID, filepath.Base(path), f, maxBytes)
	if err != nil {
		return models.GradebookInput{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if in.CourseID == "" {
		in.CourseID = trimExt(filepath.Base(path))
	}
	return in, nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}

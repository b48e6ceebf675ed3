package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"prodsync/internal/assets"
	"prodsync/internal/config"
	"prodsync/internal/database"
	"prodsync/internal/domain"
	"prodsync/internal/engine"
	"prodsync/internal/logging"
	"prodsync/internal/models"
	"prodsync/internal/replicator"
	"prodsync/internal/report"
	"prodsync/internal/repository"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string

	startLimit  int
	startForce  bool
	startFollow bool

	reportOut string
)

var rootCmd = &cobra.Command{
	Use:   "sync",
	Short: "Product replication control",
	Long:  "Controls chunked product replication from the master tenant to the target tenants.",
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new sync job",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		job, err := app.engine.Start(cmd.Context(), startLimit, startForce)
		if errors.Is(err, engine.ErrJobAlreadyRunning) {
			return fmt.Errorf("%w; pass --force to restart", err)
		}
		if err != nil {
			return err
		}
		fmt.Printf("sync started: %d products queued\n", job.Total)

		if !startFollow {
			return nil
		}
		return follow(cmd.Context(), app.engine)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current sync progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		progress, err := app.engine.Status(cmd.Context())
		if err != nil {
			return err
		}
		printProgress(progress)
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the running sync job",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		job, err := app.engine.Cancel(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("sync cancelled at %d/%d\n", job.Processed, job.Total)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export the current job state as an xlsx report",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		job, err := app.progress.Read(cmd.Context())
		if err != nil {
			return err
		}

		dir := reportOut
		if dir == "" {
			dir = app.cfg.Storage.ReportsPath
		}
		path, err := report.Export(job, dir)
		if err != nil {
			return err
		}
		fmt.Printf("report written to %s\n", path)
		return nil
	},
}

// follow drives the job to a terminal state in the foreground, one chunk
// at a time.
func follow(ctx context.Context, eng *engine.Engine) error {
	for {
		result, err := eng.RunChunk(ctx)
		if err != nil {
			return err
		}

		switch result.Status {
		case models.JobProcessing:
			fmt.Printf("synced %d, %d remaining\n", result.Synced, result.Remaining)
		case models.JobCompleted:
			fmt.Printf("sync completed, %d products processed\n", result.TotalProcessed)
			return nil
		default:
			fmt.Println(result.Message)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func printProgress(p models.Progress) {
	fmt.Printf("status:     %s\n", p.Status)
	fmt.Printf("progress:   %d/%d (%d%%)\n", p.Processed, p.Total, p.Percentage)
	fmt.Printf("cursor:     %d\n", p.Current)
	fmt.Printf("elapsed:    %s\n", time.Duration(p.Elapsed)*time.Second)
	if p.Status == models.JobProcessing && p.Estimated > 0 {
		fmt.Printf("estimated:  %s\n", time.Duration(p.Estimated)*time.Second)
	}
	fmt.Printf("errors:     %d\n", len(p.Errors))
	for _, e := range p.Errors {
		fmt.Printf("  product %d -> %s: %s\n", e.ProductID, e.Tenant, e.Message)
	}
}

type app struct {
	cfg      *config.Config
	engine   *engine.Engine
	progress domain.ProgressStore

	db     *database.DB
	closer io.Closer
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "sync-cli").Logger()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("init database: %w", err)
	}

	progress := buildProgressStore(cfg, &logger)

	imageGen := assets.NewSidecarGenerator()
	images := assets.NewDuplicator(db, imageGen, cfg.Storage.UploadsPath, cfg.Sync.MasterTenant, &logger)
	repl := replicator.New(db, images, cfg.Sync.MasterTenant, &logger)
	eng := engine.New(db, progress, repl, cfg.Sync.MasterTenant, cfg.Sync.TargetTenants, cfg.Sync.BatchSize, nil, &logger)

	return &app{cfg: cfg, engine: eng, progress: progress, db: db, closer: closer}, nil
}

// buildProgressStore mirrors the API binary: Redis with in-memory
// fallback, or memory alone when no address is configured.
func buildProgressStore(cfg *config.Config, logger *zerolog.Logger) domain.ProgressStore {
	memory := repository.NewMemoryProgressStore()
	if cfg.Redis.Address == "" {
		logger.Warn().Msg("redis address not set, sync progress is in-memory only")
		return memory
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, starting on in-memory fallback")
	}

	primary := repository.NewRedisProgressStore(client)
	return repository.NewFailoverProgressStore(primary, memory, logger)
}

func (a *app) Close() {
	_ = a.db.Close()
	if a.closer != nil {
		_ = a.closer.Close()
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to config file")

	startCmd.Flags().IntVar(&startLimit, "limit", 0, "cap the job at N products (0 = all)")
	startCmd.Flags().BoolVar(&startForce, "force", false, "restart even if a job is already running")
	startCmd.Flags().BoolVar(&startFollow, "follow", false, "process chunks in the foreground until the job finishes")

	reportCmd.Flags().StringVar(&reportOut, "out", "", "report output directory (default from config)")

	rootCmd.AddCommand(startCmd, statusCmd, cancelCmd, reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

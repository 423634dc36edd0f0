package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fcavalcantirj/open-data-gov-sub002/internal/config"
	"github.com/fcavalcantirj/open-data-gov-sub002/internal/database"
	"github.com/fcavalcantirj/open-data-gov-sub002/internal/logging"
	"github.com/fcavalcantirj/open-data-gov-sub002/internal/processor"
	"github.com/fcavalcantirj/open-data-gov-sub002/internal/report"
)

func setup(ctx context.Context) (string, *processor.Processor, func(), error) {
	if len(os.Args) < 2 {
		return "", nil, nil, fmt.Errorf("please provide the folder path as a command-line argument")
	}
	filesPath := os.Args[1]

	cfg, err := config.New()
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	var sink processor.Sink = processor.DiscardSink{}
	cleanup := func() {}

	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return "", nil, nil, fmt.Errorf("unable to connect to database: %w", err)
		}

		pgSink := database.NewPostgresSink(pool)
		if err := pgSink.EnsureSchema(ctx); err != nil {
			pool.Close()
			return "", nil, nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}

		sink = pgSink
		cleanup = pool.Close
	} else {
		slog.Warn("DATABASE_URL not set, running report-only with discard sink")
	}

	return filesPath, processor.New(*cfg, sink), cleanup, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	filesPath, proc, cleanup, err := setup(ctx)
	if err != nil {
		slog.Error("setup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	slog.Info("starting ingestion run", "dir", filesPath)
	summary, err := proc.Run(ctx, filesPath)
	if err != nil {
		slog.Error("ingestion run failed", "error", err)
		os.Exit(1)
	}

	fmt.Print(report.Render(summary))
}

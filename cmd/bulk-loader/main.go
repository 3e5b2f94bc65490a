// Package main is the entry point for the bulk loader: a one-shot ETL that
// imports Neo4j CSV exports from the staging area into the warehouse event
// tables as SNAPSHOT envelopes. It shares the canonical envelope shape with
// the live bridge but does not touch the HTTP surface or the broker.
//
// Usage:
//
//	bulk-loader -nodes
//	bulk-loader -relationships -pattern "connects*.csv"
//	bulk-loader -all
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"graphbridge/internal/config"
	"graphbridge/internal/warehouse"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	nodes := flag.Bool("nodes", false, "import node CSV files")
	relationships := flag.Bool("relationships", false, "import relationship CSV files")
	all := flag.Bool("all", false, "import both nodes and relationships")
	pattern := flag.String("pattern", "*.csv", "glob pattern for staging files")
	flag.Parse()

	if !*nodes && !*relationships && !*all {
		flag.Usage()
		return fmt.Errorf("nothing to import: pass -nodes, -relationships, or -all")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.Loader.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("bulk loader starting",
		"staging_dir", cfg.Loader.StagingDir,
		"batch_size", cfg.Loader.BatchSize,
		"pattern", *pattern,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := warehouse.NewStore(ctx, cfg.Loader.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to warehouse: %w", err)
	}
	defer store.Close()

	loader := warehouse.NewLoader(store, cfg.Loader, logger)

	g, gctx := errgroup.WithContext(ctx)
	if *all || *nodes {
		g.Go(func() error {
			n, err := loader.LoadNodes(gctx, *pattern)
			logger.Info("node import finished", "rows", n)
			return err
		})
	}
	if *all || *relationships {
		g.Go(func() error {
			n, err := loader.LoadRelationships(gctx, *pattern)
			logger.Info("relationship import finished", "rows", n)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	logger.Info("bulk load complete")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log
// level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

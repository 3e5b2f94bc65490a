package warehouse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"graphbridge/internal/config"
	"graphbridge/internal/types"
)

// EventWriter is the warehouse-side contract the loader depends on.
// Production code uses *Store; tests substitute a capturing fake.
type EventWriter interface {
	InsertNodeEvents(ctx context.Context, events []types.Envelope) (int64, error)
	InsertRelationshipEvents(ctx context.Context, events []types.Envelope) (int64, error)
}

// Loader runs the CSV-to-warehouse import. Files are processed one at a
// time; a file that cannot be read or inserted is logged and skipped so a
// single bad export does not abort the whole run.
type Loader struct {
	store  EventWriter
	cfg    config.LoaderConfig
	logger *slog.Logger
}

// NewLoader creates a Loader over the given staging configuration.
func NewLoader(store EventWriter, cfg config.LoaderConfig, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, cfg: cfg, logger: logger}
}

// LoadNodes imports node CSV files from <staging>/nodes matching pattern and
// returns the total number of rows written.
func (l *Loader) LoadNodes(ctx context.Context, pattern string) (int64, error) {
	return l.loadDir(ctx, "nodes", pattern, nodeRowToEnvelope, l.store.InsertNodeEvents)
}

// LoadRelationships imports relationship CSV files from
// <staging>/relationships matching pattern and returns the total number of
// rows written.
func (l *Loader) LoadRelationships(ctx context.Context, pattern string) (int64, error) {
	return l.loadDir(ctx, "relationships", pattern, relationshipRowToEnvelope, l.store.InsertRelationshipEvents)
}

// loadDir is the shared per-directory import loop.
func (l *Loader) loadDir(
	ctx context.Context,
	subdir, pattern string,
	transform func(row csvRow, file string) (types.Envelope, error),
	insert func(ctx context.Context, events []types.Envelope) (int64, error),
) (int64, error) {
	dir := filepath.Join(l.cfg.StagingDir, subdir)
	files, err := stagingFiles(dir, pattern)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		l.logger.Warn("no staging files found", "dir", dir, "pattern", pattern)
		return 0, nil
	}

	l.logger.Info("starting import", "dir", dir, "files", len(files))

	var total int64
	for _, path := range files {
		n, err := l.loadFile(ctx, path, transform, insert)
		total += n
		if err != nil {
			if ctx.Err() != nil {
				return total, fmt.Errorf("warehouse: import canceled: %w", ctx.Err())
			}
			// Continue with the next file, mirroring the per-file error
			// containment of the staging export process.
			l.logger.Error("failed to process staging file", "file", path, "error", err)
			continue
		}
		l.logger.Info("staging file imported", "file", filepath.Base(path), "rows", n)
	}

	l.logger.Info("import complete", "dir", dir, "rows", total)
	return total, nil
}

// loadFile streams one CSV file into the warehouse in chunks of the
// configured batch size. It returns the number of rows successfully written,
// which may be non-zero even when an error is returned.
func (l *Loader) loadFile(
	ctx context.Context,
	path string,
	transform func(row csvRow, file string) (types.Envelope, error),
	insert func(ctx context.Context, events []types.Envelope) (int64, error),
) (int64, error) {
	rc, err := openStagingFile(path)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	rr, err := newRowReader(rc)
	if err != nil {
		return 0, err
	}

	file := filepath.Base(path)
	batch := make([]types.Envelope, 0, l.cfg.BatchSize)

	var total int64
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := insert(ctx, batch)
		total += n
		batch = batch[:0]
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		row, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, fmt.Errorf("reading %s: %w", file, err)
		}

		env, err := transform(row, file)
		if err != nil {
			// Bad rows are skipped, not fatal; the run reports totals.
			l.logger.Warn("skipping malformed row", "file", file, "error", err)
			continue
		}

		batch = append(batch, env)
		if len(batch) >= l.cfg.BatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}

	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

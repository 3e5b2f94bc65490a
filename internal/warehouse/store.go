// Package warehouse implements the bulk CSV loader: a one-shot ETL that
// reads Neo4j CSV exports from a staging area, transforms each row into the
// canonical envelope shape tagged as a snapshot, and writes the result
// directly into the warehouse tables in chunked batches. It bypasses the
// bridge's HTTP surface and the broker entirely.
package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"graphbridge/internal/types"
)

// copier abstracts the pgx bulk-copy operation for testability. Production
// code uses *pgxpool.Pool.
type copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

var (
	nodeEventColumns = []string{
		"event_id", "event_type", "event_timestamp", "entity_id",
		"labels", "properties_before", "properties_after", "metadata",
	}
	relationshipEventColumns = []string{
		"event_id", "event_type", "event_timestamp", "entity_id",
		"relationship_type", "source_id", "target_id",
		"properties_before", "properties_after", "metadata",
	}
)

// Store writes canonical envelopes into the warehouse event tables.
type Store struct {
	db    copier
	close func()
}

// NewStore connects to the warehouse and verifies the connection.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("warehouse: creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("warehouse: pinging database: %w", err)
	}
	return &Store{db: pool, close: pool.Close}, nil
}

// newStore wraps an existing copier; used by tests.
func newStore(db copier) *Store {
	return &Store{db: db, close: func() {}}
}

// InsertNodeEvents bulk-copies node envelopes into node_events and returns
// the number of rows written.
func (s *Store) InsertNodeEvents(ctx context.Context, events []types.Envelope) (int64, error) {
	rows := make([][]any, len(events))
	for i, e := range events {
		labels := e.Labels
		if labels == nil {
			labels = []string{}
		}
		rows[i] = []any{
			e.EventID, e.EventType, parseEventTimestamp(e.EventTimestamp), e.EntityID,
			labels, e.PropertiesBefore, e.PropertiesAfter, e.Metadata,
		}
	}

	n, err := s.db.CopyFrom(ctx, pgx.Identifier{"node_events"}, nodeEventColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("warehouse: inserting node events: %w", err)
	}
	return n, nil
}

// InsertRelationshipEvents bulk-copies relationship envelopes into
// relationship_events and returns the number of rows written.
func (s *Store) InsertRelationshipEvents(ctx context.Context, events []types.Envelope) (int64, error) {
	rows := make([][]any, len(events))
	for i, e := range events {
		rows[i] = []any{
			e.EventID, e.EventType, parseEventTimestamp(e.EventTimestamp), e.EntityID,
			e.RelationshipType, e.SourceID, e.TargetID,
			e.PropertiesBefore, e.PropertiesAfter, e.Metadata,
		}
	}

	n, err := s.db.CopyFrom(ctx, pgx.Identifier{"relationship_events"}, relationshipEventColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("warehouse: inserting relationship events: %w", err)
	}
	return n, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.close()
}

// parseEventTimestamp converts the envelope's wire timestamp into a time
// value for the warehouse's timestamp column. A value that does not match
// the wire layout falls back to the load time rather than failing the batch.
func parseEventTimestamp(ts string) time.Time {
	t, err := time.Parse(types.TimestampLayout, ts)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}

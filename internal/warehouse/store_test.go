package warehouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphbridge/internal/types"
)

// fakeCopier captures CopyFrom calls and materializes the row source.
type fakeCopier struct {
	table   pgx.Identifier
	columns []string
	rows    [][]any
	err     error
}

func (f *fakeCopier) CopyFrom(_ context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.table = tableName
	f.columns = columnNames
	for rowSrc.Next() {
		values, err := rowSrc.Values()
		if err != nil {
			return int64(len(f.rows)), err
		}
		f.rows = append(f.rows, values)
	}
	return int64(len(f.rows)), nil
}

func TestInsertNodeEvents(t *testing.T) {
	db := &fakeCopier{}
	store := newStore(db)

	events := []types.Envelope{{
		EventID:          "ev-1",
		EventType:        "CREATE",
		EventTimestamp:   "2026-03-14 09:26:53.589",
		EntityID:         "42",
		EntityKind:       types.KindNode,
		Labels:           []string{"Device"},
		PropertiesBefore: "{}",
		PropertiesAfter:  `{"name":"pump-1"}`,
		Metadata:         `{"source":"neo4j"}`,
	}}

	n, err := store.InsertNodeEvents(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, pgx.Identifier{"node_events"}, db.table)
	assert.Equal(t, nodeEventColumns, db.columns)

	require.Len(t, db.rows, 1)
	row := db.rows[0]
	require.Len(t, row, len(nodeEventColumns))
	assert.Equal(t, "ev-1", row[0])
	assert.Equal(t, "CREATE", row[1])
	assert.Equal(t, time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC), row[2])
	assert.Equal(t, "42", row[3])
	assert.Equal(t, []string{"Device"}, row[4])
	assert.Equal(t, "{}", row[5])
	assert.Equal(t, `{"name":"pump-1"}`, row[6])
	assert.Equal(t, `{"source":"neo4j"}`, row[7])
}

func TestInsertNodeEvents_NilLabelsBecomeEmpty(t *testing.T) {
	db := &fakeCopier{}
	store := newStore(db)

	_, err := store.InsertNodeEvents(context.Background(), []types.Envelope{{
		EventID: "ev-1", EntityID: "42", EntityKind: types.KindNode,
	}})
	require.NoError(t, err)

	require.Len(t, db.rows, 1)
	assert.Equal(t, []string{}, db.rows[0][4])
}

func TestInsertNodeEvents_UnparseableTimestampFallsBack(t *testing.T) {
	db := &fakeCopier{}
	store := newStore(db)

	before := time.Now().UTC()
	_, err := store.InsertNodeEvents(context.Background(), []types.Envelope{{
		EventID: "ev-1", EventTimestamp: "not a timestamp", EntityID: "42",
	}})
	require.NoError(t, err)

	require.Len(t, db.rows, 1)
	ts, ok := db.rows[0][2].(time.Time)
	require.True(t, ok)
	assert.False(t, ts.Before(before))
}

func TestInsertRelationshipEvents(t *testing.T) {
	db := &fakeCopier{}
	store := newStore(db)

	events := []types.Envelope{{
		EventID:          "ev-2",
		EventType:        "UPDATE",
		EventTimestamp:   "2026-03-14 09:26:53.589",
		EntityID:         "r7",
		EntityKind:       types.KindRelationship,
		RelationshipType: "CONNECTED_TO",
		SourceID:         "1",
		TargetID:         "2",
		PropertiesBefore: `{"since":2023}`,
		PropertiesAfter:  `{"since":2024}`,
		Metadata:         `{"source":"neo4j"}`,
	}}

	n, err := store.InsertRelationshipEvents(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, pgx.Identifier{"relationship_events"}, db.table)
	assert.Equal(t, relationshipEventColumns, db.columns)

	require.Len(t, db.rows, 1)
	row := db.rows[0]
	assert.Equal(t, "ev-2", row[0])
	assert.Equal(t, "r7", row[3])
	assert.Equal(t, "CONNECTED_TO", row[4])
	assert.Equal(t, "1", row[5])
	assert.Equal(t, "2", row[6])
}

func TestInsertEvents_CopyErrorIsWrapped(t *testing.T) {
	copyErr := errors.New("connection reset")
	store := newStore(&fakeCopier{err: copyErr})

	_, err := store.InsertNodeEvents(context.Background(), []types.Envelope{{EntityID: "42"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, copyErr)

	_, err = store.InsertRelationshipEvents(context.Background(), []types.Envelope{{EntityID: "r1"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, copyErr)
}

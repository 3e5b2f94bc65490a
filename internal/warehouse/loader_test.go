package warehouse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphbridge/internal/config"
	"graphbridge/internal/types"
)

// fakeWriter records every inserted batch and optionally fails.
type fakeWriter struct {
	nodeBatches [][]types.Envelope
	relBatches  [][]types.Envelope
	err         error
}

func (f *fakeWriter) InsertNodeEvents(_ context.Context, events []types.Envelope) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	batch := make([]types.Envelope, len(events))
	copy(batch, events)
	f.nodeBatches = append(f.nodeBatches, batch)
	return int64(len(events)), nil
}

func (f *fakeWriter) InsertRelationshipEvents(_ context.Context, events []types.Envelope) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	batch := make([]types.Envelope, len(events))
	copy(batch, events)
	f.relBatches = append(f.relBatches, batch)
	return int64(len(events)), nil
}

func (f *fakeWriter) nodeRows() []types.Envelope {
	var all []types.Envelope
	for _, b := range f.nodeBatches {
		all = append(all, b...)
	}
	return all
}

func newTestLoader(t *testing.T, store EventWriter, batchSize int) (*Loader, string) {
	t.Helper()

	staging := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(staging, "nodes"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(staging, "relationships"), 0o755))

	cfg := config.LoaderConfig{StagingDir: staging, BatchSize: batchSize}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewLoader(store, cfg, logger), staging
}

func writeCSV(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeGzipCSV(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}

func TestLoadNodes_ImportsRows(t *testing.T) {
	store := &fakeWriter{}
	loader, staging := newTestLoader(t, store, 100)

	writeCSV(t, filepath.Join(staging, "nodes", "nodes_001.csv"),
		"entity_id,labels,properties\n"+
			`1,"[""Device""]","{""name"":""pump-1""}"`+"\n"+
			"2,Sensor,\n")

	n, err := loader.LoadNodes(context.Background(), "*.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows := store.nodeRows()
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].EntityID)
	assert.Equal(t, []string{"Device"}, rows[0].Labels)
	assert.Equal(t, `{"name":"pump-1"}`, rows[0].PropertiesAfter)
	assert.Equal(t, "2", rows[1].EntityID)
	assert.Equal(t, []string{"Sensor"}, rows[1].Labels)
	assert.Equal(t, "{}", rows[1].PropertiesAfter)
}

func TestLoadNodes_ReadsGzippedFiles(t *testing.T) {
	store := &fakeWriter{}
	loader, staging := newTestLoader(t, store, 100)

	writeGzipCSV(t, filepath.Join(staging, "nodes", "nodes_001.csv.gz"),
		"entity_id,labels,properties\n1,Device,{}\n")

	n, err := loader.LoadNodes(context.Background(), "*.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.Len(t, store.nodeRows(), 1)
	assert.Equal(t, "1", store.nodeRows()[0].EntityID)
}

func TestLoadNodes_FlushesInBatches(t *testing.T) {
	store := &fakeWriter{}
	loader, staging := newTestLoader(t, store, 2)

	content := "entity_id,labels,properties\n"
	for i := 1; i <= 5; i++ {
		content += fmt.Sprintf("%d,Device,{}\n", i)
	}
	writeCSV(t, filepath.Join(staging, "nodes", "nodes_001.csv"), content)

	n, err := loader.LoadNodes(context.Background(), "*.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	require.Len(t, store.nodeBatches, 3)
	assert.Len(t, store.nodeBatches[0], 2)
	assert.Len(t, store.nodeBatches[1], 2)
	assert.Len(t, store.nodeBatches[2], 1)
}

func TestLoadNodes_SkipsMalformedRows(t *testing.T) {
	store := &fakeWriter{}
	loader, staging := newTestLoader(t, store, 100)

	writeCSV(t, filepath.Join(staging, "nodes", "nodes_001.csv"),
		"entity_id,labels,properties\n1,Device,{}\n,Orphan,{}\n3,Device,{}\n")

	n, err := loader.LoadNodes(context.Background(), "*.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows := store.nodeRows()
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].EntityID)
	assert.Equal(t, "3", rows[1].EntityID)
}

func TestLoadNodes_ContinuesAfterBadFile(t *testing.T) {
	store := &fakeWriter{}
	loader, staging := newTestLoader(t, store, 100)

	// Not valid gzip; opening fails and the loader should move on.
	writeCSV(t, filepath.Join(staging, "nodes", "a_bad.csv.gz"), "not gzip")
	writeCSV(t, filepath.Join(staging, "nodes", "b_good.csv"),
		"entity_id,labels,properties\n1,Device,{}\n")

	n, err := loader.LoadNodes(context.Background(), "*.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLoadNodes_NoFilesIsNotAnError(t *testing.T) {
	store := &fakeWriter{}
	loader, _ := newTestLoader(t, store, 100)

	n, err := loader.LoadNodes(context.Background(), "*.csv")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.nodeBatches)
}

func TestLoadNodes_CanceledContextAborts(t *testing.T) {
	store := &fakeWriter{}
	loader, staging := newTestLoader(t, store, 100)

	writeCSV(t, filepath.Join(staging, "nodes", "nodes_001.csv"),
		"entity_id,labels,properties\n1,Device,{}\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.LoadNodes(ctx, "*.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadRelationships_ImportsRows(t *testing.T) {
	store := &fakeWriter{}
	loader, staging := newTestLoader(t, store, 100)

	writeCSV(t, filepath.Join(staging, "relationships", "rels_001.csv"),
		"entity_id,relationship_type,source_id,target_id,properties\n"+
			"r1,CONNECTED_TO,1,2,{}\n")

	n, err := loader.LoadRelationships(context.Background(), "*.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.Len(t, store.relBatches, 1)
	rel := store.relBatches[0][0]
	assert.Equal(t, "r1", rel.EntityID)
	assert.Equal(t, "CONNECTED_TO", rel.RelationshipType)
	assert.Equal(t, "1", rel.SourceID)
	assert.Equal(t, "2", rel.TargetID)
}

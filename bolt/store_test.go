package bolt_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/slackmgr/projectindex/bolt"
	"github.com/slackmgr/projectindex/store"
	"github.com/slackmgr/projectindex/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, path string, opts ...bolt.Option) *bolt.Store {
	t.Helper()

	opts = append([]bolt.Option{bolt.WithNoSync(), bolt.WithOpenTimeout(time.Second)}, opts...)

	s, err := bolt.Open(path, opts...)
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestStore(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(t *testing.T) store.Store {
		t.Helper()

		return openTestStore(t, filepath.Join(t.TempDir(), "records.db"))
	})
}

func TestOpen_InvalidOptions(t *testing.T) {
	t.Parallel()

	_, err := bolt.Open(filepath.Join(t.TempDir(), "records.db"), bolt.WithDefaultPageSize(0))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "default page size must be greater than zero")

	_, err = bolt.Open(filepath.Join(t.TempDir(), "records.db"), bolt.WithClock(nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "clock cannot be nil")
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", "records.db")
	s := openTestStore(t, path)

	assert.Equal(t, path, s.Path())
	assert.FileExists(t, path)
}

func TestOpen_LockedFileTimesOut(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "records.db")
	_ = openTestStore(t, path)

	_, err := bolt.Open(path, bolt.WithOpenTimeout(50*time.Millisecond))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open bolt database")
}

func TestDefaultPath(t *testing.T) { //nolint:paralleltest // Mutates XDG environment.
	dataHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)
	xdg.Reload()

	t.Cleanup(xdg.Reload)

	path, err := bolt.DefaultPath()

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataHome, "projectindex", "records.db"), path)
	assert.DirExists(t, filepath.Join(dataHome, "projectindex"))
}

func TestReopenKeepsRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "records.db")

	s, err := bolt.Open(path, bolt.WithNoSync())
	require.NoError(t, err)

	version, err := s.Put(ctx, &store.Record{PartitionKey: "projects_p1", SortKey: "project", Body: []byte(`{"id":"p1"}`)}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	require.NoError(t, s.Close())

	reopened := openTestStore(t, path)

	rec, err := reopened.Get(ctx, "projects_p1", "project")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version)
	assert.JSONEq(t, `{"id":"p1"}`, string(rec.Body))
}

func TestPartitions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "records.db"))

	for _, pk := range []string{"projects_b", "projects_a", "projectsbystate_active"} {
		_, err := s.Put(ctx, &store.Record{PartitionKey: pk, SortKey: "x", Body: []byte(`{}`)}, nil)
		require.NoError(t, err)
	}

	partitions, err := s.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"projects_a", "projects_b", "projectsbystate_active"}, partitions)

	require.NoError(t, s.Delete(ctx, "projects_b", "x"))

	partitions, err = s.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"projects_a", "projectsbystate_active"}, partitions, "empty partitions are dropped")
}

func TestQuery_EqualDoesNotReturnCursor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "records.db"))

	for _, sk := range []string{"a", "b"} {
		_, err := s.Put(ctx, &store.Record{PartitionKey: "p", SortKey: sk, Body: []byte(`{}`)}, nil)
		require.NoError(t, err)
	}

	page, err := s.Query(ctx, store.Query{PartitionKey: "p", SortKey: "a", Operator: store.Equal, Limit: 1})

	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Empty(t, page.Cursor)
}

func TestQuery_MissingPartition(t *testing.T) {
	t.Parallel()

	s := openTestStore(t, filepath.Join(t.TempDir(), "records.db"))

	page, err := s.Query(context.Background(), store.Query{PartitionKey: "nothing", Operator: store.GreaterThan})

	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Empty(t, page.Cursor)
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	s := openTestStore(t, filepath.Join(t.TempDir(), "records.db"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Put(ctx, &store.Record{PartitionKey: "p", SortKey: "a"}, nil)

	require.Error(t, err)
	assert.True(t, store.IsRetryable(err))
}

// Package storetest holds a behavioural test suite shared by every
// [store.Store] backend.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/slackmgr/projectindex/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run executes the suite. newStore must return an empty store for every
// call; the suite does not clean up between subtests.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("PutGet", func(t *testing.T) { testPutGet(t, newStore(t)) })
	t.Run("PutExpectedVersion", func(t *testing.T) { testPutExpectedVersion(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("QueryOperators", func(t *testing.T) { testQueryOperators(t, newStore(t)) })
	t.Run("QueryPagination", func(t *testing.T) { testQueryPagination(t, newStore(t)) })
	t.Run("BatchSubmit", func(t *testing.T) { testBatchSubmit(t, newStore(t)) })
	t.Run("BatchMustNotExist", func(t *testing.T) { testBatchMustNotExist(t, newStore(t)) })
}

func body(v string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"v":%q}`, v))
}

func testPutGet(t *testing.T, s store.Store) {
	ctx := context.Background()

	version, err := s.Put(ctx, &store.Record{PartitionKey: "p", SortKey: "a", Body: body("1")}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	version, err = s.Put(ctx, &store.Record{PartitionKey: "p", SortKey: "a", Body: body("2")}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	rec, err := s.Get(ctx, "p", "a")
	require.NoError(t, err)
	assert.Equal(t, "p", rec.PartitionKey)
	assert.Equal(t, "a", rec.SortKey)
	assert.JSONEq(t, `{"v":"2"}`, string(rec.Body))
	assert.Equal(t, int64(2), rec.Version)
}

func testPutExpectedVersion(t *testing.T, s store.Store) {
	ctx := context.Background()
	zero := int64(0)

	version, err := s.Put(ctx, &store.Record{PartitionKey: "p", SortKey: "a", Body: body("1")}, &zero)
	require.NoError(t, err)

	_, err = s.Put(ctx, &store.Record{PartitionKey: "p", SortKey: "a", Body: body("dup")}, &zero)
	require.ErrorIs(t, err, store.ErrConflict)

	stale := version + 10
	_, err = s.Put(ctx, &store.Record{PartitionKey: "p", SortKey: "a", Body: body("stale")}, &stale)
	require.ErrorIs(t, err, store.ErrConflict)

	next, err := s.Put(ctx, &store.Record{PartitionKey: "p", SortKey: "a", Body: body("2")}, &version)
	require.NoError(t, err)
	assert.Equal(t, version+1, next)

	missing := int64(3)
	_, err = s.Put(ctx, &store.Record{PartitionKey: "p", SortKey: "missing", Body: body("x")}, &missing)
	require.ErrorIs(t, err, store.ErrConflict)
}

func testGetMissing(t *testing.T, s store.Store) {
	_, err := s.Get(context.Background(), "p", "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testDelete(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.Put(ctx, &store.Record{PartitionKey: "p", SortKey: "a", Body: body("1")}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "p", "a"))
	require.NoError(t, s.Delete(ctx, "p", "a"))

	_, err = s.Get(ctx, "p", "a")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func sortKeys(page *store.Page) []string {
	keys := make([]string, 0, len(page.Records))
	for _, r := range page.Records {
		keys = append(keys, r.SortKey)
	}

	return keys
}

func testQueryOperators(t *testing.T, s store.Store) {
	ctx := context.Background()

	for _, sk := range []string{"project", "resource#a", "resource#b", "version#x#0000000001", "assignee#u#r"} {
		_, err := s.Put(ctx, &store.Record{PartitionKey: "projects_1", SortKey: sk, Body: body(sk)}, nil)
		require.NoError(t, err)
	}

	_, err := s.Put(ctx, &store.Record{PartitionKey: "projects_2", SortKey: "resource#c", Body: body("other")}, nil)
	require.NoError(t, err)

	page, err := s.Query(ctx, store.Query{PartitionKey: "projects_1", SortKey: "project", Operator: store.Equal})
	require.NoError(t, err)
	assert.Equal(t, []string{"project"}, sortKeys(page))

	page, err = s.Query(ctx, store.Query{PartitionKey: "projects_1", SortKey: "resource#", Operator: store.GreaterThan})
	require.NoError(t, err)
	assert.Equal(t, []string{"resource#a", "resource#b"}, sortKeys(page))
	assert.Empty(t, page.Cursor)

	page, err = s.Query(ctx, store.Query{PartitionKey: "projects_1", Operator: store.GreaterThan})
	require.NoError(t, err)
	assert.Len(t, page.Records, 5)

	page, err = s.Query(ctx, store.Query{PartitionKey: "projects_1", SortKey: "r", Operator: store.LessThan})
	require.NoError(t, err)
	assert.Equal(t, []string{"assignee#u#r", "project"}, sortKeys(page))

	page, err = s.Query(ctx, store.Query{PartitionKey: "projects_missing", SortKey: "resource#", Operator: store.GreaterThan})
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Empty(t, page.Cursor)
}

func testQueryPagination(t *testing.T, s store.Store) {
	ctx := context.Background()

	want := make([]string, 0, 7)
	for i := range 7 {
		sk := fmt.Sprintf("item_%02d", i)
		want = append(want, sk)

		_, err := s.Put(ctx, &store.Record{PartitionKey: "p", SortKey: sk, Body: body(sk)}, nil)
		require.NoError(t, err)
	}

	var got []string
	cursor := ""
	pages := 0

	for {
		page, err := s.Query(ctx, store.Query{PartitionKey: "p", SortKey: "item_", Operator: store.GreaterThan, Limit: 3, Cursor: cursor})
		require.NoError(t, err)

		got = append(got, sortKeys(page)...)
		pages++

		if page.Cursor == "" {
			break
		}

		cursor = page.Cursor
		require.Less(t, pages, 10, "pagination did not terminate")
	}

	assert.Equal(t, want, got)
	assert.Equal(t, 3, pages)
}

func testBatchSubmit(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.Put(ctx, &store.Record{PartitionKey: "p", SortKey: "old", Body: body("old")}, nil)
	require.NoError(t, err)

	err = s.BatchSubmit(ctx, []store.Op{
		store.PutOp(store.Record{PartitionKey: "p", SortKey: "a", Body: body("a")}),
		store.PutOp(store.Record{PartitionKey: "p", SortKey: "b", Body: body("b"), Version: 4}),
		store.DeleteOp("p", "old"),
	})
	require.NoError(t, err)

	rec, err := s.Get(ctx, "p", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version)

	rec, err = s.Get(ctx, "p", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.Version)

	_, err = s.Get(ctx, "p", "old")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.BatchSubmit(ctx, nil))
}

func testBatchMustNotExist(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.Put(ctx, &store.Record{PartitionKey: "p", SortKey: "taken", Body: body("x")}, nil)
	require.NoError(t, err)

	fresh := store.PutOp(store.Record{PartitionKey: "p", SortKey: "fresh", Body: body("fresh")})
	fresh.MustNotExist = true

	taken := store.PutOp(store.Record{PartitionKey: "p", SortKey: "taken", Body: body("y")})
	taken.MustNotExist = true

	err = s.BatchSubmit(ctx, []store.Op{fresh, taken})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrConflict), "expected conflict, got %v", err)

	_, err = s.Get(ctx, "p", "fresh")
	require.ErrorIs(t, err, store.ErrNotFound, "same-partition batch must be atomic")

	rec, err := s.Get(ctx, "p", "taken")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":"x"}`, string(rec.Body))
}

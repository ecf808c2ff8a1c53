package resource_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/slackmgr/projectindex/apperr"
	"github.com/slackmgr/projectindex/blob"
	"github.com/slackmgr/projectindex/index"
	"github.com/slackmgr/projectindex/logging"
	"github.com/slackmgr/projectindex/memory"
	"github.com/slackmgr/projectindex/resource"
	"github.com/slackmgr/projectindex/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const projectID = "0b6c8d6e-7d1c-4f5e-9a3e-1a2b3c4d5e6f"

type fixture struct {
	store *memory.Store
	blobs *blob.MemoryStore
	svc   *resource.Service
}

func newRaceService(t *testing.T, s store.Store, opts ...resource.Option) *resource.Service {
	t.Helper()

	w, err := index.NewWriter(s, logging.Nop(), index.WithBackoff(time.Millisecond, time.Millisecond))
	require.NoError(t, err)

	svc, err := resource.New(s, w, blob.NewMemoryStore(), logging.Nop(), opts...)
	require.NoError(t, err)

	return svc
}

func newTestFixture(t *testing.T, opts ...resource.Option) *fixture {
	t.Helper()

	f := &fixture{store: memory.New(), blobs: blob.NewMemoryStore()}

	w, err := index.NewWriter(f.store, logging.Nop())
	require.NoError(t, err)

	f.svc, err = resource.New(f.store, w, f.blobs, logging.Nop(), opts...)
	require.NoError(t, err)

	return f
}

func upload(t *testing.T, svc *resource.Service, path, author, content string) *resource.Version {
	t.Helper()

	v, err := svc.StoreNewVersion(context.Background(), resource.StoreRequest{
		ProjectID: projectID,
		Path:      path,
		Author:    author,
		Content:   []byte(content),
	})
	require.NoError(t, err)

	return v
}

// ==================== Version Tests ====================

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	s := memory.New()
	w, err := index.NewWriter(s, logging.Nop())
	require.NoError(t, err)

	_, err = resource.New(nil, w, blob.NewMemoryStore(), logging.Nop())
	require.Error(t, err)

	_, err = resource.New(s, nil, blob.NewMemoryStore(), logging.Nop())
	require.Error(t, err)

	_, err = resource.New(s, w, nil, logging.Nop())
	require.Error(t, err)

	_, err = resource.New(s, w, blob.NewMemoryStore(), nil)
	require.Error(t, err)

	_, err = resource.New(s, w, blob.NewMemoryStore(), logging.Nop(), resource.WithPageSize(0))
	require.ErrorContains(t, err, "page size")
}

func TestGetCurrentVersion_None(t *testing.T) {
	t.Parallel()

	f := newTestFixture(t)

	v, err := f.svc.GetCurrentVersion(context.Background(), projectID, "missing.txt")
	require.NoError(t, err)
	assert.Equal(t, 0, v.Index)
	assert.False(t, v.Locked())

	_, err = f.svc.GetCurrentVersion(context.Background(), projectID, "")
	assert.True(t, apperr.IsValidation(err))
}

func TestStoreNewVersion_ThreeUploads(t *testing.T) {
	t.Parallel()

	f := newTestFixture(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		v := upload(t, f.svc, "docs/readme.txt", "alice", fmt.Sprintf("content %d", i))
		assert.Equal(t, i, v.Index)
	}

	current, err := f.svc.GetCurrentVersion(ctx, projectID, "docs/readme.txt")
	require.NoError(t, err)
	assert.Equal(t, 3, current.Index)
	assert.Empty(t, current.LockHolder)
	assert.Equal(t, "alice", current.Author)

	// latest pointer + three version records
	assert.Equal(t, 4, f.store.Len())
	assert.Equal(t, 3, f.blobs.Len())

	versions, err := f.svc.ListVersions(ctx, projectID, "docs/readme.txt")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for i, v := range versions {
		assert.Equal(t, i+1, v.Index)
	}

	resources, err := f.svc.ListResources(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "docs/readme.txt", resources[0].Path)
	assert.Equal(t, "alice", resources[0].CreatedBy)
}

func TestStoreNewVersion_Monotonic(t *testing.T) {
	t.Parallel()

	f := newTestFixture(t, resource.WithPageSize(3))

	previous := 0
	for range 12 {
		v := upload(t, f.svc, "a", "alice", "x")
		assert.Greater(t, v.Index, previous)
		previous = v.Index
	}

	current, err := f.svc.GetCurrentVersion(context.Background(), projectID, "a")
	require.NoError(t, err)
	assert.Equal(t, 12, current.Index)
}

func TestStoreNewVersion_PathsAreIndependent(t *testing.T) {
	t.Parallel()

	f := newTestFixture(t)
	ctx := context.Background()

	upload(t, f.svc, "a", "alice", "x")
	upload(t, f.svc, "a", "alice", "x")
	upload(t, f.svc, "a_b", "alice", "x")
	upload(t, f.svc, "A", "alice", "x")

	for path, want := range map[string]int{"a": 2, "a_b": 1, "A": 1, "b": 0} {
		v, err := f.svc.GetCurrentVersion(ctx, projectID, path)
		require.NoError(t, err)
		assert.Equal(t, want, v.Index, "path %s", path)
	}

	resources, err := f.svc.ListResources(ctx, projectID)
	require.NoError(t, err)
	assert.Len(t, resources, 3)
}

func TestRetrieveContent(t *testing.T) {
	t.Parallel()

	f := newTestFixture(t)
	ctx := context.Background()

	upload(t, f.svc, "notes.md", "alice", "first")
	upload(t, f.svc, "notes.md", "bob", "second")

	data, v, err := f.svc.RetrieveContent(ctx, projectID, "notes.md", 1)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
	assert.Equal(t, 1, v.Index)

	data, v, err = f.svc.RetrieveContent(ctx, projectID, "notes.md", 0)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
	assert.Equal(t, "bob", v.Author)

	_, _, err = f.svc.RetrieveContent(ctx, projectID, "notes.md", 9)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, _, err = f.svc.RetrieveContent(ctx, projectID, "other.md", 0)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, _, err = f.svc.RetrieveContent(ctx, projectID, "notes.md", -1)
	assert.True(t, apperr.IsValidation(err))
}

// ==================== Lock Tests ====================

func TestStoreNewVersion_LockEnforced(t *testing.T) {
	t.Parallel()

	f := newTestFixture(t)
	ctx := context.Background()

	upload(t, f.svc, "plan.md", "alice", "v1")

	locked, err := f.svc.SetLock(ctx, projectID, "plan.md", "alice", true)
	require.NoError(t, err)
	assert.Equal(t, "alice", locked.LockHolder)

	before := f.store.Len()
	blobsBefore := f.blobs.Len()

	_, err = f.svc.StoreNewVersion(ctx, resource.StoreRequest{ProjectID: projectID, Path: "plan.md", Author: "bob", Content: []byte("v2")})
	require.Error(t, err)

	var conflict *apperr.LockConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "alice", conflict.LockHolder)
	assert.Equal(t, "bob", conflict.Requester)
	assert.Equal(t, before, f.store.Len())
	assert.Equal(t, blobsBefore, f.blobs.Len())

	v2, err := f.svc.StoreNewVersion(ctx, resource.StoreRequest{ProjectID: projectID, Path: "plan.md", Author: "alice", Content: []byte("v2"), LockHolder: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Index)
	assert.Equal(t, "alice", v2.LockHolder)

	_, err = f.svc.SetLock(ctx, projectID, "plan.md", "bob", false)
	assert.True(t, apperr.IsLockConflict(err))

	unlocked, err := f.svc.SetLock(ctx, projectID, "plan.md", "alice", false)
	require.NoError(t, err)
	assert.False(t, unlocked.Locked())

	v3 := upload(t, f.svc, "plan.md", "bob", "v3")
	assert.Equal(t, 3, v3.Index)
}

func TestSetLock_LatestPointerCarriesNoLock(t *testing.T) {
	t.Parallel()

	f := newTestFixture(t)
	ctx := context.Background()

	v1, err := f.svc.StoreNewVersion(ctx, resource.StoreRequest{ProjectID: projectID, Path: "plan.md", Author: "alice", Content: []byte("v1"), LockHolder: "alice"})
	require.NoError(t, err)
	assert.True(t, v1.Locked())

	latest := index.ResourcePolicies{}.Latest(projectID, "plan.md")

	rec, err := f.store.Get(ctx, latest.PartitionKey, latest.SortKey)
	require.NoError(t, err)
	assert.NotContains(t, string(rec.Body), "lockHolder")

	_, err = f.svc.SetLock(ctx, projectID, "plan.md", "alice", false)
	require.NoError(t, err)

	_, err = f.svc.SetLock(ctx, projectID, "plan.md", "bob", true)
	require.NoError(t, err)

	rec, err = f.store.Get(ctx, latest.PartitionKey, latest.SortKey)
	require.NoError(t, err)
	assert.NotContains(t, string(rec.Body), "lockHolder")

	current, err := f.svc.GetCurrentVersion(ctx, projectID, "plan.md")
	require.NoError(t, err)
	assert.Equal(t, "bob", current.LockHolder)
}

func TestSetLock_Errors(t *testing.T) {
	t.Parallel()

	f := newTestFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetLock(ctx, projectID, "missing", "alice", true)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.SetLock(ctx, projectID, "missing", "", true)
	assert.True(t, apperr.IsValidation(err))
}

// ==================== Failure Tests ====================

// failingStore rejects every batch.
type failingStore struct {
	*memory.Store
}

func (failingStore) BatchSubmit(context.Context, []store.Op) error {
	return errors.New("injected failure")
}

func TestStoreNewVersion_IndexFailureRemovesBlob(t *testing.T) {
	t.Parallel()

	s := failingStore{Store: memory.New()}
	blobs := blob.NewMemoryStore()

	w, err := index.NewWriter(s, logging.Nop())
	require.NoError(t, err)

	svc, err := resource.New(s, w, blobs, logging.Nop())
	require.NoError(t, err)

	_, err = svc.StoreNewVersion(context.Background(), resource.StoreRequest{ProjectID: projectID, Path: "a", Content: []byte("x")})
	require.ErrorContains(t, err, "injected failure")
	assert.Zero(t, blobs.Len())
}

// cancelingBlobStore cancels the request context as soon as content is
// stored, so the index write that follows fails on a done context.
type cancelingBlobStore struct {
	*blob.MemoryStore

	cancel context.CancelFunc
}

func (c *cancelingBlobStore) Store(ctx context.Context, path string, data []byte) (string, error) {
	ref, err := c.MemoryStore.Store(ctx, path, data)
	c.cancel()

	return ref, err
}

func TestStoreNewVersion_CanceledWriteStillRemovesBlob(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := memory.New()
	blobs := &cancelingBlobStore{MemoryStore: blob.NewMemoryStore(), cancel: cancel}

	w, err := index.NewWriter(s, logging.Nop(), index.WithBackoff(time.Millisecond, time.Millisecond))
	require.NoError(t, err)

	svc, err := resource.New(s, w, blobs, logging.Nop())
	require.NoError(t, err)

	_, err = svc.StoreNewVersion(ctx, resource.StoreRequest{ProjectID: projectID, Path: "a", Author: "alice", Content: []byte("x")})
	require.ErrorIs(t, err, context.Canceled)

	assert.Zero(t, s.Len())
	assert.Zero(t, blobs.Len())
}

// barrierStore holds the first two queries until both have arrived, so two
// writers observe the same current version.
type barrierStore struct {
	*memory.Store

	arrived sync.WaitGroup
	queries atomic.Int32
}

func newBarrierStore() *barrierStore {
	b := &barrierStore{Store: memory.New()}
	b.arrived.Add(2)

	return b
}

func (b *barrierStore) Query(ctx context.Context, q store.Query) (*store.Page, error) {
	page, err := b.Store.Query(ctx, q)

	if b.queries.Add(1) <= 2 {
		b.arrived.Done()
		b.arrived.Wait()
	}

	return page, err
}

func race(t *testing.T, svc *resource.Service) []error {
	t.Helper()

	errs := make([]error, 2)

	var wg sync.WaitGroup
	for i := range 2 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, errs[i] = svc.StoreNewVersion(context.Background(), resource.StoreRequest{
				ProjectID: projectID,
				Path:      "race.txt",
				Author:    fmt.Sprintf("writer-%d", i),
				Content:   []byte(fmt.Sprintf("content-%d", i)),
			})
		}()
	}

	wg.Wait()

	return errs
}

func TestStoreNewVersion_RaceRejectsSecondWriter(t *testing.T) {
	t.Parallel()

	s := newBarrierStore()
	svc := newRaceService(t, s)
	before := testutil.ToFloat64(resource.VersionConflicts)

	errs := race(t, svc)

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, store.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
	assert.InDelta(t, before+1, testutil.ToFloat64(resource.VersionConflicts), 0.5)

	versions, err := svc.ListVersions(context.Background(), projectID, "race.txt")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].Index)

	data, _, err := svc.RetrieveContent(context.Background(), projectID, "race.txt", 1)
	require.NoError(t, err, "the winner's content must survive the loser's cleanup")
	assert.Contains(t, string(data), "content-")
}

func TestStoreNewVersion_RaceLastWriterWins(t *testing.T) {
	t.Parallel()

	s := newBarrierStore()
	svc := newRaceService(t, s, resource.WithLastWriterWins())

	for _, err := range race(t, svc) {
		require.NoError(t, err)
	}

	versions, err := svc.ListVersions(context.Background(), projectID, "race.txt")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].Index)

	data, _, err := svc.RetrieveContent(context.Background(), projectID, "race.txt", 1)
	require.NoError(t, err)
	assert.Contains(t, string(data), "content-")
}

// ==================== Assignment Tests ====================

func TestResourceAssignments(t *testing.T) {
	t.Parallel()

	f := newTestFixture(t)
	ctx := context.Background()

	_, err := f.svc.AssignResource(ctx, projectID, "docs/readme.txt", "carol")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	upload(t, f.svc, "docs/readme.txt", "alice", "x")
	upload(t, f.svc, "src/main.go", "alice", "x")

	_, err = f.svc.AssignResource(ctx, projectID, "docs/readme.txt", "carol")
	require.NoError(t, err)

	_, err = f.svc.AssignResource(ctx, projectID, "src/main.go", "carol")
	require.NoError(t, err)

	assigned, err := f.svc.ListAssignedResources(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, assigned, 2)
	assert.Equal(t, "docs/readme.txt", assigned[0].Path)
	assert.Equal(t, "src/main.go", assigned[1].Path)

	require.NoError(t, f.svc.UnassignResource(ctx, projectID, "docs/readme.txt", "carol"))
	require.NoError(t, f.svc.UnassignResource(ctx, projectID, "docs/readme.txt", "carol"))

	assigned, err = f.svc.ListAssignedResources(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, "src/main.go", assigned[0].Path)

	_, err = f.svc.ListAssignedResources(ctx, "")
	assert.True(t, apperr.IsValidation(err))
}

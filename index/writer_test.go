package index_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/slackmgr/projectindex/index"
	"github.com/slackmgr/projectindex/logging"
	"github.com/slackmgr/projectindex/memory"
	"github.com/slackmgr/projectindex/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEntity struct {
	kind    string
	value   string
	failFor string
}

func (e *testEntity) Kind() string { return e.kind }

func (e *testEntity) EncodeRecord(p index.Policy) (json.RawMessage, error) {
	if e.failFor != "" && p.Name == e.failFor {
		return nil, errors.New("cannot encode")
	}

	return json.Marshal(map[string]string{"index": p.Name, "value": e.value})
}

// flakyStore wraps a memory store and fails batches for selected partitions.
type flakyStore struct {
	*memory.Store

	mu        sync.Mutex
	failures  map[string]int
	permanent map[string]error
	calls     atomic.Int32
}

func newFlakyStore() *flakyStore {
	return &flakyStore{
		Store:     memory.New(),
		failures:  make(map[string]int),
		permanent: make(map[string]error),
	}
}

func (f *flakyStore) BatchSubmit(ctx context.Context, ops []store.Op) error {
	f.calls.Add(1)

	if len(ops) > 0 {
		pk := ops[0].Record.PartitionKey

		f.mu.Lock()
		err, permanent := f.permanent[pk]
		remaining := f.failures[pk]
		if remaining > 0 {
			f.failures[pk] = remaining - 1
		}
		f.mu.Unlock()

		if permanent {
			return err
		}

		if remaining > 0 {
			return fmt.Errorf("throttled: %w", store.ErrUnavailable)
		}
	}

	return f.Store.BatchSubmit(ctx, ops)
}

func newTestWriter(t *testing.T, s store.Store, opts ...index.Option) *index.Writer {
	t.Helper()

	opts = append([]index.Option{index.WithBackoff(time.Millisecond, 4*time.Millisecond)}, opts...)

	w, err := index.NewWriter(s, logging.Nop(), opts...)
	require.NoError(t, err)

	return w
}

func projectPolicies(id string) []index.Policy {
	return index.ProjectPolicies{}.All(id, "InProgress", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

// ==================== Writer Tests ====================

func TestNewWriter_Validation(t *testing.T) {
	t.Parallel()

	_, err := index.NewWriter(nil, logging.Nop())
	require.Error(t, err)

	_, err = index.NewWriter(memory.New(), nil)
	require.Error(t, err)

	_, err = index.NewWriter(memory.New(), logging.Nop(), index.WithConcurrency(0))
	require.ErrorContains(t, err, "concurrency")

	_, err = index.NewWriter(memory.New(), logging.Nop(), index.WithMaxRetries(-1))
	require.ErrorContains(t, err, "retries")

	_, err = index.NewWriter(memory.New(), logging.Nop(), index.WithBackoff(time.Second, time.Millisecond))
	require.ErrorContains(t, err, "backoff")
}

func TestWriter_WriteAllAndDeleteAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New()
	w := newTestWriter(t, s)
	policies := projectPolicies("p1")

	require.NoError(t, w.WriteAll(ctx, &testEntity{kind: "write_delete", value: "v"}, policies))
	assert.Equal(t, 3, s.Len())

	for _, p := range policies {
		rec, err := s.Get(ctx, p.PartitionKey, p.SortKey)
		require.NoError(t, err)
		assert.JSONEq(t, fmt.Sprintf(`{"index":%q,"value":"v"}`, p.Name), string(rec.Body))
		assert.Equal(t, int64(1), rec.Version)
	}

	require.NoError(t, w.DeleteAll(ctx, "write_delete", policies))
	assert.Zero(t, s.Len())

	require.NoError(t, w.DeleteAll(ctx, "write_delete", policies))
	require.NoError(t, w.WriteAll(ctx, &testEntity{kind: "write_delete"}, nil))
}

func TestWriter_WriteAll_FirstWriteVersion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New()
	w := newTestWriter(t, s)
	p := index.ProjectPolicies{}.ByID("p1")

	require.NoError(t, w.WriteAll(ctx, &testEntity{kind: "first_version"}, []index.Policy{p}))

	rec, err := s.Get(ctx, p.PartitionKey, p.SortKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version)
}

func TestWriter_WriteAll_EncodeErrorWritesNothing(t *testing.T) {
	t.Parallel()

	s := memory.New()
	w := newTestWriter(t, s)

	err := w.WriteAll(context.Background(), &testEntity{kind: "encode", failFor: index.NameProjectByStateDesc}, projectPolicies("p1"))
	require.ErrorContains(t, err, "cannot encode")
	assert.Zero(t, s.Len())
}

func TestWriter_WriteAll_MustNotExist(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New()
	w := newTestWriter(t, s)
	policies := index.ResourcePolicies{}.Store("p1", "a.txt", 1)

	require.NoError(t, w.WriteAll(ctx, &testEntity{kind: "must_not_exist", value: "first"}, policies, index.WithMustNotExist()))

	err := w.WriteAll(ctx, &testEntity{kind: "must_not_exist", value: "second"}, policies, index.WithMustNotExist())
	require.ErrorIs(t, err, store.ErrConflict)
	assert.False(t, index.IsPartialWrite(err), "single-partition write cannot be partial")

	rec, err := s.Get(ctx, policies[1].PartitionKey, policies[1].SortKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"index":"resourceVersion","value":"first"}`, string(rec.Body))
}

func TestWriter_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newFlakyStore()
	s.failures["projects_byState_InProgress_asc"] = 2

	w := newTestWriter(t, s)
	before := testutil.ToFloat64(index.Retries.WithLabelValues("retry_ok"))

	require.NoError(t, w.WriteAll(ctx, &testEntity{kind: "retry_ok"}, projectPolicies("p1")))
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, int32(5), s.calls.Load())
	assert.InDelta(t, before+2, testutil.ToFloat64(index.Retries.WithLabelValues("retry_ok")), 0)
}

func TestWriter_GivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	s := newFlakyStore()
	s.failures["projects_p1"] = 10

	w := newTestWriter(t, s, index.WithMaxRetries(1))

	err := w.WriteAll(context.Background(), &testEntity{kind: "give_up"}, []index.Policy{index.ProjectPolicies{}.ByID("p1")})
	require.ErrorIs(t, err, store.ErrUnavailable)
	assert.Equal(t, int32(2), s.calls.Load())
}

func TestWriter_DoesNotRetryPermanentErrors(t *testing.T) {
	t.Parallel()

	s := newFlakyStore()
	s.permanent["projects_p1"] = errors.New("access denied")

	w := newTestWriter(t, s)

	err := w.WriteAll(context.Background(), &testEntity{kind: "permanent"}, []index.Policy{index.ProjectPolicies{}.ByID("p1")})
	require.ErrorContains(t, err, "access denied")
	assert.Equal(t, int32(1), s.calls.Load())
}

func TestWriter_PartialWrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newFlakyStore()
	s.permanent["projects_byState_InProgress_desc"] = errors.New("disk full")

	w := newTestWriter(t, s)
	before := testutil.ToFloat64(index.PartialFailures.WithLabelValues("partial"))

	err := w.WriteAll(ctx, &testEntity{kind: "partial"}, projectPolicies("p1"))
	require.Error(t, err)

	var partial *index.PartialWriteError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "partial", partial.Entity)
	assert.Equal(t, "write", partial.Op)
	assert.Len(t, partial.Written, 2)
	require.Len(t, partial.Failed, 1)
	assert.Equal(t, "projects_byState_InProgress_desc", partial.Failed[0].PartitionKey)
	assert.ErrorContains(t, err, "disk full")

	assert.Equal(t, 2, s.Len())
	assert.InDelta(t, before+1, testutil.ToFloat64(index.PartialFailures.WithLabelValues("partial")), 0)
}

func TestWriter_AllGroupsFailIsNotPartial(t *testing.T) {
	t.Parallel()

	s := newFlakyStore()
	for _, p := range projectPolicies("p1") {
		s.permanent[p.PartitionKey] = errors.New("down")
	}

	w := newTestWriter(t, s)

	err := w.WriteAll(context.Background(), &testEntity{kind: "all_fail"}, projectPolicies("p1"))
	require.Error(t, err)
	assert.False(t, index.IsPartialWrite(err))
}

func TestWriter_CanceledContextStopsRetrying(t *testing.T) {
	t.Parallel()

	s := newFlakyStore()
	s.failures["projects_p1"] = 100

	w := newTestWriter(t, s, index.WithBackoff(time.Hour, time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := w.WriteAll(ctx, &testEntity{kind: "canceled"}, []index.Policy{index.ProjectPolicies{}.ByID("p1")})
	require.Error(t, err)
	assert.True(t, store.IsRetryable(err))
}

func TestRegisterMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()

	require.NoError(t, index.RegisterMetrics(reg))
	require.NoError(t, index.RegisterMetrics(reg))
}

func TestExtendPartial(t *testing.T) {
	t.Parallel()

	byID := index.ProjectPolicies{}.ByID("p1")
	byState := index.ProjectPolicies{}.ByState("Completed", time.Now(), "p1")

	plain := index.ExtendPartial(errors.New("boom"), "extend", "transition", []index.Policy{byID}, byState)
	assert.Equal(t, []index.Policy{byID}, plain.Written)
	assert.Equal(t, byState, plain.Failed)
	assert.ErrorContains(t, plain, "boom")

	inner := &index.PartialWriteError{Entity: "extend", Op: "write", Written: byState[:1], Failed: byState[1:], Err: store.ErrConflict}
	merged := index.ExtendPartial(fmt.Errorf("wrapped: %w", inner), "extend", "transition", []index.Policy{byID}, byState)
	assert.Equal(t, []index.Policy{byID, byState[0]}, merged.Written)
	assert.Equal(t, byState[1:], merged.Failed)
	assert.ErrorIs(t, merged, store.ErrConflict)
}

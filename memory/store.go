// Package memory provides an in-process implementation of [store.Store].
//
// It is intended for tests, dry runs and the CLI's --backend=memory mode.
// Every batch is applied atomically regardless of how many partitions it
// spans.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/slackmgr/projectindex/store"
)

// Store is an in-memory [store.Store]. The zero value is not usable; create
// one with [New].
type Store struct {
	mu         sync.RWMutex
	partitions map[string]map[string]store.Record
	opts       *Options
}

var _ store.Store = (*Store)(nil)

// New creates an empty Store.
func New(opts ...Option) *Store {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Store{
		partitions: make(map[string]map[string]store.Record),
		opts:       options,
	}
}

func (s *Store) Put(ctx context.Context, rec *store.Record, expectedVersion *int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Join(store.ErrUnavailable, err)
	}

	if err := validateKey(rec.PartitionKey, rec.SortKey); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.lookup(rec.PartitionKey, rec.SortKey)

	if expectedVersion != nil {
		switch {
		case *expectedVersion == 0 && exists:
			return 0, fmt.Errorf("record %s/%s already exists: %w", rec.PartitionKey, rec.SortKey, store.ErrConflict)
		case *expectedVersion != 0 && (!exists || existing.Version != *expectedVersion):
			return 0, fmt.Errorf("record %s/%s version mismatch: %w", rec.PartitionKey, rec.SortKey, store.ErrConflict)
		}
	}

	version := existing.Version + 1
	s.put(store.Record{
		PartitionKey: rec.PartitionKey,
		SortKey:      rec.SortKey,
		Body:         slices.Clone(rec.Body),
		Version:      version,
	})

	return version, nil
}

func (s *Store) Get(ctx context.Context, partitionKey, sortKey string) (*store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(store.ErrUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.lookup(partitionKey, sortKey)
	if !ok {
		return nil, store.ErrNotFound
	}

	rec.Body = slices.Clone(rec.Body)

	return &rec, nil
}

func (s *Store) Query(ctx context.Context, q store.Query) (*store.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(store.ErrUnavailable, err)
	}

	after, hasCursor, err := store.DecodeCursor(q.Cursor)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.opts.defaultPageSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	partition := s.partitions[q.PartitionKey]

	keys := make([]string, 0, len(partition))
	for sk := range partition {
		if hasCursor && sk <= after {
			continue
		}

		if q.Matches(sk) {
			keys = append(keys, sk)
		}
	}

	slices.Sort(keys)

	page := &store.Page{}

	for i, sk := range keys {
		if i == limit {
			page.Cursor = store.EncodeCursor(keys[i-1])
			break
		}

		rec := partition[sk]
		rec.Body = slices.Clone(rec.Body)
		page.Records = append(page.Records, &rec)
	}

	return page, nil
}

func (s *Store) BatchSubmit(ctx context.Context, ops []store.Op) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(store.ErrUnavailable, err)
	}

	for _, op := range ops {
		if err := validateKey(op.Record.PartitionKey, op.Record.SortKey); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range ops {
		if op.Kind != store.OpPut || !op.MustNotExist {
			continue
		}

		if _, exists := s.lookup(op.Record.PartitionKey, op.Record.SortKey); exists {
			return fmt.Errorf("record %s/%s already exists: %w", op.Record.PartitionKey, op.Record.SortKey, store.ErrConflict)
		}
	}

	for _, op := range ops {
		switch op.Kind {
		case store.OpPut:
			rec := op.Record
			rec.Body = slices.Clone(rec.Body)
			rec.Version = op.Record.Version + 1
			s.put(rec)
		case store.OpDelete:
			s.delete(op.Record.PartitionKey, op.Record.SortKey)
		default:
			return fmt.Errorf("unknown batch operation kind %d", op.Kind)
		}
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, partitionKey, sortKey string) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(store.ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.delete(partitionKey, sortKey)

	return nil
}

// Len returns the total number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, p := range s.partitions {
		n += len(p)
	}

	return n
}

// Partitions returns the names of all non-empty partitions in sorted order.
func (s *Store) Partitions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.partitions))
	for name := range s.partitions {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func (s *Store) lookup(partitionKey, sortKey string) (store.Record, bool) {
	rec, ok := s.partitions[partitionKey][sortKey]
	return rec, ok
}

func (s *Store) put(rec store.Record) {
	partition, ok := s.partitions[rec.PartitionKey]
	if !ok {
		partition = make(map[string]store.Record)
		s.partitions[rec.PartitionKey] = partition
	}

	partition[rec.SortKey] = rec
}

func (s *Store) delete(partitionKey, sortKey string) {
	partition, ok := s.partitions[partitionKey]
	if !ok {
		return
	}

	delete(partition, sortKey)

	if len(partition) == 0 {
		delete(s.partitions, partitionKey)
	}
}

func validateKey(partitionKey, sortKey string) error {
	if partitionKey == "" {
		return errors.New("partition key cannot be empty")
	}

	if sortKey == "" {
		return errors.New("sort key cannot be empty")
	}

	return nil
}

// Package bolt provides an embedded, single-file implementation of
// [store.Store] on top of bbolt.
//
// Each partition is a top-level bucket and each sort key a key inside it, so
// bbolt's byte-ordered cursors give the sort order queries need. Rows are
// encoded with msgpack. Every batch is applied in one bolt transaction and is
// atomic regardless of how many partitions it spans.
package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/slackmgr/projectindex/store"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

// DefaultFile is the data file used when no path is given, relative to the
// XDG data home.
const DefaultFile = "projectindex/records.db"

// row is the stored form of a record. Keys live in the bucket and cursor.
type row struct {
	Version   int64     `msgpack:"v"`
	Body      []byte    `msgpack:"b"`
	UpdatedAt time.Time `msgpack:"t"`
}

// Store is a bbolt-backed [store.Store].
type Store struct {
	db   *bbolt.DB
	path string
	opts *Options
}

var _ store.Store = (*Store)(nil)

// DefaultPath returns the data file under the XDG data home, creating its
// parent directory.
func DefaultPath() (string, error) {
	path, err := xdg.DataFile(DefaultFile)
	if err != nil {
		return "", fmt.Errorf("failed to resolve data file path: %w", err)
	}

	return path, nil
}

// Open opens (or creates) the database at path. An empty path means
// [DefaultPath].
func Open(path string, opts ...Option) (*Store, error) {
	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}

	if err := o.validate(); err != nil {
		return nil, fmt.Errorf("invalid bolt store configuration: %w", err)
	}

	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	bopt := *bbolt.DefaultOptions
	bopt.Timeout = o.openTimeout
	bopt.NoSync = o.noSync
	bopt.FreelistType = bbolt.FreelistMapType

	db, err := bbolt.Open(path, 0o600, &bopt)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", path, err)
	}

	return &Store{db: db, path: path, opts: o}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close bolt database %s: %w", s.path, err)
	}

	return nil
}

func (s *Store) Put(ctx context.Context, rec *store.Record, expectedVersion *int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Join(store.ErrUnavailable, err)
	}

	if rec == nil {
		return 0, errors.New("record cannot be nil")
	}

	if err := validateKey(rec.PartitionKey, rec.SortKey); err != nil {
		return 0, err
	}

	var version int64

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(rec.PartitionKey))
		if err != nil {
			return err
		}

		existing, exists, err := readRow(bucket, rec.SortKey)
		if err != nil {
			return err
		}

		if expectedVersion != nil {
			switch {
			case *expectedVersion == 0 && exists:
				return fmt.Errorf("record %s/%s already exists: %w", rec.PartitionKey, rec.SortKey, store.ErrConflict)
			case *expectedVersion != 0 && (!exists || existing.Version != *expectedVersion):
				return fmt.Errorf("record %s/%s version mismatch: %w", rec.PartitionKey, rec.SortKey, store.ErrConflict)
			}
		}

		version = existing.Version + 1

		return s.writeRow(bucket, rec.SortKey, version, rec.Body)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to put record %s/%s: %w", rec.PartitionKey, rec.SortKey, err)
	}

	return version, nil
}

func (s *Store) Get(ctx context.Context, partitionKey, sortKey string) (*store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(store.ErrUnavailable, err)
	}

	if err := validateKey(partitionKey, sortKey); err != nil {
		return nil, err
	}

	var rec *store.Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(partitionKey))
		if bucket == nil {
			return store.ErrNotFound
		}

		r, exists, err := readRow(bucket, sortKey)
		if err != nil {
			return err
		}

		if !exists {
			return store.ErrNotFound
		}

		rec = r.record(partitionKey, sortKey)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// Query walks the partition bucket with a cursor, starting at the later of
// the query's lower bound and the page cursor.
func (s *Store) Query(ctx context.Context, q store.Query) (*store.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(store.ErrUnavailable, err)
	}

	if q.PartitionKey == "" {
		return nil, errors.New("partition key cannot be empty")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.opts.defaultPageSize
	}

	after, hasCursor, err := store.DecodeCursor(q.Cursor)
	if err != nil {
		return nil, err
	}

	page := &store.Page{}

	err = s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(q.PartitionKey))
		if bucket == nil {
			return nil
		}

		c := bucket.Cursor()

		start := []byte(nil)
		if q.Operator != store.LessThan {
			start = []byte(q.SortKey)
		}

		if hasCursor && bytes.Compare([]byte(after), start) > 0 {
			start = []byte(after)
		}

		var k, v []byte
		if start == nil {
			k, v = c.First()
		} else {
			k, v = c.Seek(start)
		}

		for ; k != nil; k, v = c.Next() {
			sk := string(k)

			if hasCursor && sk <= after {
				continue
			}

			if !q.Matches(sk) {
				if q.Operator == store.GreaterThan && sk == q.SortKey {
					continue
				}

				break
			}

			if len(page.Records) == limit {
				page.Cursor = store.EncodeCursor(page.Records[limit-1].SortKey)
				break
			}

			var r row
			if err := msgpack.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to decode record %s/%s: %w", q.PartitionKey, sk, err)
			}

			page.Records = append(page.Records, r.record(q.PartitionKey, sk))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return page, nil
}

// BatchSubmit applies ops in one bolt transaction. Any failed condition
// rolls back the whole batch.
func (s *Store) BatchSubmit(ctx context.Context, ops []store.Op) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(store.ErrUnavailable, err)
	}

	if len(ops) == 0 {
		return nil
	}

	for _, op := range ops {
		if err := validateKey(op.Record.PartitionKey, op.Record.SortKey); err != nil {
			return err
		}
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, op := range ops {
			if op.Kind == store.OpDelete {
				if err := deleteKey(tx, op.Record.PartitionKey, op.Record.SortKey); err != nil {
					return err
				}

				continue
			}

			bucket, err := tx.CreateBucketIfNotExists([]byte(op.Record.PartitionKey))
			if err != nil {
				return err
			}

			if op.MustNotExist && bucket.Get([]byte(op.Record.SortKey)) != nil {
				return fmt.Errorf("record %s/%s already exists: %w", op.Record.PartitionKey, op.Record.SortKey, store.ErrConflict)
			}

			if err := s.writeRow(bucket, op.Record.SortKey, op.Record.Version+1, op.Record.Body); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to submit batch of %d operations: %w", len(ops), err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, partitionKey, sortKey string) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(store.ErrUnavailable, err)
	}

	if err := validateKey(partitionKey, sortKey); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return deleteKey(tx, partitionKey, sortKey)
	})
	if err != nil {
		return fmt.Errorf("failed to delete record %s/%s: %w", partitionKey, sortKey, err)
	}

	return nil
}

// Partitions lists the partition keys present in the file, in order.
func (s *Store) Partitions(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(store.ErrUnavailable, err)
	}

	var partitions []string

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			partitions = append(partitions, string(name))
			return nil
		})
	})

	return partitions, err
}

func (s *Store) writeRow(bucket *bbolt.Bucket, sortKey string, version int64, body []byte) error {
	encoded, err := msgpack.Marshal(&row{
		Version:   version,
		Body:      body,
		UpdatedAt: s.opts.clock().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	return bucket.Put([]byte(sortKey), encoded)
}

func readRow(bucket *bbolt.Bucket, sortKey string) (*row, bool, error) {
	v := bucket.Get([]byte(sortKey))
	if v == nil {
		return &row{}, false, nil
	}

	var r row
	if err := msgpack.Unmarshal(v, &r); err != nil {
		return nil, false, fmt.Errorf("failed to decode record: %w", err)
	}

	return &r, true, nil
}

// deleteKey removes a key and drops the partition bucket once it is empty.
func deleteKey(tx *bbolt.Tx, partitionKey, sortKey string) error {
	bucket := tx.Bucket([]byte(partitionKey))
	if bucket == nil {
		return nil
	}

	if err := bucket.Delete([]byte(sortKey)); err != nil {
		return err
	}

	if k, _ := bucket.Cursor().First(); k == nil {
		return tx.DeleteBucket([]byte(partitionKey))
	}

	return nil
}

func (r *row) record(partitionKey, sortKey string) *store.Record {
	body := make([]byte, len(r.Body))
	copy(body, r.Body)

	return &store.Record{
		PartitionKey: partitionKey,
		SortKey:      sortKey,
		Body:         body,
		Version:      r.Version,
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

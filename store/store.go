// Package store defines the contract of the underlying key-value store: a
// two-part key (partition key and sort key), ordered by sort key within a
// partition only, with optimistic version tokens and single-request batches.
//
// Backends live in their own packages (dynamodb, postgres, bolt, memory).
package store

import (
	"context"
	"encoding/json"
	"strings"
)

// Operator selects how a [Query] compares sort keys against its SortKey.
// Write paths ignore it.
type Operator int

const (
	// Equal matches the sort key exactly.
	Equal Operator = iota

	// GreaterThan matches sort keys strictly greater than SortKey that still
	// start with it. An empty SortKey matches the whole partition.
	GreaterThan

	// LessThan matches sort keys strictly less than SortKey.
	LessThan
)

func (o Operator) String() string {
	switch o {
	case Equal:
		return "eq"
	case GreaterThan:
		return "gt"
	case LessThan:
		return "lt"
	default:
		return "unknown"
	}
}

// Record is one physical row.
//
// Version is the optimistic concurrency token. It is assigned by the store:
// [Store.Put] returns the new token, and batch puts store Record.Version+1,
// so callers pass the last token they read (zero for new records).
type Record struct {
	PartitionKey string
	SortKey      string
	Body         json.RawMessage
	Version      int64
}

// Query reads one partition.
type Query struct {
	PartitionKey string
	SortKey      string
	Operator     Operator

	// Limit is the page size. Zero or less lets the backend choose.
	Limit int

	// Cursor is the opaque cursor returned by a previous page, or empty.
	Cursor string
}

// Matches reports whether sk satisfies the query's sort key condition.
func (q Query) Matches(sk string) bool {
	switch q.Operator {
	case Equal:
		return sk == q.SortKey
	case GreaterThan:
		return sk > q.SortKey && strings.HasPrefix(sk, q.SortKey)
	case LessThan:
		return sk < q.SortKey
	default:
		return false
	}
}

// Page is one page of query results in ascending sort key order. Cursor is
// empty when no further records remain.
type Page struct {
	Records []*Record
	Cursor  string
}

// OpKind is the kind of a batch operation.
type OpKind int

const (
	OpPut OpKind = iota
	OpDelete
)

// Op is one operation in a batch submitted with [Store.BatchSubmit].
type Op struct {
	Kind   OpKind
	Record Record

	// MustNotExist rejects a put with [ErrConflict] when a record with the
	// same key already exists.
	MustNotExist bool
}

// PutOp returns a put operation for rec.
func PutOp(rec Record) Op {
	return Op{Kind: OpPut, Record: rec}
}

// DeleteOp returns a delete operation for the given key.
func DeleteOp(partitionKey, sortKey string) Op {
	return Op{Kind: OpDelete, Record: Record{PartitionKey: partitionKey, SortKey: sortKey}}
}

// Store is implemented by every backend.
//
// A batch is submitted as one request. Backends apply a batch whose
// operations share a partition atomically; batches spanning partitions carry
// no atomicity guarantee.
type Store interface {
	// Put writes rec. When expectedVersion is non-nil the write only succeeds
	// if the stored version equals it (zero meaning the record must not
	// exist); otherwise [ErrConflict] is returned. Put returns the new
	// version token.
	Put(ctx context.Context, rec *Record, expectedVersion *int64) (int64, error)

	// Get returns [ErrNotFound] when the record does not exist.
	Get(ctx context.Context, partitionKey, sortKey string) (*Record, error)

	Query(ctx context.Context, q Query) (*Page, error)

	BatchSubmit(ctx context.Context, ops []Op) error

	// Delete is a no-op when the record does not exist.
	Delete(ctx context.Context, partitionKey, sortKey string) error
}

// QueryAll runs q and follows cursors until the query is exhausted, calling
// fn for every record in order.
func QueryAll(ctx context.Context, s Store, q Query, fn func(*Record) error) error {
	for {
		page, err := s.Query(ctx, q)
		if err != nil {
			return err
		}

		for _, rec := range page.Records {
			if err := fn(rec); err != nil {
				return err
			}
		}

		if page.Cursor == "" {
			return nil
		}

		q.Cursor = page.Cursor
	}
}

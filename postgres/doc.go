// Package postgres stores records in a single PostgreSQL table and
// implements [github.com/slackmgr/projectindex/store.Store] on top of it.
//
// Rows are keyed by (pk, sk). The sk column is declared with the "C"
// collation, so ORDER BY and range predicates compare raw bytes and listings
// come back in the same order as every other backend.
//
//	client := postgres.New(
//	    postgres.WithUser("projidx"),
//	    postgres.WithDatabase("projectindex"),
//	    postgres.WithRecordsTable("records"),
//	)
//	if err := client.Connect(ctx); err != nil { ... }
//	defer client.Close(ctx)
//	if err := client.Init(ctx, false); err != nil { ... }
//
// [Client.Init] creates the table when missing and, unless told to skip it,
// checks every column's type and nullability against information_schema.
//
// # Versions
//
// Each row carries a version starting at 1. [Client.Put] increments it in
// the same statement that writes the body and returns the result. A guarded
// put that matches no row (wrong version, or an existing row when the row
// must not exist) fails with [store.ErrConflict].
//
// # Batches
//
// [Client.BatchSubmit] queues every operation in one pgx batch and runs it
// inside a transaction, so a batch commits or rolls back as a whole even when
// it spans partitions. Serialization failures, deadlocks and connection
// errors map to [store.ErrUnavailable] and may be retried.
//
// # Paging
//
// [Client.Query] pages with a keyset predicate on sk. The cursor encodes the
// last sort key returned; a query without a limit uses
// [WithDefaultPageSize].
//
// Pool sizing, lifetimes and health checks are tuned with the WithPool*
// options. TLS is controlled by [WithSSLMode] and defaults to
// [SSLModePrefer].
package postgres

// Package dynamodb provides a DynamoDB-backed implementation of
// [github.com/slackmgr/projectindex/store.Store].
//
// # Overview
//
// The package uses a single-table design. Every record is an item keyed by
// the record's partition key ("pk") and sort key ("sk"), with three further
// attributes:
//
//   - body:       the JSON-encoded record body
//   - version:    a number incremented on every write, used for optimistic
//     concurrency checks
//   - updated_at: the RFC 3339 time of the last write
//
// # Getting Started
//
// Create a [Client] with [New], supplying an AWS config, the DynamoDB table
// name, and any [Option] values you need:
//
//	client := dynamodb.New(&awsCfg, tableName, dynamodb.WithDefaultPageSize(500))
//	if err := client.Connect(); err != nil { ... }
//	if err := client.Init(ctx, false); err != nil { ... }
//
// By default, [Client.Connect] creates an AWS SDK v2 DynamoDB client from the
// supplied [aws.Config]. Supply [WithAPI] to inject a custom or mock
// implementation.
//
// # Batches
//
// Batches of up to 100 operations are written with TransactWriteItems and
// succeed or fail as a whole. Larger batches fall back to BatchWriteItem in
// chunks of 25 with exponential backoff on unprocessed items; they are not
// atomic and may not carry must-not-exist conditions.
//
// # Errors
//
// Failed conditions map to [store.ErrConflict]. Throttling, transaction
// conflicts and deadlines map to [store.ErrUnavailable]. The original AWS
// error stays in the chain.
//
// # Concurrency
//
// [Client] is safe for concurrent use by multiple goroutines.
package dynamodb

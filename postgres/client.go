package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/slackmgr/projectindex/store"
)

var errNotConnected = errors.New("client is not connected")

// pool defines the interface for database operations.
// This interface is satisfied by *pgxpool.Pool and can be mocked for testing.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
	Ping(ctx context.Context) error
}

// Client is a [store.Store] backed by a single PostgreSQL table keyed by
// (pk, sk). Every batch runs in one transaction.
type Client struct {
	conn pool
	opts *options
}

var _ store.Store = (*Client)(nil)

func New(opts ...Option) *Client {
	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Client{opts: o}
}

func (c *Client) Connect(ctx context.Context) error {
	// Close existing connection if any to prevent leaks
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid Postgres db configuration: %w", err)
	}

	config, err := pgxpool.ParseConfig(c.opts.connectionString())
	if err != nil {
		return fmt.Errorf("failed to parse Postgres db connection string: %w", err)
	}

	if c.opts.poolMaxConnections != nil {
		config.MaxConns = *c.opts.poolMaxConnections
	}

	if c.opts.poolMinConnections != nil {
		config.MinConns = *c.opts.poolMinConnections
	}

	if c.opts.poolMinIdleConnections != nil {
		config.MinIdleConns = *c.opts.poolMinIdleConnections
	}

	if c.opts.poolMaxConnectionLifetime != nil {
		config.MaxConnLifetime = *c.opts.poolMaxConnectionLifetime
	}

	if c.opts.poolMaxConnectionIdleTime != nil {
		config.MaxConnIdleTime = *c.opts.poolMaxConnectionIdleTime
	}

	if c.opts.poolHealthCheckPeriod != nil {
		config.HealthCheckPeriod = *c.opts.poolHealthCheckPeriod
	}

	if c.opts.poolMaxConnectionLifetimeJitter != nil {
		config.MaxConnLifetimeJitter = *c.opts.poolMaxConnectionLifetimeJitter
	}

	conn, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create new Postgres connection pool: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping Postgres db: %w", err)
	}

	c.conn = conn

	return nil
}

func (c *Client) Close(_ context.Context) error {
	if c.conn == nil {
		return nil
	}

	c.conn.Close()

	c.conn = nil

	return nil
}

// Init creates the records table if it does not exist and, unless
// skipSchemaValidation is set, verifies its columns against
// information_schema.
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if c.conn == nil {
		return errNotConnected
	}

	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin init transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }() // No-op if committed

	for _, sql := range c.opts.createStatements() {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to execute create statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit init transaction: %w", err)
	}

	if skipSchemaValidation {
		return nil
	}

	query := "SELECT table_name, column_name, data_type, is_nullable FROM information_schema.columns WHERE table_schema = 'public' ORDER BY ordinal_position"

	rows, err := c.conn.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query information schema: %w", err)
	}

	defer rows.Close()

	infoRows := map[string]*dbRow{}

	for rows.Next() {
		var table, column string
		infoRow := &dbRow{}

		if err := rows.Scan(&table, &column, &infoRow.DataType, &infoRow.IsNullable); err != nil {
			return fmt.Errorf("failed to scan row from information schema: %w", err)
		}

		infoRows[table+"."+column] = infoRow
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating over rows from information schema: %w", err)
	}

	if err := c.opts.verifyCurrentDatabaseVersion(infoRows); err != nil {
		return fmt.Errorf("failed to verify current database version: %w", err)
	}

	return nil
}

// DropAllData drops the records table. Call Init again before reusing the
// client.
func (c *Client) DropAllData(ctx context.Context) error {
	if c.conn == nil {
		return errNotConnected
	}

	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin drop tables transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }() // No-op if committed

	for _, sql := range c.opts.dropStatements() {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to execute drop statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit drop tables transaction: %w", err)
	}

	return nil
}

// Put writes rec and returns the new version. A missing returned row means
// the version or must-not-exist condition did not hold.
func (c *Client) Put(ctx context.Context, rec *store.Record, expectedVersion *int64) (int64, error) {
	if c.conn == nil {
		return 0, errNotConnected
	}

	if rec == nil {
		return 0, errors.New("record cannot be nil")
	}

	if err := validateKey(rec.PartitionKey, rec.SortKey); err != nil {
		return 0, err
	}

	sql, args := c.putSQL(rec, expectedVersion)

	var version int64

	if err := c.conn.QueryRow(ctx, sql, args...).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("failed to write record %s/%s: %w", rec.PartitionKey, rec.SortKey, store.ErrConflict)
		}

		return 0, fmt.Errorf("failed to write record %s/%s: %w", rec.PartitionKey, rec.SortKey, mapError(err))
	}

	return version, nil
}

func (c *Client) Get(ctx context.Context, partitionKey, sortKey string) (*store.Record, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	if err := validateKey(partitionKey, sortKey); err != nil {
		return nil, err
	}

	sql := fmt.Sprintf("SELECT version, body FROM %s WHERE pk = $1 AND sk = $2", c.opts.recordsTable)

	rec := &store.Record{PartitionKey: partitionKey, SortKey: sortKey}

	var body []byte

	if err := c.conn.QueryRow(ctx, sql, partitionKey, sortKey).Scan(&rec.Version, &body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}

		return nil, fmt.Errorf("failed to get record %s/%s: %w", partitionKey, sortKey, mapError(err))
	}

	rec.Body = body

	return rec, nil
}

// Query reads one page of a partition in sort key order, resuming after the
// cursor's sort key. One row beyond the page size is read so that the final
// page carries no cursor.
func (c *Client) Query(ctx context.Context, q store.Query) (*store.Page, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	if q.PartitionKey == "" {
		return nil, errors.New("partition key cannot be empty")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = c.opts.defaultPageSize
	}

	after, hasCursor, err := store.DecodeCursor(q.Cursor)
	if err != nil {
		return nil, err
	}

	sql, args := c.querySQL(q, after, hasCursor, limit+1)

	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query partition %s: %w", q.PartitionKey, mapError(err))
	}

	defer rows.Close()

	records := make([]*store.Record, 0, limit)

	for rows.Next() {
		rec := &store.Record{PartitionKey: q.PartitionKey}

		var body []byte

		if err := rows.Scan(&rec.SortKey, &rec.Version, &body); err != nil {
			return nil, fmt.Errorf("failed to scan record in partition %s: %w", q.PartitionKey, err)
		}

		rec.Body = body
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over records in partition %s: %w", q.PartitionKey, mapError(err))
	}

	page := &store.Page{Records: records}

	if len(records) > limit {
		page.Records = records[:limit]
		page.Cursor = store.EncodeCursor(page.Records[limit-1].SortKey)
	}

	return page, nil
}

// BatchSubmit applies ops in one transaction, sent as a single pgx batch.
// A must-not-exist put that finds an existing row rolls the whole batch back
// with [store.ErrConflict].
func (c *Client) BatchSubmit(ctx context.Context, ops []store.Op) error {
	if c.conn == nil {
		return errNotConnected
	}

	if len(ops) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	for _, op := range ops {
		if err := validateKey(op.Record.PartitionKey, op.Record.SortKey); err != nil {
			return err
		}

		sql, args := c.batchOpSQL(op)
		batch.Queue(sql, args...)
	}

	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", mapError(err))
	}

	defer func() { _ = tx.Rollback(ctx) }() // No-op if committed

	if err := c.execBatch(ctx, tx, batch, ops); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch transaction: %w", mapError(err))
	}

	return nil
}

func (c *Client) Delete(ctx context.Context, partitionKey, sortKey string) error {
	if c.conn == nil {
		return errNotConnected
	}

	if err := validateKey(partitionKey, sortKey); err != nil {
		return err
	}

	sql := fmt.Sprintf("DELETE FROM %s WHERE pk = $1 AND sk = $2", c.opts.recordsTable)

	if _, err := c.conn.Exec(ctx, sql, partitionKey, sortKey); err != nil {
		return fmt.Errorf("failed to delete record %s/%s: %w", partitionKey, sortKey, mapError(err))
	}

	return nil
}

func (c *Client) execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, ops []store.Op) error {
	results := tx.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for _, op := range ops {
		tag, err := results.Exec()
		if err != nil {
			return fmt.Errorf("failed to write record %s/%s in batch: %w", op.Record.PartitionKey, op.Record.SortKey, mapError(err))
		}

		if op.MustNotExist && tag.RowsAffected() == 0 {
			return fmt.Errorf("record %s/%s already exists: %w", op.Record.PartitionKey, op.Record.SortKey, store.ErrConflict)
		}
	}

	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch results: %w", mapError(err))
	}

	return nil
}

// putSQL returns the statement and arguments for a single Put. Every variant
// returns the stored version so that a missing row signals a failed
// condition.
func (c *Client) putSQL(rec *store.Record, expectedVersion *int64) (string, []any) {
	table := c.opts.recordsTable
	args := []any{rec.PartitionKey, rec.SortKey, bodyParam(rec.Body), c.now()}

	switch {
	case expectedVersion == nil:
		return fmt.Sprintf("INSERT INTO %s AS t (pk, sk, version, body, updated_at) VALUES ($1, $2, 1, $3, $4) ON CONFLICT (pk, sk) DO UPDATE SET version = t.version + 1, body = EXCLUDED.body, updated_at = EXCLUDED.updated_at RETURNING version", table), args
	case *expectedVersion == 0:
		return fmt.Sprintf("INSERT INTO %s (pk, sk, version, body, updated_at) VALUES ($1, $2, 1, $3, $4) ON CONFLICT (pk, sk) DO NOTHING RETURNING version", table), args
	default:
		return fmt.Sprintf("UPDATE %s SET version = version + 1, body = $3, updated_at = $4 WHERE pk = $1 AND sk = $2 AND version = $5 RETURNING version", table), append(args, *expectedVersion)
	}
}

// batchOpSQL returns the statement for one batch operation. Batch puts store
// Record.Version+1.
func (c *Client) batchOpSQL(op store.Op) (string, []any) {
	table := c.opts.recordsTable

	if op.Kind == store.OpDelete {
		return fmt.Sprintf("DELETE FROM %s WHERE pk = $1 AND sk = $2", table), []any{op.Record.PartitionKey, op.Record.SortKey}
	}

	args := []any{op.Record.PartitionKey, op.Record.SortKey, op.Record.Version + 1, bodyParam(op.Record.Body), c.now()}

	if op.MustNotExist {
		return fmt.Sprintf("INSERT INTO %s (pk, sk, version, body, updated_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (pk, sk) DO NOTHING", table), args
	}

	return fmt.Sprintf("INSERT INTO %s (pk, sk, version, body, updated_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (pk, sk) DO UPDATE SET version = EXCLUDED.version, body = EXCLUDED.body, updated_at = EXCLUDED.updated_at", table), args
}

// querySQL returns a keyset query over one partition. fetch is the row limit
// including the look-ahead row.
func (c *Client) querySQL(q store.Query, after string, hasCursor bool, fetch int) (string, []any) {
	var b strings.Builder

	args := []any{q.PartitionKey}

	fmt.Fprintf(&b, "SELECT sk, version, body FROM %s WHERE pk = $1", c.opts.recordsTable)

	switch q.Operator {
	case store.Equal:
		args = append(args, q.SortKey)
		b.WriteString(" AND sk = $" + strconv.Itoa(len(args)))
	case store.GreaterThan:
		if q.SortKey != "" {
			args = append(args, q.SortKey)
			n := strconv.Itoa(len(args))
			b.WriteString(" AND sk > $" + n + " AND starts_with(sk, $" + n + ")")
		}
	case store.LessThan:
		args = append(args, q.SortKey)
		b.WriteString(" AND sk < $" + strconv.Itoa(len(args)))
	}

	if hasCursor {
		args = append(args, after)
		b.WriteString(" AND sk > $" + strconv.Itoa(len(args)))
	}

	args = append(args, fetch)
	b.WriteString(" ORDER BY sk LIMIT $" + strconv.Itoa(len(args)))

	return b.String(), args
}

func (c *Client) now() time.Time {
	return c.opts.clock().UTC()
}

// bodyParam maps an empty body to NULL.
func bodyParam(body []byte) any {
	if len(body) == 0 {
		return nil
	}

	return string(body)
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

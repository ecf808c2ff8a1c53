package postgres

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// validIdentifier matches valid PostgreSQL unquoted identifiers.
// Must start with letter or underscore, followed by letters, digits, or underscores.
var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// SSLMode represents PostgreSQL SSL connection modes.
type SSLMode string

const (
	SSLModeDisable    SSLMode = "disable"     // No SSL
	SSLModeAllow      SSLMode = "allow"       // Try non-SSL first, then SSL
	SSLModePrefer     SSLMode = "prefer"      // Try SSL first, then non-SSL (default)
	SSLModeRequire    SSLMode = "require"     // Only SSL (no certificate verification)
	SSLModeVerifyCA   SSLMode = "verify-ca"   // SSL with CA verification
	SSLModeVerifyFull SSLMode = "verify-full" // SSL with CA and hostname verification
)

// Option is a functional option for configuring a Client.
type Option func(*options)

type options struct {
	host                            string
	port                            int
	user                            string
	password                        string
	database                        string
	sslMode                         SSLMode
	poolMaxConnections              *int32
	poolMinConnections              *int32
	poolMinIdleConnections          *int32
	poolMaxConnectionLifetime       *time.Duration
	poolMaxConnectionIdleTime       *time.Duration
	poolHealthCheckPeriod           *time.Duration
	poolMaxConnectionLifetimeJitter *time.Duration
	recordsTable                    string
	defaultPageSize                 int
	clock                           func() time.Time
}

func newOptions() *options {
	return &options{
		host:            "localhost",
		port:            5432,
		sslMode:         SSLModePrefer,
		recordsTable:    "records",
		defaultPageSize: 1000,
		clock:           time.Now,
	}
}

func WithHost(host string) Option {
	return func(o *options) { o.host = host }
}

func WithPort(port int) Option {
	return func(o *options) { o.port = port }
}

func WithUser(user string) Option {
	return func(o *options) { o.user = user }
}

func WithPassword(password string) Option {
	return func(o *options) { o.password = password }
}

func WithDatabase(database string) Option {
	return func(o *options) { o.database = database }
}

func WithSSLMode(mode SSLMode) Option {
	return func(o *options) { o.sslMode = mode }
}

func WithPoolMaxConnections(n int32) Option {
	return func(o *options) { o.poolMaxConnections = &n }
}

func WithPoolMinConnections(n int32) Option {
	return func(o *options) { o.poolMinConnections = &n }
}

func WithPoolMinIdleConnections(n int32) Option {
	return func(o *options) { o.poolMinIdleConnections = &n }
}

func WithPoolMaxConnectionLifetime(d time.Duration) Option {
	return func(o *options) { o.poolMaxConnectionLifetime = &d }
}

func WithPoolMaxConnectionIdleTime(d time.Duration) Option {
	return func(o *options) { o.poolMaxConnectionIdleTime = &d }
}

func WithPoolHealthCheckPeriod(d time.Duration) Option {
	return func(o *options) { o.poolHealthCheckPeriod = &d }
}

func WithPoolMaxConnectionLifetimeJitter(d time.Duration) Option {
	return func(o *options) { o.poolMaxConnectionLifetimeJitter = &d }
}

// WithRecordsTable sets the table holding every record. The default is
// "records".
func WithRecordsTable(name string) Option {
	return func(o *options) { o.recordsTable = name }
}

// WithDefaultPageSize sets the page size used by queries that do not set a
// limit. The default is 1000.
func WithDefaultPageSize(n int) Option {
	return func(o *options) { o.defaultPageSize = n }
}

// WithClock overrides the clock used for the updated_at column.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

type dbRow struct {
	DataType   string
	IsNullable string
}

func (o *options) validate() error {
	if o.port < 1 || o.port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", o.port)
	}

	if o.user == "" {
		return errors.New("user is required")
	}

	if o.database == "" {
		return errors.New("database is required")
	}

	if !o.sslMode.isValid() {
		return fmt.Errorf("invalid SSL mode: %s", o.sslMode)
	}

	if err := validateTableName(o.recordsTable); err != nil {
		return fmt.Errorf("invalid records table name: %w", err)
	}

	if o.defaultPageSize < 1 {
		return errors.New("default page size must be greater than zero")
	}

	if o.clock == nil {
		return errors.New("clock cannot be nil")
	}

	return nil
}

func validateTableName(name string) error {
	if !validIdentifier.MatchString(name) {
		return fmt.Errorf("table name %q contains invalid characters", name)
	}

	return nil
}

// isValid returns true if the SSL mode is a valid PostgreSQL SSL mode.
func (s SSLMode) isValid() bool {
	switch s {
	case SSLModeDisable, SSLModeAllow, SSLModePrefer, SSLModeRequire, SSLModeVerifyCA, SSLModeVerifyFull:
		return true
	default:
		return false
	}
}

func (o *options) connectionString() string {
	host := net.JoinHostPort(o.host, strconv.Itoa(o.port))

	user := url.QueryEscape(o.user)

	if o.password != "" {
		user += ":" + url.QueryEscape(o.password)
	}

	return fmt.Sprintf("postgres://%s@%s/%s?sslmode=%s", user, host, o.database, o.sslMode)
}

// createStatements creates the records table. Sort keys use the "C"
// collation so that ORDER BY sk and range predicates compare bytes, the same
// order the other backends use.
func (o *options) createStatements() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (pk text NOT NULL, sk text COLLATE "C" NOT NULL, version BIGINT NOT NULL, body JSONB NULL, updated_at TIMESTAMP WITH TIME ZONE NOT NULL, PRIMARY KEY (pk, sk));`, o.recordsTable),
	}
}

func (o *options) dropStatements() []string {
	return []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", o.recordsTable),
	}
}

func (o *options) verifyCurrentDatabaseVersion(actualRows map[string]*dbRow) error {
	expectedRows := map[string]*dbRow{
		o.recordsTable + ".pk":         {DataType: "text", IsNullable: "NO"},
		o.recordsTable + ".sk":         {DataType: "text", IsNullable: "NO"},
		o.recordsTable + ".version":    {DataType: "bigint", IsNullable: "NO"},
		o.recordsTable + ".body":       {DataType: "jsonb", IsNullable: "YES"},
		o.recordsTable + ".updated_at": {DataType: "timestamp with time zone", IsNullable: "NO"},
	}

	for id, expectedRow := range expectedRows {
		actual, ok := actualRows[id]
		if !ok {
			return fmt.Errorf("expected row '%s' not found in current database schema", id)
		}

		if !strings.EqualFold(actual.DataType, expectedRow.DataType) {
			return fmt.Errorf("data type mismatch for '%s': expected %s, got %s", id, expectedRow.DataType, actual.DataType)
		}

		if !strings.EqualFold(actual.IsNullable, expectedRow.IsNullable) {
			return fmt.Errorf("nullability mismatch for '%s': expected %s, got %s", id, expectedRow.IsNullable, actual.IsNullable)
		}
	}

	return nil
}

package postgres

// Internals exposed to the postgres_test package.

func applied(opts []Option) *options {
	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}

	return o
}

func ExportValidate(opts ...Option) error {
	return applied(opts).validate()
}

func ExportConnectionString(opts ...Option) string {
	return applied(opts).connectionString()
}

func ExportCreateStatements(opts ...Option) []string {
	return applied(opts).createStatements()
}

func ExportDropStatements(opts ...Option) []string {
	return applied(opts).dropStatements()
}

func ExportVerifyDatabaseSchema(opts ...Option) func(map[string]*dbRow) error {
	return applied(opts).verifyCurrentDatabaseVersion
}

var ExportValidateTableName = validateTableName

type (
	DBRow = dbRow
	Pool  = pool
)

// SetPool replaces the connection pool, typically with a pgxmock pool.
func (c *Client) SetPool(p Pool) {
	c.conn = p
}

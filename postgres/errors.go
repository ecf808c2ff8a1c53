package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/slackmgr/projectindex/store"
)

// transientCodes are SQLSTATE codes worth retrying.
var transientCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57014": true, // query_canceled
	"53300": true, // too_many_connections
}

// mapError wraps err with the store error it corresponds to, keeping the
// original error in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" { // unique_violation
			return fmt.Errorf("%w: %w", store.ErrConflict, err)
		}

		if transientCodes[pgErr.Code] || strings.HasPrefix(pgErr.Code, "08") {
			return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
		}

		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}

	return err
}

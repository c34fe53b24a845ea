package enrollment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Transient PostgreSQL error codes and classes. Everything else the server reports is a data fault.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgClassConnection      = "08"
	pgClassResources       = "53"
	pgClassOperator        = "57"
)

// classify maps a driver error onto ErrStoreUnavailable or ErrStoreIntegrity, keeping the cause.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := pgErr.Code
		if code == pgSerializationFailure || code == pgDeadlockDetected || code == pgLockNotAvailable ||
			strings.HasPrefix(code, pgClassConnection) ||
			strings.HasPrefix(code, pgClassResources) ||
			strings.HasPrefix(code, pgClassOperator) {
			return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
		}
		return fmt.Errorf("%s: %w: %v", op, ErrStoreIntegrity, err)
	}
	// Timeouts, refused connections and a closed pool never reach the server.
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}

package db

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a requested record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when attempting to insert a duplicate record.
	ErrDuplicateKey = errors.New("duplicate key violation")

	// ErrUnavailable is returned when the store cannot be reached or rejects
	// work because of resource exhaustion. Callers skip the current cycle and
	// retry on the next tick.
	ErrUnavailable = errors.New("store unavailable")
)

// WrapError wraps database errors with additional context and maps them to custom error types.
func WrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	// Handle pgx specific errors
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", operation, ErrNotFound)
	}

	// Handle PostgreSQL errors
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505": // unique_violation
			return fmt.Errorf("%s: %w (constraint: %s)", operation, ErrDuplicateKey, pgErr.ConstraintName)
		case strings.HasPrefix(pgErr.Code, "08"): // connection exception
			return fmt.Errorf("%s: %w: %s", operation, ErrUnavailable, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "53"): // insufficient resources
			return fmt.Errorf("%s: %w: %s", operation, ErrUnavailable, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "57"): // operator intervention (shutdown etc.)
			return fmt.Errorf("%s: %w: %s", operation, ErrUnavailable, pgErr.Message)
		default:
			return fmt.Errorf("%s: database error [%s]: %w", operation, pgErr.Code, err)
		}
	}

	// Network-level failures reach the caller without a PgError
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %v", operation, ErrUnavailable, err)
	}

	return fmt.Errorf("%s: %w", operation, err)
}

// IsNotFound returns true if the error is an ErrNotFound error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateKey returns true if the error is an ErrDuplicateKey error.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// IsUnavailable returns true if the error is an ErrUnavailable error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

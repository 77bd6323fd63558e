package resilience

import (
	"errors"
	"net"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// Retryable SQLSTATE classes: connection exceptions, serialization failures,
// deadlocks and server shutdown.
var retryableSQLState = map[string]bool{
	"08000": true, "08003": true, "08006": true, "08001": true, "08004": true,
	"40001": true, "40P01": true,
	"57P01": true, "57P02": true, "57P03": true,
}

// IsTransient reports whether err is worth retrying: network timeouts and
// resets, pgx errors that never reached the server, and Postgres errors in a
// retryable SQLSTATE.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retryableSQLState[pgErr.Code]
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE)
}

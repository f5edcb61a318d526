package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sells-group/dwq/internal/resilience"
)

// ConnectivityError means the record store could not be reached. It is fatal
// to the operation in progress and is never retried here; retry is the
// caller's policy.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return "record store unavailable: " + e.Err.Error()
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// IsConnectivity reports whether err means the record store is unreachable,
// as opposed to a statement that reached the server and failed there.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}

	var ce *ConnectivityError
	if errors.As(err, &ce) {
		return true
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	// A server-side error means the connection worked, except class 08
	// (connection exception) and admin shutdown.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "57P01"
	}

	return resilience.IsTransient(err)
}

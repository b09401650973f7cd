package sqlstore

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes (SQLSTATE).
const (
	pgForeignKeyViolationCode = "23503"
	pgUniqueViolationCode     = "23505"
)

// isForeignKeyViolation reports whether err is a foreign-key constraint
// violation on either backend. pgx surfaces a typed error carrying the
// SQLSTATE; the sqlite driver only gives us the canonical constraint message.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolationCode
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// isUniqueViolation reports whether err is a unique constraint violation on
// either backend.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

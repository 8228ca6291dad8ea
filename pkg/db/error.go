package db

import (
	"errors"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation    = "23505"
	mysqlDuplicateEntry  = 1062
	sqliteUniqueFailedAs = "UNIQUE constraint failed"
)

// IsDuplicateKeyErr reports whether err is a unique constraint violation on any supported backend.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	// glebarez/sqlite surfaces constraint failures only through the message.
	msg := err.Error()
	return strings.Contains(msg, sqliteUniqueFailedAs) ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

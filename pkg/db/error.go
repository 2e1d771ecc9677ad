package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation   = "23505"
	pgLockNotAvailable  = "55P03"
	pgQueryCanceled     = "57014"
	mysqlDuplicateEntry = 1062
	mysqlLockWait       = 1205
)

var ErrTimeout = errors.New("store_timeout")

// TranslateErr wraps timeout-class errors in ErrTimeout and leaves the rest
// untouched.
func TranslateErr(err error) error {
	if err == nil || errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable) {
		return err
	}
	if IsTimeoutErr(err) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return true
	}

	// PostgreSQL (error code 23505)
	if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
		return true
	}

	// MySQL (error code 1062)
	if strings.Contains(err.Error(), "Error 1062") {
		return true
	}

	// SQLite (error code 2067)
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}

	return false
}

// DuplicateKeyMentions reports whether a duplicate-key error names the
// given column or constraint. Each driver reports the offending key
// differently, so the match is a substring test on the constraint name
// and the message.
func DuplicateKeyMentions(err error, name string) bool {
	if !IsDuplicateKeyErr(err) || name == "" {
		return false
	}
	name = strings.ToLower(name)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.Contains(strings.ToLower(pgErr.ConstraintName), name) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), name)
}

// IsTimeoutErr covers context deadlines and the lock/statement timeouts of
// each supported driver.
func IsTimeoutErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgQueryCanceled:
			return true
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlLockWait {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "database is locked")
}

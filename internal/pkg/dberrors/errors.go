package dberrors

import (
	"errors"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// IsConstraintError checks if the error is a SQLite constraint violation
// (unique, not-null, check, foreign key).
func IsConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

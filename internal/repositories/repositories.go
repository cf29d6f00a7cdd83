// package repositories provides persistence layer implementations for all model types.
package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/desertthunder/anilistx/internal/shared"
)

const pqUniqueViolation = "23505"

// isUniqueViolation reports whether err is a UNIQUE/PRIMARY KEY violation from sqlite3 or postgres.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}

func notFound(entity string, id any) error {
	return fmt.Errorf("%w: %s %v", shared.ErrNotFound, entity, id)
}

// now returns the current time truncated to microseconds, the precision both drivers round-trip.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"workshop-access-backend/internal/apperr"
)

const exclusionViolation = "23P01"

// mapWriteError turns a Postgres exclusion-constraint violation into a
// Conflict. The colliding row is not known at this point, so the conflict
// carries the requested window and a zero id.
func mapWriteError(err error, start, end time.Time, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
		return apperr.Conflict(conflictRole(pgErr.ConstraintName), 0, start, end)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func conflictRole(constraint string) string {
	switch {
	case strings.Contains(constraint, "manager"):
		return "manager"
	case strings.Contains(constraint, "user"):
		return "user"
	default:
		return "machine"
	}
}

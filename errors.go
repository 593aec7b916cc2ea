package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/imeyer/tsponsor/middleware"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a topic or record does not exist, or the
// record belongs to a different topic.
var ErrNotFound = errors.New("not found")

const pgForeignKeyViolation = "23503"

func isNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows) || errors.Is(err, middleware.ErrTopicNotFound) {
		return true
	}

	// A sponsored post or post inserted against a missing topic.
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// statusForError maps a handler error onto the HTTP status it is reported with.
func statusForError(err error) int {
	var verrs ValidationErrors

	switch {
	case err == nil:
		return http.StatusOK
	case isNotFound(err):
		return http.StatusNotFound
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// pathID parses a numeric path value. Anything that is not a positive
// integer cannot name a row, so it is reported as not found.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, ErrNotFound)
	}
	return id, nil
}

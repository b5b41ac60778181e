package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound se devuelve cuando el registro no existe.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate se devuelve cuando una restriccion unique rechaza la escritura.
	ErrDuplicate = errors.New("duplicate record")
)

const pgUniqueViolation = "23505"

// UniqueViolationError indica la columna que violo la restriccion unique.
type UniqueViolationError struct {
	Field      string
	Constraint string
}

func (e *UniqueViolationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("duplicate record (%s)", e.Constraint)
	}
	return fmt.Sprintf("duplicate %s", e.Field)
}

func (e *UniqueViolationError) Is(target error) bool {
	return target == ErrDuplicate
}

// asUniqueViolation traduce el error de Postgres 23505 a UniqueViolationError.
func asUniqueViolation(err error) (*UniqueViolationError, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return nil, false
	}
	return &UniqueViolationError{
		Field:      fieldFromConstraint(pgErr.ConstraintName),
		Constraint: pgErr.ConstraintName,
	}, true
}

func fieldFromConstraint(name string) string {
	switch {
	case strings.Contains(name, "email"):
		return "email"
	case strings.Contains(name, "username"):
		return "username"
	default:
		return ""
	}
}

package repository

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrConflict      = errors.New("unique constraint violated")
	ErrRelatedRecord = errors.New("foreign key constraint violated")
	ErrConstraint    = errors.New("check constraint violated")
	ErrRequiredField = errors.New("not null constraint violated")
	ErrInvalidValue  = errors.New("invalid input value")
	ErrInvalidDate   = errors.New("invalid date or time value")
	ErrUnavailable   = errors.New("database unavailable")
)

// DBError is a Postgres error translated into a client safe message.
// errors.Is matches both its Kind and the underlying *pgconn.PgError.
type DBError struct {
	Kind    error
	Message string
	Cause   *pgconn.PgError
}

func (e *DBError) Error() string {
	return e.Message
}

func (e *DBError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

var (
	uniqueConstraintRe = regexp.MustCompile(`unique constraint "(.+?)"`)
	columnRe           = regexp.MustCompile(`column "(.+?)"`)
)

// MapPgError translates Postgres errors by SQLSTATE; other errors are returned unchanged
func MapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	mapped := &DBError{Cause: pgErr}

	switch {
	case pgErr.Code == "23505":
		mapped.Kind = ErrConflict
		constraint := pgErr.ConstraintName
		if constraint == "" {
			if m := uniqueConstraintRe.FindStringSubmatch(pgErr.Message); m != nil {
				constraint = m[1]
			}
		}
		mapped.Message = "A record with this information already exists"
		if strings.Contains(constraint, "email") {
			mapped.Message = "Email address is already in use"
		}
	case pgErr.Code == "23503":
		mapped.Kind = ErrRelatedRecord
		mapped.Message = "Operation failed due to related records in other tables"
	case pgErr.Code == "23514":
		mapped.Kind = ErrConstraint
		mapped.Message = "The provided data failed validation rules"
	case pgErr.Code == "23502":
		mapped.Kind = ErrRequiredField
		column := pgErr.ColumnName
		if column == "" {
			column = "unknown"
			if m := columnRe.FindStringSubmatch(pgErr.Message); m != nil {
				column = m[1]
			}
		}
		mapped.Message = "The " + column + " field is required"
	case pgErr.Code == "22P02":
		mapped.Kind = ErrInvalidValue
		mapped.Message = "Invalid data format"
		if strings.Contains(pgErr.Message, "enum") {
			mapped.Message = "Invalid enum value provided"
		}
	case pgErr.Code == "22008":
		mapped.Kind = ErrInvalidDate
		mapped.Message = "Invalid date or time value"
	case strings.HasPrefix(pgErr.Code, "08"):
		mapped.Kind = ErrUnavailable
		mapped.Message = "Database connection error"
	default:
		return err
	}

	return mapped
}

package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the models react to.
const (
	CodeUndefinedColumn   = "42703"
	CodeCheckViolation    = "23514"
	CodeInvalidTextRepr   = "22P02"
	CodeUniqueViolation   = "23505"
	CodeExclusionViolated = "23P01"
)

// HasCode reports whether err is a Postgres error with one of the codes.
func HasCode(err error, codes ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	for _, c := range codes {
		if pgErr.Code == c {
			return true
		}
	}
	return false
}

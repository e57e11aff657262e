package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/punchamoorthee/finledger/internal/domain"
)

// SQLSTATE codes the store translates into ledger errors.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeNumericOutOfRange    = "22003"
)

// translate maps driver errors onto domain error kinds. Anything it does
// not recognize is wrapped with what and returned as an internal failure.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Errorf(domain.ErrNotFound, "%s", what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return domain.Errorf(domain.ErrConflict, "%s: %s", what, pgErr.Message)
		case codeUniqueViolation:
			return domain.Errorf(domain.ErrConflict, "%s: duplicate %s", what, pgErr.ConstraintName)
		case codeForeignKeyViolation:
			return domain.Errorf(domain.ErrInvalidState, "%s: still referenced (%s)", what, pgErr.ConstraintName)
		case codeCheckViolation, codeNumericOutOfRange:
			return domain.Errorf(domain.ErrValidation, "%s: %s", what, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func notFoundIfNone(tag pgconn.CommandTag, what string) error {
	if tag.RowsAffected() == 0 {
		return domain.Errorf(domain.ErrNotFound, "%s", what)
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/stockledger-api/internal/domain"
)

// Querier lo común entre *pgxpool.Pool y pgx.Tx. Los repositorios reciben uno u otro.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Códigos SQLSTATE relevantes.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeQueryCanceled        = "57014"
)

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// classifyError traduce errores del driver a errores de dominio. op describe la operación.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w", op, domain.ErrDuplicate)
		case codeForeignKeyViolation, codeCheckViolation:
			return fmt.Errorf("%s: %w", op, domain.NewValidationError(pgErr.ColumnName+pgErr.ConstraintName, "constraint"))
		case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected, codeQueryCanceled:
			return fmt.Errorf("%s: %w", op, domain.ErrConcurrencyConflict)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrPersistence, err)
}

// noRows convierte pgx.ErrNoRows en (nil, nil), el contrato de los GetBy* del dominio.
func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// requireAffected devuelve notFound si el UPDATE no tocó filas.
func requireAffected(tag pgconn.CommandTag, id string, notFound error) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", id, notFound)
	}
	return nil
}

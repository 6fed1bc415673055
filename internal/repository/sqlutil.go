package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"emmo-data/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Swapped in tests.
var nowUTC = func() time.Time { return time.Now().UTC() }

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
	Rebind(query string) string
}

// withTx runs fn inside a transaction, committing on nil and rolling back otherwise.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// forUpdate returns the row-lock clause for drivers that support it.
// SQLite serialises writers on its own.
func forUpdate(db *sqlx.DB) string {
	if db.DriverName() == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}

// likeOp is the case-insensitive LIKE for the driver (SQLite LIKE is already case-insensitive for ASCII).
func likeOp(db *sqlx.DB) string {
	if db.DriverName() == "postgres" {
		return "ILIKE"
	}
	return "LIKE"
}

// whereBuilder collects AND-ed conditions written with '?' placeholders.
type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *whereBuilder) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// limitClause appends LIMIT/OFFSET for page >= 1 and size > 0; size <= 0 means no limit.
func limitClause(page, size int, args []any) (string, []any) {
	if size <= 0 {
		return "", args
	}
	if page < 1 {
		page = 1
	}
	return " LIMIT ? OFFSET ?", append(args, size, (page-1)*size)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func nullableString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

// expectAffected turns "no row matched" into a NotFound error.
func expectAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return domain.NotFoundf("%s %s not found", entity, id)
	}
	return nil
}

// isUniqueViolation matches both lib/pq (SQLSTATE 23505) and SQLite constraint errors.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

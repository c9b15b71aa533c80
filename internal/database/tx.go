package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kadirbelkuyu/docbridge/internal/failure"
	"github.com/kadirbelkuyu/docbridge/pkg/logger"
)

// Tx is an open transaction handed out by Connection.WithTx.
type Tx struct {
	tx    *sql.Tx
	log   *logger.Logger
	stmts map[string]*sql.Stmt
}

func (t *Tx) Exec(ctx context.Context, statement string, args ...interface{}) error {
	t.log.Debugf("Executing: %s", statement)
	if _, err := t.tx.ExecContext(ctx, statement, args...); err != nil {
		return failure.Storage(fmt.Errorf("failed to execute statement: %w", err))
	}
	return nil
}

// InsertOrReplace writes one row, replacing any row that shares its primary
// key. Prepared statements are reused for the lifetime of the transaction.
func (t *Tx) InsertOrReplace(ctx context.Context, table string, columns []string, values []interface{}) error {
	if len(columns) != len(values) {
		return fmt.Errorf("insert into %s: %d columns but %d values", table, len(columns), len(values))
	}

	stmt, err := t.prepareInsert(ctx, table, columns)
	if err != nil {
		return err
	}

	if _, err := stmt.ExecContext(ctx, values...); err != nil {
		return failure.Storage(fmt.Errorf("failed to insert row into %s: %w", table, err))
	}
	return nil
}

func (t *Tx) prepareInsert(ctx context.Context, table string, columns []string) (*sql.Stmt, error) {
	key := table + "\x00" + strings.Join(columns, "\x00")
	if stmt, ok := t.stmts[key]; ok {
		return stmt, nil
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = QuoteIdentifier(col)
		placeholders[i] = "?"
	}

	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		QuoteIdentifier(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)

	stmt, err := t.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, failure.Storage(fmt.Errorf("failed to prepare statement: %w", err))
	}
	t.stmts[key] = stmt
	return stmt, nil
}

// Query returns a cursor. The caller closes it before the transaction ends.
func (t *Tx) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, failure.Storage(fmt.Errorf("failed to run query: %w", err))
	}
	return rows, nil
}

func (t *Tx) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kadirbelkuyu/docbridge/internal/database"
	"github.com/kadirbelkuyu/docbridge/internal/failure"
	"github.com/kadirbelkuyu/docbridge/internal/schema"
	"github.com/kadirbelkuyu/docbridge/pkg/logger"
)

// ErrEmptyTable is returned when a declared table has no rows to export.
var ErrEmptyTable = errors.New("table was unexpectedly empty")

type Exporter struct {
	conn     *database.Connection
	schema   *schema.Schema
	logger   *logger.Logger
	progress ProgressFunc
}

func NewExporter(conn *database.Connection, s *schema.Schema, logger *logger.Logger, progress ProgressFunc) *Exporter {
	return &Exporter{
		conn:     conn,
		schema:   s,
		logger:   logger,
		progress: progress,
	}
}

// Export writes one collection per declared table to sink. All tables are
// read inside one transaction so the collections describe the same snapshot.
// Junction tables are not exported.
func (ex *Exporter) Export(ctx context.Context, sink Sink) ([]CollectionInfo, error) {
	err := ex.conn.WithTx(ctx, func(tx *database.Tx) error {
		for _, table := range ex.schema.Tables() {
			ex.logger.WithField("table", table.Name).Info("Exporting table")

			count, err := ex.exportTable(ctx, tx, table, sink)
			if err != nil {
				return failure.Export(table.Name, err)
			}

			ex.logger.WithFields(logrus.Fields{"table": table.Name, "rows": count}).Info("Table exported")
		}
		return nil
	})
	if err != nil {
		if abortErr := sink.Abort(); abortErr != nil {
			ex.logger.Warnf("Failed to discard partial export: %v", abortErr)
		}
		if errors.Is(err, failure.ErrExport) {
			return nil, err
		}
		return nil, failure.Export("", err)
	}

	infos, err := sink.Commit(ctx)
	if err != nil {
		if abortErr := sink.Abort(); abortErr != nil {
			ex.logger.Warnf("Failed to discard partial export: %v", abortErr)
		}
		return nil, failure.Export("", err)
	}
	return infos, nil
}

func (ex *Exporter) exportTable(ctx context.Context, tx *database.Tx, table *schema.TableDefinition, sink Sink) (int64, error) {
	total, err := countRows(ctx, tx, table.Name)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, ErrEmptyTable
	}

	rows, err := tx.Query(ctx, selectQuery(table))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("failed to fetch column metadata: %w", err)
	}

	writer, err := sink.Create(ctx, table.Name)
	if err != nil {
		return 0, err
	}

	var count int64
	ex.report(table.Name, 0, total)
	for rows.Next() {
		values, err := database.ScanRow(rows, columns)
		if err != nil {
			writer.Close()
			return 0, err
		}

		doc, err := DecomposeRow(table, columns, values)
		if err != nil {
			writer.Close()
			return 0, fmt.Errorf("row %d: %w", count, err)
		}

		if err := writer.Write(doc); err != nil {
			writer.Close()
			return 0, fmt.Errorf("failed to write document: %w", err)
		}
		count++
		ex.report(table.Name, count, total)
	}

	if err := rows.Err(); err != nil {
		writer.Close()
		return 0, fmt.Errorf("error reading rows: %w", err)
	}

	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("failed to finish collection: %w", err)
	}
	return count, nil
}

func countRows(ctx context.Context, tx *database.Tx, table string) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT count(*) FROM %s", database.QuoteIdentifier(table))
	if err := tx.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, failure.Storage(fmt.Errorf("failed to count rows: %w", err))
	}
	return count, nil
}

// selectQuery lists the table's columns in DDL order, rows in insertion
// order. Date-like columns are read back as text so stored strings are not
// reinterpreted as timestamps.
func selectQuery(table *schema.TableDefinition) string {
	mapped := table.MappedColumns()
	columns := make([]string, 0, len(mapped)+1)
	for _, col := range mapped {
		quoted := database.QuoteIdentifier(col.Name)
		if isTemporal(col.SQLType) {
			columns = append(columns, fmt.Sprintf("CAST(%s AS TEXT) AS %s", quoted, quoted))
			continue
		}
		columns = append(columns, quoted)
	}
	columns = append(columns, database.QuoteIdentifier(schema.ExtraColumn))

	return fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(columns, ", "), database.QuoteIdentifier(table.Name))
}

func isTemporal(sqlType string) bool {
	switch strings.ToLower(strings.TrimSpace(sqlType)) {
	case "date", "datetime", "timestamp":
		return true
	default:
		return false
	}
}

func (ex *Exporter) report(collection string, processed, total int64) {
	if ex.progress != nil {
		ex.progress(collection, processed, total)
	}
}

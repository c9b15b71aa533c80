package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/kadirbelkuyu/docbridge/internal/database"
	"github.com/kadirbelkuyu/docbridge/internal/failure"
	"github.com/kadirbelkuyu/docbridge/internal/schema"
	"github.com/kadirbelkuyu/docbridge/pkg/logger"
)

// ProgressFunc reports how many documents of a collection have been
// processed. total is -1 when the source cannot tell in advance.
type ProgressFunc func(collection string, processed, total int64)

type Summary struct {
	Rows         int64
	JunctionRows int64
	Files        int
	Skipped      int
	Tables       []string
}

func (s *Summary) String() string {
	return fmt.Sprintf("Inserted %d rows in %d tables (%d junction rows, %d files skipped)",
		s.Rows, len(s.Tables), s.JunctionRows, s.Skipped)
}

type Importer struct {
	conn     *database.Connection
	schema   *schema.Schema
	logger   *logger.Logger
	progress ProgressFunc
}

func NewImporter(conn *database.Connection, s *schema.Schema, logger *logger.Logger, progress ProgressFunc) *Importer {
	return &Importer{
		conn:     conn,
		schema:   s,
		logger:   logger,
		progress: progress,
	}
}

// Import loads every collection of src that matches a declared table. Each
// collection is written in its own transaction; the first failing collection
// is rolled back and stops the import.
func (im *Importer) Import(ctx context.Context, src Source) (*Summary, error) {
	summary := &Summary{}
	touched := make(map[string]bool)

	err := src.Walk(ctx, func(entry Entry) error {
		table, ok := im.schema.Table(entry.Name)
		if !ok {
			im.logger.WithField("origin", entry.Origin).Debug("No table matches, skipping")
			summary.Skipped++
			return nil
		}

		im.logger.WithFields(logrus.Fields{"table": table.Name, "origin": entry.Origin}).Info("Importing collection")

		rows, junctionRows, err := im.importEntry(ctx, table, entry)
		if err != nil {
			return failure.Import(entry.Origin, err)
		}

		summary.Rows += rows
		summary.JunctionRows += junctionRows
		summary.Files++
		touched[table.Name] = true

		im.logger.WithFields(logrus.Fields{"table": table.Name, "rows": rows}).Info("Collection imported")
		return nil
	})
	if err != nil {
		if errors.Is(err, failure.ErrImport) {
			return nil, err
		}
		return nil, failure.Import("", err)
	}

	for name := range touched {
		summary.Tables = append(summary.Tables, name)
	}
	sort.Strings(summary.Tables)
	return summary, nil
}

func (im *Importer) importEntry(ctx context.Context, table *schema.TableDefinition, entry Entry) (int64, int64, error) {
	var rows, junctionRows int64

	err := im.conn.WithTx(ctx, func(tx *database.Tx) error {
		reader, err := entry.Open(ctx)
		if err != nil {
			return err
		}
		defer reader.Close()

		im.report(table.Name, 0, entry.Total)
		for index := 0; ; index++ {
			doc, err := reader.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("document %d: %w", index, err)
			}

			row, junctions, err := ComposeRow(table, doc)
			if err != nil {
				return fmt.Errorf("document %d: %w", index, err)
			}

			cleared := make(map[string]bool, len(table.ManyOn))
			for _, junction := range junctions {
				if cleared[junction.Junction.Name] {
					continue
				}
				if err := clearJunctionRows(ctx, tx, junction); err != nil {
					return fmt.Errorf("document %d: %w", index, err)
				}
				cleared[junction.Junction.Name] = true
			}

			if err := tx.InsertOrReplace(ctx, row.Table, row.Columns, row.Values); err != nil {
				return fmt.Errorf("document %d: %w", index, err)
			}

			for _, junction := range junctions {
				if err := checkJunctionKey(ctx, tx, junction); err != nil {
					return fmt.Errorf("document %d: %w", index, err)
				}
				jr := junction.Row()
				if err := tx.InsertOrReplace(ctx, jr.Table, jr.Columns, jr.Values); err != nil {
					return fmt.Errorf("document %d: %w", index, err)
				}
				junctionRows++
			}

			rows++
			im.report(table.Name, rows, entry.Total)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return rows, junctionRows, nil
}

// clearJunctionRows drops the junction rows previously derived for the owner
// so a re-imported document keeps only the relations it still lists.
func clearJunctionRows(ctx context.Context, tx *database.Tx, junction JunctionRow) error {
	statement := fmt.Sprintf("DELETE FROM %s WHERE %s = ?",
		database.QuoteIdentifier(junction.Junction.Name),
		database.QuoteIdentifier(junction.Junction.OwnerColumn),
	)
	return tx.Exec(ctx, statement, junction.Key.OwnerID)
}

// checkJunctionKey refuses to replace a stored junction row whose _id was
// derived from a different (owner, referenced) pair.
func checkJunctionKey(ctx context.Context, tx *database.Tx, junction JunctionRow) error {
	query := fmt.Sprintf(
		"SELECT %s, %s FROM %s WHERE %s = ?",
		database.QuoteIdentifier(junction.Junction.OwnerColumn),
		database.QuoteIdentifier(junction.Junction.ReferencedColumn),
		database.QuoteIdentifier(junction.Junction.Name),
		database.QuoteIdentifier(schema.IDColumn),
	)

	var owner, referenced sql.NullString
	err := tx.QueryRow(ctx, query, junction.Key.ID()).Scan(&owner, &referenced)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return failure.Storage(fmt.Errorf("failed to look up junction row: %w", err))
	}

	stored := JunctionKey{OwnerID: owner.String}
	if referenced.Valid {
		stored.ReferencedID = &referenced.String
	}
	if !stored.Equal(junction.Key) {
		return fmt.Errorf("junction id %q of %s is ambiguous: already used by %s, now derived from %s",
			junction.Key.ID(), junction.Junction.Name, stored, junction.Key)
	}
	return nil
}

func (im *Importer) report(collection string, processed, total int64) {
	if im.progress != nil {
		im.progress(collection, processed, total)
	}
}

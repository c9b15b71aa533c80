package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirbelkuyu/docbridge/internal/database"
	"github.com/kadirbelkuyu/docbridge/internal/failure"
	"github.com/kadirbelkuyu/docbridge/pkg/logger"
)

// StoredTable describes a table as the store's catalog reports it.
type StoredTable struct {
	Name        string
	Columns     []StoredColumn
	ForeignKeys []StoredForeignKey
	RowCount    int64
}

type StoredColumn struct {
	Name       string
	DataType   string
	NotNull    bool
	PrimaryKey bool
	Position   int
}

type StoredForeignKey struct {
	Column           string
	ReferencedTable  string
	ReferencedColumn string
	OnDelete         string
}

func (t StoredTable) HasColumn(name string) bool {
	for _, col := range t.Columns {
		if col.Name == name {
			return true
		}
	}
	return false
}

// Extractor reads table metadata back out of an open store.
type Extractor struct {
	conn   *database.Connection
	logger *logger.Logger
}

func NewExtractor(conn *database.Connection, logger *logger.Logger) *Extractor {
	return &Extractor{
		conn:   conn,
		logger: logger,
	}
}

func (e *Extractor) ExtractTables(ctx context.Context) ([]StoredTable, error) {
	names, err := e.conn.Tables(ctx)
	if err != nil {
		return nil, err
	}

	tables := make([]StoredTable, 0, len(names))
	for _, name := range names {
		table := StoredTable{Name: name}
		if err := e.extractTableDetails(ctx, &table); err != nil {
			return nil, fmt.Errorf("failed to gather table details for %s: %w", name, err)
		}
		tables = append(tables, table)
	}

	e.logger.Debugf("%d tables extracted", len(tables))
	return tables, nil
}

func (e *Extractor) extractTableDetails(ctx context.Context, table *StoredTable) error {
	if err := e.extractColumns(ctx, table); err != nil {
		return err
	}
	if err := e.extractForeignKeys(ctx, table); err != nil {
		return err
	}

	count, err := e.conn.CountRows(ctx, table.Name)
	if err != nil {
		return err
	}
	table.RowCount = count
	return nil
}

func (e *Extractor) extractColumns(ctx context.Context, table *StoredTable) error {
	rows, err := e.conn.Select(ctx, `SELECT cid, name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, table.Name)
	if err != nil {
		return fmt.Errorf("failed to query column metadata: %w", err)
	}

	for _, row := range rows {
		table.Columns = append(table.Columns, StoredColumn{
			Name:       asString(row["name"]),
			DataType:   asString(row["type"]),
			NotNull:    asInt(row["notnull"]) != 0,
			PrimaryKey: asInt(row["pk"]) != 0,
			Position:   int(asInt(row["cid"])) + 1,
		})
	}
	return nil
}

func (e *Extractor) extractForeignKeys(ctx context.Context, table *StoredTable) error {
	rows, err := e.conn.Select(ctx, `SELECT "from", "table", "to", on_delete FROM pragma_foreign_key_list(?) ORDER BY id, seq`, table.Name)
	if err != nil {
		return fmt.Errorf("failed to query foreign key metadata: %w", err)
	}

	for _, row := range rows {
		table.ForeignKeys = append(table.ForeignKeys, StoredForeignKey{
			Column:           asString(row["from"]),
			ReferencedTable:  asString(row["table"]),
			ReferencedColumn: asString(row["to"]),
			OnDelete:         asString(row["on_delete"]),
		})
	}
	return nil
}

// Verify reports every declared table, junction table or column that the
// store lacks. Extra tables and columns in the store are ignored.
func Verify(s *Schema, stored []StoredTable) error {
	byName := make(map[string]StoredTable, len(stored))
	for _, table := range stored {
		byName[table.Name] = table
	}

	var missing []string
	check := func(name string, columns []string) {
		table, ok := byName[name]
		if !ok {
			missing = append(missing, "table "+name)
			return
		}
		for _, col := range columns {
			if !table.HasColumn(col) {
				missing = append(missing, fmt.Sprintf("column %s.%s", name, col))
			}
		}
	}

	for _, table := range s.Tables() {
		columns := make([]string, 0, len(table.Columns)+len(table.Constraints)+1)
		for _, col := range table.MappedColumns() {
			columns = append(columns, col.Name)
		}
		check(table.Name, append(columns, ExtraColumn))

		for _, j := range table.Junctions() {
			check(j.Name, []string{IDColumn, j.ReferencedColumn, j.OwnerColumn, ExtraColumn})
		}
	}

	if len(missing) > 0 {
		return failure.Schema(fmt.Errorf("store does not match the schema (run setup): missing %s", strings.Join(missing, ", ")))
	}
	return nil
}

func asString(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

func asInt(value interface{}) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

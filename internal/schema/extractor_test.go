package schema_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/docbridge/internal/config"
	"github.com/kadirbelkuyu/docbridge/internal/database"
	"github.com/kadirbelkuyu/docbridge/internal/failure"
	"github.com/kadirbelkuyu/docbridge/internal/schema"
	"github.com/kadirbelkuyu/docbridge/pkg/logger"
)

func openEmptyStore(t *testing.T) *database.Connection {
	t.Helper()
	cfg := &config.Config{Store: config.StoreConfig{Path: filepath.Join(t.TempDir(), "store.db")}}
	conn, err := database.NewConnection(cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func findTable(t *testing.T, tables []schema.StoredTable, name string) schema.StoredTable {
	t.Helper()
	for _, table := range tables {
		if table.Name == name {
			return table
		}
	}
	t.Fatalf("table %s not extracted", name)
	return schema.StoredTable{}
}

func TestExtractTablesReadsCatalog(t *testing.T) {
	conn := openEmptyStore(t)
	ctx := context.Background()

	s, err := schema.Load(filepath.Join("testdata", "outbreak.json"), "")
	require.NoError(t, err)
	require.NoError(t, schema.NewCreator(conn, logger.Discard()).CreateTables(ctx, s))
	require.NoError(t, conn.Exec(ctx, `INSERT INTO outbreak (_id, name, extra) VALUES ('o1', 'Measles', '{}')`))

	tables, err := schema.NewExtractor(conn, logger.Discard()).ExtractTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 4)

	outbreak := findTable(t, tables, "outbreak")
	assert.Equal(t, int64(1), outbreak.RowCount)
	require.Len(t, outbreak.Columns, 3)
	assert.Equal(t, schema.StoredColumn{Name: "_id", DataType: "VARCHAR(100)", PrimaryKey: true, Position: 1}, outbreak.Columns[0])

	person := findTable(t, tables, "person")
	assert.True(t, person.HasColumn("outbreakId"))
	assert.True(t, person.HasColumn("extra"))
	assert.Contains(t, person.ForeignKeys, schema.StoredForeignKey{
		Column: "outbreakId", ReferencedTable: "outbreak", ReferencedColumn: "_id", OnDelete: "SET NULL",
	})

	junction := findTable(t, tables, "person_location")
	assert.ElementsMatch(t, []schema.StoredForeignKey{
		{Column: "locationId", ReferencedTable: "location", ReferencedColumn: "_id", OnDelete: "SET NULL"},
		{Column: "personId", ReferencedTable: "person", ReferencedColumn: "_id", OnDelete: "SET NULL"},
	}, junction.ForeignKeys)

	assert.NoError(t, schema.Verify(s, tables))
}

func TestVerifyReportsMissingParts(t *testing.T) {
	conn := openEmptyStore(t)
	ctx := context.Background()

	s, err := schema.Load(filepath.Join("testdata", "outbreak.json"), "")
	require.NoError(t, err)

	require.NoError(t, conn.Exec(ctx, `CREATE TABLE location (_id VARCHAR(100) PRIMARY KEY, name VARCHAR(100), extra VARCHAR(5000))`))

	tables, err := schema.NewExtractor(conn, logger.Discard()).ExtractTables(ctx)
	require.NoError(t, err)

	err = schema.Verify(s, tables)
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrSchema))
	assert.Contains(t, err.Error(), "column location.deleted")
	assert.Contains(t, err.Error(), "table person")
	assert.Contains(t, err.Error(), "table person_location")
	assert.NotContains(t, err.Error(), "column location.name")
}

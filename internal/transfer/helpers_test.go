package transfer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/docbridge/internal/config"
	"github.com/kadirbelkuyu/docbridge/internal/database"
	"github.com/kadirbelkuyu/docbridge/internal/schema"
	"github.com/kadirbelkuyu/docbridge/internal/transfer"
	"github.com/kadirbelkuyu/docbridge/pkg/logger"
)

const dumpDir = "testdata/dump"

// newStore opens an empty store in a temp dir with the outbreak tables.
func newStore(t *testing.T) (*database.Connection, *schema.Schema) {
	t.Helper()

	s, err := schema.Load(filepath.Join("testdata", "outbreak.json"), "")
	require.NoError(t, err)

	cfg := &config.Config{Store: config.StoreConfig{Path: filepath.Join(t.TempDir(), "store.db")}}
	conn, err := database.NewConnection(cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, schema.NewCreator(conn, logger.Discard()).CreateTables(context.Background(), s))
	return conn, s
}

func countRows(t *testing.T, conn *database.Connection, table string) int64 {
	t.Helper()
	n, err := conn.CountRows(context.Background(), table)
	require.NoError(t, err)
	return n
}

func writeCollection(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte(body), 0o644))
}

func importDir(t *testing.T, conn *database.Connection, s *schema.Schema, dir string) error {
	t.Helper()
	importer := transfer.NewImporter(conn, s, logger.Discard(), nil)
	_, err := importer.Import(context.Background(), transfer.NewDirectorySource(dir))
	return err
}

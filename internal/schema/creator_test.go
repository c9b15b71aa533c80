package schema_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/docbridge/internal/config"
	"github.com/kadirbelkuyu/docbridge/internal/database"
	"github.com/kadirbelkuyu/docbridge/internal/schema"
	"github.com/kadirbelkuyu/docbridge/pkg/logger"
)

func TestCreateTablesExecutesDDL(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Path: filepath.Join(t.TempDir(), "store.db")}}
	conn, err := database.NewConnection(cfg, logger.Discard())
	require.NoError(t, err)
	defer conn.Close()

	s, err := schema.Load(filepath.Join("testdata", "outbreak.json"), "")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, schema.NewCreator(conn, logger.Discard()).CreateTables(ctx, s))

	tables, err := conn.Tables(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"location", "outbreak", "person", "person_location"}, tables)

	err = schema.NewCreator(conn, logger.Discard()).CreateTables(ctx, s)
	require.Error(t, err, "tables already exist")
}

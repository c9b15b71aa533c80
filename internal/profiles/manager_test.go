package profiles_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/docbridge/internal/config"
	"github.com/kadirbelkuyu/docbridge/internal/profiles"
)

func TestManagerSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	manager := profiles.NewManager(dir)

	cfg := &config.Config{
		Store:  config.StoreConfig{Path: "field.db", EncryptionKey: "s3cret"},
		Schema: config.SchemaConfig{Path: "outbreak.json"},
		Import: config.ImportConfig{Source: config.SourceMongo},
		Export: config.ExportConfig{Target: config.SourceFiles, Directory: "out"},
		Mongo:  config.MongoConfig{Host: "cluster.internal", Database: "outbreaks", Username: "reader", Password: "p@ss"},
	}

	profile, err := manager.Save("Field Team", cfg)
	require.NoError(t, err)
	assert.Equal(t, "Field_Team", profile.Name)
	require.FileExists(t, profile.Path)

	data, err := os.ReadFile(profile.Path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "s3cret")
	assert.NotContains(t, string(data), "p@ss")
	assert.Equal(t, "s3cret", cfg.Store.EncryptionKey, "the caller's config is left untouched")

	loaded, err := manager.Load(profile.Name)
	require.NoError(t, err)
	assert.Equal(t, "field.db", loaded.Store.Path)
	assert.Equal(t, config.SourceMongo, loaded.Import.Source)
	assert.Equal(t, "outbreaks", loaded.Mongo.Database)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestManagerListSkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	manager := profiles.NewManager(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "beta.yaml"), []byte("store:\n  path: beta.db\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alpha.yml"), []byte("export:\n  target: mongo\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("import:\n  source: ftp\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	all, err := manager.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, config.SourceMongo, all[0].Target)
	assert.Equal(t, "beta", all[1].Name)
	assert.Equal(t, "beta.db", all[1].Store)
}

func TestManagerDelete(t *testing.T) {
	dir := t.TempDir()
	manager := profiles.NewManager(dir)

	_, err := manager.Save("lab", &config.Config{Store: config.StoreConfig{Path: "lab.db"}})
	require.NoError(t, err)

	require.NoError(t, manager.Delete("lab"))
	require.Error(t, manager.Delete("lab"))

	profiles, err := manager.List()
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestManagerMissingDirectory(t *testing.T) {
	manager := profiles.NewManager(filepath.Join(t.TempDir(), "absent"))

	profiles, err := manager.List()
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

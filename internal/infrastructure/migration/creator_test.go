package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add ledger entries", "add_ledger_entries"},
		{"Add-Stock-Batches", "add_stock_batches"},
		{"ADD_INVENTORY_ITEMS", "add_inventory_items"},
		{"add__batch__index", "add_batch_index"},
		{"Add Column 123", "add_column_123"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	mf, err := CreateMigration(dir, "add batch expiry", "Add expiry date to stock batches")
	require.NoError(t, err)
	require.NotNil(t, mf)

	assert.Len(t, mf.Version, 14, "version should be a YYYYMMDDHHMMSS stamp")
	assert.True(t, strings.HasSuffix(mf.UpPath, "_add_batch_expiry.up.sql"))
	assert.True(t, strings.HasSuffix(mf.DownPath, "_add_batch_expiry.down.sql"))

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add batch expiry")
	assert.Contains(t, string(up), "-- Description: Add expiry date to stock batches")
	assert.Contains(t, string(up), "Write your UP migration SQL here")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(Rollback)")
	assert.Contains(t, string(down), "Rollback for Add expiry date to stock batches")
	assert.Contains(t, string(down), "Write your DOWN migration SQL here")
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(nested, "init schema", "initial ledger schema")
	require.NoError(t, err)
	require.NotNil(t, mf)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()

	files := []string{
		"000003_add_ledger_entries.up.sql",
		"000003_add_ledger_entries.down.sql",
		"000001_init_schema.up.sql",
		"000001_init_schema.down.sql",
		"000002_add_stock_batches.up.sql",
		"000002_add_stock_batches.down.sql",
	}
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("-- test"), 0644))
	}

	migrations, err := ListMigrations(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"000001_init_schema",
		"000002_add_stock_batches",
		"000003_add_ledger_entries",
	}, migrations, "migrations should come back sorted by version")
}

func TestListMigrations_EmptyDirectory(t *testing.T) {
	migrations, err := ListMigrations(t.TempDir())

	require.NoError(t, err)
	assert.Empty(t, migrations)
}

func TestListMigrations_NonexistentDirectory(t *testing.T) {
	migrations, err := ListMigrations("/nonexistent/path/to/migrations")

	require.NoError(t, err)
	assert.Empty(t, migrations)
}

func TestListMigrations_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()

	files := []string{
		"000001_init.up.sql",
		"000001_init.down.sql",
		"README.md",
		"config.yaml",
		".gitkeep",
	}
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("test"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archived.up.sql"), 0755))

	migrations, err := ListMigrations(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"000001_init"}, migrations)
}

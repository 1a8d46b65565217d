package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/erp/stockledger/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add reorder alerts", "add_reorder_alerts"},
		{"Add-Reorder-Alerts", "add_reorder_alerts"},
		{"add__cells__index", "add_cells_index"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"_leading and trailing_", "leading_and_trailing"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration_NumbersAfterExisting(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"000001_init.up.sql", "000001_init.down.sql", "000004_cells.up.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("-- x"), 0o644))
	}

	mf, err := CreateMigration(dir, "Add movement index", "index on reference")
	require.NoError(t, err)

	assert.Equal(t, uint(5), mf.Version)
	assert.Equal(t, filepath.Join(dir, "000005_add_movement_index.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "000005_add_movement_index.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "index on reference")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback: add_movement_index")
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(dir, "first", "")
	require.NoError(t, err)
	assert.Equal(t, uint(1), mf.Version)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	require.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_cells.up.sql":   {Data: []byte("-- up")},
		"000002_cells.down.sql": {Data: []byte("-- down")},
		"000001_init.up.sql":    {Data: []byte("-- up")},
		"README.md":             {Data: []byte("docs")},
		"notaversion_x.up.sql":  {Data: []byte("-- up")},
		"sub/000009_x.up.sql":   {Data: []byte("-- nested")},
	}

	got, err := ListMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, uint(1), got[0].Version)
	assert.Equal(t, "init", got[0].Name)
	assert.False(t, got[0].HasDown)

	assert.Equal(t, uint(2), got[1].Version)
	assert.Equal(t, "000002_cells", got[1].BaseName())
	assert.True(t, got[1].HasDown)
}

func TestListMigrations_MissingDirectory(t *testing.T) {
	got, err := ListMigrations(os.DirFS("/nonexistent/path/to/migrations"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEmbeddedMigrations_AreContiguousPairs(t *testing.T) {
	got, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	for i, f := range got {
		assert.Equal(t, uint(i+1), f.Version, "gap before %s", f.BaseName())
		assert.True(t, f.HasDown, "%s has no down migration", f.BaseName())
		assert.NotEmpty(t, f.UpPath, "%s has no up migration", f.BaseName())
	}
}

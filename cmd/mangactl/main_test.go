package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestReadImageDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page10.png", "page2.JPG", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "extra.png"), 0o755))

	files, err := readImageDir(dir)
	require.NoError(t, err)

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
		assert.Equal(t, f.Name, string(f.Data))
	}
	assert.ElementsMatch(t, []string{"page10.png", "page2.JPG"}, names)
}

func TestCommandsAgainstBoltFile(t *testing.T) {
	db := filepath.Join(t.TempDir(), "manga.db")
	t.Setenv("CATALOG_URL", "bolt://"+db)
	t.Setenv("STORAGE_URL", "bolt://"+db)

	out, err := execute(t, "add", "Planetes", "-d", "space debris")
	require.NoError(t, err)
	id := strings.TrimSpace(strings.TrimPrefix(out, "Manga ID:"))
	require.NotEmpty(t, id)

	pages := t.TempDir()
	for _, name := range []string{"10.png", "2.png", "1.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(pages, name), []byte(name), 0o644))
	}
	out, err = execute(t, "import", id, pages, "--number", "1.5", "--language", "ja")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 3 pages as chapter 1.5 (ja)")

	out, err = execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Planetes")
	assert.Contains(t, out, "chapter 1.5")
	assert.Contains(t, out, "ja:3")

	out, err = execute(t, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "Blobs: 3")
	assert.Contains(t, out, "Orphans: 0")

	out, err = execute(t, "gc")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 0 orphaned images")

	_, err = execute(t, "delete", id)
	require.NoError(t, err)

	out, err = execute(t, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "Blobs: 0")
}

func TestImportUnknownManga(t *testing.T) {
	db := filepath.Join(t.TempDir(), "manga.db")
	t.Setenv("CATALOG_URL", "bolt://"+db)
	t.Setenv("STORAGE_URL", "bolt://"+db)

	pages := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(pages, "1.png"), []byte("x"), 0o644))

	_, err := execute(t, "import", "missing", pages)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manga not found")
}

func TestMigrateRequiresPostgres(t *testing.T) {
	t.Setenv("CATALOG_URL", "memory")

	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a postgres database")
}

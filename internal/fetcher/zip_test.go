package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for name, content := range entries {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractZIP(t *testing.T) {
	path := writeZip(t, map[string]string{
		"boundaries.shp": "shp-bytes",
		"boundaries.dbf": "dbf-bytes",
	})

	dest := t.TempDir()
	extracted, err := ExtractZIP(path, dest)
	require.NoError(t, err)
	assert.Len(t, extracted, 2)

	data, err := os.ReadFile(filepath.Join(dest, "boundaries.shp"))
	require.NoError(t, err)
	assert.Equal(t, "shp-bytes", string(data))
}

func TestExtractZIPFile(t *testing.T) {
	path := writeZip(t, map[string]string{
		"a.csv": "one",
		"b.csv": "two",
	})

	dest := t.TempDir()
	got, err := ExtractZIPFile(path, "b.csv", dest)
	require.NoError(t, err)
	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	_, err = ExtractZIPFile(path, "missing.csv", dest)
	require.Error(t, err)
}

func TestExtractZIPSingle(t *testing.T) {
	path := writeZip(t, map[string]string{"only.csv": "data"})

	got, err := ExtractZIPSingle(path, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "only.csv", filepath.Base(got))

	multi := writeZip(t, map[string]string{"a.csv": "1", "b.csv": "2"})
	_, err = ExtractZIPSingle(multi, t.TempDir())
	require.Error(t, err)
}

func TestExtractZIPRejectsEscapingEntries(t *testing.T) {
	path := writeZip(t, map[string]string{"../escape.txt": "nope"})

	_, err := ExtractZIP(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
}

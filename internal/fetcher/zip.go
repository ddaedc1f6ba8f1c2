package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIP unpacks every entry of the archive under destDir and returns
// the extracted file paths in archive order.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	return unpackMatching(zipPath, destDir, func(*zip.File) bool { return true })
}

// ExtractZIPFile unpacks only the named entry and returns its path.
// Statistics releases often bundle several tables per archive and a run
// usually needs just one of them.
func ExtractZIPFile(zipPath, fileName, destDir string) (string, error) {
	paths, err := unpackMatching(zipPath, destDir, func(f *zip.File) bool {
		return f.Name == fileName
	})
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", eris.Errorf("zip: no entry named %q in %s", fileName, zipPath)
	}
	return paths[0], nil
}

// ExtractZIPSingle unpacks an archive expected to hold exactly one file,
// the usual shape of a single-table release, and returns its path.
func ExtractZIPSingle(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrapf(err, "zip: open %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	var only *zip.File
	var count int
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		only = f
		count++
	}
	if count != 1 {
		return "", eris.Errorf("zip: want a single file in %s, found %d", zipPath, count)
	}
	return unpackEntry(only, destDir)
}

// unpackMatching extracts the entries keep selects. Directory entries are
// created but not reported.
func unpackMatching(zipPath, destDir string, keep func(*zip.File) bool) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrapf(err, "zip: open %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	var paths []string
	for _, f := range r.File {
		if !keep(f) {
			continue
		}
		p, err := unpackEntry(f, destDir)
		if err != nil {
			return paths, err
		}
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func unpackEntry(f *zip.File, destDir string) (string, error) {
	dest, err := entryDest(destDir, f.Name)
	if err != nil {
		return "", err
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return "", eris.Wrap(err, "zip: create directory")
		}
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrapf(err, "zip: write %s", dest)
	}
	return dest, nil
}

// entryDest joins the entry name under destDir, rejecting names that would
// land outside it.
func entryDest(destDir, name string) (string, error) {
	dest := filepath.Join(destDir, name)
	if !strings.HasPrefix(filepath.Clean(dest), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: entry %q escapes the destination directory", name)
	}
	return dest, nil
}

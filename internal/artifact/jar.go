package artifact

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"strings"
)

// isArchive reports whether name is expected to be a zip-format archive.
func isArchive(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".jar")
}

// verifyArchive checks that path is a readable zip with at least one entry.
// The central directory is parsed in full and the first entry is read to
// the end, so a truncated or mangled payload fails here rather than when the
// JVM starts.
func verifyArchive(path string) error {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	if len(reader.File) == 0 {
		return errors.New("archive has no entries")
	}

	first, err := reader.File[0].Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", reader.File[0].Name, err)
	}
	defer first.Close()

	if _, err := io.Copy(io.Discard, first); err != nil {
		return fmt.Errorf("read entry %s: %w", reader.File[0].Name, err)
	}
	return nil
}

// Package archive implements the post-send file relocation step of the
// Sender Pool: moving a successfully delivered file into its folder's
// processed subdirectory.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Move relocates path into <dir of path>/<processedFolder>/<filename>,
// creating the processed directory if needed. On a name collision it
// appends a monotonic numeric suffix before the extension.
//
// Uses os.Rename, which is atomic when source and destination share a
// volume; it falls back to a copy-then-remove when they don't (e.g.
// processedFolder is configured as an absolute path on another device).
func Move(path, processedFolder string) (string, error) {
	if processedFolder == "" {
		return "", fmt.Errorf("archive: processedFolder must not be empty")
	}

	dir := filepath.Dir(path)
	destDir := processedFolder
	if !filepath.IsAbs(destDir) {
		destDir = filepath.Join(dir, processedFolder)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("archive: create processed folder: %w", err)
	}

	dest := filepath.Join(destDir, filepath.Base(path))
	dest = resolveCollision(dest)

	if err := os.Rename(path, dest); err != nil {
		if errors.Is(err, os.ErrExist) || isCrossDevice(err) {
			if copyErr := copyThenRemove(path, dest); copyErr != nil {
				return "", fmt.Errorf("archive: move %s: %w", path, copyErr)
			}
			return dest, nil
		}
		return "", fmt.Errorf("archive: move %s: %w", path, err)
	}

	return dest, nil
}

// resolveCollision appends "-1", "-2", ... before dest's extension until an
// unused path is found.
func resolveCollision(dest string) string {
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest
	}

	ext := filepath.Ext(dest)
	base := dest[:len(dest)-len(ext)]

	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

func copyThenRemove(src, dest string) error {
	in, err := os.Open(src) // nolint:gosec
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest) // nolint:gosec
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	return os.Remove(src)
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return linkErr.Err != nil && linkErr.Err.Error() == "invalid cross-device link"
	}
	return false
}

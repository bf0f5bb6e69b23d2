package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes content next to filePath under a temporary name and
// renames it into place, so readers see either the old file or the complete
// new one.
func WriteFileAtomic(filePath string, content []byte, perm os.FileMode) error {
	tmpPath, err := writeTemp(filePath, content, perm)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	if err := os.Rename(tmpPath, filePath); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tmpPath, filePath, err)
	}
	return nil
}

// WriteFileExclusive is WriteFileAtomic that never replaces an existing file.
// It reports false when filePath was already present.
func WriteFileExclusive(filePath string, content []byte, perm os.FileMode) (bool, error) {
	tmpPath, err := writeTemp(filePath, content, perm)
	if err != nil {
		return false, err
	}
	defer os.Remove(tmpPath)

	// link 在目标已存在时失败，rename 则会覆盖
	if err := os.Link(tmpPath, filePath); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to link %s to %s: %w", tmpPath, filePath, err)
	}
	return true, nil
}

// writeTemp 在目标目录下写入完整的临时文件，返回其路径
func writeTemp(filePath string, content []byte, perm os.FileMode) (string, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for %s: %w", filePath, err)
	}
	tmpPath := f.Name()

	fail := func(format string, err error) (string, error) {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf(format, tmpPath, err)
	}
	if _, err := f.Write(content); err != nil {
		return fail("failed to write to file %s: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fail("failed to sync file %s: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close file %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to chmod file %s: %w", tmpPath, err)
	}
	return tmpPath, nil
}

// Exists reports whether a regular file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrSameFile is returned when a copy's source and destination are the same path.
var ErrSameFile = errors.New("source and destination are the same file")

// CopyFile copies src to dst, replacing dst if it exists.
func CopyFile(src, dst string) error {
	if filepath.Clean(src) == filepath.Clean(dst) {
		return ErrSameFile
	}

	in, err := os.Open(src) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy file: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("close destination file: %w", err)
	}
	return nil
}

// MoveFile renames src to dst. When the rename fails, typically because the
// paths are on different volumes, it copies and then removes src.
func MoveFile(src, dst string) error {
	if filepath.Clean(src) == filepath.Clean(dst) {
		return nil
	}
	renameErr := os.Rename(src, dst)
	if renameErr == nil {
		return nil
	}
	if err := CopyFile(src, dst); err != nil {
		return fmt.Errorf("move file (rename: %v): %w", renameErr, err)
	}
	_ = os.Remove(src)
	return nil
}

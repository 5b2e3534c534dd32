// Package storeio replaces and renames whole afs objects. Local files go
// through a temp sibling and os.Rename so a reader sees the old or the new
// object, never a partial one. Other schemes are handed to afs, whose
// backends replace objects whole.
package storeio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

// ErrSourceMissing is returned by Rename when the source object is gone.
var ErrSourceMissing = errors.New("storeio: source does not exist")

// IsLocal reports whether location addresses the local filesystem.
func IsLocal(location string) bool {
	return url.Scheme(location, file.Scheme) == file.Scheme
}

// WriteFile replaces the object at location with data, creating parent
// directories as needed.
func WriteFile(ctx context.Context, fs afs.Service, location string, data []byte) error {
	if !IsLocal(location) {
		return fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data))
	}
	target := url.Path(location)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, file.DefaultDirOsMode); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", target, err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err = tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp for %s: %w", target, err)
	}
	if err = tmpFile.Chmod(file.DefaultFileOsMode); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp for %s: %w", target, err)
	}
	if err = tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", target, err)
	}
	if err = os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("replace %s: %w", target, err)
	}
	return nil
}

// Rename moves the object at source to the object URL dest. On the local
// filesystem the move is atomic, so of several processes renaming the same
// source exactly one succeeds; the others get ErrSourceMissing.
func Rename(ctx context.Context, fs afs.Service, source, dest string) error {
	if IsLocal(source) && IsLocal(dest) {
		target := url.Path(dest)
		if err := os.MkdirAll(filepath.Dir(target), file.DefaultDirOsMode); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(target), err)
		}
		if err := os.Rename(url.Path(source), target); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrSourceMissing, source)
			}
			return fmt.Errorf("rename %s: %w", source, err)
		}
		return nil
	}
	exists, err := fs.Exists(ctx, source)
	if err != nil {
		return fmt.Errorf("check %s: %w", source, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrSourceMissing, source)
	}
	data, err := fs.DownloadWithURL(ctx, source)
	if err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}
	if err = WriteFile(ctx, fs, dest, data); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err = fs.Delete(ctx, source); err != nil {
		return fmt.Errorf("delete %s: %w", source, err)
	}
	return nil
}

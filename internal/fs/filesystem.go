package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"helpdesk/internal/helpdesk"
)

// OSFilesystemManager is the real filesystem implementation of
// helpdesk.FilesystemManager.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a filesystem manager that operates on the real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// MkdirAll creates dir and any missing parents.
func (m *OSFilesystemManager) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// Remove deletes a single file.
func (m *OSFilesystemManager) Remove(path string) error {
	return os.Remove(path)
}

// CopyFile copies src to dst byte for byte and carries over the permission
// bits and the access/modification times. A partially written dst is removed.
func (m *OSFilesystemManager) CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("source is not a regular file: %s", src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	if err := writeAll(out, in); err != nil {
		os.Remove(dst)
		return err
	}

	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Chtimes(dst, AccessTime(info), info.ModTime()); err != nil {
		return fmt.Errorf("setting times: %w", err)
	}
	return nil
}

// writeAll copies r into f, syncs and closes f.
func writeAll(f *os.File, r io.Reader) error {
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("copying data: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing destination: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing destination: %w", err)
	}
	return nil
}

// ProbeWritable creates dir if needed, then writes and removes a probe file
// named name inside it.
func (m *OSFilesystemManager) ProbeWritable(dir, name string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	probe := filepath.Join(dir, name)
	if err := os.WriteFile(probe, []byte("test"), 0600); err != nil {
		return fmt.Errorf("writing probe file: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return fmt.Errorf("removing probe file: %w", err)
	}
	return nil
}

// ListFiles returns the regular files in dir whose base name matches the
// filepath.Match pattern, sorted oldest first by change time, ties by name.
// A missing directory yields an empty list.
func (m *OSFilesystemManager) ListFiles(dir, pattern string) ([]helpdesk.FileEntry, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("matching %s: %w", pattern, err)
	}

	entries := make([]helpdesk.FileEntry, 0, len(matches))
	for _, match := range matches {
		info, err := os.Lstat(match)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue // removed between glob and stat
			}
			return nil, fmt.Errorf("stat %s: %w", match, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		entries = append(entries, helpdesk.FileEntry{
			Path:      match,
			Size:      info.Size(),
			CreatedAt: ChangeTime(info),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		ti, tj := entries[i].CreatedAt, entries[j].CreatedAt
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return filepath.Base(entries[i].Path) < filepath.Base(entries[j].Path)
	})
	return entries, nil
}

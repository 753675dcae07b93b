package helpdesk

import "time"

// FileEntry describes a regular file found by FilesystemManager.ListFiles.
type FileEntry struct {
	Path      string
	Size      int64
	CreatedAt time.Time
}

// FilesystemManager abstracts the file operations used by the backup rotator.
type FilesystemManager interface {
	// MkdirAll creates dir and any missing parents.
	MkdirAll(dir string) error

	// CopyFile copies src to dst preserving permission bits and timestamps.
	CopyFile(src, dst string) error

	// ProbeWritable creates dir if needed, then writes and removes a file
	// named name inside it.
	ProbeWritable(dir, name string) error

	// ListFiles returns the regular files in dir whose base name matches
	// pattern, oldest first by creation time, ties broken by name.
	// A missing dir yields an empty list.
	ListFiles(dir, pattern string) ([]FileEntry, error)

	// Remove deletes a single file.
	Remove(path string) error
}

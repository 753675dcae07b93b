//go:build !linux

package fs

import (
	"io/fs"
	"time"
)

// ChangeTime returns the modification time; portable stat data does not
// carry a change time.
func ChangeTime(info fs.FileInfo) time.Time {
	return info.ModTime()
}

// AccessTime returns the modification time.
func AccessTime(info fs.FileInfo) time.Time {
	return info.ModTime()
}

//go:build linux

package fs

import (
	"io/fs"
	"syscall"
	"time"
)

// ChangeTime returns the inode change time (ctime), which is set when the
// file is created and is what the snapshot ordering relies on. Falls back to
// the modification time for FileInfo values without stat data.
func ChangeTime(info fs.FileInfo) time.Time {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(stat.Ctim.Sec, stat.Ctim.Nsec)
}

// AccessTime returns the last access time, or the modification time for
// FileInfo values without stat data.
func AccessTime(info fs.FileInfo) time.Time {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(stat.Atim.Sec, stat.Atim.Nsec)
}

package testutil

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"helpdesk/internal/helpdesk"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions uint32
	ModTime     time.Time
	IsDirectory bool
	// Ctime is set once, when the file is created.
	Ctime time.Time
}

// MockFilesystemManager is an in-memory helpdesk.FilesystemManager.
// New files take their creation time from Clock, so ordering is deterministic.
type MockFilesystemManager struct {
	mu    sync.Mutex
	files map[string]*MockFile

	Clock helpdesk.Clock

	// Failure injection.
	FailCopy   error
	FailProbe  map[string]error // dir -> error
	FailRemove map[string]error // path -> error
	FailMkdir  map[string]error // dir -> error
}

// NewMockFilesystemManager creates an empty mock filesystem.
func NewMockFilesystemManager(clock helpdesk.Clock) *MockFilesystemManager {
	return &MockFilesystemManager{
		files:      make(map[string]*MockFile),
		Clock:      clock,
		FailProbe:  make(map[string]error),
		FailRemove: make(map[string]error),
		FailMkdir:  make(map[string]error),
	}
}

func (m *MockFilesystemManager) now() time.Time {
	if m.Clock == nil {
		return time.Now()
	}
	return m.Clock.Now()
}

// AddFile adds a file to the mock filesystem.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.files[path] = &MockFile{
		Content:     content,
		Permissions: 0644,
		ModTime:     now,
		Ctime:       now,
	}
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addDir(path)
}

func (m *MockFilesystemManager) addDir(path string) {
	if _, ok := m.files[path]; ok {
		return
	}
	now := m.now()
	m.files[path] = &MockFile{Permissions: 0755, ModTime: now, Ctime: now, IsDirectory: true}
}

// File returns the file at path, or nil.
func (m *MockFilesystemManager) File(path string) *MockFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[path]
}

func (m *MockFilesystemManager) MkdirAll(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailMkdir[dir]; err != nil {
		return err
	}
	if f, ok := m.files[dir]; ok && !f.IsDirectory {
		return fmt.Errorf("not a directory: %s", dir)
	}
	for d := dir; d != "/" && d != "."; d = filepath.Dir(d) {
		m.addDir(d)
	}
	return nil
}

func (m *MockFilesystemManager) CopyFile(src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCopy != nil {
		return m.FailCopy
	}
	file, ok := m.files[src]
	if !ok || file.IsDirectory {
		return fmt.Errorf("source not found: %s", src)
	}
	if d, ok := m.files[filepath.Dir(dst)]; !ok || !d.IsDirectory {
		return fmt.Errorf("destination directory missing: %s", filepath.Dir(dst))
	}
	m.files[dst] = &MockFile{
		Content:     append([]byte(nil), file.Content...),
		Permissions: file.Permissions,
		ModTime:     file.ModTime,
		Ctime:       m.now(),
	}
	return nil
}

func (m *MockFilesystemManager) ProbeWritable(dir, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailProbe[dir]; err != nil {
		return err
	}
	if f, ok := m.files[dir]; ok && !f.IsDirectory {
		return fmt.Errorf("not a directory: %s", dir)
	}
	for d := dir; d != "/" && d != "."; d = filepath.Dir(d) {
		m.addDir(d)
	}
	return nil
}

func (m *MockFilesystemManager) ListFiles(dir, pattern string) ([]helpdesk.FileEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []helpdesk.FileEntry
	for path, f := range m.files {
		if f.IsDirectory || filepath.Dir(path) != dir {
			continue
		}
		ok, err := filepath.Match(pattern, filepath.Base(path))
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, helpdesk.FileEntry{Path: path, Size: int64(len(f.Content)), CreatedAt: f.Ctime})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return filepath.Base(entries[i].Path) < filepath.Base(entries[j].Path)
	})
	return entries, nil
}

func (m *MockFilesystemManager) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailRemove[path]; err != nil {
		return err
	}
	if _, ok := m.files[path]; !ok {
		return fmt.Errorf("file not found: %s", path)
	}
	delete(m.files, path)
	return nil
}

// Compile-time check
var _ helpdesk.FilesystemManager = (*MockFilesystemManager)(nil)

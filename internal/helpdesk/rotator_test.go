package helpdesk_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"helpdesk/internal/fs"
	"helpdesk/internal/helpdesk"
	"helpdesk/internal/model"
	"helpdesk/internal/testutil"
)

const (
	testDBPath     = "/srv/helpdesk/helpdesk.db"
	testDefaultDir = "/srv/helpdesk/backups"
)

type rotatorFixture struct {
	rotator  *helpdesk.BackupRotator
	fsmgr    *testutil.MockFilesystemManager
	settings *testutil.StubStore
	clock    *testutil.StubClock
	observer *recordingObserver
}

type recordingObserver struct {
	mu       sync.Mutex
	results  []bool
	retained int
}

func (o *recordingObserver) ObserveBackup(success bool, retained int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, success)
	o.retained = retained
}

type stubOffsite struct {
	err     error
	shipped []model.SnapshotInfo
}

func (s *stubOffsite) Ship(_ context.Context, snap model.SnapshotInfo) error {
	s.shipped = append(s.shipped, snap)
	return s.err
}

func newRotatorFixture(t *testing.T, offsite helpdesk.Offsite) *rotatorFixture {
	t.Helper()
	clock := testutil.FixedClock()
	fsmgr := testutil.NewMockFilesystemManager(clock)
	fsmgr.AddDirectory("/srv/helpdesk")
	fsmgr.AddFile(testDBPath, []byte("SQLite format 3\x00"))
	settings := testutil.NewStubStore()
	observer := &recordingObserver{}

	rotator := helpdesk.NewBackupRotator(
		helpdesk.RotatorConfig{DatabasePath: testDBPath, DefaultDir: testDefaultDir},
		settings, fsmgr, offsite, observer,
		helpdesk.NewNopLogger(), clock, testutil.NewStubIDGenerator(),
	)
	return &rotatorFixture{rotator: rotator, fsmgr: fsmgr, settings: settings, clock: clock, observer: observer}
}

func snapshotNames(t *testing.T, fsmgr *testutil.MockFilesystemManager, dir string) []string {
	t.Helper()
	entries, err := fsmgr.ListFiles(dir, "backup_*.db")
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = filepath.Base(e.Path)
	}
	return names
}

func TestBackupRotator_RunDailyBackup(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a named byte-identical snapshot", func(t *testing.T) {
		f := newRotatorFixture(t, nil)

		res := f.rotator.RunDailyBackup(ctx)
		if !res.Success {
			t.Fatalf("RunDailyBackup() = %+v, want success", res)
		}
		want := filepath.Join(testDefaultDir, "backup_2024-01-15_10-30-00.db")
		if res.Snapshot != want {
			t.Errorf("Snapshot = %q, want %q", res.Snapshot, want)
		}
		if !strings.Contains(res.Message, "2024-01-15_10-30-00") {
			t.Errorf("Message = %q, want timestamp", res.Message)
		}
		snap := f.fsmgr.File(want)
		if snap == nil || !bytes.Equal(snap.Content, f.fsmgr.File(testDBPath).Content) {
			t.Error("snapshot content differs from the live database")
		}
		if res.Retained != 1 || len(res.Removed) != 0 {
			t.Errorf("Retained = %d, Removed = %v", res.Retained, res.Removed)
		}
	})

	t.Run("twenty daily backups keep the newest fourteen", func(t *testing.T) {
		f := newRotatorFixture(t, nil)

		var created []string
		for day := 0; day < 20; day++ {
			res := f.rotator.RunDailyBackup(ctx)
			if !res.Success {
				t.Fatalf("day %d: %+v", day, res)
			}
			created = append(created, filepath.Base(res.Snapshot))
			if len(snapshotNames(t, f.fsmgr, testDefaultDir)) > helpdesk.DefaultRetention {
				t.Fatalf("day %d: more than %d snapshots on disk", day, helpdesk.DefaultRetention)
			}
			f.clock.Advance(24 * time.Hour)
		}

		got := snapshotNames(t, f.fsmgr, testDefaultDir)
		want := created[6:]
		if len(got) != len(want) {
			t.Fatalf("retained %d snapshots, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("snapshot[%d] = %s, want %s", i, got[i], want[i])
			}
		}
		if f.observer.retained != helpdesk.DefaultRetention {
			t.Errorf("observer retained = %d, want %d", f.observer.retained, helpdesk.DefaultRetention)
		}
	})

	t.Run("custom retention", func(t *testing.T) {
		clock := testutil.FixedClock()
		fsmgr := testutil.NewMockFilesystemManager(clock)
		fsmgr.AddFile(testDBPath, []byte("db"))
		rotator := helpdesk.NewBackupRotator(
			helpdesk.RotatorConfig{DatabasePath: testDBPath, DefaultDir: testDefaultDir, Retention: 3},
			testutil.NewStubStore(), fsmgr, nil, nil,
			helpdesk.NewNopLogger(), clock, testutil.NewStubIDGenerator(),
		)
		for i := 0; i < 5; i++ {
			rotator.RunDailyBackup(ctx)
			clock.Advance(time.Hour)
		}
		if got := snapshotNames(t, fsmgr, testDefaultDir); len(got) != 3 {
			t.Errorf("retained %v, want 3 snapshots", got)
		}
	})

	t.Run("delete failures are not fatal", func(t *testing.T) {
		f := newRotatorFixture(t, nil)
		oldest := filepath.Join(testDefaultDir, "backup_2024-01-15_10-30-00.db")
		f.fsmgr.FailRemove[oldest] = errors.New("permission denied")

		for i := 0; i < helpdesk.DefaultRetention+1; i++ {
			res := f.rotator.RunDailyBackup(ctx)
			if !res.Success {
				t.Fatalf("run %d: %+v", i, res)
			}
			f.clock.Advance(time.Hour)
		}
		if f.fsmgr.File(oldest) == nil {
			t.Error("undeletable snapshot vanished")
		}
		if got := snapshotNames(t, f.fsmgr, testDefaultDir); len(got) != helpdesk.DefaultRetention+1 {
			t.Errorf("got %d snapshots, want %d", len(got), helpdesk.DefaultRetention+1)
		}
	})

	t.Run("copy failure reports failure and deletes nothing", func(t *testing.T) {
		f := newRotatorFixture(t, nil)
		for i := 0; i < helpdesk.DefaultRetention; i++ {
			f.rotator.RunDailyBackup(ctx)
			f.clock.Advance(time.Hour)
		}
		before := snapshotNames(t, f.fsmgr, testDefaultDir)

		f.fsmgr.FailCopy = errors.New("no space left on device")
		res := f.rotator.RunDailyBackup(ctx)
		if res.Success {
			t.Fatal("RunDailyBackup() succeeded despite copy failure")
		}
		if !strings.Contains(res.Message, "no space left on device") {
			t.Errorf("Message = %q, want copy error", res.Message)
		}
		if after := snapshotNames(t, f.fsmgr, testDefaultDir); len(after) != len(before) {
			t.Errorf("snapshots changed on failed copy: %d -> %d", len(before), len(after))
		}
		if last := f.observer.results[len(f.observer.results)-1]; last {
			t.Error("observer recorded success for a failed copy")
		}
	})

	t.Run("offsite failure does not flip success", func(t *testing.T) {
		offsite := &stubOffsite{err: errors.New("bucket unreachable")}
		f := newRotatorFixture(t, offsite)

		res := f.rotator.RunDailyBackup(ctx)
		if !res.Success {
			t.Fatalf("RunDailyBackup() = %+v, want success", res)
		}
		if !strings.Contains(res.Message, "offsite copy failed") {
			t.Errorf("Message = %q, want offsite failure note", res.Message)
		}
		if len(offsite.shipped) != 1 || offsite.shipped[0].Name != "backup_2024-01-15_10-30-00.db" {
			t.Errorf("shipped = %+v", offsite.shipped)
		}
	})
}

func TestBackupRotator_ResolveBackupDirectory(t *testing.T) {
	ctx := context.Background()

	t.Run("unset uses default", func(t *testing.T) {
		f := newRotatorFixture(t, nil)
		dir, err := f.rotator.ResolveBackupDirectory(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if dir != testDefaultDir {
			t.Errorf("dir = %q, want %q", dir, testDefaultDir)
		}
	})

	t.Run("configured directory is normalized and read fresh", func(t *testing.T) {
		f := newRotatorFixture(t, nil)
		f.settings.SetSetting(ctx, helpdesk.BackupDirSetting, "/mnt/usb/../nas/backups/", "")

		dir, err := f.rotator.ResolveBackupDirectory(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if dir != "/mnt/nas/backups" {
			t.Errorf("dir = %q, want /mnt/nas/backups", dir)
		}

		f.settings.SetSetting(ctx, helpdesk.BackupDirSetting, "/mnt/other", "")
		if dir, _ := f.rotator.ResolveBackupDirectory(ctx); dir != "/mnt/other" {
			t.Errorf("dir = %q, want /mnt/other (setting must not be cached)", dir)
		}
	})

	t.Run("uncreatable configured directory falls back to default", func(t *testing.T) {
		f := newRotatorFixture(t, nil)
		f.settings.SetSetting(ctx, helpdesk.BackupDirSetting, "/mnt/offline", "")
		f.fsmgr.FailMkdir["/mnt/offline"] = errors.New("read-only file system")

		res := f.rotator.RunDailyBackup(ctx)
		if !res.Success {
			t.Fatalf("RunDailyBackup() = %+v, want success in default dir", res)
		}
		if filepath.Dir(res.Snapshot) != testDefaultDir {
			t.Errorf("snapshot in %q, want %q", filepath.Dir(res.Snapshot), testDefaultDir)
		}
	})

	t.Run("existing unwritable configured directory falls back to default", func(t *testing.T) {
		f := newRotatorFixture(t, nil)
		f.fsmgr.AddDirectory("/mnt/readonly")
		f.settings.SetSetting(ctx, helpdesk.BackupDirSetting, "/mnt/readonly", "")
		f.fsmgr.FailProbe["/mnt/readonly"] = errors.New("permission denied")

		dir, err := f.rotator.ResolveBackupDirectory(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if dir != testDefaultDir {
			t.Errorf("dir = %q, want %q", dir, testDefaultDir)
		}

		res := f.rotator.RunDailyBackup(ctx)
		if !res.Success || filepath.Dir(res.Snapshot) != testDefaultDir {
			t.Errorf("RunDailyBackup() = %+v, want success in %s", res, testDefaultDir)
		}
		if names := snapshotNames(t, f.fsmgr, "/mnt/readonly"); len(names) != 0 {
			t.Errorf("snapshots written to unwritable dir: %v", names)
		}
	})

	t.Run("setting read error falls back to default", func(t *testing.T) {
		f := newRotatorFixture(t, nil)
		f.settings.SettingErr = errors.New("database is locked")

		dir, err := f.rotator.ResolveBackupDirectory(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if dir != testDefaultDir {
			t.Errorf("dir = %q, want %q", dir, testDefaultDir)
		}
	})

	t.Run("unusable default is an error", func(t *testing.T) {
		f := newRotatorFixture(t, nil)
		f.fsmgr.FailMkdir[testDefaultDir] = errors.New("read-only file system")

		if _, err := f.rotator.ResolveBackupDirectory(ctx); err == nil {
			t.Fatal("expected error")
		}
		if res := f.rotator.RunDailyBackup(ctx); res.Success {
			t.Error("RunDailyBackup() succeeded without a directory")
		}
	})
}

func TestBackupRotator_EnsureDailyBackup(t *testing.T) {
	ctx := context.Background()

	t.Run("backs up once per calendar day", func(t *testing.T) {
		f := newRotatorFixture(t, nil)

		first := f.rotator.EnsureDailyBackup(ctx)
		if !first.Performed {
			t.Fatalf("first login: %+v", first)
		}

		f.clock.Advance(3 * time.Hour)
		second := f.rotator.EnsureDailyBackup(ctx)
		if !second.Performed {
			t.Errorf("second login: %+v, want performed", second)
		}
		if !strings.Contains(second.Message, "already done today (1 file(s))") {
			t.Errorf("second login message = %q", second.Message)
		}
		if n, _ := f.rotator.BackedUpToday(ctx); n != 1 {
			t.Errorf("BackedUpToday() = %d, want 1", n)
		}

		f.clock.Advance(24 * time.Hour)
		f.rotator.EnsureDailyBackup(ctx)
		if got := snapshotNames(t, f.fsmgr, testDefaultDir); len(got) != 2 {
			t.Errorf("snapshots = %v, want one per day", got)
		}
	})

	t.Run("manual snapshots count towards today", func(t *testing.T) {
		f := newRotatorFixture(t, nil)
		f.rotator.RunDailyBackup(ctx)
		f.clock.Advance(time.Minute)
		f.rotator.RunDailyBackup(ctx)

		res := f.rotator.EnsureDailyBackup(ctx)
		if !strings.Contains(res.Message, "(2 file(s))") {
			t.Errorf("Message = %q, want 2 files", res.Message)
		}
	})

	t.Run("failed backup is reported", func(t *testing.T) {
		f := newRotatorFixture(t, nil)
		f.fsmgr.FailCopy = errors.New("disk full")

		res := f.rotator.EnsureDailyBackup(ctx)
		if res.Performed {
			t.Errorf("EnsureDailyBackup() = %+v, want not performed", res)
		}
	})
}

func TestBackupRotator_ListSnapshots(t *testing.T) {
	ctx := context.Background()
	f := newRotatorFixture(t, nil)
	for i := 0; i < 3; i++ {
		f.rotator.RunDailyBackup(ctx)
		f.clock.Advance(-time.Hour) // names sort opposite to creation order
	}

	snaps, dir, err := f.rotator.ListSnapshots(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if dir != testDefaultDir {
		t.Errorf("dir = %q", dir)
	}
	if len(snaps) != 3 {
		t.Fatalf("len = %d, want 3", len(snaps))
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i-1].Name >= snaps[i].Name {
			t.Errorf("not sorted by name: %s, %s", snaps[i-1].Name, snaps[i].Name)
		}
	}

	again, _, _ := f.rotator.ListSnapshots(ctx)
	if len(again) != 3 {
		t.Error("ListSnapshots modified the directory")
	}
}

func TestBackupRotator_SetBackupDirectory(t *testing.T) {
	ctx := context.Background()

	t.Run("valid directory is persisted", func(t *testing.T) {
		f := newRotatorFixture(t, nil)

		dir, err := f.rotator.SetBackupDirectory(ctx, "/mnt/nas/./helpdesk")
		if err != nil {
			t.Fatalf("SetBackupDirectory() error = %v", err)
		}
		if dir != "/mnt/nas/helpdesk" {
			t.Errorf("dir = %q", dir)
		}
		stored, ok, _ := f.settings.GetSetting(ctx, helpdesk.BackupDirSetting)
		if !ok || stored != "/mnt/nas/helpdesk" {
			t.Errorf("stored = %q, %v", stored, ok)
		}
		if got, _ := f.rotator.ConfiguredBackupDirectory(ctx); got != "/mnt/nas/helpdesk" {
			t.Errorf("ConfiguredBackupDirectory() = %q", got)
		}
	})

	t.Run("unwritable directory leaves previous value", func(t *testing.T) {
		f := newRotatorFixture(t, nil)
		f.settings.SetSetting(ctx, helpdesk.BackupDirSetting, "/mnt/previous", "")
		f.fsmgr.FailProbe["/mnt/readonly"] = errors.New("permission denied")

		_, err := f.rotator.SetBackupDirectory(ctx, "/mnt/readonly")
		if !errors.Is(err, helpdesk.ErrInvalidBackupDir) {
			t.Fatalf("error = %v, want ErrInvalidBackupDir", err)
		}
		stored, _, _ := f.settings.GetSetting(ctx, helpdesk.BackupDirSetting)
		if stored != "/mnt/previous" {
			t.Errorf("stored = %q, want /mnt/previous", stored)
		}
	})

	t.Run("empty path is invalid", func(t *testing.T) {
		f := newRotatorFixture(t, nil)
		if _, err := f.rotator.ValidateBackupDirectory(""); !errors.Is(err, helpdesk.ErrInvalidBackupDir) {
			t.Errorf("error = %v, want ErrInvalidBackupDir", err)
		}
	})

	t.Run("unset reports the default", func(t *testing.T) {
		f := newRotatorFixture(t, nil)
		if got, _ := f.rotator.ConfiguredBackupDirectory(ctx); got != testDefaultDir {
			t.Errorf("ConfiguredBackupDirectory() = %q, want %q", got, testDefaultDir)
		}
	})
}

func TestBackupRotator_RealFilesystem(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	dbPath := filepath.Join(root, "helpdesk.db")
	db := testutil.NewTestFileDatabase(t, dbPath)

	rotator := helpdesk.NewBackupRotator(
		helpdesk.RotatorConfig{DatabasePath: dbPath, DefaultDir: filepath.Join(root, "backups")},
		db, fs.NewOSFilesystemManager(), nil, nil,
		helpdesk.NewNopLogger(), testutil.FixedClock(), helpdesk.UUIDGenerator{},
	)

	res := rotator.RunDailyBackup(ctx)
	if !res.Success {
		t.Fatalf("RunDailyBackup() = %+v", res)
	}
	live, err := os.ReadFile(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := os.ReadFile(res.Snapshot)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(live, snap) {
		t.Error("snapshot differs from live database")
	}

	other := filepath.Join(root, "elsewhere")
	if _, err := rotator.SetBackupDirectory(ctx, other); err != nil {
		t.Fatalf("SetBackupDirectory() error = %v", err)
	}
	entries, err := os.ReadDir(other)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("probe file left behind: %v", entries)
	}
	if n, err := rotator.BackedUpToday(ctx); err != nil || n != 0 {
		t.Errorf("BackedUpToday() in new dir = %d, %v; want 0", n, err)
	}
}

func TestBackupRotator_RealFilesystem_unwritableConfiguredDir(t *testing.T) {
	// /proc exists but rejects new files, even for root.
	if _, err := os.Stat("/proc/self"); err != nil {
		t.Skip("no /proc on this system")
	}
	ctx := context.Background()
	root := t.TempDir()
	dbPath := filepath.Join(root, "helpdesk.db")
	db := testutil.NewTestFileDatabase(t, dbPath)
	defaultDir := filepath.Join(root, "backups")

	if err := db.SetSetting(ctx, helpdesk.BackupDirSetting, "/proc", ""); err != nil {
		t.Fatal(err)
	}
	rotator := helpdesk.NewBackupRotator(
		helpdesk.RotatorConfig{DatabasePath: dbPath, DefaultDir: defaultDir},
		db, fs.NewOSFilesystemManager(), nil, nil,
		helpdesk.NewNopLogger(), testutil.FixedClock(), helpdesk.UUIDGenerator{},
	)

	dir, err := rotator.ResolveBackupDirectory(ctx)
	if err != nil {
		t.Fatalf("ResolveBackupDirectory() error = %v", err)
	}
	if dir != defaultDir {
		t.Errorf("ResolveBackupDirectory() = %q, want %q", dir, defaultDir)
	}

	res := rotator.RunDailyBackup(ctx)
	if !res.Success {
		t.Fatalf("RunDailyBackup() = %+v", res)
	}
	if filepath.Dir(res.Snapshot) != defaultDir {
		t.Errorf("snapshot in %q, want %q", filepath.Dir(res.Snapshot), defaultDir)
	}
}

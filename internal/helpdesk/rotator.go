package helpdesk

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"helpdesk/internal/model"
)

const (
	// SnapshotPrefix and SnapshotExt frame every snapshot file name.
	SnapshotPrefix = "backup_"
	SnapshotExt    = ".db"

	// SnapshotTimeLayout is the timestamp embedded in a snapshot name.
	SnapshotTimeLayout = "2006-01-02_15-04-05"
	// SnapshotDayLayout is the calendar-day prefix of SnapshotTimeLayout.
	SnapshotDayLayout = "2006-01-02"

	// DefaultRetention is the number of snapshots kept after a rotation.
	DefaultRetention = 14

	// BackupDirSetting is the configuracoes key holding the backup directory.
	BackupDirSetting = "backup_dir"

	backupDirDescription = "Directory where database backups are stored"
)

// SnapshotName returns the file name of a snapshot taken at the given time.
func SnapshotName(timestamp string) string {
	return SnapshotPrefix + timestamp + SnapshotExt
}

// Offsite ships a finished local snapshot to secondary storage.
type Offsite interface {
	Ship(ctx context.Context, snapshot model.SnapshotInfo) error
}

// BackupObserver is notified after every rotation attempt.
type BackupObserver interface {
	ObserveBackup(success bool, retained int)
}

// RotatorConfig holds the static settings of a BackupRotator.
type RotatorConfig struct {
	// DatabasePath is the live database file that gets copied.
	DatabasePath string
	// DefaultDir is used when backup_dir is unset or unusable.
	DefaultDir string
	// Retention is the number of snapshots kept; values < 1 mean DefaultRetention.
	Retention int
}

// BackupResult reports the outcome of one rotation.
type BackupResult struct {
	Success  bool
	Message  string
	Snapshot string
	Removed  []string
	Retained int
}

// LoginBackup is the backup summary returned with a successful login.
type LoginBackup struct {
	Performed bool   `json:"realizado"`
	Message   string `json:"mensagem"`
}

// BackupRotator snapshots the live database into the backup directory and
// keeps only the newest Retention snapshots.
type BackupRotator struct {
	cfg      RotatorConfig
	settings SettingsStore
	fsmgr    FilesystemManager
	offsite  Offsite
	observer BackupObserver
	logger   Logger
	clock    Clock
	idgen    IDGenerator

	mu sync.Mutex
}

// NewBackupRotator creates a rotator. offsite and observer may be nil.
func NewBackupRotator(cfg RotatorConfig, settings SettingsStore, fsmgr FilesystemManager, offsite Offsite, observer BackupObserver, logger Logger, clock Clock, idgen IDGenerator) *BackupRotator {
	if cfg.Retention < 1 {
		cfg.Retention = DefaultRetention
	}
	return &BackupRotator{
		cfg:      cfg,
		settings: settings,
		fsmgr:    fsmgr,
		offsite:  offsite,
		observer: observer,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
	}
}

// ResolveBackupDirectory returns the directory snapshots go to, reading the
// backup_dir setting fresh on every call. An unset, unreadable or uncreatable
// configured directory falls back to the default directory.
func (r *BackupRotator) ResolveBackupDirectory(ctx context.Context) (string, error) {
	configured, ok, err := r.settings.GetSetting(ctx, BackupDirSetting)
	if err != nil {
		r.logger.Warn("reading backup directory setting failed, using default", "error", err)
		ok = false
	}

	if ok && configured != "" {
		dir, err := r.prepareConfiguredDir(configured)
		if err == nil {
			return dir, nil
		}
		r.logger.Warn("configured backup directory unusable, using default",
			"configured", configured, "default", r.cfg.DefaultDir, "error", err)
	}

	dir, err := r.prepareDir(r.cfg.DefaultDir)
	if err != nil {
		return "", fmt.Errorf("preparing default backup directory: %w", err)
	}
	return dir, nil
}

func (r *BackupRotator) prepareDir(raw string) (string, error) {
	dir, err := normalizeDir(raw)
	if err != nil {
		return "", err
	}
	if err := r.fsmgr.MkdirAll(dir); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return dir, nil
}

// prepareConfiguredDir also checks that the directory takes writes, so an
// existing read-only directory falls back like a missing one.
func (r *BackupRotator) prepareConfiguredDir(raw string) (string, error) {
	dir, err := r.prepareDir(raw)
	if err != nil {
		return "", err
	}
	if err := r.fsmgr.ProbeWritable(dir, r.probeName()); err != nil {
		return "", fmt.Errorf("%s not writable: %w", dir, err)
	}
	return dir, nil
}

func (r *BackupRotator) probeName() string {
	return ".write-probe-" + r.idgen.New() + ".tmp"
}

func normalizeDir(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("empty path")
	}
	dir, err := filepath.Abs(filepath.Clean(raw))
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	return dir, nil
}

// RunDailyBackup copies the live database into a new snapshot, then deletes
// the oldest snapshots so that at most Retention remain. Success is false
// only when the copy itself fails; failed deletions are logged and skipped.
func (r *BackupRotator) RunDailyBackup(ctx context.Context) BackupResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run(ctx)
}

func (r *BackupRotator) run(ctx context.Context) BackupResult {
	result := r.snapshot(ctx)
	if r.observer != nil {
		r.observer.ObserveBackup(result.Success, result.Retained)
	}
	return result
}

func (r *BackupRotator) snapshot(ctx context.Context) BackupResult {
	dir, err := r.ResolveBackupDirectory(ctx)
	if err != nil {
		r.logger.Error("backup failed", "error", err)
		return BackupResult{Message: fmt.Sprintf("backup failed: %v", err)}
	}

	timestamp := r.clock.Now().Format(SnapshotTimeLayout)
	target := filepath.Join(dir, SnapshotName(timestamp))
	if err := r.fsmgr.CopyFile(r.cfg.DatabasePath, target); err != nil {
		r.logger.Error("backup failed", "source", r.cfg.DatabasePath, "target", target, "error", err)
		return BackupResult{Message: fmt.Sprintf("backup failed: %v", err)}
	}
	r.logger.Info("backup created", "path", target)

	result := BackupResult{
		Success:  true,
		Message:  fmt.Sprintf("backup completed at %s", timestamp),
		Snapshot: target,
	}

	snapshots, err := r.fsmgr.ListFiles(dir, SnapshotPrefix+"*"+SnapshotExt)
	if err != nil {
		r.logger.Error("listing snapshots for rotation failed", "dir", dir, "error", err)
		return result
	}
	r.logger.Info("snapshots found", "count", len(snapshots))

	retained := len(snapshots)
	if excess := len(snapshots) - r.cfg.Retention; excess > 0 {
		r.logger.Info("removing old snapshots", "count", excess, "retention", r.cfg.Retention)
		for _, old := range snapshots[:excess] {
			if err := r.fsmgr.Remove(old.Path); err != nil {
				r.logger.Error("removing old snapshot failed", "path", old.Path, "error", err)
				continue
			}
			r.logger.Info("old snapshot removed", "path", old.Path)
			result.Removed = append(result.Removed, old.Path)
			retained--
		}
	}
	result.Retained = retained

	if r.offsite != nil {
		info := model.SnapshotInfo{
			Name:      filepath.Base(target),
			Path:      target,
			CreatedAt: r.clock.Now(),
		}
		for _, s := range snapshots {
			if s.Path == target {
				info.Size = s.Size
				info.CreatedAt = s.CreatedAt
			}
		}
		if err := r.offsite.Ship(ctx, info); err != nil {
			r.logger.Warn("offsite copy failed", "snapshot", info.Name, "error", err)
			result.Message += fmt.Sprintf(" (offsite copy failed: %v)", err)
		}
	}
	return result
}

// BackedUpToday returns the number of snapshots in the resolved directory
// whose name carries today's date.
func (r *BackupRotator) BackedUpToday(ctx context.Context) (int, error) {
	dir, err := r.ResolveBackupDirectory(ctx)
	if err != nil {
		return 0, err
	}
	day := r.clock.Now().Format(SnapshotDayLayout)
	today, err := r.fsmgr.ListFiles(dir, SnapshotPrefix+day+"_*"+SnapshotExt)
	if err != nil {
		return 0, fmt.Errorf("listing today's snapshots: %w", err)
	}
	return len(today), nil
}

// EnsureDailyBackup runs a backup unless one already exists for today.
// It is the policy applied after every successful login.
func (r *BackupRotator) EnsureDailyBackup(ctx context.Context) LoginBackup {
	r.mu.Lock()
	defer r.mu.Unlock()

	count, err := r.BackedUpToday(ctx)
	if err != nil {
		r.logger.Warn("checking today's snapshots failed", "error", err)
	}
	if err == nil && count > 0 {
		return LoginBackup{
			Performed: true,
			Message:   fmt.Sprintf("backup already done today (%d file(s))", count),
		}
	}

	result := r.run(ctx)
	r.logger.Info("backup check after login", "message", result.Message)
	return LoginBackup{Performed: result.Success, Message: result.Message}
}

// ListSnapshots returns the snapshots in the resolved directory sorted by
// name, together with that directory. It never modifies anything.
func (r *BackupRotator) ListSnapshots(ctx context.Context) ([]model.SnapshotInfo, string, error) {
	dir, err := r.ResolveBackupDirectory(ctx)
	if err != nil {
		return nil, "", err
	}
	entries, err := r.fsmgr.ListFiles(dir, SnapshotPrefix+"*"+SnapshotExt)
	if err != nil {
		return nil, dir, fmt.Errorf("listing snapshots: %w", err)
	}

	snapshots := make([]model.SnapshotInfo, len(entries))
	for i, e := range entries {
		snapshots[i] = model.SnapshotInfo{
			Name:      filepath.Base(e.Path),
			Path:      e.Path,
			Size:      e.Size,
			CreatedAt: e.CreatedAt,
		}
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Name < snapshots[j].Name })
	return snapshots, dir, nil
}

// ValidateBackupDirectory normalizes path, creates it if absent and checks
// that a file can be written and removed inside it.
func (r *BackupRotator) ValidateBackupDirectory(path string) (string, error) {
	dir, err := normalizeDir(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBackupDir, err)
	}
	if err := r.fsmgr.ProbeWritable(dir, r.probeName()); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBackupDir, err)
	}
	return dir, nil
}

// SetBackupDirectory validates path and persists it as the backup directory.
// On validation failure the previous setting stays in effect.
func (r *BackupRotator) SetBackupDirectory(ctx context.Context, path string) (string, error) {
	dir, err := r.ValidateBackupDirectory(path)
	if err != nil {
		return "", err
	}
	if err := r.settings.SetSetting(ctx, BackupDirSetting, dir, backupDirDescription); err != nil {
		return "", fmt.Errorf("saving backup directory: %w", err)
	}
	r.logger.Info("backup directory updated", "dir", dir)
	return dir, nil
}

// ConfiguredBackupDirectory returns the stored backup_dir value, or the
// default directory when none is stored.
func (r *BackupRotator) ConfiguredBackupDirectory(ctx context.Context) (string, error) {
	value, ok, err := r.settings.GetSetting(ctx, BackupDirSetting)
	if err != nil {
		return "", fmt.Errorf("reading backup directory setting: %w", err)
	}
	if !ok || value == "" {
		return r.cfg.DefaultDir, nil
	}
	return value, nil
}

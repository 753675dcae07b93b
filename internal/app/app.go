package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"helpdesk/internal/config"
	"helpdesk/internal/database"
	"helpdesk/internal/database/migrations"
	"helpdesk/internal/encryption"
	"helpdesk/internal/fs"
	"helpdesk/internal/helpdesk"
	"helpdesk/internal/metrics"
	"helpdesk/internal/model"
	"helpdesk/internal/offsite"
	"helpdesk/internal/server"
	"helpdesk/internal/session"
	"helpdesk/internal/vault"
)

// ErrOffsiteDisabled is returned by offsite operations when no vault is configured.
var ErrOffsiteDisabled = errors.New("offsite archive is not configured")

// HelpdeskApp is the application layer between the CLI and the services.
// It constructs all dependencies from config and owns their lifecycle.
type HelpdeskApp struct {
	cfg        *config.Config
	db         *database.SQLiteDatabase
	vault      offsite.Vault
	encryptor  offsite.Encryptor
	shipper    *offsite.Shipper
	rotator    *helpdesk.BackupRotator
	auth       *helpdesk.AuthService
	metrics    metrics.Recorder
	logger     helpdesk.Logger
	logFile    *os.File
	instanceID string
}

// NewHelpdeskApp creates a fully wired HelpdeskApp from cfg. The database is
// opened and migrated. The caller must call Close when done.
func NewHelpdeskApp(ctx context.Context, cfg *config.Config) (*HelpdeskApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	instanceID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, instanceID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	a := &HelpdeskApp{
		cfg:        cfg,
		logger:     log,
		logFile:    logFile,
		instanceID: instanceID,
		metrics:    metrics.New(cfg.Metrics),
	}

	a.db, err = database.NewDatabaseFromConfig(ctx, cfg.Database)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a.vault, err = vault.NewVaultFromConfig(ctx, cfg.Offsite)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating offsite vault: %w", err)
	}
	a.encryptor, err = encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	var shipTo helpdesk.Offsite
	if a.vault != nil {
		a.shipper = offsite.NewShipper(a.vault, a.encryptor, log)
		shipTo = a.shipper
	}

	a.rotator = helpdesk.NewBackupRotator(
		helpdesk.RotatorConfig{
			DatabasePath: a.db.Path(),
			DefaultDir:   cfg.Backup.DefaultDir,
			Retention:    cfg.Backup.Retention,
		},
		a.db, fs.NewOSFilesystemManager(), shipTo, a.metrics, log,
		helpdesk.RealClock{}, helpdesk.UUIDGenerator{},
	)
	a.auth = helpdesk.NewAuthService(a.db, log)

	return a, nil
}

// Logger returns the application logger.
func (a *HelpdeskApp) Logger() helpdesk.Logger {
	return a.logger
}

// NewServer wires the HTTP server. The session signing key is created on
// first use.
func (a *HelpdeskApp) NewServer() (*server.Server, error) {
	key, err := session.LoadOrCreateKey(a.cfg.Session.SecretKeyPath)
	if err != nil {
		return nil, err
	}
	clock := helpdesk.RealClock{}

	return server.New(server.Deps{
		Store:    a.db,
		Auth:     a.auth,
		Guard:    helpdesk.NewIntegrityGuard(helpdesk.NewFingerprinter(a.db, a.db), helpdesk.NewMemoryBaseline(), a.logger),
		Rotator:  a.rotator,
		Stats:    helpdesk.NewStatisticsService(a.db, helpdesk.DefaultRetryPolicy(a.logger), clock),
		Sessions: session.NewManager(key, a.cfg.Session.IdleTimeout.Duration, clock),
		Metrics:  a.metrics,
		Logger:   a.logger,
	}), nil
}

// Serve runs the HTTP server until ctx is cancelled.
func (a *HelpdeskApp) Serve(ctx context.Context) error {
	if a.vault != nil {
		if err := a.vault.ValidateSetup(ctx); err != nil {
			a.logger.Warn("offsite vault not reachable, snapshots will stay local until it is", "error", err)
		}
	}
	srv, err := a.NewServer()
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	a.logger.Info("helpdesk starting", "instance", a.instanceID, "database", a.db.Path())
	return srv.ListenAndServe(ctx, a.cfg.ListenAddr)
}

// Migrate applies pending migrations and returns the schema version.
func (a *HelpdeskApp) Migrate(ctx context.Context) (uint, error) {
	if err := a.db.Migrate(ctx); err != nil {
		return 0, fmt.Errorf("migrating database: %w", err)
	}
	current, _, err := migrations.Status(a.db.DB().DB)
	if err != nil {
		return 0, err
	}
	return current, nil
}

// RunBackup takes a snapshot now, regardless of whether one exists for today.
func (a *HelpdeskApp) RunBackup(ctx context.Context) helpdesk.BackupResult {
	return a.rotator.RunDailyBackup(ctx)
}

// EnsureDailyBackup takes a snapshot unless one already exists for today.
func (a *HelpdeskApp) EnsureDailyBackup(ctx context.Context) helpdesk.LoginBackup {
	return a.rotator.EnsureDailyBackup(ctx)
}

// ListSnapshots returns the local snapshots and their directory.
func (a *HelpdeskApp) ListSnapshots(ctx context.Context) ([]model.SnapshotInfo, string, error) {
	return a.rotator.ListSnapshots(ctx)
}

// BackedUpToday returns the number of snapshots taken today.
func (a *HelpdeskApp) BackedUpToday(ctx context.Context) (int, error) {
	return a.rotator.BackedUpToday(ctx)
}

// ListOffsite returns the snapshot names present in the offsite vault.
func (a *HelpdeskApp) ListOffsite(ctx context.Context) ([]string, error) {
	if a.shipper == nil {
		return nil, ErrOffsiteDisabled
	}
	return a.shipper.List(ctx)
}

// FetchOffsite restores one archived snapshot into w. passphrase unlocks the
// private key and is ignored when archives are not encrypted.
func (a *HelpdeskApp) FetchOffsite(ctx context.Context, name, passphrase string, w io.Writer) error {
	if a.shipper == nil {
		return ErrOffsiteDisabled
	}
	var dc offsite.DecryptionContext
	if a.encryptor != nil {
		var err error
		dc, err = a.encryptor.Unlock(passphrase)
		if err != nil {
			return fmt.Errorf("unlocking private key: %w", err)
		}
	}
	return a.shipper.Fetch(ctx, name, dc, w)
}

// EncryptionEnabled reports whether offsite archives are encrypted.
func (a *HelpdeskApp) EncryptionEnabled() bool {
	return a.encryptor != nil
}

// SetupEncryption generates the offsite key pair.
func (a *HelpdeskApp) SetupEncryption(passphrase string) error {
	if a.encryptor == nil {
		return errors.New("encryption type is \"none\"; set [encryption] type = \"age\" first")
	}
	if a.encryptor.IsConfigured() {
		return errors.New("encryption keys already exist")
	}
	return a.encryptor.Setup(passphrase)
}

// SetPassword replaces a user's password.
func (a *HelpdeskApp) SetPassword(ctx context.Context, username, password string) error {
	return a.auth.SetPassword(ctx, username, password)
}

// Close releases the database and the log file.
func (a *HelpdeskApp) Close() error {
	var firstErr error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the helpdesk server configuration.
type Config struct {
	ListenAddr string           `toml:"listen_addr"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Database   DatabaseConfig   `toml:"database"`
	Session    SessionConfig    `toml:"session"`
	Backup     BackupConfig     `toml:"backup"`
	Offsite    OffsiteConfig    `toml:"offsite"`
	Encryption EncryptionConfig `toml:"encryption"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// DatabaseConfig locates the live database.
type DatabaseConfig struct {
	Type string `toml:"type"`           // "sqlite" or "memory"
	Path string `toml:"path,omitempty"` // only used for type=sqlite
}

// SessionConfig controls the session cookie.
type SessionConfig struct {
	SecretKeyPath string   `toml:"secret_key_path"`
	IdleTimeout   Duration `toml:"idle_timeout"`
}

// BackupConfig holds the local snapshot settings. The backup_dir setting
// stored in the database takes precedence over DefaultDir.
type BackupConfig struct {
	DefaultDir string `toml:"default_dir"`
	Retention  int    `toml:"retention"`
}

// OffsiteConfig selects where finished snapshots are shipped.
// This uses a tagged union pattern: Type determines which other fields are relevant.
type OffsiteConfig struct {
	Type string `toml:"type"` // "none", "filesystem", "s3" or "memory"

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`

	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for offsite archives.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none", "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Duration is a time.Duration written as a Go duration string ("8h").
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Defaults used by NewConfig.
const (
	DefaultListenAddr  = "127.0.0.1:5000"
	DefaultIdleTimeout = 8 * time.Hour
	DefaultRetention   = 14
)

// NewConfig creates a Config rooted at baseDir with default values.
func NewConfig(baseDir string) *Config {
	return &Config{
		ListenAddr: DefaultListenAddr,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: filepath.Join(baseDir, "helpdesk.db"),
		},
		Session: SessionConfig{
			SecretKeyPath: filepath.Join(baseDir, "keys", "session.key"),
			IdleTimeout:   Duration{DefaultIdleTimeout},
		},
		Backup: BackupConfig{
			DefaultDir: filepath.Join(baseDir, "backups"),
			Retention:  DefaultRetention,
		},
		Offsite: OffsiteConfig{Type: "none"},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "offsite.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "offsite.key"),
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Validate checks that the fields needed at startup are present.
func (c *Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if c.Database.Type == "sqlite" && c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required for sqlite"))
	}
	if c.Backup.DefaultDir == "" {
		errs = append(errs, errors.New("backup.default_dir is required"))
	}
	if c.Backup.Retention < 0 {
		errs = append(errs, errors.New("backup.retention must not be negative"))
	}
	if c.Session.SecretKeyPath == "" {
		errs = append(errs, errors.New("session.secret_key_path is required"))
	}
	return errors.Join(errs...)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from r.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes cfg to w.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg, err := (&Manager{}).Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Init writes cfg to a new file at path. An existing file is never overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := (&Manager{}).Write(f, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := NewConfig("/srv/helpdesk")
	original.ListenAddr = "0.0.0.0:8080"
	original.Session.IdleTimeout = Duration{30 * time.Minute}
	original.Backup.Retention = 7
	original.Offsite = OffsiteConfig{
		Type:       "s3",
		S3Bucket:   "helpdesk-backups",
		S3Prefix:   "prod",
		S3Region:   "us-east-1",
		S3Endpoint: "http://localhost:9000",
	}
	original.Encryption.Type = "age"

	var buf bytes.Buffer
	m := &Manager{}
	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.Contains(buf.String(), `idle_timeout = "30m0s"`) {
		t.Errorf("idle_timeout not written as a duration string:\n%s", buf.String())
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.ListenAddr != original.ListenAddr {
		t.Errorf("ListenAddr = %q, want %q", got.ListenAddr, original.ListenAddr)
	}
	if got.Database != original.Database {
		t.Errorf("Database = %+v, want %+v", got.Database, original.Database)
	}
	if got.Session.IdleTimeout.Duration != 30*time.Minute {
		t.Errorf("IdleTimeout = %v, want 30m", got.Session.IdleTimeout)
	}
	if got.Backup != original.Backup {
		t.Errorf("Backup = %+v, want %+v", got.Backup, original.Backup)
	}
	if got.Offsite != original.Offsite {
		t.Errorf("Offsite = %+v, want %+v", got.Offsite, original.Offsite)
	}
	if got.Encryption != original.Encryption {
		t.Errorf("Encryption = %+v, want %+v", got.Encryption, original.Encryption)
	}
	if !got.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

func TestManager_Read_InvalidDuration(t *testing.T) {
	_, err := (&Manager{}).Read(strings.NewReader("[session]\nidle_timeout = \"eight hours\"\n"))
	if err == nil {
		t.Fatal("Read() expected error for invalid duration")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/helpdesk")

	checks := []struct {
		name, got, want string
	}{
		{"LogDir", cfg.LogDir, "/data/helpdesk/log"},
		{"Database.Path", cfg.Database.Path, "/data/helpdesk/helpdesk.db"},
		{"Session.SecretKeyPath", cfg.Session.SecretKeyPath, "/data/helpdesk/keys/session.key"},
		{"Backup.DefaultDir", cfg.Backup.DefaultDir, "/data/helpdesk/backups"},
		{"Offsite.Type", cfg.Offsite.Type, "none"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
	if cfg.Backup.Retention != 14 {
		t.Errorf("Backup.Retention = %d, want 14", cfg.Backup.Retention)
	}
	if cfg.Session.IdleTimeout.Duration != 8*time.Hour {
		t.Errorf("IdleTimeout = %v, want 8h", cfg.Session.IdleTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := NewConfig("/data/helpdesk")
	cfg.ListenAddr = ""
	cfg.Backup.DefaultDir = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, want := range []string{"listen_addr", "backup.default_dir"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "helpdesk.toml")

		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "helpdesk.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "helpdesk.toml")
		cfg := NewConfig(dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want memory", got.Database.Type)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/helpdesk.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}

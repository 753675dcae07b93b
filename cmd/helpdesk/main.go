package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"helpdesk/internal/app"
	"helpdesk/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a HelpdeskApp. The caller must defer app.Close().
func newApp(ctx context.Context) (*app.HelpdeskApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewHelpdeskApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readSecret prompts on stderr and reads a line from the terminal without echo.
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return string(b), nil
}

func readNewSecret(what string) (string, error) {
	first, err := readSecret(fmt.Sprintf("New %s: ", what))
	if err != nil {
		return "", err
	}
	second, err := readSecret(fmt.Sprintf("Repeat %s: ", what))
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("entries do not match")
	}
	return first, nil
}

var rootCmd = &cobra.Command{
	Use:          "helpdesk",
	Short:        "Helpdesk ticketing backend",
	SilenceUsage: true,
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Serve(ctx)
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Listen:       %s\n", cfg.ListenAddr)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Database:     %s %s\n", cfg.Database.Type, cfg.Database.Path)
		fmt.Printf("Backups:      %s (keep %d)\n", cfg.Backup.DefaultDir, cfg.Backup.Retention)
		fmt.Printf("Idle Timeout: %s\n", cfg.Session.IdleTimeout)
		fmt.Printf("Offsite:      %s\n", cfg.Offsite.Type)
		fmt.Printf("Encryption:   %s\n", cfg.Encryption.Type)
		fmt.Printf("Metrics:      %t\n", cfg.Metrics.Enabled)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		version, err := a.Migrate(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Schema at version %d\n", version)
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage database snapshots",
}

var backupRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Take a snapshot now",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		result := a.RunBackup(cmd.Context())
		if !result.Success {
			return errors.New(result.Message)
		}
		fmt.Println(result.Message)
		fmt.Printf("Snapshot: %s\n", result.Snapshot)
		for _, removed := range result.Removed {
			fmt.Printf("Removed:  %s\n", removed)
		}
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		offsite, _ := cmd.Flags().GetBool("offsite")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if offsite {
			names, err := a.ListOffsite(cmd.Context())
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Println("No offsite archives.")
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		}

		snaps, dir, err := a.ListSnapshots(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Directory: %s\n\n", dir)
		if len(snaps) == 0 {
			fmt.Println("No snapshots.")
			return nil
		}
		for _, s := range snaps {
			fmt.Printf("%s  %s  %8.2f MB\n",
				s.CreatedAt.Format("2006-01-02 15:04:05"),
				s.Name,
				float64(s.Size)/(1024*1024),
			)
		}
		return nil
	},
}

var backupTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "Take a snapshot unless one exists for today",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		result := a.EnsureDailyBackup(cmd.Context())
		fmt.Println(result.Message)
		if !result.Performed {
			return errors.New("no snapshot for today")
		}
		return nil
	},
}

var backupFetchCmd = &cobra.Command{
	Use:   "fetch NAME",
	Short: "Restore a snapshot from the offsite archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		name := args[0]
		if out == "" {
			out = name
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var passphrase string
		if a.EncryptionEnabled() {
			passphrase, err = readSecret("Passphrase: ")
			if err != nil {
				return err
			}
		}

		absOut, err := filepath.Abs(out)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}
		f, err := os.OpenFile(absOut, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		if err := a.FetchOffsite(cmd.Context(), name, passphrase, f); err != nil {
			f.Close()
			os.Remove(absOut)
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing output file: %w", err)
		}

		fmt.Printf("Restored %s to %s\n", name, absOut)
		return nil
	},
}

var backupKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the key pair for encrypted offsite archives",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readNewSecret("passphrase")
		if err != nil {
			return err
		}
		if err := a.SetupEncryption(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Println("Key pair generated. Keep the passphrase safe: archives cannot be restored without it.")
		return nil
	},
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd USERNAME",
	Short: "Set a user's password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		password, err := readNewSecret("password")
		if err != nil {
			return err
		}
		if err := a.SetPassword(cmd.Context(), args[0], password); err != nil {
			return fmt.Errorf("setting password: %w", err)
		}
		fmt.Printf("Password updated for %s\n", args[0])
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)

	// backup subcommands
	backupCmd.AddCommand(backupRunCmd)
	backupCmd.AddCommand(backupListCmd)
	backupListCmd.Flags().Bool("offsite", false, "List archives in the offsite vault instead")
	backupCmd.AddCommand(backupTodayCmd)
	backupCmd.AddCommand(backupFetchCmd)
	backupFetchCmd.Flags().StringP("output", "o", "", "Output file (default: NAME in the current directory)")
	backupCmd.AddCommand(backupKeygenCmd)

	// user subcommands
	userCmd.AddCommand(userPasswdCmd)

	// root commands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(userCmd)
}

package vault

import (
	"context"
	"fmt"

	"helpdesk/internal/config"
	"helpdesk/internal/offsite"
)

// NewVaultFromConfig creates the Vault selected by cfg.Type.
// "none" (or empty) returns nil: snapshots stay local only.
func NewVaultFromConfig(ctx context.Context, cfg config.OffsiteConfig) (offsite.Vault, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "memory":
		return NewMemoryVault("memory"), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem offsite requires fs_root to be set")
		}
		v, err := NewFileSystemVault("filesystem", cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "s3":
		v, err := NewS3Vault(ctx, "s3", cfg)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown offsite type: %s", cfg.Type)
	}
}

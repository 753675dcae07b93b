package testutil

import (
	"helpdesk/internal/vault"
)

// NewTestVault creates an in-memory offsite vault for testing.
func NewTestVault() *vault.MemoryVault {
	return vault.NewMemoryVault("test-vault")
}

package testutil

import (
	"helpdesk/internal/encryption"
	"helpdesk/internal/offsite"
)

// NewTestEncryptor creates a reversible, keyless encryptor for testing.
func NewTestEncryptor() offsite.Encryptor {
	return encryption.NewTestEncryptor()
}

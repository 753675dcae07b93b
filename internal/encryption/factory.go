package encryption

import (
	"fmt"

	"helpdesk/internal/config"
	"helpdesk/internal/offsite"
)

// NewEncryptorFromConfig creates the Encryptor selected by cfg.Type.
// "none" (or empty) returns nil: archives are shipped unencrypted.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (offsite.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}

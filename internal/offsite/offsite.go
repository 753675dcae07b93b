// Package offsite ships local database snapshots to secondary storage as
// zstd-compressed, optionally age-encrypted archives.
package offsite

import (
	"context"
	"io"
)

// Vault is the secondary storage snapshots are shipped to.
type Vault interface {
	// Put stores the size bytes read from r under key, replacing any
	// existing object.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get writes the object stored under key to w.
	Get(ctx context.Context, key string, w io.Writer) error

	// List returns the keys starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}

// Encryptor encrypts archives with a public key; decryption needs the
// passphrase-protected private key.
type Encryptor interface {
	// Setup generates and stores a new key pair, protecting the private key
	// with passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key and returns a context able to decrypt archives.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether the key pair exists.
	IsConfigured() bool

	// Extension is appended to archive keys, e.g. ".age".
	Extension() string
}

// DecryptionContext holds an unlocked private key.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}

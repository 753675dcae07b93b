package offsite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"

	"helpdesk/internal/helpdesk"
	"helpdesk/internal/model"
)

const (
	// SnapshotPrefix is the vault key prefix of every archive.
	SnapshotPrefix = "snapshots/"

	compressedExt = ".zst"
)

// Shipper implements helpdesk.Offsite.
type Shipper struct {
	vault     Vault
	encryptor Encryptor
	logger    helpdesk.Logger
}

var _ helpdesk.Offsite = (*Shipper)(nil)

// NewShipper creates a Shipper. A nil encryptor ships compressed plaintext.
func NewShipper(vault Vault, encryptor Encryptor, logger helpdesk.Logger) *Shipper {
	return &Shipper{vault: vault, encryptor: encryptor, logger: logger}
}

// ArchiveKey returns the vault key of a snapshot archive.
func (s *Shipper) ArchiveKey(snapshotName string) string {
	key := SnapshotPrefix + snapshotName + compressedExt
	if s.encryptor != nil {
		key += s.encryptor.Extension()
	}
	return key
}

// Ship compresses, optionally encrypts, and uploads one snapshot.
func (s *Shipper) Ship(ctx context.Context, snap model.SnapshotInfo) error {
	if s.encryptor != nil && !s.encryptor.IsConfigured() {
		return fmt.Errorf("offsite encryption keys are not set up")
	}

	src, err := os.Open(snap.Path)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer src.Close()

	spool, err := os.CreateTemp("", "helpdesk-offsite-*")
	if err != nil {
		return fmt.Errorf("creating spool file: %w", err)
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	if err := s.pack(src, spool); err != nil {
		return err
	}

	size, err := spool.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("sizing archive: %w", err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding archive: %w", err)
	}

	key := s.ArchiveKey(snap.Name)
	if err := s.vault.Put(ctx, key, spool, size); err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	s.logger.Info("snapshot shipped offsite", "key", key, "bytes", size, "original_bytes", snap.Size)
	return nil
}

// pack writes the compressed, optionally encrypted, form of r to w.
func (s *Shipper) pack(r io.Reader, w io.Writer) error {
	if s.encryptor == nil {
		return compress(r, w)
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(compress(r, pw))
	}()
	if err := s.encryptor.Encrypt(pr, w); err != nil {
		pr.CloseWithError(err)
		return fmt.Errorf("encrypting archive: %w", err)
	}
	return nil
}

func compress(r io.Reader, w io.Writer) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating compressor: %w", err)
	}
	if _, err := io.Copy(enc, r); err != nil {
		enc.Close()
		return fmt.Errorf("compressing: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finishing compression: %w", err)
	}
	return nil
}

// Fetch downloads the archive of snapshotName and writes the original
// snapshot bytes to w. dc may be nil for unencrypted archives.
func (s *Shipper) Fetch(ctx context.Context, snapshotName string, dc DecryptionContext, w io.Writer) error {
	key := s.ArchiveKey(snapshotName)
	if s.encryptor != nil && dc == nil {
		return errors.New("archive is encrypted; unlock the private key first")
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(s.vault.Get(ctx, key, pw))
	}()
	defer pr.Close()

	var compressed io.Reader = pr
	if s.encryptor != nil {
		dr, dw := io.Pipe()
		go func() {
			dw.CloseWithError(dc.Decrypt(pr, dw))
		}()
		defer dr.Close()
		compressed = dr
	}

	dec, err := zstd.NewReader(compressed)
	if err != nil {
		return fmt.Errorf("creating decompressor: %w", err)
	}
	defer dec.Close()

	if _, err := io.Copy(w, dec); err != nil {
		return fmt.Errorf("fetching %s: %w", key, err)
	}
	return nil
}

// List returns the snapshot names present in the vault.
func (s *Shipper) List(ctx context.Context) ([]string, error) {
	keys, err := s.vault.List(ctx, SnapshotPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing archives: %w", err)
	}
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		name := path.Base(key)
		if s.encryptor != nil {
			name = strings.TrimSuffix(name, s.encryptor.Extension())
		}
		name = strings.TrimSuffix(name, compressedExt)
		names = append(names, name)
	}
	return names, nil
}

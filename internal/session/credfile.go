package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CredentialFile is the single durable slot holding the raw bearer token.
// An absent or empty file means "no session". It is read once at bootstrap,
// written only on login/register success and cleared only on teardown.
type CredentialFile struct {
	path string
}

// NewCredentialFile returns a slot backed by the file at path.
func NewCredentialFile(path string) *CredentialFile {
	return &CredentialFile{path: path}
}

// Path returns the backing file path.
func (f *CredentialFile) Path() string { return f.path }

// Read returns the stored token, or "" if the slot is absent or empty.
func (f *CredentialFile) Read() (string, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading credential file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Write stores the token, replacing the slot atomically so a crash mid-write
// never leaves a truncated credential behind.
func (f *CredentialFile) Write(token string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating credential dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cred-*")
	if err != nil {
		return fmt.Errorf("creating temp credential file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	if _, err := tmp.WriteString(token); err != nil {
		return fmt.Errorf("writing credential: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing credential: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing credential: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("restricting credential perms: %w", err)
	}

	// Rename can fail on Windows if the destination exists; retry after
	// removing it, which preserves the old file on the first failure.
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(f.path)
		if err2 := os.Rename(tmpPath, f.path); err2 != nil {
			return fmt.Errorf("replacing credential file: %v (after remove: %v)", err, err2)
		}
	}
	return nil
}

// Clear removes the slot. A missing file is not an error.
func (f *CredentialFile) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing credential file: %w", err)
	}
	return nil
}

// DefaultCredentialPath returns the per-user default slot location.
func DefaultCredentialPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config dir: %w", err)
	}
	return filepath.Join(dir, "smartrisk", "credential"), nil
}

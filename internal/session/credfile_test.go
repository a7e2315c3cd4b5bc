package session_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartrisk/internal/session"
)

func TestCredentialFileRoundTrip(t *testing.T) {
	f := session.NewCredentialFile(filepath.Join(t.TempDir(), "nested", "credential"))

	stored, err := f.Read()
	require.NoError(t, err)
	assert.Empty(t, stored, "absent slot means no session")

	require.NoError(t, f.Write("tok-123"))

	stored, err = f.Read()
	require.NoError(t, err)
	assert.Equal(t, "tok-123", stored)

	// Overwrite replaces, never appends.
	require.NoError(t, f.Write("tok-456"))
	stored, err = f.Read()
	require.NoError(t, err)
	assert.Equal(t, "tok-456", stored)
}

func TestCredentialFileClear(t *testing.T) {
	f := session.NewCredentialFile(filepath.Join(t.TempDir(), "credential"))

	require.NoError(t, f.Clear(), "clearing an absent slot is not an error")

	require.NoError(t, f.Write("tok"))
	require.NoError(t, f.Clear())

	stored, err := f.Read()
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestCredentialFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	path := filepath.Join(t.TempDir(), "credential")
	f := session.NewCredentialFile(path)
	require.NoError(t, f.Write("tok"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCredentialFileTrimsWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential")
	require.NoError(t, os.WriteFile(path, []byte("tok-789\n"), 0o600))

	f := session.NewCredentialFile(path)
	stored, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, "tok-789", stored)
}

package testutil

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"smartrisk/internal/session"
)

// AdminUser returns the standard seeded administrator account.
func AdminUser() BackendUser {
	return BackendUser{
		ID:       1,
		Name:     "Ada Admin",
		Email:    "admin@smartrisk.test",
		Password: "secret123",
		Roles:    []string{"admin"},
		Permissions: []string{
			"view-dashboard",
			"view-establishments",
			"view-activities",
			"view-users",
			"view-roles",
		},
	}
}

// StartBackend starts a mock backend over HTTP and closes it with the test.
func StartBackend(t *testing.T, users ...BackendUser) (*Backend, *httptest.Server) {
	t.Helper()
	backend := NewBackend(users...)
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	return backend, srv
}

// NewStore builds a session store against backendURL with a throwaway
// credential slot and a discarded logger.
func NewStore(t *testing.T, backendURL string) (*session.Store, *session.CredentialFile) {
	t.Helper()
	creds := session.NewCredentialFile(filepath.Join(t.TempDir(), "credential"))
	store := session.New(backendURL, creds, session.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return store, creds
}

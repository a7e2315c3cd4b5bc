package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartrisk/internal/domain"
	"smartrisk/internal/session"
	"smartrisk/internal/testutil"
)

func TestBootstrapWithoutCredentialGoesAnonymous(t *testing.T) {
	backend, srv := testutil.StartBackend(t, testutil.AdminUser())
	store, _ := testutil.NewStore(t, srv.URL)

	require.Equal(t, session.PhaseBootstrapping, store.Phase())

	store.Bootstrap(context.Background())

	assert.Equal(t, session.PhaseAnonymous, store.Phase())
	assert.Zero(t, backend.ProfileCalls(), "no network call expected without a credential")
	assert.Zero(t, backend.LoginCalls())
}

func TestBootstrapRestoresPersistedSession(t *testing.T) {
	backend, srv := testutil.StartBackend(t, testutil.AdminUser())
	store, creds := testutil.NewStore(t, srv.URL)

	require.NoError(t, creds.Write(backend.IssueToken("admin@smartrisk.test")))

	store.Bootstrap(context.Background())

	assert.Equal(t, session.PhaseAuthenticated, store.Phase())
	assert.Equal(t, "admin@smartrisk.test", store.Principal().Email)
	assert.True(t, store.HasRole("admin"))
	assert.True(t, store.HasPermission("view-dashboard"))
}

func TestBootstrapRejectedCredentialTearsDownLocally(t *testing.T) {
	backend, srv := testutil.StartBackend(t, testutil.AdminUser())
	store, creds := testutil.NewStore(t, srv.URL)

	// A token the backend did not sign is rejected on the profile fetch.
	require.NoError(t, creds.Write("stale-or-foreign-token"))

	store.Bootstrap(context.Background())

	assert.Equal(t, session.PhaseAnonymous, store.Phase())
	assert.Empty(t, store.Credential())

	stored, err := creds.Read()
	require.NoError(t, err)
	assert.Empty(t, stored, "durable credential must be cleared")
	assert.Zero(t, backend.LogoutCalls(), "bootstrap failure must not call the backend logout")
}

func TestBootstrapRunsOnce(t *testing.T) {
	backend, srv := testutil.StartBackend(t, testutil.AdminUser())
	store, creds := testutil.NewStore(t, srv.URL)

	require.NoError(t, creds.Write(backend.IssueToken("admin@smartrisk.test")))
	store.Bootstrap(context.Background())
	require.Equal(t, 1, backend.ProfileCalls())

	store.Bootstrap(context.Background())
	assert.Equal(t, 1, backend.ProfileCalls(), "bootstrap must not re-run after the phase settled")
}

func TestLoginInstallsSessionAtomically(t *testing.T) {
	_, srv := testutil.StartBackend(t, testutil.AdminUser())
	store, creds := testutil.NewStore(t, srv.URL)
	store.Bootstrap(context.Background())

	principal, err := store.Login(context.Background(), "admin@smartrisk.test", "secret123")
	require.NoError(t, err)

	assert.Equal(t, session.PhaseAuthenticated, store.Phase())
	assert.Equal(t, "Ada Admin", principal.Name)
	assert.True(t, store.HasPermission("view-users"))
	assert.False(t, store.HasPermission("manage-backups"))
	assert.True(t, store.HasRole("admin"))
	assert.True(t, store.HasAnyRole("inspector", "admin"))
	assert.False(t, store.HasAnyRole("inspector", "auditor"))

	stored, err := creds.Read()
	require.NoError(t, err)
	assert.Equal(t, store.Credential(), stored, "credential must be persisted durably")
}

func TestLoginFailureLeavesPriorStateUntouched(t *testing.T) {
	_, srv := testutil.StartBackend(t, testutil.AdminUser())
	store, _ := testutil.NewStore(t, srv.URL)
	store.Bootstrap(context.Background())

	_, err := store.Login(context.Background(), "admin@smartrisk.test", "secret123")
	require.NoError(t, err)
	token := store.Credential()

	_, err = store.Login(context.Background(), "admin@smartrisk.test", "wrong-password")
	require.Error(t, err)
	assert.True(t, domain.IsUnauthorized(err))

	// A 401 from the login endpoint itself must not tear the session down.
	assert.Equal(t, session.PhaseAuthenticated, store.Phase())
	assert.Equal(t, token, store.Credential())
	assert.True(t, store.HasRole("admin"))
}

func TestLoginErrorClassification(t *testing.T) {
	inactive := testutil.BackendUser{
		ID: 7, Name: "Ivy", Email: "ivy@smartrisk.test", Password: "pw", Inactive: true,
	}
	_, srv := testutil.StartBackend(t, testutil.AdminUser(), inactive)
	store, _ := testutil.NewStore(t, srv.URL)
	store.Bootstrap(context.Background())

	_, err := store.Login(context.Background(), "admin@smartrisk.test", "nope")
	assert.True(t, domain.IsUnauthorized(err), "bad credentials: %v", err)

	_, err = store.Login(context.Background(), "ivy@smartrisk.test", "pw")
	assert.True(t, domain.IsForbidden(err), "inactive account: %v", err)

	_, err = store.Login(context.Background(), "", "")
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err), "missing fields: %v", err)

	assert.Equal(t, session.PhaseAnonymous, store.Phase())
}

func TestLoginNetworkUnavailable(t *testing.T) {
	_, srv := testutil.StartBackend(t, testutil.AdminUser())
	store, _ := testutil.NewStore(t, srv.URL)
	store.Bootstrap(context.Background())
	srv.Close()

	_, err := store.Login(context.Background(), "admin@smartrisk.test", "secret123")
	require.Error(t, err)
	assert.True(t, domain.IsNetworkUnavailable(err))
	assert.Equal(t, session.PhaseAnonymous, store.Phase())
}

func TestConcurrentLoginsAreDeduplicated(t *testing.T) {
	backend, srv := testutil.StartBackend(t, testutil.AdminUser())
	store, _ := testutil.NewStore(t, srv.URL)
	store.Bootstrap(context.Background())

	backend.SetLoginDelay(100 * time.Millisecond)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = store.Login(context.Background(), "admin@smartrisk.test", "secret123")
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, backend.LoginCalls(), "duplicate in-flight logins must share one call")
	assert.Equal(t, session.PhaseAuthenticated, store.Phase())
}

func TestRegisterStartsSession(t *testing.T) {
	_, srv := testutil.StartBackend(t)
	store, creds := testutil.NewStore(t, srv.URL)
	store.Bootstrap(context.Background())

	principal, err := store.Register(context.Background(), domain.RegisterRequest{
		Name:                 "New Operator",
		Email:                "new@smartrisk.test",
		Password:             "secret123",
		PasswordConfirmation: "secret123",
	})
	require.NoError(t, err)

	assert.Equal(t, session.PhaseAuthenticated, store.Phase())
	assert.Equal(t, "new@smartrisk.test", principal.Email)
	assert.True(t, store.HasPermission("view-dashboard"))

	stored, err := creds.Read()
	require.NoError(t, err)
	assert.NotEmpty(t, stored)
}

func TestRegisterValidationErrors(t *testing.T) {
	_, srv := testutil.StartBackend(t, testutil.AdminUser())
	store, _ := testutil.NewStore(t, srv.URL)
	store.Bootstrap(context.Background())

	_, err := store.Register(context.Background(), domain.RegisterRequest{
		Name:                 "Dup",
		Email:                "admin@smartrisk.test",
		Password:             "secret123",
		PasswordConfirmation: "secret123",
	})
	require.Error(t, err)
	require.True(t, domain.IsValidation(err))

	var apiErr *domain.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Fields, "email")
	assert.Equal(t, session.PhaseAnonymous, store.Phase())
}

func TestLogoutClearsEverything(t *testing.T) {
	backend, srv := testutil.StartBackend(t, testutil.AdminUser())
	store, creds := testutil.NewStore(t, srv.URL)
	store.Bootstrap(context.Background())

	_, err := store.Login(context.Background(), "admin@smartrisk.test", "secret123")
	require.NoError(t, err)

	store.Logout(context.Background())

	assert.Equal(t, session.PhaseAnonymous, store.Phase())
	assert.Empty(t, store.Credential())
	assert.Equal(t, domain.Principal{}, store.Principal())
	assert.False(t, store.HasPermission("view-dashboard"))
	assert.False(t, store.HasRole("admin"))
	assert.False(t, store.HasAnyRole("admin"))
	assert.Equal(t, 1, backend.LogoutCalls())

	stored, err := creds.Read()
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestLogoutSurvivesBackendFailure(t *testing.T) {
	_, srv := testutil.StartBackend(t, testutil.AdminUser())
	store, creds := testutil.NewStore(t, srv.URL)
	store.Bootstrap(context.Background())

	_, err := store.Login(context.Background(), "admin@smartrisk.test", "secret123")
	require.NoError(t, err)

	// Backend unreachable during logout: local teardown must still happen.
	srv.Close()
	store.Logout(context.Background())

	assert.Equal(t, session.PhaseAnonymous, store.Phase())
	assert.Empty(t, store.Credential())
	assert.False(t, store.HasPermission("view-dashboard"))

	stored, err := creds.Read()
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestAuthFailureOnResourceCallTearsDown(t *testing.T) {
	backend, srv := testutil.StartBackend(t, testutil.AdminUser())
	store, creds := testutil.NewStore(t, srv.URL)
	store.Bootstrap(context.Background())

	_, err := store.Login(context.Background(), "admin@smartrisk.test", "secret123")
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, store.Gateway().Get(context.Background(), "/dashboard", &out))

	// The backend expires all sessions; the next resource call sees a 401
	// and the gateway interceptor tears the session down locally.
	backend.RotateSecret()

	err = store.Gateway().Get(context.Background(), "/dashboard", &out)
	require.Error(t, err)
	assert.True(t, domain.IsUnauthorized(err), "original error surfaces unchanged: %v", err)

	assert.Equal(t, session.PhaseAnonymous, store.Phase())
	assert.Empty(t, store.Credential())

	stored, err := creds.Read()
	require.NoError(t, err)
	assert.Empty(t, stored)
}

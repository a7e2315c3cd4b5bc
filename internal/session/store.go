// Package session is the single source of truth for "who is logged in and
// what can they do". The Store owns the credential, the principal and the
// derived role/permission sets; every other component only reads them or
// invokes Store operations.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"smartrisk/internal/domain"
	"smartrisk/internal/gateway"
	"smartrisk/internal/platform/telemetry"
)

// Options configures a Store.
type Options struct {
	Timeout    time.Duration
	Logger     *slog.Logger
	Metrics    *telemetry.ConsoleMetrics
	HTTPClient *http.Client
}

// Store holds the session state and the operations that change it.
//
// The Store and its gateway are constructed together: the gateway reads the
// current credential live from the Store and triggers the Store's local
// teardown when it detects an authentication failure outside the login and
// register endpoints.
type Store struct {
	gw      *gateway.Client
	creds   *CredentialFile
	logger  *slog.Logger
	metrics *telemetry.ConsoleMetrics

	mu          sync.RWMutex
	phase       Phase
	credential  string
	principal   domain.Principal
	roles       map[string]struct{}
	permissions map[string]struct{}

	flight singleflight.Group
}

// New creates a Store bound to the backend at backendURL, wiring the gateway
// and the store into one unit.
func New(backendURL string, creds *CredentialFile, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		creds:   creds,
		logger:  logger,
		metrics: opts.Metrics,
		phase:   PhaseBootstrapping,
	}
	s.gw = gateway.New(backendURL, gateway.Options{
		Credential: s.Credential,
		Timeout:    opts.Timeout,
		Logger:     logger,
		Metrics:    opts.Metrics,
		HTTPClient: opts.HTTPClient,
		Interceptors: []gateway.ResponseInterceptor{
			gateway.AuthFailureTeardown(gateway.DefaultAuthExempt, s.teardown),
		},
	})
	return s
}

// Gateway returns the client every backend call must go through, so resource
// consumers share the credential attachment and auth-failure interception.
func (s *Store) Gateway() *gateway.Client { return s.gw }

// Phase returns the current session phase.
func (s *Store) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Credential returns the current bearer token, or "" when no session is set.
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// Principal returns the authenticated principal as last fetched from the
// backend. The zero value is returned outside the Authenticated phase.
func (s *Store) Principal() domain.Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.principal
}

// HasPermission reports whether name is in the current permission set.
// It returns false, never an error, when no session is loaded.
func (s *Store) HasPermission(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.permissions == nil {
		return false
	}
	_, ok := s.permissions[name]
	return ok
}

// HasRole reports whether name is in the current role set.
func (s *Store) HasRole(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.roles == nil {
		return false
	}
	_, ok := s.roles[name]
	return ok
}

// HasAnyRole reports whether any of names is in the current role set.
// Guarded like HasRole: false on an empty session.
func (s *Store) HasAnyRole(names ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.roles == nil {
		return false
	}
	for _, name := range names {
		if _, ok := s.roles[name]; ok {
			return true
		}
	}
	return false
}

// Login authenticates against the backend. On success the credential is
// persisted durably and the principal and role/permission sets are installed
// atomically. On failure prior state is left untouched and the classified
// backend error is returned for UI rendering.
//
// Duplicate calls issued while one is in flight join the first call's result
// instead of racing on store state.
func (s *Store) Login(ctx context.Context, identifier, secret string) (domain.Principal, error) {
	v, err, _ := s.flight.Do("login", func() (any, error) {
		return s.authenticate(ctx, "login", "/login", domain.LoginRequest{
			Email:    identifier,
			Password: secret,
		})
	})
	if err != nil {
		return domain.Principal{}, err
	}
	return v.(domain.Principal), nil
}

// Register creates an account and starts a session, with the same contract
// shape as Login.
func (s *Store) Register(ctx context.Context, fields domain.RegisterRequest) (domain.Principal, error) {
	v, err, _ := s.flight.Do("register", func() (any, error) {
		return s.authenticate(ctx, "register", "/register", fields)
	})
	if err != nil {
		return domain.Principal{}, err
	}
	return v.(domain.Principal), nil
}

func (s *Store) authenticate(ctx context.Context, op, path string, body any) (domain.Principal, error) {
	var resp domain.AuthResponse
	if err := s.gw.Post(ctx, path, body, &resp); err != nil {
		s.recordOp(ctx, op, "failure")
		return domain.Principal{}, err
	}
	if err := s.creds.Write(resp.Token); err != nil {
		s.recordOp(ctx, op, "failure")
		return domain.Principal{}, fmt.Errorf("persisting credential: %w", err)
	}
	principal := resp.User.Principal()
	s.setAuthenticated(resp.Token, principal)
	s.recordOp(ctx, op, "success")
	s.logger.Info("session established", "op", op, "principal", principal.Email)
	return principal, nil
}

// Logout best-effort informs the backend, then unconditionally clears all
// local session state. It never fails: a network error during logout must
// not prevent local teardown.
func (s *Store) Logout(ctx context.Context) {
	if err := s.gw.Post(ctx, "/logout", nil, nil); err != nil {
		s.logger.Warn("backend logout failed, clearing local session anyway", "error", err)
	}
	s.teardown()
	s.recordOp(ctx, "logout", "success")
}

// Bootstrap validates the persisted credential, if any, and settles the phase.
// It must be called once at process start; it always leaves Bootstrapping,
// even on error paths. No backend logout call is made on failure.
func (s *Store) Bootstrap(ctx context.Context) {
	s.mu.RLock()
	started := s.phase == PhaseBootstrapping
	s.mu.RUnlock()
	if !started {
		return
	}

	token, err := s.creds.Read()
	if err != nil {
		s.logger.Warn("credential slot unreadable, starting anonymous", "error", err)
		s.teardown()
		s.recordOp(ctx, "bootstrap", "failure")
		return
	}
	if token == "" {
		s.setAnonymous()
		s.recordOp(ctx, "bootstrap", "anonymous")
		return
	}

	// Install the credential so the gateway attaches it to the profile fetch.
	s.mu.Lock()
	s.credential = token
	s.mu.Unlock()

	var resp domain.ProfileResponse
	if err := s.gw.Get(ctx, "/profile", &resp); err != nil {
		s.logger.Info("stored credential rejected, starting anonymous", "error", err)
		s.teardown()
		s.recordOp(ctx, "bootstrap", "failure")
		return
	}

	s.setAuthenticated(token, resp.User.Principal())
	s.recordOp(ctx, "bootstrap", "success")
	s.logger.Info("session restored", "principal", resp.User.Email)
}

// setAuthenticated installs credential, principal and both derived sets as
// one atomic update; readers never observe a credential with a stale or
// missing principal.
func (s *Store) setAuthenticated(token string, p domain.Principal) {
	roles := make(map[string]struct{}, len(p.Roles))
	for _, r := range p.Roles {
		roles[r] = struct{}{}
	}
	permissions := make(map[string]struct{}, len(p.Permissions))
	for _, perm := range p.Permissions {
		permissions[perm] = struct{}{}
	}

	s.mu.Lock()
	from := s.phase
	s.credential = token
	s.principal = p
	s.roles = roles
	s.permissions = permissions
	s.phase = PhaseAuthenticated
	s.mu.Unlock()

	s.recordTransition(from, PhaseAuthenticated)
}

func (s *Store) setAnonymous() {
	s.mu.Lock()
	from := s.phase
	s.phase = PhaseAnonymous
	s.mu.Unlock()

	s.recordTransition(from, PhaseAnonymous)
}

// teardown clears all session state locally and moves to Anonymous. It is
// idempotent; it runs on logout, on detected auth failures and on failed
// bootstrap.
func (s *Store) teardown() {
	s.mu.Lock()
	from := s.phase
	s.credential = ""
	s.principal = domain.Principal{}
	s.roles = nil
	s.permissions = nil
	s.phase = PhaseAnonymous
	s.mu.Unlock()

	if err := s.creds.Clear(); err != nil {
		s.logger.Warn("clearing credential slot failed", "error", err)
	}
	s.recordTransition(from, PhaseAnonymous)
}

func (s *Store) recordOp(ctx context.Context, op, result string) {
	if s.metrics != nil {
		s.metrics.RecordSessionOp(ctx, op, result)
	}
}

func (s *Store) recordTransition(from, to Phase) {
	if from == to {
		return
	}
	if s.metrics != nil {
		s.metrics.RecordPhaseTransition(context.Background(), from.String(), to.String())
	}
}

// Package testutil provides a mock Smart Risk backend implementing the
// contract the session core depends on: login, register, profile, logout,
// the public survey endpoint and a few representative resource collections.
// It backs both the unit tests and cmd/mockapi.
package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"smartrisk/internal/domain"
)

const tokenTTL = time.Hour

// BackendUser is a seeded account on the mock backend.
type BackendUser struct {
	ID          int64
	Name        string
	Email       string
	Password    string
	Inactive    bool
	Roles       []string
	Permissions []string
}

// Survey is a token-gated satisfaction survey record.
type Survey struct {
	Establishment string   `json:"establishment"`
	Questions     []string `json:"questions"`
}

// Backend is an http.Handler implementing the Smart Risk REST contract.
// Credentials are HS256 JWTs signed with a per-instance secret, so a token
// from one instance is rejected by another — convenient for simulating
// expired or foreign credentials.
type Backend struct {
	mu           sync.Mutex
	users        map[string]*BackendUser
	surveys      map[string]Survey
	secret       []byte
	nextID       int64
	loginDelay   time.Duration
	loginCalls   int
	logoutCalls  int
	profileCalls int
	mux          *http.ServeMux
}

// NewBackend creates a mock backend seeded with the given users.
func NewBackend(users ...BackendUser) *Backend {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("testutil: generating backend secret: " + err.Error())
	}

	b := &Backend{
		users:   make(map[string]*BackendUser),
		surveys: make(map[string]Survey),
		secret:  secret,
	}
	for i := range users {
		u := users[i]
		if u.ID == 0 {
			u.ID = b.nextID + 1
		}
		if u.ID > b.nextID {
			b.nextID = u.ID
		}
		b.users[u.Email] = &u
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", b.handleLogin)
	mux.HandleFunc("POST /register", b.handleRegister)
	mux.HandleFunc("GET /profile", b.handleProfile)
	mux.HandleFunc("POST /logout", b.handleLogout)
	mux.HandleFunc("GET /survey/{token}", b.handleSurvey)
	mux.HandleFunc("GET /dashboard", b.resource(map[string]any{
		"classifications": map[string]int{"fire": 12, "collapse": 4},
		"establishments":  27,
	}))
	mux.HandleFunc("GET /establishments", b.resource([]map[string]any{
		{"id": 1, "name": "Harbor Mill", "risk": "fire"},
		{"id": 2, "name": "Northgate Depot", "risk": "collapse"},
	}))
	mux.HandleFunc("GET /activities", b.resource([]map[string]any{
		{"id": 1, "name": "Textile manufacturing"},
		{"id": 2, "name": "Cold storage"},
	}))
	mux.HandleFunc("GET /users", b.handleUsers)
	mux.HandleFunc("GET /roles", b.resource([]map[string]any{
		{"id": 1, "name": "admin"},
		{"id": 2, "name": "inspector"},
	}))
	b.mux = mux
	return b
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mux.ServeHTTP(w, r)
}

// AddSurvey registers a survey reachable at /survey/{token}.
func (b *Backend) AddSurvey(token string, s Survey) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.surveys[token] = s
}

// RotateSecret replaces the signing secret, invalidating every token issued
// so far — the backend-side equivalent of expiring all sessions.
func (b *Backend) RotateSecret() {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("testutil: rotating backend secret: " + err.Error())
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.secret = secret
}

// SetLoginDelay makes every login call sleep for d before responding.
func (b *Backend) SetLoginDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loginDelay = d
}

// LoginCalls returns how many login requests the backend has served.
func (b *Backend) LoginCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loginCalls
}

// LogoutCalls returns how many logout requests the backend has served.
func (b *Backend) LogoutCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logoutCalls
}

// ProfileCalls returns how many profile requests the backend has served.
func (b *Backend) ProfileCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.profileCalls
}

// IssueToken mints a credential for email as the backend itself would.
func (b *Backend) IssueToken(email string) string {
	b.mu.Lock()
	secret := b.secret
	b.mu.Unlock()

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": email,
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
		"iss": "smartrisk-mock",
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		panic("testutil: signing token: " + err.Error())
	}
	return signed
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.loginCalls++
	delay := b.loginDelay
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, "invalid JSON body", nil)
		return
	}

	fields := map[string][]string{}
	if req.Email == "" {
		fields["email"] = []string{"The email field is required."}
	}
	if req.Password == "" {
		fields["password"] = []string{"The password field is required."}
	}
	if len(fields) > 0 {
		writeEnvelope(w, http.StatusUnprocessableEntity, "The given data was invalid.", fields)
		return
	}

	b.mu.Lock()
	u, ok := b.users[req.Email]
	b.mu.Unlock()
	if !ok || u.Password != req.Password {
		writeEnvelope(w, http.StatusUnauthorized, "Invalid credentials.", nil)
		return
	}
	if u.Inactive {
		writeEnvelope(w, http.StatusForbidden, "Account inactive.", nil)
		return
	}

	writeJSON(w, http.StatusOK, domain.AuthResponse{
		Token: b.IssueToken(u.Email),
		User:  payloadFor(u),
	})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, "invalid JSON body", nil)
		return
	}

	fields := map[string][]string{}
	if req.Name == "" {
		fields["name"] = []string{"The name field is required."}
	}
	if req.Email == "" {
		fields["email"] = []string{"The email field is required."}
	}
	if req.Password == "" {
		fields["password"] = []string{"The password field is required."}
	} else if req.Password != req.PasswordConfirmation {
		fields["password"] = []string{"The password confirmation does not match."}
	}

	b.mu.Lock()
	if _, exists := b.users[req.Email]; req.Email != "" && exists {
		fields["email"] = append(fields["email"], "The email has already been taken.")
	}
	if len(fields) > 0 {
		b.mu.Unlock()
		writeEnvelope(w, http.StatusUnprocessableEntity, "The given data was invalid.", fields)
		return
	}

	b.nextID++
	u := &BackendUser{
		ID:          b.nextID,
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		Roles:       []string{"user"},
		Permissions: []string{"view-dashboard"},
	}
	b.users[u.Email] = u
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, domain.AuthResponse{
		Token: b.IssueToken(u.Email),
		User:  payloadFor(u),
	})
}

func (b *Backend) handleProfile(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.profileCalls++
	b.mu.Unlock()

	u, ok := b.authenticate(r)
	if !ok {
		writeEnvelope(w, http.StatusUnauthorized, "Unauthenticated.", nil)
		return
	}
	writeJSON(w, http.StatusOK, domain.ProfileResponse{User: payloadFor(u)})
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	if _, ok := b.authenticate(r); !ok {
		writeEnvelope(w, http.StatusUnauthorized, "Unauthenticated.", nil)
		return
	}
	b.mu.Lock()
	b.logoutCalls++
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out."})
}

func (b *Backend) handleSurvey(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	b.mu.Lock()
	s, ok := b.surveys[token]
	b.mu.Unlock()
	if !ok {
		writeEnvelope(w, http.StatusNotFound, "Survey not found.", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"survey": s})
}

func (b *Backend) handleUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := b.authenticate(r); !ok {
		writeEnvelope(w, http.StatusUnauthorized, "Unauthenticated.", nil)
		return
	}
	b.mu.Lock()
	out := make([]domain.UserPayload, 0, len(b.users))
	for _, u := range b.users {
		out = append(out, payloadFor(u))
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

// resource wraps a static payload behind the bearer check shared by all
// protected collections.
func (b *Backend) resource(payload any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := b.authenticate(r); !ok {
			writeEnvelope(w, http.StatusUnauthorized, "Unauthenticated.", nil)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func (b *Backend) authenticate(r *http.Request) (*BackendUser, bool) {
	auth := r.Header.Get("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, false
	}

	b.mu.Lock()
	secret := b.secret
	b.mu.Unlock()

	token, err := jwt.Parse(strings.TrimSpace(parts[1]), func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}
	sub, _ := claims["sub"].(string)

	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[sub]
	if !ok || u.Inactive {
		return nil, false
	}
	return u, true
}

func payloadFor(u *BackendUser) domain.UserPayload {
	roles := make([]domain.NameRef, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = domain.NameRef{Name: r}
	}
	perms := make([]domain.NameRef, len(u.Permissions))
	for i, p := range u.Permissions {
		perms[i] = domain.NameRef{Name: p}
	}
	return domain.UserPayload{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Roles:       roles,
		Permissions: perms,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeEnvelope(w http.ResponseWriter, status int, message string, fields map[string][]string) {
	writeJSON(w, status, domain.BackendError{Message: message, Errors: fields})
}

// RandomToken returns an opaque hex token, handy for survey links.
func RandomToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic("testutil: generating token: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

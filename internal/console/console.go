// Package console serves the Smart Risk admin surface: login and logout,
// permission-guarded resource views proxied through the gateway, and the
// public token-gated satisfaction survey.
package console

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"

	"smartrisk/internal/console/middleware"
	"smartrisk/internal/guard"
	"smartrisk/internal/platform/telemetry"
	"smartrisk/internal/session"
)

const maxFormBody = 64 << 10 // login/register forms only

// protectedRoute maps a console path to the backend collection it proxies
// and the permission required to view it.
type protectedRoute struct {
	path        string
	backendPath string
	permission  string
}

// Console wires the guarded routes over one session store.
type Console struct {
	store      *session.Store
	gate       *guard.Gate
	paths      guard.Paths
	logger     *slog.Logger
	metrics    *telemetry.ConsoleMetrics
	surveyMemo *cache.Cache
}

// New creates a Console over the given store.
// The metrics parameter is optional; pass nil to skip metric recording.
func New(store *session.Store, logger *slog.Logger, metrics *telemetry.ConsoleMetrics) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	paths := guard.DefaultPaths()
	return &Console{
		store:      store,
		gate:       guard.New(store, paths, metrics),
		paths:      paths,
		logger:     logger,
		metrics:    metrics,
		surveyMemo: cache.New(time.Minute, 5*time.Minute),
	}
}

// Handler returns the console's route tree.
func (c *Console) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Metrics(c.metrics),
		middleware.RequestID,
		middleware.Logging(c.logger),
		middleware.Recovery,
		middleware.MaxBodySize(maxFormBody),
	)

	r.Get("/healthz", c.healthz)
	r.Method(http.MethodGet, "/metrics", telemetry.MetricsHandler())

	// Auth-only pages: an authenticated session is steered back to the
	// landing view by the public gate.
	r.Group(func(r chi.Router) {
		r.Use(c.gate.PublicOnly())
		r.Get("/login", c.loginPage)
		r.Post("/login", c.loginSubmit)
		r.Get("/register", c.registerPage)
		r.Post("/register", c.registerSubmit)
	})

	// Public regardless of phase.
	r.Get("/survey/{token}", c.survey)
	r.Get("/unauthorized", c.unauthorizedPage)

	r.Group(func(r chi.Router) {
		r.Use(c.gate.RequireAuth())
		r.Post("/logout", c.logoutSubmit)
	})

	for _, rt := range []protectedRoute{
		{path: "/dashboard", backendPath: "/dashboard", permission: "view-dashboard"},
		{path: "/establishments", backendPath: "/establishments", permission: "view-establishments"},
		{path: "/activities", backendPath: "/activities", permission: "view-activities"},
		{path: "/users", backendPath: "/users", permission: "view-users"},
		{path: "/roles", backendPath: "/roles", permission: "view-roles"},
	} {
		r.Group(func(r chi.Router) {
			r.Use(c.gate.RequirePermission(rt.permission))
			r.Get(rt.path, c.proxyHandler(rt.backendPath))
		})
	}

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, c.paths.Landing, http.StatusSeeOther)
	})

	return r
}

// Package guard implements the route gates consulted before rendering any
// view: a protected gate for permission-guarded content and a public gate
// that steers authenticated sessions away from auth-only pages.
package guard

import (
	"context"
	"slices"

	"smartrisk/internal/platform/telemetry"
	"smartrisk/internal/session"
)

// Session is the read-only view of the session store the gates consult.
type Session interface {
	Phase() session.Phase
	HasPermission(name string) bool
}

// Decision is the outcome of a gate evaluation.
type Decision int

const (
	// DecisionAllow renders the requested content.
	DecisionAllow Decision = iota
	// DecisionLoading renders a neutral loading indicator while the session
	// is still bootstrapping; no content, no redirect.
	DecisionLoading
	// DecisionRedirect discards the attempted navigation and redirects.
	DecisionRedirect
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionLoading:
		return "loading"
	case DecisionRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Result is a gate decision plus the redirect target when applicable.
type Result struct {
	Decision Decision
	Target   string
}

// Paths names the navigation targets the gates redirect between.
type Paths struct {
	Login        string
	Unauthorized string
	Landing      string
	AuthOnly     []string
}

// DefaultPaths returns the console's standard navigation targets.
func DefaultPaths() Paths {
	return Paths{
		Login:        "/login",
		Unauthorized: "/unauthorized",
		Landing:      "/dashboard",
		AuthOnly:     []string{"/login", "/register"},
	}
}

// Gate evaluates navigation against the session store.
// The metrics parameter is optional; pass nil to skip metric recording.
type Gate struct {
	session Session
	paths   Paths
	metrics *telemetry.ConsoleMetrics
}

// New creates a Gate over the given session view.
func New(s Session, paths Paths, m *telemetry.ConsoleMetrics) *Gate {
	return &Gate{session: s, paths: paths, metrics: m}
}

// Protected decides whether permission-guarded content may render.
// An empty requiredPermission means only authentication is required.
func (g *Gate) Protected(requiredPermission string) Result {
	res := g.protected(requiredPermission)
	g.record("protected", res.Decision)
	return res
}

func (g *Gate) protected(requiredPermission string) Result {
	switch g.session.Phase() {
	case session.PhaseBootstrapping:
		return Result{Decision: DecisionLoading}
	case session.PhaseAnonymous:
		return Result{Decision: DecisionRedirect, Target: g.paths.Login}
	}
	if requiredPermission != "" && !g.session.HasPermission(requiredPermission) {
		return Result{Decision: DecisionRedirect, Target: g.paths.Unauthorized}
	}
	return Result{Decision: DecisionAllow}
}

// Public decides whether unauthenticated-facing content at target may render.
// Everything not in the auth-only set renders unconditionally, which keeps
// the token-gated survey page reachable in every phase.
func (g *Gate) Public(target string) Result {
	res := g.public(target)
	g.record("public", res.Decision)
	return res
}

func (g *Gate) public(target string) Result {
	switch g.session.Phase() {
	case session.PhaseBootstrapping:
		return Result{Decision: DecisionLoading}
	case session.PhaseAuthenticated:
		if slices.Contains(g.paths.AuthOnly, target) {
			return Result{Decision: DecisionRedirect, Target: g.paths.Landing}
		}
	}
	return Result{Decision: DecisionAllow}
}

func (g *Gate) record(gate string, d Decision) {
	if g.metrics != nil {
		g.metrics.RecordGateDecision(context.Background(), gate, d.String())
	}
}

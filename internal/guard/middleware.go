package guard

import (
	"fmt"
	"net/http"
)

// RequirePermission returns middleware enforcing the protected gate for the
// wrapped routes. Redirects are silent 303s, matching the app's navigation
// behavior: no error banner, no return-url preservation.
func (g *Gate) RequirePermission(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.apply(w, r, next, g.Protected(name))
		})
	}
}

// RequireAuth returns middleware that demands authentication only.
func (g *Gate) RequireAuth() func(http.Handler) http.Handler {
	return g.RequirePermission("")
}

// PublicOnly returns middleware enforcing the public gate for the wrapped
// routes, using the request path as the navigation target.
func (g *Gate) PublicOnly() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.apply(w, r, next, g.Public(r.URL.Path))
		})
	}
}

func (g *Gate) apply(w http.ResponseWriter, r *http.Request, next http.Handler, res Result) {
	switch res.Decision {
	case DecisionLoading:
		serveLoading(w)
	case DecisionRedirect:
		http.Redirect(w, r, res.Target, http.StatusSeeOther)
	default:
		next.ServeHTTP(w, r)
	}
}

// serveLoading renders the neutral indicator shown while the session is
// bootstrapping. The refresh header retries the navigation once the phase
// has settled.
func serveLoading(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Refresh", "1")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `<!doctype html><title>Loading</title><p>Loading…</p>`)
}

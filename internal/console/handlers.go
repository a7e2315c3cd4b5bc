package console

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"smartrisk/internal/domain"
)

var loginTmpl = template.Must(template.New("login").Parse(`<!doctype html>
<title>Smart Risk — Sign in</title>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/login">
  <input name="email" type="email" placeholder="Email" required>
  <input name="password" type="password" placeholder="Password" required>
  <button type="submit">Sign in</button>
</form>
<a href="/register">Create an account</a>
`))

var registerTmpl = template.Must(template.New("register").Parse(`<!doctype html>
<title>Smart Risk — Register</title>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/register">
  <input name="name" placeholder="Name" required>
  <input name="email" type="email" placeholder="Email" required>
  <input name="password" type="password" placeholder="Password" required>
  <input name="password_confirmation" type="password" placeholder="Confirm password" required>
  <button type="submit">Register</button>
</form>
`))

type formPage struct {
	Error string
}

func (c *Console) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		c.logger.Error("encoding healthz response", "error", err)
	}
}

func (c *Console) loginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := loginTmpl.Execute(w, formPage{Error: r.URL.Query().Get("error")}); err != nil {
		c.logger.Error("rendering login page", "error", err)
	}
}

func (c *Console) loginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, c.paths.Login+"?error="+url.QueryEscape("Invalid form submission."), http.StatusSeeOther)
		return
	}
	_, err := c.store.Login(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"))
	if err != nil {
		c.logger.Info("login failed", "error", err)
		http.Redirect(w, r, c.paths.Login+"?error="+url.QueryEscape(domain.UserMessage(err)), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, c.paths.Landing, http.StatusSeeOther)
}

func (c *Console) registerPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := registerTmpl.Execute(w, formPage{Error: r.URL.Query().Get("error")}); err != nil {
		c.logger.Error("rendering register page", "error", err)
	}
}

func (c *Console) registerSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/register?error="+url.QueryEscape("Invalid form submission."), http.StatusSeeOther)
		return
	}
	fields := domain.RegisterRequest{
		Name:                 r.PostFormValue("name"),
		Email:                r.PostFormValue("email"),
		Password:             r.PostFormValue("password"),
		PasswordConfirmation: r.PostFormValue("password_confirmation"),
	}
	if _, err := c.store.Register(r.Context(), fields); err != nil {
		c.logger.Info("registration failed", "error", err)
		http.Redirect(w, r, "/register?error="+url.QueryEscape(domain.UserMessage(err)), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, c.paths.Landing, http.StatusSeeOther)
}

func (c *Console) logoutSubmit(w http.ResponseWriter, r *http.Request) {
	c.store.Logout(r.Context())
	http.Redirect(w, r, c.paths.Login, http.StatusSeeOther)
}

func (c *Console) unauthorizedPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`<!doctype html><title>Unauthorized</title><p>You do not have access to this page.</p><a href="/dashboard">Back</a>`))
}

// proxyHandler returns a handler that fetches the backend collection through
// the gateway and relays the JSON payload unchanged.
func (c *Console) proxyHandler(backendPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw json.RawMessage
		if err := c.store.Gateway().Get(r.Context(), backendPath, &raw); err != nil {
			c.writeAPIError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(raw); err != nil {
			c.logger.Error("writing proxied response", "error", err)
		}
	}
}

// survey serves the public token-gated satisfaction survey. Valid payloads
// are memoized briefly so repeated loads of the same survey link do not
// re-validate the token against the backend.
func (c *Console) survey(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if cached, ok := c.surveyMemo.Get(token); ok {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(cached.(json.RawMessage))
		return
	}

	var raw json.RawMessage
	if err := c.store.Gateway().Get(r.Context(), "/survey/"+token, &raw); err != nil {
		c.writeAPIError(w, err)
		return
	}
	c.surveyMemo.SetDefault(token, raw)

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (c *Console) writeAPIError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	resp := domain.ErrorResponse{Error: "unknown", Message: domain.UserMessage(err)}

	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		resp.Error = apiErr.Kind.String()
		resp.Fields = apiErr.Fields
		switch apiErr.Kind {
		case domain.ErrorUnauthorized:
			status = http.StatusUnauthorized
		case domain.ErrorForbidden:
			status = http.StatusForbidden
		case domain.ErrorValidation:
			status = http.StatusUnprocessableEntity
		case domain.ErrorNetworkUnavailable:
			status = http.StatusBadGateway
		default:
			if apiErr.Status != 0 {
				status = apiErr.Status
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		c.logger.Error("encoding error response", "error", encErr)
	}
}

package handlers

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/crucial707/adhoc-web/internal/middleware"
	"github.com/crucial707/adhoc-web/internal/models"
)

// PageHandler renders the HTML pages.
type PageHandler struct {
	Templates *template.Template
	AppName   string
	Auth      *middleware.Auth
	Log       *slog.Logger
}

type pageData struct {
	AppName string
	Title   string
	User    *models.User
}

// Home redirects to the dashboard when the request carries a valid token,
// otherwise to the login page.
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	if h.Auth.Authenticated(r) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "login.html", pageData{AppName: h.AppName, Title: "Login"})
}

// Dashboard must be mounted behind Auth.RequirePage.
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	h.render(w, r, "dashboard.html", pageData{AppName: h.AppName, Title: "Dashboard", User: user})
}

// render executes into a buffer so a template error never leaves a half-written page.
func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	var buf bytes.Buffer
	if err := h.Templates.ExecuteTemplate(&buf, name, data); err != nil {
		h.Log.ErrorContext(r.Context(), "render page", "template", name, "error", err)
		http.Error(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	buf.WriteTo(w)
}

package handlers

import (
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/ruteri/username-registry/api"
	"github.com/ruteri/username-registry/dashboard"
)

//go:embed templates/*.html
var templateFS embed.FS

var dashboardTemplate = template.Must(template.ParseFS(templateFS, "templates/dashboard.html"))

type dashboardPage struct {
	View        *dashboard.View
	CanTransact bool
	Status      string
	Error       string
}

// HandleDashboard renders the HTML dashboard.
//
// URL format: GET /?account=&panel=&root=&check=&status=&error=
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	account := h.accountParam(r)

	// Buttons sign with the server key, so they are only offered on its own account.
	page := dashboardPage{
		CanTransact: h.isServerAccount(account),
		Status:      query.Get("status"),
		Error:       query.Get("error"),
	}

	view, err := h.composer.Compose(r.Context(), dashboard.Request{
		Account:   account,
		Panel:     dashboard.PanelKind(query.Get("panel")),
		PanelRoot: query.Get("root"),
		Check:     query.Get("check"),
	})
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		page.Error = err.Error()
		view = &dashboard.View{}
	}
	page.View = view

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := dashboardTemplate.Execute(w, page); err != nil {
		h.log.Error("Failed to render dashboard", "err", err)
	}
}

// HandleUIAddRoot handles the new registration period form.
//
// URL format: POST /ui/roots with form field root
func (h *Handler) HandleUIAddRoot(w http.ResponseWriter, r *http.Request) {
	if err := h.parseForm(r); err != nil {
		h.redirect(w, r, "", err)
		return
	}

	tx, err := h.addRoot(r, r.PostForm.Get("root"))
	if err != nil {
		h.redirect(w, r, "", err)
		return
	}
	h.redirect(w, r, "Submitted new root in "+tx.Hash().Hex(), nil)
}

// HandleUIRegister handles the register button of a root card and the manual
// claim form of the register panel.
//
// URL format: POST /ui/register with form fields root and, optionally, claim
func (h *Handler) HandleUIRegister(w http.ResponseWriter, r *http.Request) {
	if err := h.parseForm(r); err != nil {
		h.redirect(w, r, "", err)
		return
	}

	req := api.RegisterRequest{
		Root:  r.PostForm.Get("root"),
		Claim: strings.TrimRight(r.PostForm.Get("claim"), "\r\n"),
	}
	tx, err := h.register(r, req)
	if err != nil {
		h.redirect(w, r, "", err)
		return
	}
	h.redirect(w, r, "Submitted registration in "+tx.Hash().Hex(), nil)
}

// HandleUIDeregister handles the deregister button.
//
// URL format: POST /ui/deregister
func (h *Handler) HandleUIDeregister(w http.ResponseWriter, r *http.Request) {
	if err := h.parseForm(r); err != nil {
		h.redirect(w, r, "", err)
		return
	}

	tx, err := h.registry.DeregisterSelf(r.Context())
	if err != nil {
		h.redirect(w, r, "", err)
		return
	}
	h.redirect(w, r, "Submitted deregistration in "+tx.Hash().Hex(), nil)
}

// parseForm parses a dashboard form and checks that it was submitted from
// the server's own account view. An empty account field stands for the server.
func (h *Handler) parseForm(r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	if account := r.PostForm.Get("account"); account != "" && !h.isServerAccount(account) {
		return ErrAccountMismatch
	}
	return nil
}

// redirect sends the browser back to the dashboard with the outcome of a form post.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, status string, err error) {
	query := url.Values{}
	if account := r.FormValue("account"); account != "" {
		query.Set("account", account)
	}
	if err != nil {
		h.log.Warn("Form submission failed", "path", r.URL.Path, "err", err)
		query.Set("error", err.Error())
	} else {
		query.Set("status", status)
	}
	http.Redirect(w, r, "/?"+query.Encode(), http.StatusSeeOther)
}

package web

import (
	"errors"
	"net/http"
	"strings"

	"vitality/internal/adapters/http/middleware"
	"vitality/internal/application/orchestrators"
)

// loginPage is the data for login.html.
type loginPage struct {
	Next  string
	Error string
}

// safeNext keeps redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/dashboard"
	}
	return next
}

func handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if services.OperatorPasswordHash == "" || middleware.IsOperator(r.Context()) {
		http.Redirect(w, r, safeNext(r.URL.Query().Get("next")), http.StatusSeeOther)
		return
	}
	renderTemplate(w, r, "login.html", loginPage{Next: safeNext(r.URL.Query().Get("next"))})
}

// handleLogin starts an operator session.
func handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		renderTemplateStatus(w, r, http.StatusBadRequest, "login.html", loginPage{Next: "/dashboard", Error: "Invalid form submission."})
		return
	}
	next := safeNext(r.PostFormValue("next"))

	err := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{
		Password: r.PostFormValue("password"),
		Client:   r.RemoteAddr,
	}, orchestrators.LoginDeps{
		PasswordHash: services.OperatorPasswordHash,
		Guard:        loginGuard,
	})
	switch {
	case errors.Is(err, orchestrators.ErrLoginDisabled):
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	case errors.Is(err, orchestrators.ErrLoginLocked):
		renderTemplateStatus(w, r, http.StatusTooManyRequests, "login.html", loginPage{Next: next, Error: "Too many failed attempts. Try again later."})
		return
	case err != nil:
		renderTemplateStatus(w, r, http.StatusUnauthorized, "login.html", loginPage{Next: next, Error: "Incorrect password."})
		return
	}

	token, err := sessions.Create()
	if err != nil {
		internalError(w, err)
		return
	}
	middleware.SetSessionCookie(w, token)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		sessions.Delete(token)
	}
	middleware.ClearSessionCookie(w)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

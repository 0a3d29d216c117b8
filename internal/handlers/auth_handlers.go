package handlers

import (
	"errors"
	"net/http"

	"github.com/location-tracker/app/internal/auth"
	"github.com/location-tracker/app/internal/database"
	"github.com/location-tracker/app/internal/flash"
	"github.com/location-tracker/app/internal/logging"
	"github.com/location-tracker/app/internal/metrics"
	"github.com/location-tracker/app/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

const (
	msgEmailExists         = "Email already exists"
	msgRegistrationSuccess = "Registration successful! Please login."
	msgInvalidCredentials  = "Invalid credentials"
)

type credentialsForm struct {
	Email    string `form:"email" validate:"required,max=320"`
	Password string `form:"password" validate:"required,max=72"`
}

// RegisterPage renders the user registration page.
func (h *Handler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.templates.Render(w, r, http.StatusOK, "register.html", Page{Title: "Register"})
}

// Register handles the user registration form submission.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.templates.RenderErrorPage(w, r, http.StatusBadRequest, "Error parsing form.")
		return
	}

	form := credentialsForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	rerender := func(msg string) {
		h.templates.Render(w, r, http.StatusOK, "register.html", Page{Title: "Register", Error: msg, Email: form.Email})
	}

	if err := validation.ValidateStruct(&form); err != nil {
		var verrs validation.Errors
		errors.As(err, &verrs)
		metrics.RecordRegistration(metrics.ResultInvalid)
		rerender(verrs.First())
		return
	}

	user, err := h.users.Create(r.Context(), form.Email, form.Password, false)
	switch {
	case errors.Is(err, database.ErrDuplicateEmail):
		metrics.RecordRegistration(metrics.ResultDuplicate)
		rerender(msgEmailExists)
		return
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		metrics.RecordRegistration(metrics.ResultInvalid)
		rerender("password must be at most 72 bytes")
		return
	case err != nil:
		metrics.RecordRegistration(metrics.ResultError)
		h.serverError(w, r, err, "could not create user")
		return
	}

	metrics.RecordRegistration(metrics.ResultSuccess)
	logging.Ctx(r.Context()).Info().Int64("user_id", user.ID).Str("email", user.Email).Msg("new user registered")

	h.sessions.Flash().Set(w, r, flash.Success, msgRegistrationSuccess)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// LoginPage renders the user login page.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.templates.Render(w, r, http.StatusOK, "login.html", Page{Title: "Login"})
}

// Login handles the user login form submission.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.templates.RenderErrorPage(w, r, http.StatusBadRequest, "Error parsing form.")
		return
	}

	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	session, user, err := h.auth.Login(r.Context(), email, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		metrics.RecordLogin(false)
		logging.Ctx(r.Context()).Info().Str("email", email).Msg("failed login")
		h.templates.Render(w, r, http.StatusOK, "login.html", Page{Title: "Login", Error: msgInvalidCredentials, Email: email})
		return
	}
	if err != nil {
		h.serverError(w, r, err, "login failed")
		return
	}

	// drop any session the browser still carried
	if old := h.sessions.SessionID(r); old != "" && old != session.ID {
		_ = h.auth.Logout(r.Context(), old)
	}

	metrics.RecordLogin(true)
	logging.Ctx(r.Context()).Info().Int64("user_id", user.ID).Str("email", user.Email).Msg("user logged in")

	h.sessions.SetSessionCookie(w, r, session)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout destroys the session and returns to the landing page.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())

	if err := h.auth.Logout(r.Context(), h.sessions.SessionID(r)); err != nil {
		h.serverError(w, r, err, "logout failed")
		return
	}
	h.sessions.ClearSessionCookie(w, r)

	if user != nil {
		logging.Ctx(r.Context()).Info().Int64("user_id", user.ID).Str("email", user.Email).Msg("user logged out")
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

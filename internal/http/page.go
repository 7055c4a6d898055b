package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/store"
)

// page carries what the shared layout needs.
type page struct {
	Title   string
	Nav     string
	Email   string
	Profile core.UserProfile
	Error   string
	Field   string
	Notice  string
	Form    map[string]string
}

// notices maps the ok= query parameter set by post/redirect/get.
var notices = map[string]string{
	"income-added":    "Income added successfully!",
	"income-deleted":  "Income deleted successfully!",
	"expense-added":   "Expense added successfully!",
	"expense-deleted": "Expense deleted successfully!",
	"goal-added":      "Savings goal set successfully!",
	"goal-deleted":    "Savings goal deleted.",
	"settings-saved":  "Settings saved.",
	"chat-cleared":    "Chat history cleared.",
}

// basePage loads the signed-in user's profile for theme and currency.
// A profile read failure falls back to defaults; pages still render.
func (s *Server) basePage(r *http.Request, title, nav string) page {
	u := currentUser(r)
	p := page{Title: title, Nav: nav, Email: u.Email, Form: map[string]string{}}
	p.Notice = notices[r.URL.Query().Get("ok")]

	profile, err := s.deps.Profiles.Profile(r.Context(), u.ID)
	if err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Profile unavailable, using defaults",
			applog.FieldUserID, u.ID, applog.FieldError, err)
		profile = core.NewProfile(u.ID, u.Email, s.started)
	}
	if profile.Email == "" {
		profile.Email = u.Email
	}
	p.Profile = profile
	return p
}

// fail fills in the user-facing message and field for err.
func (p *page) fail(err error) {
	p.Error = messageFor(err)
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		p.Field = ve.Field
	}
}

func currentUser(r *http.Request) auth.User {
	u, _ := auth.UserFrom(r.Context())
	return u
}

// statusFor maps service errors onto HTTP statuses. Dependency failures
// are reported as 200 by pages, which render them inline, and as 502 by
// the JSON API.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict
	case core.IsValidation(err),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrWeakPassword):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case core.IsExternal(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// pageStatus is statusFor with dependency failures shown inline.
func pageStatus(err error) int {
	if st := statusFor(err); st != http.StatusBadGateway && st != http.StatusInternalServerError {
		return st
	}
	return http.StatusOK
}

func messageFor(err error) string {
	switch statusFor(err) {
	case http.StatusUnprocessableEntity, http.StatusConflict, http.StatusUnauthorized:
		return err.Error()
	case http.StatusNotFound:
		return "That record no longer exists."
	case http.StatusBadGateway:
		return "A service we depend on is unavailable right now. Please try again in a moment."
	default:
		return "Something went wrong. Please try again."
	}
}

// logFailure records unexpected errors; user mistakes are not logged.
func logFailure(r *http.Request, msg string, err error) {
	st := statusFor(err)
	if st < http.StatusInternalServerError {
		return
	}
	errorType := applog.ErrorTypeInternal
	if st == http.StatusBadGateway {
		errorType = applog.ErrorTypeExternal
	}
	fields := applog.NewFields().
		WithUser(currentUser(r).ID).
		WithErrorType(errorType)
	fields[applog.FieldPath] = r.URL.Path
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogError(r.Context(), msg, err, applog.ComponentHTTP, r.Method, fields)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, err error) {
	body := map[string]string{"error": messageFor(err)}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		body["field"] = ve.Field
	}
	writeJSON(w, statusFor(err), body)
}

// redirect finishes a form post with post/redirect/get, or tells htmx to
// navigate.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	if isHTMX(r) {
		NewHTMXResponse().Redirect(url).Write(w)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// errorPage renders a standalone error page for failed actions.
func (s *Server) errorPage(w http.ResponseWriter, r *http.Request, err error) {
	p := s.basePage(r, "Error", "")
	p.fail(err)
	s.render(w, r, statusFor(err), "error.html", p)
}

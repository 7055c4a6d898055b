package http

import (
	"net/http"

	"fintrack/internal/auth"
	applog "fintrack/internal/log"
)

type authPage struct {
	page
}

func (s *Server) authForm(title, nav string) authPage {
	return authPage{page: page{Title: title, Nav: nav, Form: map[string]string{}}}
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Auth.ParseToken(sessionToken(r)); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", s.authForm("Log in", "login"))
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Auth.ParseToken(sessionToken(r)); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "signup.html", s.authForm("Sign up", "signup"))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	email := parser.Get("email")

	u, err := s.deps.Auth.Login(r.Context(), email, parser.Raw("password"))
	if err != nil {
		logFailure(r, "Login failed", err)
		if statusFor(err) == http.StatusUnauthorized {
			s.logger.WarnContext(r.Context(), "Rejected login attempt",
				applog.FieldClientIP, s.detector.ExtractClientIP(r),
				applog.FieldErrorType, applog.ErrorTypeAuth)
		}
		s.authFailed(w, r, parser, "login.html", "Log in", "login", err)
		return
	}
	s.startSession(w, r, parser, u, http.StatusOK)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	u, err := s.deps.Auth.SignUp(r.Context(), parser.Get("email"), parser.Raw("password"))
	if err != nil {
		logFailure(r, "Signup failed", err)
		s.authFailed(w, r, parser, "signup.html", "Sign up", "signup", err)
		return
	}
	s.logger.InfoContext(r.Context(), "Account created",
		applog.FieldUserID, u.ID,
		applog.FieldOperation, applog.OpCreate)
	s.startSession(w, r, parser, u, http.StatusCreated)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w, s.opts.CookieSecure)
	redirect(w, r, "/login")
}

// startSession sets the cookie; JSON clients also get the token back.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, parser *RequestBodyParser, u auth.User, jsonStatus int) {
	token, expires, err := s.deps.Auth.IssueToken(u)
	if err != nil {
		logFailure(r, "Failed to issue session token", err)
		if parser.IsJSON() {
			writeJSONError(w, err)
			return
		}
		s.authFailed(w, r, parser, "login.html", "Log in", "login", err)
		return
	}
	auth.SetSession(w, token, expires, s.opts.CookieSecure)

	if parser.IsJSON() {
		writeJSON(w, jsonStatus, map[string]any{
			"user_id":    u.ID,
			"email":      u.Email,
			"token":      token,
			"expires_at": expires.UTC(),
		})
		return
	}
	redirect(w, r, "/")
}

func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, parser *RequestBodyParser, tmpl, title, nav string, err error) {
	if parser.IsJSON() {
		writeJSONError(w, err)
		return
	}
	p := s.authForm(title, nav)
	p.fail(err)
	p.Form["email"] = parser.Get("email")
	s.render(w, r, statusFor(err), tmpl, p)
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(auth.CookieName); err == nil {
		return c.Value
	}
	return ""
}

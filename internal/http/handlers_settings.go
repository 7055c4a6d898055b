package http

import (
	"net/http"

	"fintrack/internal/core"
)

type settingsPage struct {
	page
	Currencies []core.Currency
	Themes     []core.Theme
}

func (s *Server) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	s.renderSettings(w, r, http.StatusOK, nil, nil)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	form := parser.Values("name", "currency", "theme")

	if _, err := s.deps.Profiles.UpdateSettings(r.Context(), currentUser(r).ID,
		form["name"], form["currency"], form["theme"]); err != nil {
		logFailure(r, "Failed to update settings", err)
		s.renderSettings(w, r, pageStatus(err), err, form)
		return
	}
	redirect(w, r, "/settings?ok=settings-saved")
}

func (s *Server) renderSettings(w http.ResponseWriter, r *http.Request, status int, failure error, form map[string]string) {
	p := settingsPage{
		page:       s.basePage(r, "Settings", "/settings"),
		Currencies: core.Currencies,
		Themes:     core.Themes,
	}
	p.Form["name"] = p.Profile.Name
	p.Form["currency"] = string(p.Profile.Currency)
	p.Form["theme"] = string(p.Profile.Theme)
	for k, v := range form {
		p.Form[k] = v
	}
	if failure != nil {
		p.Notice = ""
		p.fail(failure)
	}
	s.render(w, r, status, "settings.html", p)
}

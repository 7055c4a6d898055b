package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

type goalsPage struct {
	page
	Goals []core.GoalProgress
	// MinDate is the first day a target date may fall on.
	MinDate string
}

func (s *Server) handleGoalsPage(w http.ResponseWriter, r *http.Request) {
	s.renderGoals(w, r, http.StatusOK, nil, nil)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	form := parser.Values("product_name", "price", "target_date")

	goal, err := s.deps.Ledger.CreateGoal(r.Context(), currentUser(r).ID, services.GoalInput{
		ProductName: form["product_name"],
		Price:       form["price"],
		TargetDate:  form["target_date"],
	})
	if err != nil {
		logFailure(r, "Failed to create savings goal", err)
		if parser.IsJSON() {
			writeJSONError(w, err)
			return
		}
		s.renderGoals(w, r, pageStatus(err), err, form)
		return
	}

	if parser.IsJSON() {
		writeJSON(w, http.StatusCreated, goalJSON(core.GoalProgress{Goal: goal}))
		return
	}
	redirect(w, r, "/goals?ok=goal-added")
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Ledger.DeleteGoal(r.Context(), currentUser(r).ID, r.PathValue("id")); err != nil {
		logFailure(r, "Failed to delete savings goal", err)
		if statusFor(err) == http.StatusNotFound {
			s.errorPage(w, r, err)
			return
		}
		s.renderGoals(w, r, pageStatus(err), err, nil)
		return
	}
	redirect(w, r, "/goals?ok=goal-deleted")
}

func (s *Server) renderGoals(w http.ResponseWriter, r *http.Request, status int, failure error, form map[string]string) {
	p := goalsPage{page: s.basePage(r, "Savings goals", "/goals")}
	for k, v := range form {
		p.Form[k] = v
	}
	if failure != nil {
		p.Notice = ""
		p.fail(failure)
	}

	today := core.DateOf(s.now())
	p.MinDate = core.NewDate(today.Year(), int(today.Month())+1, 1).String()

	list, err := s.deps.Ledger.Goals(r.Context(), currentUser(r).ID)
	if err != nil {
		logFailure(r, "Failed to list savings goals", err)
		if failure == nil {
			p.fail(err)
		}
	}
	p.Goals = list
	s.render(w, r, status, "goals.html", p)
}

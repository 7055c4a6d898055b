package http

import (
	"net/http"
	"time"

	"fintrack/internal/core"
)

type advisorPage struct {
	page
	Messages []core.ChatMessage
}

func (s *Server) handleAdvisorPage(w http.ResponseWriter, r *http.Request) {
	s.renderAdvisor(w, r, http.StatusOK, nil, nil)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	query := parser.Get("query")

	reply, err := s.deps.Advisor.Ask(r.Context(), currentUser(r).ID, query)
	if err != nil {
		logFailure(r, "Advisor request failed", err)
		if parser.IsJSON() {
			writeJSONError(w, err)
			return
		}
		s.renderAdvisor(w, r, pageStatus(err), err, map[string]string{"query": query})
		return
	}

	if parser.IsJSON() {
		writeJSON(w, http.StatusOK, map[string]any{
			"role":       reply.Role,
			"content":    reply.Content,
			"created_at": reply.CreatedAt.UTC().Format(time.RFC3339),
		})
		return
	}
	redirect(w, r, "/advisor#latest")
}

func (s *Server) handleClearChat(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Advisor.Clear(r.Context(), currentUser(r).ID); err != nil {
		logFailure(r, "Failed to clear chat history", err)
		s.renderAdvisor(w, r, pageStatus(err), err, nil)
		return
	}
	redirect(w, r, "/advisor?ok=chat-cleared")
}

func (s *Server) renderAdvisor(w http.ResponseWriter, r *http.Request, status int, failure error, form map[string]string) {
	p := advisorPage{page: s.basePage(r, "Financial advisor", "/advisor")}
	for k, v := range form {
		p.Form[k] = v
	}
	if failure != nil {
		p.Notice = ""
		p.fail(failure)
	}

	history, err := s.deps.Advisor.History(r.Context(), currentUser(r).ID)
	if err != nil {
		logFailure(r, "Failed to load chat history", err)
		if failure == nil {
			p.fail(err)
		}
	}
	p.Messages = history
	s.render(w, r, status, "advisor.html", p)
}

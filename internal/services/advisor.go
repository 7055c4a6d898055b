package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/advisor"
	"fintrack/internal/core"
	"fintrack/internal/records"
)

// ChatAdvisor answers questions, optionally grounded in the user's data.
type ChatAdvisor interface {
	Classify(ctx context.Context, query string) (advisor.Scope, error)
	Advise(ctx context.Context, history []core.ChatMessage, query string, fc *advisor.FinancialContext) (string, error)
}

// DefaultHistoryTurns is how many earlier turns are sent with a question.
const DefaultHistoryTurns = 20

// AdvisorService runs the advisor chat and keeps its history per user.
type AdvisorService struct {
	records *records.Repository
	advisor ChatAdvisor
	turns   int
	now     func() time.Time
}

func NewAdvisorService(repo *records.Repository, adv ChatAdvisor, turns int) *AdvisorService {
	if turns <= 0 {
		turns = DefaultHistoryTurns
	}
	return &AdvisorService{records: repo, advisor: adv, turns: turns, now: time.Now}
}

// History returns the whole conversation, oldest first.
func (s *AdvisorService) History(ctx context.Context, userID string) ([]core.ChatMessage, error) {
	return s.records.ListMessages(ctx, userID, 0)
}

// Ask answers query and stores both turns. Questions about the user's own
// finances get their incomes, expenses and goals attached. When the model
// fails nothing is stored and the ExternalServiceError is returned.
func (s *AdvisorService) Ask(ctx context.Context, userID, query string) (core.ChatMessage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return core.ChatMessage{}, &core.ValidationError{Field: "query", Err: core.ErrEmptyQuestion}
	}
	if s.advisor == nil {
		return core.ChatMessage{}, core.External("ai advisor", fmt.Errorf("no model configured"))
	}
	asked := s.now()

	scope, err := s.advisor.Classify(ctx, query)
	if err != nil {
		slog.WarnContext(ctx, "Query classification failed, answering as general", "user_id", userID, "error", err)
	}

	var fc *advisor.FinancialContext
	if scope == advisor.ScopeSpecific {
		if fc, err = s.financialContext(ctx, userID); err != nil {
			return core.ChatMessage{}, err
		}
	}

	history, err := s.records.ListMessages(ctx, userID, s.turns)
	if err != nil {
		return core.ChatMessage{}, fmt.Errorf("load chat history: %w", err)
	}

	answer, err := s.advisor.Advise(ctx, history, query, fc)
	if err != nil {
		return core.ChatMessage{}, err
	}

	reply := core.ChatMessage{Role: core.RoleAssistant, Content: answer, CreatedAt: s.now()}
	if err := s.records.AppendMessages(ctx, userID,
		core.ChatMessage{Role: core.RoleUser, Content: query, CreatedAt: asked},
		reply,
	); err != nil {
		return core.ChatMessage{}, fmt.Errorf("save chat turns: %w", err)
	}

	slog.InfoContext(ctx, "Advisor answered", "user_id", userID, "scope", scope)
	return reply, nil
}

func (s *AdvisorService) financialContext(ctx context.Context, userID string) (*advisor.FinancialContext, error) {
	fc := &advisor.FinancialContext{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := profileOrDefault(gctx, s.records, userID)
		fc.Currency = p.Currency
		return err
	})
	g.Go(func() (err error) {
		fc.Incomes, err = s.records.ListIncomes(gctx, userID, records.ListOptions{Newest: true})
		return err
	})
	g.Go(func() (err error) {
		fc.Expenses, err = s.records.ListExpenses(gctx, userID, records.ListOptions{Newest: true})
		return err
	})
	g.Go(func() (err error) {
		fc.Goals, err = s.records.ListGoals(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load financial context: %w", err)
	}
	return fc, nil
}

// Clear deletes the user's conversation.
func (s *AdvisorService) Clear(ctx context.Context, userID string) error {
	if err := s.records.ClearMessages(ctx, userID); err != nil {
		return fmt.Errorf("clear chat history: %w", err)
	}
	slog.InfoContext(ctx, "Advisor history cleared", "user_id", userID)
	return nil
}

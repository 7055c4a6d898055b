// Package advisor builds the prompts sent to the completion API and
// interprets the few answers that are not plain display text: expense
// categories and the general/specific query classification.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/llm"
)

const aiService = "ai advisor"

const (
	categorizePrompt = "Categorize the following expense into one of these categories: %s. " +
		"Respond with only the category name.\n\nExpense: %s"

	classifyPrompt = "Is the following query general or specific to the user's financial data? " +
		"Respond with only one word: 'general' or 'specific'.\n\nQuery: %s"

	advisorPersona = "You are a friendly and helpful financial advisor. " +
		"Your goal is to provide insightful and actionable advice. Be encouraging and supportive."

	summaryInstruction = "Provide a brief summary of my financial health and one actionable tip."
)

// DefaultCategories is the list offered to the model. It is a suggestion:
// any other label the model returns is kept.
var DefaultCategories = []string{
	"Food", "Transportation", "Entertainment", "Utilities", "Shopping", "Health", "Other",
}

// FallbackCategory is assigned when categorization fails or returns nothing.
const FallbackCategory = "Other"

// maxCategoryLength bounds labels invented by the model.
// maxCategoryLength is counted in runes.
const maxCategoryLength = 40

// Scope says whether a question needs the user's own data to answer.
type Scope string

const (
	ScopeGeneral  Scope = "general"
	ScopeSpecific Scope = "specific"
)

// Advisor wraps a Completer with the application's prompts.
type Advisor struct {
	llm llm.Completer
}

func New(c llm.Completer) *Advisor {
	return &Advisor{llm: c}
}

// Categorize asks the model for an expense category and normalizes the
// answer. On failure the error is returned together with FallbackCategory
// so callers can store the expense anyway.
func (a *Advisor) Categorize(ctx context.Context, description string) (string, error) {
	prompt := fmt.Sprintf(categorizePrompt, strings.Join(DefaultCategories, ", "), description)
	out, err := a.llm.Complete(ctx, []llm.Message{{Role: core.RoleUser, Content: prompt}})
	if err != nil {
		return FallbackCategory, core.External(aiService, err)
	}
	return NormalizeCategory(out), nil
}

// NormalizeCategory maps a free-form model answer to a label. Known
// categories are matched case-insensitively, including answers that wrap
// the label in a sentence; anything else is kept as a new label.
func NormalizeCategory(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, " \t\"'`*.:;!-")
	if s == "" {
		return FallbackCategory
	}
	for _, c := range DefaultCategories {
		if strings.EqualFold(s, c) {
			return c
		}
	}
	lower := strings.ToLower(s)
	for _, c := range DefaultCategories {
		if containsWord(lower, strings.ToLower(c)) {
			return c
		}
	}
	if r := []rune(s); len(r) > maxCategoryLength {
		s = strings.TrimSpace(string(r[:maxCategoryLength]))
	}
	return s
}

func containsWord(s, word string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		if f == word {
			return true
		}
	}
	return false
}

// Classify decides whether query needs the user's financial data. Anything
// that does not clearly say "specific" is treated as general.
func (a *Advisor) Classify(ctx context.Context, query string) (Scope, error) {
	out, err := a.llm.Complete(ctx, []llm.Message{
		{Role: core.RoleUser, Content: fmt.Sprintf(classifyPrompt, query)},
	})
	if err != nil {
		return ScopeGeneral, core.External(aiService, err)
	}
	if strings.Contains(strings.ToLower(out), string(ScopeSpecific)) {
		return ScopeSpecific, nil
	}
	return ScopeGeneral, nil
}

// Summarize asks for a short health summary of the aggregated figures.
// Callers should skip it when there is nothing to summarize.
func (a *Advisor) Summarize(ctx context.Context, currency core.Currency, s core.Summary) (string, error) {
	var b strings.Builder
	b.WriteString("Here is my financial data:\n")
	fmt.Fprintf(&b, "- Total Income: %s\n", currency.Format(s.Income))
	fmt.Fprintf(&b, "- Total Expenses: %s\n", currency.Format(s.Expenses))
	b.WriteString("- Expenses by Category: ")
	if len(s.Categories) == 0 {
		b.WriteString("none")
	}
	for i, c := range s.Categories {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", c.Name, core.FormatAmount(c.Amount))
	}
	b.WriteString("\n\n")
	b.WriteString(summaryInstruction)

	out, err := a.llm.Complete(ctx, []llm.Message{{Role: core.RoleUser, Content: b.String()}})
	if err != nil {
		return "", core.External(aiService, err)
	}
	return out, nil
}

// FinancialContext is the user data attached to specific questions.
type FinancialContext struct {
	Currency core.Currency
	Incomes  []core.Transaction
	Expenses []core.Transaction
	Goals    []core.SavingsGoal
}

// Advise answers query. history holds earlier turns, oldest first; fc is
// nil for general questions.
func (a *Advisor) Advise(ctx context.Context, history []core.ChatMessage, query string, fc *FinancialContext) (string, error) {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: core.RoleSystem, Content: advisorPersona})
	for _, m := range history {
		if m.Role == core.RoleUser || m.Role == core.RoleAssistant {
			msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
		}
	}

	content := query
	if fc != nil {
		content = fc.Prompt() + "\nUser question: " + query
	}
	msgs = append(msgs, llm.Message{Role: core.RoleUser, Content: content})

	out, err := a.llm.Complete(ctx, msgs)
	if err != nil {
		return "", core.External(aiService, err)
	}
	return out, nil
}

// Prompt renders the context block embedded before a specific question.
func (fc *FinancialContext) Prompt() string {
	var b strings.Builder
	b.WriteString("Here is the user's financial data:\n")
	writeTransactions(&b, "Incomes", fc.Currency, fc.Incomes)
	writeTransactions(&b, "Expenses", fc.Currency, fc.Expenses)
	b.WriteString("- Savings Goals:")
	if len(fc.Goals) == 0 {
		b.WriteString(" none")
	}
	b.WriteString("\n")
	for _, g := range fc.Goals {
		fmt.Fprintf(&b, "  - %s: price %s, target %s, monthly saving %s\n",
			g.ProductName, fc.Currency.Format(g.Price), g.TargetDate, fc.Currency.Format(g.MonthlySaving))
	}
	return b.String()
}

func writeTransactions(b *strings.Builder, label string, cur core.Currency, txs []core.Transaction) {
	fmt.Fprintf(b, "- %s:", label)
	if len(txs) == 0 {
		b.WriteString(" none")
	}
	b.WriteString("\n")
	for _, tx := range txs {
		amount := "unknown amount"
		if tx.HasAmount() {
			amount = cur.Format(tx.Amount.Decimal)
		}
		date := tx.Date.String()
		if date == "" {
			date = "undated"
		}
		fmt.Fprintf(b, "  - %s %s: %s", date, tx.Description, amount)
		if tx.Kind == core.KindExpense {
			fmt.Fprintf(b, " (%s)", tx.Category)
		}
		b.WriteString("\n")
	}
}

package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fintrack/internal/records"
	"fintrack/internal/services"
)

type summaryReport struct {
	UserID     string         `json:"user_id" yaml:"user_id"`
	Currency   string         `json:"currency" yaml:"currency"`
	Income     string         `json:"total_income" yaml:"total_income"`
	Expenses   string         `json:"total_expenses" yaml:"total_expenses"`
	Net        string         `json:"net_income" yaml:"net_income"`
	Trend      []trendLine    `json:"monthly_trend" yaml:"monthly_trend"`
	Categories []categoryLine `json:"category_distribution" yaml:"category_distribution"`
}

type trendLine struct {
	Month  string `json:"month" yaml:"month"`
	Kind   string `json:"kind" yaml:"kind"`
	Amount string `json:"amount" yaml:"amount"`
}

type categoryLine struct {
	Category string `json:"category" yaml:"category"`
	Amount   string `json:"amount" yaml:"amount"`
}

func newSummaryCommand(open StoreOpener) *cobra.Command {
	var userID, output string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print a user's totals, monthly trend and spending by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validFormat(output); err != nil {
				return err
			}
			return withRepository(cmd.Context(), open, func(repo *records.Repository) error {
				d, err := services.NewDashboardService(repo, nil, nil).Load(cmd.Context(), userID)
				if err != nil {
					return err
				}
				return writeReport(cmd.OutOrStdout(), output, newSummaryReport(userID, d))
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "output format: table, json or yaml")
	return cmd
}

func newSummaryReport(userID string, d services.Dashboard) summaryReport {
	r := summaryReport{
		UserID:     userID,
		Currency:   string(d.Profile.Currency),
		Income:     d.Income.StringFixed(2),
		Expenses:   d.Expenses.StringFixed(2),
		Net:        d.Net.StringFixed(2),
		Trend:      make([]trendLine, 0, len(d.Trend)),
		Categories: make([]categoryLine, 0, len(d.Categories)),
	}
	for _, p := range d.Trend {
		r.Trend = append(r.Trend, trendLine{Month: p.Month, Kind: string(p.Kind), Amount: p.Amount.StringFixed(2)})
	}
	for _, c := range d.Categories {
		r.Categories = append(r.Categories, categoryLine{Category: c.Name, Amount: c.Amount.StringFixed(2)})
	}
	return r
}

func (r summaryReport) writeTable(w io.Writer) error {
	fmt.Fprintf(w, "Income\t%s %s\n", r.Income, r.Currency)
	fmt.Fprintf(w, "Expenses\t%s %s\n", r.Expenses, r.Currency)
	fmt.Fprintf(w, "Net savings\t%s %s\n", r.Net, r.Currency)

	if len(r.Trend) > 0 {
		fmt.Fprintln(w, "\nMONTH\tKIND\tAMOUNT")
		for _, t := range r.Trend {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.Month, t.Kind, t.Amount)
		}
	}
	if len(r.Categories) > 0 {
		fmt.Fprintln(w, "\nCATEGORY\tAMOUNT")
		for _, c := range r.Categories {
			fmt.Fprintf(w, "%s\t%s\n", c.Category, c.Amount)
		}
	}
	return nil
}

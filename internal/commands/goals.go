package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/core"
	"fintrack/internal/goals"
	"fintrack/internal/records"
	"fintrack/internal/services"
)

type goalLine struct {
	ID            string `json:"id" yaml:"id"`
	ProductName   string `json:"product_name" yaml:"product_name"`
	Price         string `json:"price" yaml:"price"`
	TargetDate    string `json:"target_date" yaml:"target_date"`
	MonthlySaving string `json:"monthly_saving" yaml:"monthly_saving"`
	SavedToDate   string `json:"saved_to_date" yaml:"saved_to_date"`
	Percent       int64  `json:"progress_percent" yaml:"progress_percent"`
}

type goalsReport struct {
	UserID string     `json:"user_id" yaml:"user_id"`
	Goals  []goalLine `json:"goals" yaml:"goals"`
}

func newGoalsCommand(open StoreOpener) *cobra.Command {
	var userID, output string

	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Print a user's savings goals with their progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validFormat(output); err != nil {
				return err
			}
			return withRepository(cmd.Context(), open, func(repo *records.Repository) error {
				ledger := services.NewLedgerService(repo, goals.NewPlanner(time.Now), nil, nil)
				list, err := ledger.Goals(cmd.Context(), userID)
				if err != nil {
					return err
				}
				return writeReport(cmd.OutOrStdout(), output, newGoalsReport(userID, list))
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "output format: table, json or yaml")
	return cmd
}

func newGoalsReport(userID string, list []core.GoalProgress) goalsReport {
	r := goalsReport{UserID: userID, Goals: make([]goalLine, 0, len(list))}
	for _, g := range list {
		r.Goals = append(r.Goals, goalLine{
			ID:            g.Goal.ID,
			ProductName:   g.Goal.ProductName,
			Price:         g.Goal.Price.StringFixed(2),
			TargetDate:    g.Goal.TargetDate.String(),
			MonthlySaving: g.Goal.MonthlySaving.StringFixed(2),
			SavedToDate:   g.Saved.StringFixed(2),
			Percent:       g.Percent(),
		})
	}
	return r
}

func (r goalsReport) writeTable(w io.Writer) error {
	if len(r.Goals) == 0 {
		_, err := fmt.Fprintln(w, "No savings goals.")
		return err
	}
	fmt.Fprintln(w, "PRODUCT\tPRICE\tTARGET\tMONTHLY\tSAVED\tPROGRESS")
	for _, g := range r.Goals {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d%%\n",
			g.ProductName, g.Price, g.TargetDate, g.MonthlySaving, g.SavedToDate, g.Percent)
	}
	return nil
}

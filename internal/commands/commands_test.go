package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"fintrack/internal/goals"
	"fintrack/internal/records"
	"fintrack/internal/services"
	"fintrack/internal/store/memory"
)

const testUser = "user-1"

func seededRepo(t *testing.T) *records.Repository {
	t.Helper()
	ctx := context.Background()
	repo := records.NewRepository(memory.New())
	ledger := services.NewLedgerService(repo, goals.NewPlanner(time.Now), nil, nil)

	_, err := ledger.AddIncome(ctx, testUser, services.TransactionInput{Description: "Salary", Amount: "2500", Date: "2025-01-31"})
	require.NoError(t, err)
	_, err = ledger.AddExpense(ctx, testUser, services.TransactionInput{Description: "Rent", Amount: "900.50", Date: "2025-01-05"})
	require.NoError(t, err)

	target := time.Now().AddDate(1, 0, 0).Format("2006-01-02")
	_, err = ledger.CreateGoal(ctx, testUser, services.GoalInput{ProductName: "Laptop", Price: "1200", TargetDate: target})
	require.NoError(t, err)
	return repo
}

func run(t *testing.T, repo *records.Repository, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRoot(Options{
		Open: func(context.Context) (*records.Repository, func() error, error) {
			return repo, func() error { return nil }, nil
		},
		Out: &out,
	})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSummary_Table(t *testing.T) {
	out, err := run(t, seededRepo(t), "summary", "--user", testUser)
	require.NoError(t, err)

	assert.Contains(t, out, "Income")
	assert.Contains(t, out, "2500.00")
	assert.Contains(t, out, "900.50")
	assert.Contains(t, out, "1599.50")
	assert.Contains(t, out, "2025-01")
	assert.Contains(t, out, "CATEGORY")
}

func TestSummary_JSON(t *testing.T) {
	out, err := run(t, seededRepo(t), "summary", "--user", testUser, "-o", "json")
	require.NoError(t, err)

	var got summaryReport
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, testUser, got.UserID)
	assert.Equal(t, "2500.00", got.Income)
	assert.Equal(t, "900.50", got.Expenses)
	assert.Equal(t, "1599.50", got.Net)
	assert.Contains(t, out, `"net_income": "1599.50"`)
	assert.Len(t, got.Trend, 2)
	require.Len(t, got.Categories, 1)
	assert.Equal(t, "900.50", got.Categories[0].Amount)
}

func TestSummary_EmptyUser(t *testing.T) {
	out, err := run(t, seededRepo(t), "summary", "--user", "nobody", "--output", "json")
	require.NoError(t, err)

	var got summaryReport
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "0.00", got.Income)
	assert.Empty(t, got.Trend)
	assert.Empty(t, got.Categories)
}

func TestSummary_RequiresUser(t *testing.T) {
	_, err := run(t, seededRepo(t), "summary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user")
}

func TestGoals_YAML(t *testing.T) {
	out, err := run(t, seededRepo(t), "goals", "--user", testUser, "-o", "yaml")
	require.NoError(t, err)

	var got goalsReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	require.Len(t, got.Goals, 1)
	g := got.Goals[0]
	assert.Equal(t, "Laptop", g.ProductName)
	assert.Equal(t, "1200.00", g.Price)
	assert.NotEmpty(t, g.MonthlySaving)
	// The seeded transactions predate the goal.
	assert.Equal(t, "0.00", g.SavedToDate)
	assert.Zero(t, g.Percent)
}

func TestGoals_TableWithoutGoals(t *testing.T) {
	out, err := run(t, seededRepo(t), "goals", "--user", "nobody")
	require.NoError(t, err)
	assert.Contains(t, out, "No savings goals.")
}

func TestUnknownOutputFormat(t *testing.T) {
	for _, cmd := range []string{"summary", "goals"} {
		t.Run(cmd, func(t *testing.T) {
			_, err := run(t, seededRepo(t), cmd, "--user", testUser, "-o", "xml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "unknown output format")
		})
	}
}

func TestMigrate(t *testing.T) {
	db := filepath.Join(t.TempDir(), "fintrack.db")

	out, err := run(t, nil, "migrate", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version")
	assert.Contains(t, out, "(clean)")
	assert.NotContains(t, out, "version 0 ")

	out, err = run(t, nil, "migrate", "--db", db, "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "(clean)")
}

func TestOAuthInit_RequiresClientFile(t *testing.T) {
	t.Setenv("GOOGLE_OAUTH_CLIENT_FILE", "")
	_, err := run(t, nil, "oauth-init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client-file")
}

// Package commands implements fintrackctl, the operator CLI for reports,
// schema migrations and Google OAuth bootstrap.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/records"
)

// StoreOpener returns a repository over the configured record store and a
// function that closes it.
type StoreOpener func(ctx context.Context) (*records.Repository, func() error, error)

// Options let tests replace the record store and capture output.
type Options struct {
	Open StoreOpener
	Out  io.Writer
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	return newRoot(Options{})
}

func newRoot(opts Options) *cobra.Command {
	if opts.Open == nil {
		opts.Open = openConfiguredStore
	}

	rootCmd := &cobra.Command{
		Use:   "fintrackctl",
		Short: "Operate a fintrack deployment",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	if opts.Out != nil {
		rootCmd.SetOut(opts.Out)
		rootCmd.SetErr(opts.Out)
	}

	rootCmd.AddCommand(
		newSummaryCommand(opts.Open),
		newGoalsCommand(opts.Open),
		newMigrateCommand(),
		newOAuthInitCommand(),
	)
	return rootCmd
}

func openConfiguredStore(ctx context.Context) (*records.Repository, func() error, error) {
	cfg := config.Load()
	if err := cfg.ValidateStore(); err != nil {
		return nil, nil, err
	}
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(stderrLogger(cfg)).Open(ctx, bcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s store: %w", bcfg.Type, err)
	}
	return records.NewRepository(res.Store), res.Cleanup, nil
}

// stderrLogger keeps diagnostics off stdout, which carries the reports.
func stderrLogger(cfg *config.Config) *applog.Logger {
	lc := applog.DefaultConfig()
	lc.Level = applog.ParseLevel(cfg.LogLevel)
	lc.Format = cfg.LogFormat
	lc.Output = os.Stderr
	lc.Component = "fintrackctl"
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

// withRepository opens the store for the duration of fn.
func withRepository(ctx context.Context, open StoreOpener, fn func(*records.Repository) error) (err error) {
	repo, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeFn(); cerr != nil && err == nil {
			err = fmt.Errorf("closing store: %w", cerr)
		}
	}()
	return fn(repo)
}

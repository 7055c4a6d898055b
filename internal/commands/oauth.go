package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	gsheet "fintrack/internal/sheets/google"
)

type oauthOptions struct {
	clientFile string
	tokenFile  string
	port       string
	timeout    time.Duration
}

func newOAuthInitCommand() *cobra.Command {
	opts := oauthOptions{
		clientFile: os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"),
		tokenFile:  envOr("GOOGLE_OAUTH_TOKEN_FILE", "token.json"),
		port:       envOr("OAUTH_REDIRECT_PORT", "8085"),
	}

	cmd := &cobra.Command{
		Use:   "oauth-init",
		Short: "Authorize Google Sheets access for the export worker",
		Long: "Runs the OAuth consent flow for a desktop client and saves the " +
			"refreshable user token. Add http://localhost:<port>/callback to the " +
			"client's authorized redirect URIs first. Point the worker at the " +
			"result with GOOGLE_OAUTH_CLIENT_FILE and GOOGLE_OAUTH_TOKEN_FILE.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runOAuthInit(ctx, cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.clientFile, "client-file", opts.clientFile, "OAuth client secret JSON (default: GOOGLE_OAUTH_CLIENT_FILE)")
	cmd.Flags().StringVar(&opts.tokenFile, "token-file", opts.tokenFile, "where to write the token (default: GOOGLE_OAUTH_TOKEN_FILE)")
	cmd.Flags().StringVar(&opts.port, "port", opts.port, "local port for the redirect callback")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "how long to wait for consent")
	return cmd
}

func runOAuthInit(ctx context.Context, cmd *cobra.Command, opts oauthOptions) error {
	if opts.clientFile == "" {
		return errors.New("set --client-file or GOOGLE_OAUTH_CLIENT_FILE")
	}
	clientJSON, err := os.ReadFile(opts.clientFile)
	if err != nil {
		return fmt.Errorf("reading client file: %w", err)
	}
	cfg, err := gsheet.OAuthConfig(clientJSON)
	if err != nil {
		return err
	}
	cfg.RedirectURL = "http://localhost:" + opts.port + "/callback"

	ln, err := net.Listen("tcp", "localhost:"+opts.port)
	if err != nil {
		return fmt.Errorf("listening for callback: %w", err)
	}
	state := uuid.NewString()
	codes := make(chan string, 1)
	failures := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		case q.Get("error") != "":
			http.Error(w, "OAuth error: "+q.Get("error"), http.StatusBadRequest)
			select {
			case failures <- fmt.Errorf("authorization denied: %s", q.Get("error")):
			default:
			}
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		select {
		case codes <- q.Get("code"):
		default:
		}
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Open this URL to authorize:\n%s\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	var code string
	select {
	case code = <-codes:
	case err := <-failures:
		return err
	case <-time.After(opts.timeout):
		return errors.New("authorization timed out")
	case <-ctx.Done():
		return errors.New("interrupted")
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	if err := gsheet.SaveToken(opts.tokenFile, tok); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved token to %s\n", opts.tokenFile)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

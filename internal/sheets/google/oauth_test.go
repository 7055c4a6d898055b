package google

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
	gsheet "google.golang.org/api/sheets/v4"
)

const testClientJSON = `{"installed":{
	"client_id":"client.apps.googleusercontent.com",
	"client_secret":"secret",
	"auth_uri":"https://accounts.google.com/o/oauth2/auth",
	"token_uri":"https://oauth2.googleapis.com/token",
	"redirect_uris":["http://localhost"]
}}`

func TestOAuthConfig(t *testing.T) {
	cfg, err := OAuthConfig([]byte(testClientJSON))
	if err != nil {
		t.Fatalf("OAuthConfig: %v", err)
	}
	if cfg.ClientID != "client.apps.googleusercontent.com" {
		t.Errorf("ClientID = %q", cfg.ClientID)
	}
	if len(cfg.Scopes) != 1 || cfg.Scopes[0] != gsheet.SpreadsheetsScope {
		t.Errorf("Scopes = %v", cfg.Scopes)
	}

	if _, err := OAuthConfig([]byte(`{}`)); err == nil {
		t.Error("expected error for a client file without credentials")
	}
}

func TestSaveAndReadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	want := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	if err := SaveToken(path, want); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file mode = %o, want 600", perm)
	}

	got, err := ReadToken(path)
	if err != nil {
		t.Fatalf("ReadToken: %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken || !got.Expiry.Equal(want.Expiry) {
		t.Errorf("ReadToken = %+v, want %+v", got, want)
	}
}

func TestWithOAuthFiles(t *testing.T) {
	dir := t.TempDir()
	clientFile := filepath.Join(dir, "client.json")
	tokenFile := filepath.Join(dir, "token.json")
	if err := os.WriteFile(clientFile, []byte(testClientJSON), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := WithOAuthFiles(context.Background(), clientFile, tokenFile); err == nil {
		t.Error("expected error when the token file is missing")
	}

	if err := SaveToken(tokenFile, &oauth2.Token{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatal(err)
	}
	opt, err := WithOAuthFiles(context.Background(), clientFile, tokenFile)
	if err != nil {
		t.Fatalf("WithOAuthFiles: %v", err)
	}
	if opt == nil {
		t.Error("expected a client option")
	}
}

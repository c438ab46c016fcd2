package mailbox

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/dvloznov/mailspend/internal/config"
)

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	tok := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2024, 10, 24, 12, 0, 0, 0, time.UTC),
	}
	if err := SaveToken(path, tok); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}

	got, err := loadToken(path)
	if err != nil {
		t.Fatalf("loadToken: %v", err)
	}
	if got.AccessToken != "access" || got.RefreshToken != "refresh" {
		t.Errorf("token = %+v", got)
	}
	if !got.Expiry.Equal(tok.Expiry) {
		t.Errorf("Expiry = %v", got.Expiry)
	}
}

func TestLoadTokenMissingFile(t *testing.T) {
	if _, err := loadToken(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error")
	}
}

func TestClientOptionsWithoutCredentials(t *testing.T) {
	opts, err := ClientOptions(context.Background(), &config.Config{})
	if err != nil {
		t.Fatalf("ClientOptions: %v", err)
	}
	if opts != nil {
		t.Errorf("expected nil options for default credentials, got %d", len(opts))
	}
}

func TestClientOptionsMissingTokenFile(t *testing.T) {
	cfg := &config.Config{
		GoogleCredentialsFile: filepath.Join(t.TempDir(), "absent.json"),
		GoogleTokenFile:       filepath.Join(t.TempDir(), "token.json"),
	}
	if _, err := ClientOptions(context.Background(), cfg); err == nil {
		t.Fatal("expected error when credentials file is missing")
	}
}

package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/dvloznov/mailspend/internal/config"
)

// ClientOptions translates the OAuth configuration into client options
// shared by the Gmail and Sheets services. With a cached user token the
// desktop OAuth flow is used; with only a credentials file the service
// falls back to it directly; with neither, Application Default
// Credentials apply.
func ClientOptions(ctx context.Context, cfg *config.Config) ([]option.ClientOption, error) {
	if cfg.GoogleCredentialsFile != "" && cfg.GoogleTokenFile != "" {
		ts, err := tokenSource(ctx, cfg.GoogleCredentialsFile, cfg.GoogleTokenFile)
		if err != nil {
			return nil, err
		}
		return []option.ClientOption{option.WithTokenSource(ts)}, nil
	}
	if cfg.GoogleCredentialsFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(cfg.GoogleCredentialsFile)}, nil
	}
	return nil, nil
}

// tokenSource builds a self-refreshing token source from a desktop OAuth
// client secret and a previously stored user token.
func tokenSource(ctx context.Context, credentialsFile, tokenFile string) (oauth2.TokenSource, error) {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("mailbox: read credentials: %w", err)
	}
	conf, err := google.ConfigFromJSON(raw, gmail.GmailReadonlyScope, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("mailbox: parse credentials: %w", err)
	}
	tok, err := loadToken(tokenFile)
	if err != nil {
		return nil, err
	}
	return conf.TokenSource(ctx, tok), nil
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mailbox: open token file: %w", err)
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("mailbox: decode token file: %w", err)
	}
	return tok, nil
}

// SaveToken persists a token for later runs, written with owner-only
// permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("mailbox: create token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("mailbox: encode token: %w", err)
	}
	return nil
}

// Package config builds the explicit configuration object threaded through
// every constructor. Nothing else in the codebase reads the environment.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/mailspend/internal/domain"
)

// Config holds process-wide settings. It is built once at startup and
// passed into constructors; components never read ambient state.
type Config struct {
	// StorageMode selects local-only vs spreadsheet-backed persistence.
	StorageMode domain.StorageMode

	// SpreadsheetID identifies the remote sheet. Required for mode
	// "existing"; filled in after creation for mode "auto".
	SpreadsheetID string

	// DataDir is where the local encrypted store keeps its blobs.
	DataDir string

	// EncryptionKey is the 32-byte key for the local store, hex encoded in
	// the environment.
	EncryptionKey []byte

	// Lookback bounds how far back the mailbox query reaches.
	Lookback time.Duration

	// PollInterval is how often the worker runs the ingestion pipeline.
	PollInterval time.Duration

	// HTTPPort is the API listen port.
	HTTPPort string

	// GoogleCredentialsFile points at the OAuth client credentials used for
	// both Gmail and Sheets. Empty means Application Default Credentials.
	GoogleCredentialsFile string

	// GoogleTokenFile caches the user's OAuth token between runs. Only
	// meaningful together with GoogleCredentialsFile.
	GoogleTokenFile string
}

// Load reads configuration from the environment, first merging a .env file
// if one exists (missing .env is not an error).
func Load() (*Config, error) {
	_ = godotenv.Load()

	mode, err := domain.ParseStorageMode(envOr("STORAGE_MODE", string(domain.ModeOffline)))
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		StorageMode:           mode,
		SpreadsheetID:         os.Getenv("SPREADSHEET_ID"),
		DataDir:               envOr("DATA_DIR", "data"),
		Lookback:              envDuration("LOOKBACK", 30*24*time.Hour),
		PollInterval:          envDuration("POLL_INTERVAL", 15*time.Minute),
		HTTPPort:              envOr("PORT", "8080"),
		GoogleCredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),
		GoogleTokenFile:       os.Getenv("GOOGLE_TOKEN_FILE"),
	}

	if keyHex := os.Getenv("STORE_KEY"); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("config.Load: STORE_KEY is not valid hex: %w", err)
		}
		cfg.EncryptionKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if c.StorageMode == domain.ModeExisting && c.SpreadsheetID == "" {
		return fmt.Errorf("config: storage mode %q requires SPREADSHEET_ID", c.StorageMode)
	}
	if len(c.EncryptionKey) != 0 && len(c.EncryptionKey) != 32 {
		return fmt.Errorf("config: STORE_KEY must decode to 32 bytes, got %d", len(c.EncryptionKey))
	}
	if c.Lookback <= 0 {
		return fmt.Errorf("config: LOOKBACK must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Also accept a plain number of minutes.
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Minute
	}
	return fallback
}

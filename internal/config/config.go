package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	ListenAddr string
	BaseURL    string

	DatabaseURL string
	RedisURL    string

	TournamentID string
	ArbiterID    string

	MessagesDir string
	NotifyWSURL string
	SeedFile    string

	BridgeTimeoutSec int
	BridgeRetry      int
	BridgeRPS        float64
	BridgeBurst      int

	DraftTTLSec    int
	MetricsEnabled bool
}

// LoadDotenv reads envPath (".env" when empty) into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadDotenv(envPath string) error {
	if envPath == "" {
		envPath = ".env"
	}
	if _, err := os.Stat(envPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("load %s: %w", envPath, err)
	}
	return nil
}

func Load() (*AppConfig, error) {
	if err := LoadDotenv(os.Getenv("DESK_ENV_FILE")); err != nil {
		return nil, err
	}

	cfg := &AppConfig{
		ListenAddr:       ":8087",
		BaseURL:          "http://127.0.0.1:8087",
		BridgeTimeoutSec: 10,
		BridgeRetry:      3,
		BridgeBurst:      5,
		DraftTTLSec:      72 * 3600,
		MetricsEnabled:   true,
	}

	if v := strings.TrimSpace(os.Getenv("DESK_LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("DESK_BASE_URL")); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.TournamentID = strings.TrimSpace(os.Getenv("TOURNAMENT_ID"))
	cfg.ArbiterID = strings.TrimSpace(os.Getenv("ARBITER_ID"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))
	cfg.NotifyWSURL = strings.TrimSpace(os.Getenv("NOTIFY_WS_URL"))
	cfg.SeedFile = strings.TrimSpace(os.Getenv("DESK_SEED_FILE"))

	if v := strings.TrimSpace(os.Getenv("BRIDGE_TIMEOUT_SEC")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("BRIDGE_TIMEOUT_SEC must be a positive integer, got %q", v)
		}
		cfg.BridgeTimeoutSec = n
	}
	if v := strings.TrimSpace(os.Getenv("BRIDGE_RETRY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.BridgeRetry = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("BRIDGE_RPS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("BRIDGE_RPS must be a non-negative number, got %q", v)
		}
		cfg.BridgeRPS = f
	}
	if v := strings.TrimSpace(os.Getenv("BRIDGE_BURST")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BridgeBurst = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("DRAFT_TTL_SEC")); v != "" { // seconds; 0 keeps drafts until cleared
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.DraftTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("METRICS_ENABLED")); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			cfg.MetricsEnabled = b
		}
	}

	return cfg, nil
}

// RequireSession checks the keys an editing session cannot run without.
func (c *AppConfig) RequireSession() error {
	if c.TournamentID == "" {
		return errors.New("TOURNAMENT_ID is required")
	}
	if c.ArbiterID == "" {
		return errors.New("ARBITER_ID is required")
	}
	return nil
}

func (c *AppConfig) BridgeTimeout() time.Duration {
	return time.Duration(c.BridgeTimeoutSec) * time.Second
}

func (c *AppConfig) DraftTTL() time.Duration {
	return time.Duration(c.DraftTTLSec) * time.Second
}

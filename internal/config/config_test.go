package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var deskKeys = []string{
	"DESK_ENV_FILE", "DESK_LISTEN_ADDR", "DESK_BASE_URL", "DATABASE_URL", "REDIS_URL",
	"TOURNAMENT_ID", "ARBITER_ID", "MESSAGES_DIR", "NOTIFY_WS_URL", "BRIDGE_TIMEOUT_SEC",
	"BRIDGE_RETRY", "BRIDGE_RPS", "BRIDGE_BURST", "DRAFT_TTL_SEC", "METRICS_ENABLED", "DESK_SEED_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range deskKeys {
		t.Setenv(k, "")
	}
	// point at a file that does not exist so a developer .env never leaks in
	t.Setenv("DESK_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8087" || cfg.BaseURL != "http://127.0.0.1:8087" {
		t.Fatalf("unexpected addresses: %+v", cfg)
	}
	if cfg.BridgeTimeout() != 10*time.Second || cfg.BridgeRetry != 3 || cfg.BridgeRPS != 0 {
		t.Fatalf("unexpected bridge defaults: %+v", cfg)
	}
	if cfg.DraftTTL() != 72*time.Hour || !cfg.MetricsEnabled {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.RequireSession(); err == nil {
		t.Fatalf("expected session keys to be required")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DESK_BASE_URL", "http://desk:9000/")
	t.Setenv("TOURNAMENT_ID", "t-1")
	t.Setenv("ARBITER_ID", "arb")
	t.Setenv("BRIDGE_TIMEOUT_SEC", "4")
	t.Setenv("BRIDGE_RPS", "2.5")
	t.Setenv("BRIDGE_BURST", "1")
	t.Setenv("DRAFT_TTL_SEC", "0")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "http://desk:9000" {
		t.Fatalf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.BridgeTimeout() != 4*time.Second || cfg.BridgeRPS != 2.5 || cfg.BridgeBurst != 1 {
		t.Fatalf("unexpected bridge config: %+v", cfg)
	}
	if cfg.DraftTTLSec != 0 || cfg.MetricsEnabled {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if err := cfg.RequireSession(); err != nil {
		t.Fatalf("RequireSession: %v", err)
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("BRIDGE_TIMEOUT_SEC", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for BRIDGE_TIMEOUT_SEC")
	}

	clearEnv(t)
	t.Setenv("BRIDGE_RPS", "-1")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for BRIDGE_RPS")
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "desk.env")
	body := "TOURNAMENT_ID=from-file\nARBITER_ID=file-arbiter\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("DESK_ENV_FILE", path)
	// already-set variables win over the file
	t.Setenv("ARBITER_ID", "shell-arbiter")
	// godotenv sets variables directly; make sure they are cleaned up afterwards
	t.Cleanup(func() { os.Unsetenv("TOURNAMENT_ID") })
	os.Unsetenv("TOURNAMENT_ID")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TournamentID != "from-file" {
		t.Fatalf("TournamentID = %q", cfg.TournamentID)
	}
	if cfg.ArbiterID != "shell-arbiter" {
		t.Fatalf("ArbiterID = %q", cfg.ArbiterID)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
db:
  path: "test.db"
settlement:
  treasury: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
  fee_denominator: 10000
amm:
  swap_fee_bps: 30
`)

	t.Setenv("PORT", "")
	t.Setenv("TREASURY_ADDRESS", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr = %s, want :9090", cfg.Server.Addr)
	}
	if cfg.DB.Path != "test.db" {
		t.Errorf("db path = %s, want test.db", cfg.DB.Path)
	}
	if cfg.Settlement.Treasury == "" {
		t.Error("treasury not loaded")
	}
	if cfg.AMM.SwapFeeBps != 30 {
		t.Errorf("swap fee = %d, want 30", cfg.AMM.SwapFeeBps)
	}

	// Unset fields keep their defaults.
	if cfg.Auth.JWTSecret == "" {
		t.Error("jwt secret default missing")
	}
	if cfg.Settlement.FeeDenominator != 10000 {
		t.Errorf("fee denominator = %d, want 10000", cfg.Settlement.FeeDenominator)
	}
}

func TestLoadRequiresTreasury(t *testing.T) {
	t.Setenv("TREASURY_ADDRESS", "")

	path := writeConfig(t, "server:\n  addr: \":9090\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded without a treasury")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
settlement:
  treasury: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
`)

	t.Setenv("PORT", "7000")
	t.Setenv("TREASURY_ADDRESS", "9yQNfyh6LAxkXtg2CW87d97TXJSDpbD5jBkheTqA83TZ")
	t.Setenv("SWAP_FEE_BPS", "50")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("addr = %s, want :7000", cfg.Server.Addr)
	}
	if cfg.Settlement.Treasury != "9yQNfyh6LAxkXtg2CW87d97TXJSDpbD5jBkheTqA83TZ" {
		t.Errorf("treasury override not applied: %s", cfg.Settlement.Treasury)
	}
	if cfg.AMM.SwapFeeBps != 50 {
		t.Errorf("swap fee = %d, want 50", cfg.AMM.SwapFeeBps)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("TREASURY_ADDRESS", "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %s, want :8080", cfg.Server.Addr)
	}
	if cfg.Settlement.FeeDenominator != 10000 {
		t.Errorf("fee denominator = %d, want 10000", cfg.Settlement.FeeDenominator)
	}
}

package infra

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalYAML = `
trading:
  mode: "PAPER"
  pairs: ["ETH-USD"]
  risk_usd: 10
  stop_atr_mult: 1.5
  target_atr_mult: 3.0
  margin_headroom: 0.95
signals:
  velocity_threshold_pct: 0.8
  min_threshold_pct: 0.5
limits:
  max_open_positions: 3
  max_trades_per_day: 2
  loss_cooldown_min: 180
api:
  coinbase:
    ws_url: "wss://advanced-trade-ws.coinbase.com"
    rest_url: "https://api.coinbase.com"
server:
  addr: ":8080"
`

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Minimal(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Trading.Mode != "PAPER" || len(cfg.Trading.Pairs) != 1 {
		t.Errorf("trading = %+v", cfg.Trading)
	}
	if got := cfg.LossCooldown().Hours(); got != 3 {
		t.Errorf("loss cooldown = %vh, want 3h", got)
	}
}

func TestLoadConfig_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("ORACLE_COINBASE_KEY_NAME", "org/key-from-env")
	t.Setenv("ORACLE_COINBASE_PRIVATE_KEY", "pem-from-env")

	cfg, err := LoadConfig(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Coinbase.KeyName != "org/key-from-env" {
		t.Errorf("key name = %q, env must win", cfg.API.Coinbase.KeyName)
	}
	if cfg.API.Coinbase.PrivateKeyPEM != "pem-from-env" {
		t.Error("private key must come from the environment")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  string
		replace string
	}{
		{"bad mode", `mode: "PAPER"`, `mode: "YOLO"`},
		{"no pairs", `pairs: ["ETH-USD"]`, `pairs: []`},
		{"zero risk", `risk_usd: 10`, `risk_usd: 0`},
		{"bad ws url", `ws_url: "wss://advanced-trade-ws.coinbase.com"`, `ws_url: "http://nope"`},
		{"headroom too high", `margin_headroom: 0.95`, `margin_headroom: 1.5`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := strings.Replace(minimalYAML, tt.mutate, tt.replace, 1)
			if _, err := LoadConfig(writeConfig(t, yaml)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

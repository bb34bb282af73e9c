package infra

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/markremover/futures-oracle/internal/sizing"
)

// Config holds the full application configuration. Loaded from YAML, then
// sensitive values are overridden from environment variables.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode              string                        `yaml:"mode"` // PAPER or LIVE
		Pairs             []string                      `yaml:"pairs"`
		HighVolPairs      []string                      `yaml:"high_vol_pairs"`
		RiskUSD           float64                       `yaml:"risk_usd"`
		StopATRMult       float64                       `yaml:"stop_atr_mult"`
		TargetATRMult     float64                       `yaml:"target_atr_mult"`
		PairOverrides     map[string]sizing.PairParams  `yaml:"pair_overrides"`
		MinNotionalUSD    float64                       `yaml:"min_notional_usd"`
		MarginHeadroom    float64                       `yaml:"margin_headroom"`
		InitialBalanceUSD float64                       `yaml:"initial_balance_usd"`
		DefaultLeverage   float64                       `yaml:"default_leverage"`
		ModelTakerFees    bool                          `yaml:"model_taker_fees"`
		TakerFeeRate      float64                       `yaml:"taker_fee_rate"`
	} `yaml:"trading"`

	Signals struct {
		VelocityThresholdPct float64 `yaml:"velocity_threshold_pct"`
		HighVolThresholdPct  float64 `yaml:"high_vol_threshold_pct"`
		SentimentRelaxPct    float64 `yaml:"sentiment_relax_pct"`
		MinThresholdPct      float64 `yaml:"min_threshold_pct"`
		AlertCooldownMin     int     `yaml:"alert_cooldown_min"`
		SweepIntervalSec     int     `yaml:"sweep_interval_sec"`
		WindowMin            int     `yaml:"window_min"`
		ATRGranularitySec    int     `yaml:"atr_granularity_sec"`
		ATRPeriod            int     `yaml:"atr_period"`
		SMAPeriod            int     `yaml:"sma_period"`
	} `yaml:"signals"`

	Limits struct {
		MaxOpenPositions int `yaml:"max_open_positions"`
		MaxTradesPerDay  int `yaml:"max_trades_per_day"`
		LossCooldownMin  int `yaml:"loss_cooldown_min"`
	} `yaml:"limits"`

	API struct {
		Coinbase struct {
			WSURL         string `yaml:"ws_url"`
			RestURL       string `yaml:"rest_url"`
			KeyName       string `yaml:"key_name"`
			PrivateKeyPEM string `yaml:"private_key_pem"`
		} `yaml:"coinbase"`
		MarketContext struct {
			Enabled         bool   `yaml:"enabled"`
			URL             string `yaml:"url"`
			PollIntervalSec int    `yaml:"poll_interval_sec"`
		} `yaml:"market_context"`
		Advisor struct {
			Enabled       bool    `yaml:"enabled"`
			URL           string  `yaml:"url"`
			MinConfidence float64 `yaml:"min_confidence"`
		} `yaml:"advisor"`
		Webhook struct {
			Enabled bool   `yaml:"enabled"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"webhook"`
	} `yaml:"api"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text or json
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	mode := strings.ToUpper(c.Trading.Mode)
	if mode != "PAPER" && mode != "LIVE" {
		return fmt.Errorf("trading mode must be PAPER or LIVE, got %q", c.Trading.Mode)
	}
	if len(c.Trading.Pairs) == 0 {
		return fmt.Errorf("at least one trading pair is required")
	}
	if c.Trading.RiskUSD <= 0 {
		return fmt.Errorf("risk_usd must be positive")
	}
	if c.Trading.StopATRMult <= 0 || c.Trading.TargetATRMult <= 0 {
		return fmt.Errorf("ATR multipliers must be positive")
	}
	if c.Trading.MarginHeadroom <= 0 || c.Trading.MarginHeadroom > 1 {
		return fmt.Errorf("margin_headroom must be in (0, 1]")
	}
	if c.Signals.VelocityThresholdPct <= 0 {
		return fmt.Errorf("velocity_threshold_pct must be positive")
	}
	if c.Signals.MinThresholdPct <= 0 || c.Signals.MinThresholdPct > c.Signals.VelocityThresholdPct {
		return fmt.Errorf("min_threshold_pct must be positive and not exceed the default threshold")
	}
	if c.Limits.MaxOpenPositions <= 0 || c.Limits.MaxTradesPerDay <= 0 {
		return fmt.Errorf("position and trade limits must be positive")
	}
	if c.API.Coinbase.WSURL == "" || (!strings.HasPrefix(c.API.Coinbase.WSURL, "ws://") && !strings.HasPrefix(c.API.Coinbase.WSURL, "wss://")) {
		return fmt.Errorf("invalid Coinbase WS URL: %s", c.API.Coinbase.WSURL)
	}
	if c.API.Coinbase.RestURL == "" {
		return fmt.Errorf("Coinbase REST URL is required")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}
	return nil
}

// AlertCooldown returns the per-pair debounce duration.
func (c *Config) AlertCooldown() time.Duration {
	return time.Duration(c.Signals.AlertCooldownMin) * time.Minute
}

// LossCooldown returns the post-loss cooldown duration.
func (c *Config) LossCooldown() time.Duration {
	return time.Duration(c.Limits.LossCooldownMin) * time.Minute
}

// Window returns the velocity sample retention window.
func (c *Config) Window() time.Duration {
	return time.Duration(c.Signals.WindowMin) * time.Minute
}

// overrideWithEnv overrides values from environment variables when present.
// Environment takes precedence over the file so secrets stay out of YAML.
func overrideWithEnv(cfg *Config) {
	if cfg.API.Coinbase.PrivateKeyPEM != "" {
		fmt.Println("WARNING: API private key found in config file.")
		fmt.Println("  Recommendation: use ORACLE_COINBASE_KEY_NAME / ORACLE_COINBASE_PRIVATE_KEY instead.")
	}

	if v := os.Getenv("ORACLE_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
	if v := os.Getenv("ORACLE_COINBASE_KEY_NAME"); v != "" {
		cfg.API.Coinbase.KeyName = v
	}
	if v := os.Getenv("ORACLE_COINBASE_PRIVATE_KEY"); v != "" {
		cfg.API.Coinbase.PrivateKeyPEM = v
	}
	if v := os.Getenv("ORACLE_WEBHOOK_URL"); v != "" {
		cfg.API.Webhook.BaseURL = v
	}
	if v := os.Getenv("ORACLE_ADVISOR_URL"); v != "" {
		cfg.API.Advisor.URL = v
	}
	if v := os.Getenv("ORACLE_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
}

// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"

	"ladder_maker/internal/core"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	App         AppConfig               `yaml:"app"`
	Ledger      LedgerConfig            `yaml:"ledger"`
	Signer      SignerConfig            `yaml:"signer"`
	PriceFeed   PriceFeedConfig         `yaml:"price_feed"`
	Schedule    []ScheduleEntry         `yaml:"schedule"`
	Ladders     map[string]LadderConfig `yaml:"ladders"`
	System      SystemConfig            `yaml:"system"`
	Timing      TimingConfig            `yaml:"timing"`
	Concurrency ConcurrencyConfig       `yaml:"concurrency"`
	Alerts      AlertConfig             `yaml:"alerts"`
	Telemetry   TelemetryConfig         `yaml:"telemetry"`
	Report      ReportConfig            `yaml:"report"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name string `yaml:"name"`
}

// LedgerConfig configures the ledger gateway adapter
type LedgerConfig struct {
	BaseURL         string  `yaml:"base_url" validate:"required"`
	APIKey          Secret  `yaml:"api_key"`
	RequestTimeout  int     `yaml:"request_timeout"`   // seconds, default 10
	SubmitRateLimit float64 `yaml:"submit_rate_limit"` // submissions/sec, default 5
	SubmitBurst     int     `yaml:"submit_burst"`      // default 5
}

// SignerConfig configures the external signing service
type SignerConfig struct {
	BaseURL        string `yaml:"base_url" validate:"required"`
	APIKey         Secret `yaml:"api_key"`
	RequestTimeout int    `yaml:"request_timeout"` // seconds, default 10
}

// PriceFeedConfig configures the optional streaming reference price source
type PriceFeedConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url"`
	StaleSeconds int    `yaml:"stale_seconds"` // fall back to the gateway past this age
}

// AssetConfig is an asset reference in the configuration file
type AssetConfig struct {
	Code   string `yaml:"code"`
	Issuer string `yaml:"issuer"`
}

// ToAsset converts the config reference into a core asset
func (a AssetConfig) ToAsset() core.Asset {
	if a.Issuer == "" && (a.Code == "" || strings.EqualFold(a.Code, "native")) {
		return core.NativeAsset()
	}
	return core.Asset{Code: a.Code, Issuer: a.Issuer}
}

// PairConfig is an asset pair reference in the configuration file
type PairConfig struct {
	Selling AssetConfig `yaml:"selling"`
	Buying  AssetConfig `yaml:"buying"`
}

// ToPair converts the config reference into a core pair
func (p PairConfig) ToPair() core.AssetPair {
	return core.AssetPair{Selling: p.Selling.ToAsset(), Buying: p.Buying.ToAsset()}
}

// ScheduleEntry names a ladder configuration the orchestrator must drive
// every cycle. Account and pair are carried here so a missing ladder entry
// can still be flattened.
type ScheduleEntry struct {
	Name    string     `yaml:"name" validate:"required"`
	Account string     `yaml:"account" validate:"required"`
	Pair    PairConfig `yaml:"pair"`
}

// LadderConfig holds the per-(account, pair) ladder parameters. Percent
// fields are percentage points (2 means 2%).
type LadderConfig struct {
	Account            string     `yaml:"account" validate:"required"`
	Pair               PairConfig `yaml:"pair"`
	LeverageAmountSell float64    `yaml:"leverage_amount_sell" validate:"required,min=0"`
	LeverageAmountBuy  float64    `yaml:"leverage_amount_buy" validate:"required,min=0"`
	OffsetPercent      float64    `yaml:"offset_percent" validate:"min=0"`
	StepPercent        float64    `yaml:"step_percent" validate:"required,min=0"`
	RungCount          int        `yaml:"rung_count" validate:"required,min=1,max=100"`
	MinStopPrice       float64    `yaml:"min_stop_price" validate:"required,min=0"`
	MaxStopPrice       float64    `yaml:"max_stop_price" validate:"required,min=0"`
	TolerancePercent   float64    `yaml:"tolerance_percent"`
	// MirrorTolerancePercent is deliberately independent of TolerancePercent;
	// zero means "same as TolerancePercent".
	MirrorTolerancePercent float64 `yaml:"mirror_tolerance_percent"`
	// MinRungFraction is the smallest partial rung kept when the balance
	// cannot fund a full rung, as a fraction of the per-rung amount.
	MinRungFraction float64 `yaml:"min_rung_fraction"`
	PriceDecimals   int     `yaml:"price_decimals"`
	AmountDecimals  int     `yaml:"amount_decimals"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel     string `yaml:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
	CancelOnExit bool   `yaml:"cancel_on_exit"`
}

// TimingConfig contains timing-related settings, in seconds unless noted
type TimingConfig struct {
	CycleCron        string `yaml:"cycle_cron"`         // cron spec, default "@every 30s"
	ConfigTimeout    int    `yaml:"config_timeout"`     // per-configuration deadline
	TxValidityWindow int    `yaml:"tx_validity_window"` // submission unit validity
	ShutdownGrace    int    `yaml:"shutdown_grace"`
}

// ConcurrencyConfig contains worker pool settings
type ConcurrencyConfig struct {
	CyclePoolSize   int `yaml:"cycle_pool_size" validate:"min=1,max=100"`
	CyclePoolBuffer int `yaml:"cycle_pool_buffer" validate:"min=1,max=10000"`
}

// AlertConfig contains alert channel settings
type AlertConfig struct {
	TelegramBotToken Secret `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
	SlackWebhookURL  Secret `yaml:"slack_webhook_url"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ReportConfig configures cycle report persistence
type ReportConfig struct {
	Backend string `yaml:"backend" validate:"oneof=memory sqlite"`
	Path    string `yaml:"path"` // sqlite only
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "ladder_maker"
	}
	if c.Ledger.RequestTimeout <= 0 {
		c.Ledger.RequestTimeout = 10
	}
	if c.Ledger.SubmitRateLimit <= 0 {
		c.Ledger.SubmitRateLimit = 5
	}
	if c.Ledger.SubmitBurst <= 0 {
		c.Ledger.SubmitBurst = 5
	}
	if c.Signer.RequestTimeout <= 0 {
		c.Signer.RequestTimeout = 10
	}
	if c.PriceFeed.StaleSeconds <= 0 {
		c.PriceFeed.StaleSeconds = 30
	}
	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
	if c.Timing.CycleCron == "" {
		c.Timing.CycleCron = "@every 30s"
	}
	if c.Timing.ConfigTimeout <= 0 {
		c.Timing.ConfigTimeout = 20
	}
	if c.Timing.TxValidityWindow <= 0 {
		c.Timing.TxValidityWindow = 30
	}
	if c.Timing.ShutdownGrace <= 0 {
		c.Timing.ShutdownGrace = 10
	}
	if c.Concurrency.CyclePoolSize <= 0 {
		c.Concurrency.CyclePoolSize = 8
	}
	if c.Concurrency.CyclePoolBuffer <= 0 {
		c.Concurrency.CyclePoolBuffer = 64
	}
	if c.Telemetry.MetricsPort <= 0 {
		c.Telemetry.MetricsPort = 9090
	}
	if c.Report.Backend == "" {
		c.Report.Backend = "memory"
	}

	for name, ladder := range c.Ladders {
		if ladder.TolerancePercent < 0 {
			ladder.TolerancePercent = 0
		}
		if ladder.MirrorTolerancePercent == 0 {
			ladder.MirrorTolerancePercent = ladder.TolerancePercent
		}
		if ladder.MinRungFraction <= 0 {
			ladder.MinRungFraction = 0.1
		}
		if ladder.PriceDecimals <= 0 {
			ladder.PriceDecimals = 7
		}
		if ladder.AmountDecimals <= 0 {
			ladder.AmountDecimals = 7
		}
		c.Ladders[name] = ladder
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errs []string

	if c.Ledger.BaseURL == "" {
		errs = append(errs, "ledger.base_url is required")
	}
	if c.Signer.BaseURL == "" {
		errs = append(errs, "signer.base_url is required")
	}
	if c.PriceFeed.Enabled && c.PriceFeed.URL == "" {
		errs = append(errs, "price_feed.url is required when price_feed.enabled")
	}

	switch strings.ToUpper(c.System.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR", "FATAL":
	default:
		errs = append(errs, fmt.Sprintf("system.log_level invalid: %s", c.System.LogLevel))
	}

	if c.Report.Backend != "memory" && c.Report.Backend != "sqlite" {
		errs = append(errs, fmt.Sprintf("report.backend invalid: %s", c.Report.Backend))
	}
	if c.Report.Backend == "sqlite" && c.Report.Path == "" {
		errs = append(errs, "report.path is required for sqlite backend")
	}

	seen := make(map[string]bool)
	for i, entry := range c.Schedule {
		if entry.Name == "" {
			errs = append(errs, fmt.Sprintf("schedule[%d].name is required", i))
		}
		if entry.Account == "" {
			errs = append(errs, fmt.Sprintf("schedule[%d].account is required", i))
		}
		if seen[entry.Name] {
			errs = append(errs, fmt.Sprintf("schedule entry '%s' is duplicated", entry.Name))
		}
		seen[entry.Name] = true
	}

	for name, ladder := range c.Ladders {
		if err := ladder.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("ladders.%s: %v", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks a single ladder configuration
func (l LadderConfig) Validate() error {
	if l.Account == "" {
		return ValidationError{Field: "account", Value: l.Account, Message: "required"}
	}
	if l.RungCount < 1 || l.RungCount > 100 {
		return ValidationError{Field: "rung_count", Value: l.RungCount, Message: "must be in [1,100]"}
	}
	if l.LeverageAmountSell <= 0 && l.LeverageAmountBuy <= 0 {
		return ValidationError{Field: "leverage_amount", Value: l.LeverageAmountSell, Message: "at least one side must be positive"}
	}
	if l.StepPercent <= 0 {
		return ValidationError{Field: "step_percent", Value: l.StepPercent, Message: "must be positive"}
	}
	if l.OffsetPercent < 0 {
		return ValidationError{Field: "offset_percent", Value: l.OffsetPercent, Message: "must not be negative"}
	}
	if l.MinStopPrice <= 0 || l.MaxStopPrice <= 0 {
		return ValidationError{Field: "min_stop_price", Value: l.MinStopPrice, Message: "stop band prices must be positive"}
	}
	if l.MinStopPrice >= l.MaxStopPrice {
		return ValidationError{Field: "max_stop_price", Value: l.MaxStopPrice, Message: "must exceed min_stop_price"}
	}
	if l.TolerancePercent < 0 || l.MirrorTolerancePercent < 0 {
		return ValidationError{Field: "tolerance_percent", Value: l.TolerancePercent, Message: "must not be negative"}
	}
	return nil
}

// expandEnvVars expands ${VAR} references in the raw YAML
func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

// Package config handles loading and validating momentum-trade configuration from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// StopPolicy selects how stop-loss and take-profit distances are derived.
type StopPolicy string

const (
	StopFixedPercent StopPolicy = "fixed_percent"
	StopATRMultiple  StopPolicy = "atr_multiple"
)

// SizingPolicy selects the denominator used to turn risk money into volume.
type SizingPolicy string

const (
	SizingFixedFraction SizingPolicy = "fixed_fraction" // risk / price
	SizingATRBased      SizingPolicy = "atr"            // risk / ATR
)

// Direction restricts which signal sides may be traded.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionBoth  Direction = "both"
)

// EquityRefresh controls when account equity is sampled for sizing.
type EquityRefresh string

const (
	EquityOnce  EquityRefresh = "once"
	EquityCycle EquityRefresh = "cycle"
)

// VenueMode selects the venue implementation.
type VenueMode string

const (
	VenuePaper VenueMode = "paper"
)

// Config is the root configuration structure.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Venue    VenueConfig    `yaml:"venue"`
	Strategy StrategyConfig `yaml:"strategy"`
	Risk     RiskConfig     `yaml:"risk"`
	Backtest BacktestConfig `yaml:"backtest"`
	API      APIConfig      `yaml:"api"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"logLevel"`
	LogFile  string `yaml:"logFile"`
}

// VenueConfig describes how to reach the trading venue.
type VenueConfig struct {
	Mode        VenueMode     `yaml:"mode"`
	Server      string        `yaml:"server"`
	Login       string        `yaml:"login"`
	PasswordEnv string        `yaml:"passwordEnv"`
	CandlesPath string        `yaml:"candlesPath"`
	ReplayEvery time.Duration `yaml:"replayEvery"`
	Spread      float64       `yaml:"spread"`
	Balance     float64       `yaml:"balance"`
}

// StrategyConfig holds signal and polling parameters.
type StrategyConfig struct {
	Instrument     string        `yaml:"instrument"`
	Timeframe      time.Duration `yaml:"timeframe"`
	PriceThreshold float64       `yaml:"priceThreshold"` // percent
	Direction      Direction     `yaml:"direction"`
	ATRPeriod      int           `yaml:"atrPeriod"`
	LookbackBars   int           `yaml:"lookbackBars"`
	ConfirmDelay   time.Duration `yaml:"confirmDelay"`
	PollInterval   time.Duration `yaml:"pollInterval"`
	DealLookback   time.Duration `yaml:"dealLookback"`
	Magic          int           `yaml:"magic"`
	Comment        string        `yaml:"comment"`
	Deviation      int           `yaml:"deviation"`
}

// RiskConfig holds stop and sizing policies.
type RiskConfig struct {
	StopPolicy         StopPolicy    `yaml:"stopPolicy"`
	StopLossMultiple   float64       `yaml:"stopLossMultiple"`
	TakeProfitMultiple float64       `yaml:"takeProfitMultiple"`
	StopLossPercent    float64       `yaml:"stopLossPercent"`
	TakeProfitPercent  float64       `yaml:"takeProfitPercent"`
	SizingPolicy       SizingPolicy  `yaml:"sizingPolicy"`
	RiskFraction       float64       `yaml:"riskFraction"`
	EquityDivisor      float64       `yaml:"equityDivisor"` // when > 0, risk = equity / divisor
	EquityRefresh      EquityRefresh `yaml:"equityRefresh"`
	VolumeMin          float64       `yaml:"volumeMin"`
	VolumeStep         float64       `yaml:"volumeStep"`
	VolumeMax          float64       `yaml:"volumeMax"`
}

// BacktestConfig holds simulation settings.
type BacktestConfig struct {
	InitialBalance float64 `yaml:"initialBalance"`
	FeeRate        float64 `yaml:"feeRate"` // per leg, fraction of notional
	CandlesPath    string  `yaml:"candlesPath"`
	TradesOut      string  `yaml:"tradesOut"`
}

// APIConfig holds the status/metrics HTTP server settings. Empty address disables it.
type APIConfig struct {
	ListenAddress string `yaml:"listenAddress"`
}

// Load reads, defaults and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

// Password resolves the venue password from the configured environment variable.
func (c *Config) Password() string {
	if c.Venue.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.Venue.PasswordEnv)
}

// setDefaults applies sensible defaults for optional fields.
func (c *Config) setDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.LogFile == "" {
		c.App.LogFile = "logs/momentum.log"
	}
	if c.Venue.Mode == "" {
		c.Venue.Mode = VenuePaper
	}
	if c.Venue.ReplayEvery == 0 {
		c.Venue.ReplayEvery = time.Second
	}
	if c.Venue.Balance == 0 {
		c.Venue.Balance = 10000
	}
	if c.Strategy.Instrument == "" {
		c.Strategy.Instrument = "BTCUSD"
	}
	if c.Strategy.Timeframe == 0 {
		c.Strategy.Timeframe = 10 * time.Minute
	}
	if c.Strategy.PriceThreshold == 0 {
		c.Strategy.PriceThreshold = 3
	}
	if c.Strategy.Direction == "" {
		c.Strategy.Direction = DirectionBoth
	}
	if c.Strategy.ATRPeriod == 0 {
		c.Strategy.ATRPeriod = 14
	}
	if c.Strategy.LookbackBars == 0 {
		c.Strategy.LookbackBars = 100
	}
	if c.Strategy.ConfirmDelay == 0 {
		c.Strategy.ConfirmDelay = 8 * time.Second
	}
	if c.Strategy.PollInterval == 0 {
		c.Strategy.PollInterval = time.Second
	}
	if c.Strategy.DealLookback == 0 {
		c.Strategy.DealLookback = 24 * time.Hour
	}
	if c.Strategy.Magic == 0 {
		c.Strategy.Magic = 66
	}
	if c.Strategy.Comment == "" {
		c.Strategy.Comment = "momentum"
	}
	if c.Strategy.Deviation == 0 {
		c.Strategy.Deviation = 20
	}
	if c.Risk.StopPolicy == "" {
		c.Risk.StopPolicy = StopATRMultiple
	}
	if c.Risk.StopLossMultiple == 0 {
		c.Risk.StopLossMultiple = 1.5
	}
	if c.Risk.TakeProfitMultiple == 0 {
		c.Risk.TakeProfitMultiple = 2.5
	}
	if c.Risk.StopLossPercent == 0 {
		c.Risk.StopLossPercent = 5
	}
	if c.Risk.TakeProfitPercent == 0 {
		c.Risk.TakeProfitPercent = 8
	}
	if c.Risk.SizingPolicy == "" {
		c.Risk.SizingPolicy = SizingFixedFraction
	}
	if c.Risk.RiskFraction == 0 && c.Risk.EquityDivisor == 0 {
		c.Risk.RiskFraction = 0.01
	}
	if c.Risk.EquityRefresh == "" {
		c.Risk.EquityRefresh = EquityOnce
	}
	if c.Risk.VolumeMin == 0 {
		c.Risk.VolumeMin = 0.01
	}
	if c.Risk.VolumeStep == 0 {
		c.Risk.VolumeStep = 0.01
	}
	if c.Backtest.InitialBalance == 0 {
		c.Backtest.InitialBalance = 10000
	}
}

// Validate checks that all settings are usable. It returns the first problem found,
// wrapped in ErrInvalidConfig, so the process can fail before any trading starts.
func (c *Config) Validate() error {
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if c.Venue.Mode != VenuePaper {
		return fmt.Errorf("%w: unsupported venue.mode %q", ErrInvalidConfig, c.Venue.Mode)
	}
	if c.Backtest.InitialBalance <= 0 {
		return fmt.Errorf("%w: backtest.initialBalance must be positive", ErrInvalidConfig)
	}
	if c.Backtest.FeeRate < 0 || c.Backtest.FeeRate >= 1 {
		return fmt.Errorf("%w: backtest.feeRate (%f) must be in [0,1)", ErrInvalidConfig, c.Backtest.FeeRate)
	}
	return nil
}

// Validate checks the signal parameters.
func (s StrategyConfig) Validate() error {
	switch s.Direction {
	case DirectionLong, DirectionShort, DirectionBoth:
	default:
		return fmt.Errorf("%w: unknown strategy.direction %q", ErrInvalidConfig, s.Direction)
	}
	if s.Instrument == "" {
		return fmt.Errorf("%w: strategy.instrument is required", ErrInvalidConfig)
	}
	if s.PriceThreshold <= 0 {
		return fmt.Errorf("%w: strategy.priceThreshold must be positive", ErrInvalidConfig)
	}
	if s.ATRPeriod <= 0 {
		return fmt.Errorf("%w: strategy.atrPeriod must be positive", ErrInvalidConfig)
	}
	if s.LookbackBars < s.ATRPeriod+2 {
		return fmt.Errorf("%w: strategy.lookbackBars (%d) must cover atrPeriod+2", ErrInvalidConfig, s.LookbackBars)
	}
	if s.ConfirmDelay < 0 || s.PollInterval <= 0 || s.DealLookback <= 0 {
		return fmt.Errorf("%w: strategy delays must be positive", ErrInvalidConfig)
	}
	return nil
}

// Validate checks the stop and sizing policies. Non-positive distances would put a
// stop level on the wrong side of the entry price, so they are rejected here.
func (r RiskConfig) Validate() error {
	switch r.StopPolicy {
	case StopATRMultiple:
		if r.StopLossMultiple <= 0 || r.TakeProfitMultiple <= 0 {
			return fmt.Errorf("%w: stop/take-profit multiples must be positive", ErrInvalidConfig)
		}
	case StopFixedPercent:
		if r.StopLossPercent <= 0 || r.StopLossPercent >= 100 {
			return fmt.Errorf("%w: risk.stopLossPercent (%f) must be in (0,100)", ErrInvalidConfig, r.StopLossPercent)
		}
		if r.TakeProfitPercent <= 0 {
			return fmt.Errorf("%w: risk.takeProfitPercent must be positive", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown risk.stopPolicy %q", ErrInvalidConfig, r.StopPolicy)
	}

	switch r.SizingPolicy {
	case SizingFixedFraction, SizingATRBased:
	default:
		return fmt.Errorf("%w: unknown risk.sizingPolicy %q", ErrInvalidConfig, r.SizingPolicy)
	}
	if r.EquityDivisor < 0 {
		return fmt.Errorf("%w: risk.equityDivisor cannot be negative", ErrInvalidConfig)
	}
	if r.EquityDivisor == 0 && (r.RiskFraction <= 0 || r.RiskFraction > 1) {
		return fmt.Errorf("%w: risk.riskFraction (%f) must be in (0,1]", ErrInvalidConfig, r.RiskFraction)
	}
	switch r.EquityRefresh {
	case EquityOnce, EquityCycle:
	default:
		return fmt.Errorf("%w: unknown risk.equityRefresh %q", ErrInvalidConfig, r.EquityRefresh)
	}
	if r.VolumeMin <= 0 || r.VolumeStep <= 0 {
		return fmt.Errorf("%w: risk.volumeMin and risk.volumeStep must be positive", ErrInvalidConfig)
	}
	if r.VolumeMax != 0 && r.VolumeMax < r.VolumeMin {
		return fmt.Errorf("%w: risk.volumeMax below volumeMin", ErrInvalidConfig)
	}
	return nil
}

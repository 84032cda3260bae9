// Package config loads the engine's fee/slippage/leverage constants.
// It supports a YAML config file with environment variable overrides,
// built on top of spf13/viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every tunable constant the accounting engine reads.
type Config struct {
	FeeStructure        FeeStructure `mapstructure:"fee_structure" json:"fee_structure"`
	BorrowInterestHourly float64     `mapstructure:"borrow_interest_hourly" json:"borrow_interest_hourly"`
	FundingFeeEvery8h    float64     `mapstructure:"funding_fee_every_8h" json:"funding_fee_every_8h"`
	Slippage             Slippage    `mapstructure:"slippage" json:"slippage"`
	MinimumQtyStep        float64    `mapstructure:"minimum_qty_step" json:"minimum_qty_step"`
	MarginMaxLeverage     int        `mapstructure:"margin_max_leverage" json:"margin_max_leverage"`
	FuturesMaxLeverage    int        `mapstructure:"futures_max_leverage" json:"futures_max_leverage"`
}

// FeeStructure holds the fee rate for each account mode and subtype.
type FeeStructure struct {
	Spot    map[string]float64 `mapstructure:"spot" json:"spot"`
	Margin  map[string]float64 `mapstructure:"margin" json:"margin"`
	Futures map[string]float64 `mapstructure:"futures" json:"futures"`
}

// Rate returns the configured fee rate for mode/subtype, or 0 if unset.
func (f FeeStructure) Rate(mode, subtype string) float64 {
	var m map[string]float64
	switch mode {
	case "spot":
		m = f.Spot
	case "margin":
		m = f.Margin
	case "futures":
		m = f.Futures
	}
	if m == nil {
		return 0
	}
	return m[subtype]
}

// Slippage is the per-mode slippage rate applied against the tape price.
type Slippage struct {
	Spot    float64 `mapstructure:"spot" json:"spot"`
	Margin  float64 `mapstructure:"margin" json:"margin"`
	Futures float64 `mapstructure:"futures" json:"futures"`
}

// Rate returns the slippage rate configured for mode.
func (s Slippage) Rate(mode string) float64 {
	switch mode {
	case "spot":
		return s.Spot
	case "margin":
		return s.Margin
	case "futures":
		return s.Futures
	}
	return 0
}

// Default returns the built-in July 2025 rate/leverage defaults.
func Default() Config {
	return Config{
		FeeStructure: FeeStructure{
			Spot:    map[string]float64{"regular": 0.001},
			Margin:  map[string]float64{"regular": 0.001},
			Futures: map[string]float64{"regular": 0.0004},
		},
		BorrowInterestHourly: 6.5938e-6,
		FundingFeeEvery8h:    1e-4,
		Slippage: Slippage{
			Spot:    0.0005,
			Margin:  0.0007,
			Futures: 0.0007,
		},
		MinimumQtyStep:     1e-5,
		MarginMaxLeverage:  10,
		FuturesMaxLeverage: 125,
	}
}

// Load reads configuration from an optional YAML file plus BTENGINE_*
// environment overrides, falling back to Default() for anything unset.
//
// Config file search order (first match wins):
//  1. ./config/btengine.yaml
//  2. ~/.btengine/btengine.yaml
//  3. /etc/btengine/btengine.yaml
func Load() (Config, error) {
	v := viper.New()
	applyDefaults(v, Default())

	v.SetConfigName("btengine")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".btengine"))
	v.AddConfigPath("/etc/btengine")

	v.SetEnvPrefix("BTENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path.
func LoadFromFile(path string) (Config, error) {
	v := viper.New()
	applyDefaults(v, Default())

	v.SetConfigFile(path)
	v.SetEnvPrefix("BTENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

func applyDefaults(v *viper.Viper, d Config) {
	v.SetDefault("fee_structure.spot", d.FeeStructure.Spot)
	v.SetDefault("fee_structure.margin", d.FeeStructure.Margin)
	v.SetDefault("fee_structure.futures", d.FeeStructure.Futures)
	v.SetDefault("borrow_interest_hourly", d.BorrowInterestHourly)
	v.SetDefault("funding_fee_every_8h", d.FundingFeeEvery8h)
	v.SetDefault("slippage.spot", d.Slippage.Spot)
	v.SetDefault("slippage.margin", d.Slippage.Margin)
	v.SetDefault("slippage.futures", d.Slippage.Futures)
	v.SetDefault("minimum_qty_step", d.MinimumQtyStep)
	v.SetDefault("margin_max_leverage", d.MarginMaxLeverage)
	v.SetDefault("futures_max_leverage", d.FuturesMaxLeverage)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads and saves the ledger configuration. Values come
// from a YAML file under the data directory and may be overridden by
// ROYALTY_* environment variables (ROYALTY_TEMPLATE_LICENSE_PRICE and so
// on).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/bitfsorg/libroyalty-go/payment"
	"github.com/bitfsorg/libroyalty-go/revshare"
	"github.com/bitfsorg/libroyalty-go/vault"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ROYALTY"

// Template is the default economic configuration applied to new assets.
type Template struct {
	PricePerShare uint64 `mapstructure:"price_per_share"`
	RevenueUnit   string `mapstructure:"revenue_unit"`
	LicensePrice  uint64 `mapstructure:"license_price"`
	LicensePeriod int64  `mapstructure:"license_period"` // seconds
	MaxSupply     uint64 `mapstructure:"max_supply"`     // 0 = unlimited
	Proceeds      string `mapstructure:"proceeds"`       // "holders" or "creator"
}

// VaultConfig converts t into a vault configuration.
func (t Template) VaultConfig() (vault.Config, error) {
	p, err := vault.ParseProceeds(t.Proceeds)
	if err != nil {
		return vault.Config{}, err
	}
	return vault.Config{
		PricePerShare: t.PricePerShare,
		RevenueUnit:   payment.Unit(t.RevenueUnit),
		LicensePrice:  t.LicensePrice,
		LicensePeriod: t.LicensePeriod,
		MaxSupply:     t.MaxSupply,
		Proceeds:      p,
	}, nil
}

// Config holds the ledger settings.
type Config struct {
	DataDir  string   `mapstructure:"datadir"`
	Backend  string   `mapstructure:"backend"`  // "bolt", "pebble" or "memory"
	Network  string   `mapstructure:"network"`  // "mainnet" or "testnet"
	LogLevel string   `mapstructure:"loglevel"` // "debug", "info", "warn" or "error"
	LogFile  string   `mapstructure:"logfile"`  // empty = stderr
	Owner    string   `mapstructure:"owner"`    // hex factory owner address
	Template Template `mapstructure:"template"`
}

// Mainnet reports whether addresses are rendered for mainnet.
func (c Config) Mainnet() bool { return c.Network == "mainnet" }

// OwnerAddress parses the configured factory owner. An empty owner yields
// the zero address, which disables template updates.
func (c Config) OwnerAddress() (revshare.Address, error) {
	if c.Owner == "" {
		return revshare.Address{}, nil
	}
	a, err := revshare.ParseAddress(c.Owner)
	if err != nil {
		return a, fmt.Errorf("%w: %w", ErrInvalidOwner, err)
	}
	return a, nil
}

// DefaultDataDir returns ~/.royalty, or .royalty if the home directory
// cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".royalty"
	}
	return filepath.Join(home, ".royalty")
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:  DefaultDataDir(),
		Backend:  "bolt",
		Network:  "mainnet",
		LogLevel: "info",
		Template: Template{
			PricePerShare: 1000,
			RevenueUnit:   "BSV",
			LicensePrice:  0,
			LicensePeriod: 30 * 24 * 3600,
			Proceeds:      "holders",
		},
	}
}

// ConfigPath returns the config file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.yaml")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	set(v, DefaultConfig(), v.SetDefault)
	return v
}

func set(v *viper.Viper, cfg Config, fn func(string, interface{})) {
	fn("datadir", cfg.DataDir)
	fn("backend", cfg.Backend)
	fn("network", cfg.Network)
	fn("loglevel", cfg.LogLevel)
	fn("logfile", cfg.LogFile)
	fn("owner", cfg.Owner)
	fn("template.price_per_share", cfg.Template.PricePerShare)
	fn("template.revenue_unit", cfg.Template.RevenueUnit)
	fn("template.license_price", cfg.Template.LicensePrice)
	fn("template.license_period", cfg.Template.LicensePeriod)
	fn("template.max_supply", cfg.Template.MaxSupply)
	fn("template.proceeds", cfg.Template.Proceeds)
}

// LoadConfig reads the config file at path. Keys missing from the file
// keep their defaults; environment variables override both.
func LoadConfig(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfigFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfigFile, err)
	}
	return cfg, nil
}

// LoadOrDefault loads the config at path, falling back to the defaults
// (with environment overrides) when the file does not exist.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := LoadConfig(path)
	if errors.Is(err, ErrConfigNotFound) {
		var def Config
		if err := newViper().Unmarshal(&def); err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfigFile, err)
		}
		return def, nil
	}
	return cfg, err
}

// SaveConfig writes cfg to path as YAML, creating parent directories as
// needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	v := viper.New()
	v.SetConfigType("yaml")
	set(v, cfg, v.Set)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

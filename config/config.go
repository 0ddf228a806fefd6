// Package config loads node configuration from a JSON or YAML file and
// applies PURGE_* environment overrides on top.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/tolelom/purgegame/game"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PURGE_"

// GenesisConfig describes the initial native balances.
type GenesisConfig struct {
	Alloc map[string]uint64 `json:"alloc" yaml:"alloc"` // pubkey hex → initial balance
}

// RPCConfig configures the JSON-RPC listener.
type RPCConfig struct {
	Addr      string    `json:"addr" yaml:"addr" env:"ADDR"`
	AuthToken string    `json:"auth_token,omitempty" yaml:"auth_token,omitempty" env:"AUTH_TOKEN"`
	RateLimit float64   `json:"rate_limit" yaml:"rate_limit" env:"RATE_LIMIT"` // requests/s per client; 0 → unlimited
	Burst     int       `json:"burst" yaml:"burst" env:"BURST"`
	TLS       TLSConfig `json:"tls" yaml:"tls" envPrefix:"TLS_"`
}

// KeeperConfig configures the node's own advance loop.
type KeeperConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled" env:"ENABLED"`
	Schedule  string `json:"schedule" yaml:"schedule" env:"SCHEDULE"` // cron spec
	Budget    uint32 `json:"budget" yaml:"budget" env:"BUDGET"`       // 0 → game default budget
	MaxPerRun int    `json:"max_per_run" yaml:"max_per_run" env:"MAX_PER_RUN"`
	Keystore  string `json:"keystore" yaml:"keystore" env:"KEYSTORE"`
}

// RandomnessConfig configures the local VRF coordinator.
type RandomnessConfig struct {
	Keystore string `json:"keystore" yaml:"keystore" env:"KEYSTORE"`
	DelayMS  int    `json:"delay_ms" yaml:"delay_ms" env:"DELAY_MS"` // wait before fulfilling a request
}

// Config holds all node configuration.
type Config struct {
	ChainID    string           `json:"chain_id" yaml:"chain_id" env:"CHAIN_ID"`
	DataDir    string           `json:"data_dir" yaml:"data_dir" env:"DATA_DIR"`
	LogLevel   string           `json:"log_level" yaml:"log_level" env:"LOG_LEVEL"`
	RPC        RPCConfig        `json:"rpc" yaml:"rpc" envPrefix:"RPC_"`
	Keeper     KeeperConfig     `json:"keeper" yaml:"keeper" envPrefix:"KEEPER_"`
	Randomness RandomnessConfig `json:"randomness" yaml:"randomness" envPrefix:"RANDOMNESS_"`
	Game       game.Params      `json:"game" yaml:"game" envPrefix:"GAME_"`
	Genesis    GenesisConfig    `json:"genesis" yaml:"genesis"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		ChainID:  "purge-dev",
		DataDir:  "./data",
		LogLevel: "info",
		RPC: RPCConfig{
			Addr:      "127.0.0.1:8545",
			RateLimit: 20,
			Burst:     40,
		},
		Keeper: KeeperConfig{
			Enabled:   true,
			Schedule:  "@every 15s",
			MaxPerRun: 64,
			Keystore:  "keeper.key",
		},
		Randomness: RandomnessConfig{
			Keystore: "vrf.key",
			DelayMS:  2000,
		},
		Game: game.DefaultParams(),
		Genesis: GenesisConfig{
			Alloc: map[string]uint64{},
		},
	}
}

// Load reads a config file from path (YAML for .yaml/.yml, JSON otherwise)
// over the defaults, then applies environment overrides. An empty path
// yields defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, cfg)
		default:
			err = json.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the node cannot start with.
func (c *Config) Validate() error {
	if c.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.RPC.RateLimit < 0 || c.RPC.Burst < 0 {
		return fmt.Errorf("rpc rate limit must not be negative")
	}
	return c.Game.Validate()
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Package node hosts the operational shell around the anchor state machine:
// configuration, persistence wiring, aux-data provisioning, and the
// block-application service.
package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"anchorsm.dev/node/asm"
)

type Config struct {
	Network        string `json:"network"`
	DataDir        string `json:"data_dir"`
	LogLevel       string `json:"log_level"`
	AuxTimeoutSecs int    `json:"aux_timeout_secs"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".asm-node"
	}
	return filepath.Join(home, ".asm-node")
}

func DefaultConfig() Config {
	return Config{
		Network:        "regtest",
		DataDir:        DefaultDataDir(),
		LogLevel:       "info",
		AuxTimeoutSecs: 30,
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator's command line.
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config json: %w", err)
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if _, err := ParamsForNetwork(cfg.Network); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if cfg.AuxTimeoutSecs <= 0 {
		return errors.New("aux_timeout_secs must be > 0")
	}
	return nil
}

func ParamsForNetwork(network string) (*asm.Params, error) {
	switch strings.ToLower(strings.TrimSpace(network)) {
	case "mainnet":
		return asm.MainnetParams(), nil
	case "regtest":
		return asm.RegtestParams(), nil
	default:
		return nil, fmt.Errorf("unknown network %q", network)
	}
}

// Package config loads the node's configuration: a single JSON document
// read from the path named by --config, with values overridable by
// environment variables and, for local development, a .env file.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// ComponentSpec names the registry (category, type) to instantiate a named
// component, plus its free-form JSON constructor args.
type ComponentSpec struct {
	Type string          `json:"type"`
	Args json.RawMessage `json:"args"`
}

// Paths holds the node's well-known filesystem locations.
type Paths struct {
	Config  string `json:"config"`
	Plugins string `json:"plugins"`
	Runtime string `json:"runtime"`
	Spool   string `json:"spool"`
}

// Network holds the node's listening configuration.
type Network struct {
	Hostname string `json:"hostname" env:"NODE_NETWORK_HOSTNAME"`
	PortLo   int    `json:"-"`
	PortHi   int    `json:"-"`
	Ports    [2]int `json:"ports"`
	Threads  uint32 `json:"threads" env:"NODE_NETWORK_THREADS"`
}

// Config is the node's full, immutable-after-load configuration.
type Config struct {
	Paths    Paths                    `json:"paths"`
	Network  Network                  `json:"network"`
	Storages map[string]ComponentSpec `json:"storages"`
	Loggers  map[string]ComponentSpec `json:"loggers"`
	Services map[string]ComponentSpec `json:"services"`

	AnnounceInterval string `json:"announce_interval" env:"NODE_ANNOUNCE_INTERVAL"`
	AdminAddr        string `json:"admin_addr" env:"NODE_ADMIN_ADDR"`
	GatewayAddr      string `json:"gateway_addr" env:"NODE_GATEWAY_ADDR"`
}

// Load reads the JSON document at path, applies environment overrides (via
// envdecode struct tags), and validates the recognized top-level shape. If
// envFile is non-empty it is loaded into the process environment first with
// godotenv, mirroring the teacher's local-development convention; missing
// envFile is not an error.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file %q: %w", envFile, err)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.Paths.Config = path

	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	cfg.Network.PortLo, cfg.Network.PortHi = cfg.Network.Ports[0], cfg.Network.Ports[1]
	if cfg.Network.PortLo <= 0 || cfg.Network.PortHi < cfg.Network.PortLo {
		return nil, fmt.Errorf("invalid network.ports range [%d, %d]", cfg.Network.PortLo, cfg.Network.PortHi)
	}
	return &cfg, nil
}

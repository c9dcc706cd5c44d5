// Package config loads the node configuration from TOML with
// environment overrides layered on top.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

// NodeConfig is the full configuration of one daclifyd node.
type NodeConfig struct {
	Group       string   `toml:"group" env:"DACLIFY_GROUP"`
	Addr        string   `toml:"addr" env:"DACLIFY_ADDR"`
	DataPath    string   `toml:"data_path" env:"DACLIFY_DATA_PATH"`
	CorsOrigins []string `toml:"cors_origins" env:"DACLIFY_CORS_ORIGINS"`

	Auth    AuthConfig    `toml:"auth"`
	Sidecar SidecarConfig `toml:"sidecar"`
	Hooks   []HookConfig  `toml:"hooks"`
}

// AuthConfig holds the request authentication material. The admin
// token grants group authority; the JWT secret verifies per-account
// bearer tokens.
type AuthConfig struct {
	JWTSecret  string `toml:"jwt_secret" env:"DACLIFY_JWT_SECRET"`
	AdminToken string `toml:"admin_token" env:"DACLIFY_ADMIN_TOKEN"`
}

// SidecarConfig points at the outbound collaborator endpoints. Any
// empty base URL disables that collaborator.
type SidecarConfig struct {
	HubURL     string `toml:"hub_url" env:"DACLIFY_HUB_URL"`
	HooksURL   string `toml:"hooks_url" env:"DACLIFY_HOOKS_URL"`
	TokenURL   string `toml:"token_url" env:"DACLIFY_TOKEN_URL"`
	PayrollURL string `toml:"payroll_url" env:"DACLIFY_PAYROLL_URL"`
}

// HookConfig registers one operation hook for the hooks module.
type HookConfig struct {
	Operation string `toml:"operation"`
	Action    string `toml:"hook_action"`
	Enabled   bool   `toml:"enabled"`
}

// Load reads path, applies environment overrides and validates the
// result. A missing path loads pure defaults plus environment.
func Load(path string) (NodeConfig, error) {
	cfg := NodeConfig{
		Addr:     ":9200",
		DataPath: "daclify.db",
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return NodeConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return NodeConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return NodeConfig{}, fmt.Errorf("config env overrides failed: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon can't start from.
func Validate(cfg NodeConfig) error {
	if strings.TrimSpace(cfg.Group) == "" {
		return fmt.Errorf("node config missing group account")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("node config missing addr")
	}
	if strings.TrimSpace(cfg.DataPath) == "" {
		return fmt.Errorf("node config missing data_path")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" && strings.TrimSpace(cfg.Auth.AdminToken) == "" {
		return fmt.Errorf("node config needs a jwt_secret or an admin_token")
	}
	for i, hook := range cfg.Hooks {
		if strings.TrimSpace(hook.Operation) == "" {
			return fmt.Errorf("hooks[%d] missing operation", i)
		}
		if strings.TrimSpace(hook.Action) == "" {
			return fmt.Errorf("hooks[%d] missing hook_action", i)
		}
	}
	return nil
}

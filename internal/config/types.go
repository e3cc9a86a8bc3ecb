// Package config loads the daemon's configuration using Viper, from a YAML
// file with environment variable overrides. Configuration is loaded from
// YAML files with automatic environment variable binding.
//
// Environment variables use the NODNS_ prefix and underscore-separated
// keys, e.g. NODNS_REMOTE_HOST overrides remote_host.
package config

import (
	"os"
	"strings"
)

// Config holds exactly the configuration keys §6 of the specification
// recognizes.
type Config struct {
	RemoteHost string `yaml:"remote_host" mapstructure:"remote_host"`
	ClientPort int    `yaml:"client_port" mapstructure:"client_port"`
	LogMask    uint8  `yaml:"log_mask"    mapstructure:"log_mask"`
	HostsPath  string `yaml:"hosts_path"  mapstructure:"hosts_path"`
	LogPath    string `yaml:"log_path"    mapstructure:"log_path"`
}

// ResolveConfigPath determines the config file path from a flag value or
// the NODNS_CONFIG environment variable, in that order.
func ResolveConfigPath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if v := strings.TrimSpace(os.Getenv("NODNS_CONFIG")); v != "" {
		return v
	}
	return ""
}

// Load loads configuration from a YAML file (if path is non-empty) with
// environment variable overrides and hardcoded defaults, then validates it.
func Load(path string) (*Config, error) {
	return loadFromSource(path)
}

package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/spf13/viper"
)

func initConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NODNS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

// MaskDefault enables info, error, and fatal logging out of the box —
// debug is opt-in.
const MaskDefault = 0b1110

func setDefaults(v *viper.Viper) {
	v.SetDefault("remote_host", "8.8.8.8")
	v.SetDefault("client_port", 0)
	v.SetDefault("log_mask", MaskDefault)
	v.SetDefault("hosts_path", "")
	v.SetDefault("log_path", "")
}

func loadFromSource(configPath string) (*Config, error) {
	v, err := initConfig(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RemoteHost: v.GetString("remote_host"),
		ClientPort: v.GetInt("client_port"),
		LogMask:    uint8(v.GetUint("log_mask")),
		HostsPath:  v.GetString("hosts_path"),
		LogPath:    v.GetString("log_path"),
	}

	if err := normalizeConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func normalizeConfig(cfg *Config) error {
	ip := net.ParseIP(cfg.RemoteHost)
	if ip == nil || ip.To4() == nil {
		return fmt.Errorf("remote_host %q is not a valid IPv4 address", cfg.RemoteHost)
	}

	if cfg.ClientPort != 0 && (cfg.ClientPort < 1024 || cfg.ClientPort > 65535) {
		return errors.New("client_port must be 0 (OS-assigned) or in 1024..65535")
	}

	if cfg.LogMask > 0b1111 {
		return errors.New("log_mask must fit in 4 bits")
	}

	return nil
}

// Package config loads settings from speakeasy.yaml and the
// SPEAKEASY_ environment, with working defaults when neither exists.
package config

import (
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Mode         string `mapstructure:"mode"`   // push-to-talk or toggle
	Hotkey       string `mapstructure:"hotkey"` // e.g. ctrl+shift+space
	Warmup       string `mapstructure:"warmup"` // queue or reject
	Provider     string `mapstructure:"provider"`
	Language     string `mapstructure:"language"`
	Device       string `mapstructure:"device"` // substring match, empty for default
	Autopaste    bool   `mapstructure:"autopaste"`
	Beeps        bool   `mapstructure:"beeps"`
	MinCaptureMs int    `mapstructure:"min_capture_ms"`
	InputGain    int    `mapstructure:"input_gain"` // capture amplification, 0 for the backend default
	HistoryPath  string `mapstructure:"history_path"`
	LogDir       string `mapstructure:"log_dir"`
}

func Load(configDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("speakeasy")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}

	v.SetDefault("mode", "push-to-talk")
	v.SetDefault("hotkey", "ctrl+shift+space")
	v.SetDefault("warmup", "queue")
	v.SetDefault("provider", "")
	v.SetDefault("language", "")
	v.SetDefault("device", "")
	v.SetDefault("autopaste", false)
	v.SetDefault("beeps", true)
	v.SetDefault("min_capture_ms", 100)
	v.SetDefault("input_gain", 0)
	v.SetDefault("history_path", "")
	v.SetDefault("log_dir", "")

	v.SetEnvPrefix("SPEAKEASY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// No file is fine; defaults and environment cover everything.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// HistoryFile resolves the history database path, falling back to a
// file inside dataDir when the config leaves it empty.
func (c *Config) HistoryFile(dataDir string) string {
	if c.HistoryPath != "" {
		return c.HistoryPath
	}
	return filepath.Join(dataDir, "history.sqlite")
}

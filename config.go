package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"intellirefactor/codeaction"
	"intellirefactor/engine"
)

const configEnv = "INTELLIREFACTOR_CONFIG"

// Config is shared by the plugin daemon, which reads it as JSON from the
// environment, and the CLI, which reads it from a YAML file.
type Config struct {
	LogLevel               string       `json:"log_level" yaml:"log_level"` // trace, debug, info, warn, error
	UseCompatSelection     bool         `json:"use_compat_selection" yaml:"use_compat_selection"`
	ResolveTimeoutMs       int          `json:"resolve_timeout_ms" yaml:"resolve_timeout_ms"`
	SetKeymaps             bool         `json:"set_keymaps" yaml:"set_keymaps"`
	MacKeys                bool         `json:"mac_keys" yaml:"mac_keys"`
	IdleShutdownSeconds    int          `json:"idle_shutdown_seconds" yaml:"idle_shutdown_seconds"`
	DebugImmediateShutdown bool         `json:"debug_immediate_shutdown" yaml:"debug_immediate_shutdown"`
	Server                 ServerConfig `json:"server" yaml:"server"`
}

// ServerConfig is the language server the CLI spawns.
type ServerConfig struct {
	Command string   `json:"command" yaml:"command"`
	Args    []string `json:"args" yaml:"args"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:            "info",
		ResolveTimeoutMs:    5000,
		IdleShutdownSeconds: 30,
		Server: ServerConfig{
			Command: "gopls",
			Args:    []string{"serve"},
		},
	}
}

// loadEnvConfig reads the daemon configuration. Missing keys keep their
// defaults; an unset variable yields the defaults.
func loadEnvConfig() (Config, error) {
	config := defaultConfig()
	raw := os.Getenv(configEnv)
	if raw == "" {
		return config, nil
	}
	if err := json.Unmarshal([]byte(raw), &config); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", configEnv, err)
	}
	return config.normalize(), nil
}

// loadFileConfig reads a YAML configuration file for the CLI. An empty
// path yields the defaults.
func loadFileConfig(path string) (Config, error) {
	config := defaultConfig()
	if path == "" {
		return config, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config.normalize(), nil
}

func (c Config) normalize() Config {
	defaults := defaultConfig()
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.ResolveTimeoutMs < 0 {
		c.ResolveTimeoutMs = 0
	}
	if c.IdleShutdownSeconds <= 0 {
		c.IdleShutdownSeconds = defaults.IdleShutdownSeconds
	}
	if c.Server.Command == "" {
		c.Server = defaults.Server
	}
	return c
}

func (c Config) resolveTimeout() time.Duration {
	return time.Duration(c.ResolveTimeoutMs) * time.Millisecond
}

func (c Config) idleShutdown() time.Duration {
	return time.Duration(c.IdleShutdownSeconds) * time.Second
}

func (c Config) engineConfig() engine.EngineConfig {
	return engine.EngineConfig{
		ResolveTimeout:     c.resolveTimeout(),
		UseCompatSelection: c.UseCompatSelection,
	}
}

func (c Config) processConfig(root string) codeaction.ProcessConfig {
	return codeaction.ProcessConfig{
		Command: c.Server.Command,
		Args:    c.Server.Args,
		RootDir: root,
	}
}

// Package config loads the static orchestrator configuration. Service
// descriptors, ports and launch commands are fixed at startup; there is
// no dynamic reconfiguration endpoint.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"studiod/internal/registry"
)

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	Server   ServerConfig    `toml:"server" mapstructure:"server"`
	Log      LogConfig       `toml:"log" mapstructure:"log"`
	Health   HealthConfig    `toml:"health" mapstructure:"health"`
	Store    StoreConfig     `toml:"store" mapstructure:"store"`
	History  HistoryConfig   `toml:"history" mapstructure:"history"`
	Services []ServiceConfig `toml:"services" mapstructure:"services"`
}

type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type LogConfig struct {
	Level string `toml:"level" mapstructure:"level"`
	Color bool   `toml:"color" mapstructure:"color"`
	Dir   string `toml:"dir" mapstructure:"dir"`
}

type HealthConfig struct {
	Interval        time.Duration `toml:"interval" mapstructure:"interval"`
	ReadinessBudget time.Duration `toml:"readiness_budget" mapstructure:"readiness_budget"`
	AttemptTimeout  time.Duration `toml:"attempt_timeout" mapstructure:"attempt_timeout"`
	PollInterval    time.Duration `toml:"poll_interval" mapstructure:"poll_interval"`
}

// StoreConfig selects the transition-log backend. Type is "sqlite",
// "postgres" or empty to disable persistence.
type StoreConfig struct {
	Type string `toml:"type" mapstructure:"type"`
	Path string `toml:"path" mapstructure:"path"` // sqlite file path
	DSN  string `toml:"dsn" mapstructure:"dsn"`   // postgres DSN
}

// HistoryConfig configures the optional export sink for transitions.
type HistoryConfig struct {
	Type  string `toml:"type" mapstructure:"type"` // "clickhouse" or empty
	Addr  string `toml:"addr" mapstructure:"addr"`
	Table string `toml:"table" mapstructure:"table"`
}

type ServiceConfig struct {
	Name        string   `toml:"name" mapstructure:"name"`
	DisplayName string   `toml:"display_name" mapstructure:"display_name"`
	Port        int      `toml:"port" mapstructure:"port"`
	HealthURL   string   `toml:"health_url" mapstructure:"health_url"`
	Commands    []string `toml:"commands" mapstructure:"commands"`
	LogDir      string   `toml:"log_dir" mapstructure:"log_dir"`
}

// Default returns the configuration used when no file is given: the
// stock set of locally installed helper services.
func Default() FileConfig {
	return FileConfig{
		Server: ServerConfig{Listen: ":3000", BasePath: "/api"},
		Log:    LogConfig{Level: "info", Color: true},
		Health: HealthConfig{},
		Services: []ServiceConfig{
			{
				Name:        "lmStudio",
				DisplayName: "LM Studio",
				Port:        1234,
				HealthURL:   "http://localhost:1234/v1/models",
				Commands:    []string{"lms server start", "~/.lmstudio/bin/lms server start"},
			},
			{
				Name:        "comfyUI",
				DisplayName: "ComfyUI",
				Port:        8188,
				HealthURL:   "http://localhost:8188/system_stats",
				Commands:    []string{"comfy launch", "python main.py --port 8188"},
			},
			{
				Name:        "fileProcessor",
				DisplayName: "File Processor",
				Port:        3001,
				HealthURL:   "http://localhost:3001/health",
				Commands:    []string{"fileprocd --listen :3001"},
			},
		},
	}
}

// Load reads a TOML config file. An empty path yields Default().
func Load(path string) (FileConfig, error) {
	if path == "" {
		return Default(), nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return FileConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	fc := Default()
	fc.Services = nil // a file's service table replaces the stock set
	if err := v.Unmarshal(&fc); err != nil {
		return FileConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := fc.Validate(); err != nil {
		return FileConfig{}, err
	}
	return fc, nil
}

// Validate rejects tables an orchestrator cannot safely run with.
func (fc FileConfig) Validate() error {
	seen := make(map[string]struct{}, len(fc.Services))
	for _, s := range fc.Services {
		if s.Name == "" {
			return fmt.Errorf("service with empty name")
		}
		if s.Name == registry.SelfName {
			return fmt.Errorf("service name %q is reserved", registry.SelfName)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("duplicate service %q", s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.Port <= 0 || s.Port > 65535 {
			return fmt.Errorf("service %q: invalid port %d", s.Name, s.Port)
		}
	}
	return nil
}

// Descriptors converts the service table into registry descriptors,
// defaulting per-service log directories under the daemon log dir.
func (fc FileConfig) Descriptors() []registry.Descriptor {
	out := make([]registry.Descriptor, 0, len(fc.Services))
	for _, s := range fc.Services {
		d := registry.Descriptor{
			Name:        s.Name,
			DisplayName: s.DisplayName,
			Port:        s.Port,
			HealthURL:   s.HealthURL,
			Commands:    s.Commands,
			LogDir:      s.LogDir,
		}
		if d.LogDir == "" {
			d.LogDir = fc.Log.Dir
		}
		if d.DisplayName == "" {
			d.DisplayName = s.Name
		}
		out = append(out, d)
	}
	return out
}

package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config represents the complete server configuration
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Game   GameSettings   `hcl:"game,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address      string `hcl:"address,optional"`
	Port         int    `hcl:"port,optional"`
	LogLevel     string `hcl:"log_level,optional"`
	DatabasePath string `hcl:"database_path,optional"`
}

// GameSettings contains game pacing and dealing configuration
type GameSettings struct {
	// Delays in milliseconds. Zero disables pacing, which tests rely on.
	AfterPlayDelayMs  int   `hcl:"after_play_delay_ms,optional"`
	AfterTrickDelayMs int   `hcl:"after_trick_delay_ms,optional"`
	Seed              int64 `hcl:"seed,optional"`
}

// AfterPlayDelay returns the pause around each play's notifications.
func (g GameSettings) AfterPlayDelay() time.Duration {
	return time.Duration(g.AfterPlayDelayMs) * time.Millisecond
}

// AfterTrickDelay returns the pause after a trick seals.
func (g GameSettings) AfterTrickDelay() time.Duration {
	return time.Duration(g.AfterTrickDelayMs) * time.Millisecond
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:      "localhost",
			Port:         8080,
			LogLevel:     "info",
			DatabasePath: "doko.db",
		},
		Game: GameSettings{
			AfterPlayDelayMs:  200,
			AfterTrickDelayMs: 1500,
		},
	}
}

// LoadConfig loads server configuration from an HCL file. A missing file
// yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	defaults := DefaultConfig()
	if config.Server.Address == "" {
		config.Server.Address = defaults.Server.Address
	}
	if config.Server.Port == 0 {
		config.Server.Port = defaults.Server.Port
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = defaults.Server.LogLevel
	}
	if config.Server.DatabasePath == "" {
		config.Server.DatabasePath = defaults.Server.DatabasePath
	}

	return &config, nil
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

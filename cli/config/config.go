// Package config provides configuration management for the burrow CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the default config file name.
const ConfigFileName = "burrow.yaml"

// Config is the burrow CLI configuration, loaded from burrow.yaml.
type Config struct {
	Version    string           `yaml:"version"`
	Project    ProjectConfig    `yaml:"project"`
	Database   DatabaseConfig   `yaml:"database"`
	EventStore EventStoreConfig `yaml:"event_store"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ProjectConfig names the project and its Go module path.
type ProjectConfig struct {
	Name   string `yaml:"name"`
	Module string `yaml:"module"`
}

// DatabaseConfig holds the database driver and connection settings.
// Driver is "postgres" or "memory".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url,omitempty"`
	Schema string `yaml:"schema"`
}

// EventStoreConfig names the tables the postgres adapter writes to.
type EventStoreConfig struct {
	TableName            string `yaml:"table_name"`
	IdempotencyTableName string `yaml:"idempotency_table_name"`
}

// TelemetryConfig toggles span export to stdout.
type TelemetryConfig struct {
	Traces bool `yaml:"traces"`
}

// DefaultConfig returns a configuration suitable for a fresh project:
// in-memory driver, conventional table names.
func DefaultConfig() *Config {
	cfg := &Config{Version: "1"}
	cfg.Project = ProjectConfig{Name: "my-burrow-app", Module: "github.com/user/my-burrow-app"}
	cfg.Database = DatabaseConfig{Driver: "memory", Schema: "burrow"}
	cfg.EventStore = EventStoreConfig{
		TableName:            "burrow_events",
		IdempotencyTableName: "burrow_idempotency",
	}
	return cfg
}

// Load reads the config file from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads a config file at an explicit path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := new(Config)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration into dir under the default file name.
func (c *Config) Save(dir string) error {
	return c.SaveFile(filepath.Join(dir, ConfigFileName))
}

// SaveFile writes the configuration to an explicit path.
func (c *Config) SaveFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Exists reports whether dir contains a config file.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindConfig walks from dir toward the filesystem root looking for a
// config file, and returns the directory it was found in along with
// the parsed config.
func FindConfig(dir string) (string, *Config, error) {
	for current := dir; ; current = filepath.Dir(current) {
		path := filepath.Join(current, ConfigFileName)
		if _, err := os.Stat(path); err == nil {
			cfg, err := LoadFile(path)
			if err != nil {
				return "", nil, err
			}
			return current, cfg, nil
		}
		if filepath.Dir(current) == current {
			return "", nil, os.ErrNotExist
		}
	}
}

// Validate returns a list of problems, one message per violated rule.
// An empty list means the configuration is usable.
func (c *Config) Validate() []string {
	var problems []string
	fail := func(msg string) { problems = append(problems, msg) }

	if c.Project.Name == "" {
		fail("project.name is required")
	}
	if c.Project.Module == "" {
		fail("project.module is required")
	}

	switch c.Database.Driver {
	case "":
		fail("database.driver is required")
	case "postgres":
		if c.Database.URL == "" {
			fail("database.url is required for postgres driver")
		}
	case "memory":
	default:
		fail("database.driver must be 'postgres' or 'memory'")
	}

	return problems
}

// GenerateYAML renders a commented config file for 'burrow init'.
// Marshaling the struct would lose the comments, so the template is
// assembled by hand.
func GenerateYAML(cfg *Config) string {
	return fmt.Sprintf(`# Burrow Configuration File

version: "1"

# Project settings
project:
  name: %q

  # Go module path (from go.mod)
  module: %q

# Database configuration
database:
  # Driver: postgres or memory
  driver: %q

  # Connection URL (required for postgres)
  url: "${DATABASE_URL}"

  # Database schema (postgres only)
  schema: %q

# Event store table names
event_store:
  table_name: %q
  idempotency_table_name: %q

# Telemetry
telemetry:
  traces: false
`, cfg.Project.Name, cfg.Project.Module, cfg.Database.Driver, cfg.Database.Schema,
		cfg.EventStore.TableName, cfg.EventStore.IdempotencyTableName)
}

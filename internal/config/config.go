package config

// Configuration loading and validation for shellmux

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tturner/shellmux/internal/errors"
	"github.com/tturner/shellmux/internal/transport"
)

// LogConfig controls log level and optional file output.
type LogConfig struct {
	Level string `yaml:"level,omitempty"` // silent, error, info, verbose, debug
	File  string `yaml:"file,omitempty"`
}

// EngineConfig tunes the adaptive execution engine.
type EngineConfig struct {
	StreamTimeoutMs int `yaml:"stream_timeout_ms,omitempty"` // classification deadline
	LedgerCapacity  int `yaml:"ledger_capacity,omitempty"`   // completed-command retention
}

// RegistryConfig tunes the persistent-connection registry.
type RegistryConfig struct {
	IdleTimeoutMinutes int `yaml:"idle_timeout_minutes,omitempty"`
}

// SSHConfig holds connection defaults applied to every target unless the
// target or the command line overrides them.
type SSHConfig struct {
	User                  string `yaml:"user,omitempty"`
	KeyFile               string `yaml:"key_file,omitempty"`
	KnownHostsFile        string `yaml:"known_hosts_file,omitempty"`
	Insecure              bool   `yaml:"insecure,omitempty"`
	Agent                 *bool  `yaml:"agent,omitempty"`
	Port                  int    `yaml:"port,omitempty"`
	ConnectTimeoutSeconds int    `yaml:"connect_timeout_seconds,omitempty"`
}

// Target is a named remote host.
type Target struct {
	Name        string `yaml:"name"`
	Address     string `yaml:"address"` // ssh:// spec or bare host
	Description string `yaml:"description,omitempty"`
	User        string `yaml:"user,omitempty"`
	KeyFile     string `yaml:"key_file,omitempty"`
}

// Config is the root configuration.
type Config struct {
	Log      LogConfig      `yaml:"log,omitempty"`
	Engine   EngineConfig   `yaml:"engine,omitempty"`
	Registry RegistryConfig `yaml:"registry,omitempty"`
	SSH      SSHConfig      `yaml:"ssh,omitempty"`
	Targets  []Target       `yaml:"targets,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads and validates a yaml config file. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("read config: %w", err), path)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("parse yaml: %w", err), path)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, errors.WrapConfigError(err, path)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Engine.StreamTimeoutMs == 0 {
		c.Engine.StreamTimeoutMs = 2000
	}
	if c.Engine.LedgerCapacity == 0 {
		c.Engine.LedgerCapacity = 100
	}
	if c.Registry.IdleTimeoutMinutes == 0 {
		c.Registry.IdleTimeoutMinutes = 30
	}
	if c.SSH.Port == 0 {
		c.SSH.Port = 22
	}
	if c.SSH.ConnectTimeoutSeconds == 0 {
		c.SSH.ConnectTimeoutSeconds = 30
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Engine.StreamTimeoutMs < 0 {
		return fmt.Errorf("engine.stream_timeout_ms must be positive")
	}
	if c.Engine.LedgerCapacity < 1 {
		return fmt.Errorf("engine.ledger_capacity must be at least 1")
	}
	if c.Registry.IdleTimeoutMinutes < 0 {
		return fmt.Errorf("registry.idle_timeout_minutes must be positive")
	}
	if c.SSH.Port < 1 || c.SSH.Port > 65535 {
		return fmt.Errorf("ssh.port %d out of range", c.SSH.Port)
	}

	seen := make(map[string]bool)
	for i, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("targets[%d]: name is required", i)
		}
		if t.Address == "" {
			return fmt.Errorf("target %q: address is required", t.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate target name %q", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// FindTarget looks a target up by name.
func (c *Config) FindTarget(name string) (*Target, bool) {
	for i := range c.Targets {
		if c.Targets[i].Name == name {
			return &c.Targets[i], true
		}
	}
	return nil, false
}

// StreamTimeout returns the engine classification timeout as a Duration.
func (c *Config) StreamTimeout() time.Duration {
	return time.Duration(c.Engine.StreamTimeoutMs) * time.Millisecond
}

// IdleTimeout returns the registry idle timeout as a Duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Registry.IdleTimeoutMinutes) * time.Minute
}

// SSHOptions builds transport options from the config defaults, optionally
// layered with a named target's overrides.
func (c *Config) SSHOptions(target *Target) transport.SSHOptions {
	opts := transport.DefaultSSHOptions()
	opts.User = c.SSH.User
	opts.KeyFile = c.SSH.KeyFile
	opts.KnownHostsFile = c.SSH.KnownHostsFile
	opts.InsecureIgnoreHost = c.SSH.Insecure
	opts.Port = c.SSH.Port
	opts.ConnectTimeout = time.Duration(c.SSH.ConnectTimeoutSeconds) * time.Second
	if c.SSH.Agent != nil {
		opts.Agent = *c.SSH.Agent
	}

	if target != nil {
		if target.User != "" {
			opts.User = target.User
		}
		if target.KeyFile != "" {
			opts.KeyFile = target.KeyFile
		}
	}
	return opts
}

// ResolveTarget maps a name or address spec to the address to dial and the
// transport options to dial it with. Named targets win over raw specs.
func (c *Config) ResolveTarget(spec string) (string, transport.SSHOptions) {
	if t, ok := c.FindTarget(spec); ok {
		return t.Address, c.SSHOptions(t)
	}
	return spec, c.SSHOptions(nil)
}

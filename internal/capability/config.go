package capability

import (
	"fmt"
	"os"
	"strconv"
)

// Capability providers.
const (
	ProviderRules = "rules"
	ProviderAgent = "agent"
)

// Config selects and tunes the capability provider.
// RulesPath overrides the embedded rule set when non-empty.
type Config struct {
	Provider      string `toml:"provider"`
	RulesPath     string `toml:"rules_path"`
	MaxInputChars int    `toml:"max_input_chars"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Provider      string
	RulesPath     string
	MaxInputChars string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.RulesPath != "" {
		c.RulesPath = overlay.RulesPath
	}
	if overlay.MaxInputChars != 0 {
		c.MaxInputChars = overlay.MaxInputChars
	}
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderRules
	}
	if c.MaxInputChars == 0 {
		c.MaxInputChars = 50000
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Provider != "" {
		if v := os.Getenv(env.Provider); v != "" {
			c.Provider = v
		}
	}
	if env.RulesPath != "" {
		if v := os.Getenv(env.RulesPath); v != "" {
			c.RulesPath = v
		}
	}
	if env.MaxInputChars != "" {
		if v := os.Getenv(env.MaxInputChars); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxInputChars = n
			}
		}
	}
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderRules, ProviderAgent:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.MaxInputChars < 0 {
		return fmt.Errorf("max_input_chars must not be negative")
	}
	return nil
}

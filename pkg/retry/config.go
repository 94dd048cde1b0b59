package retry

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds retry parameters for calls to slow or unreliable collaborators.
type Config struct {
	MaxAttempts    int    `toml:"max_attempts"`
	InitialBackoff string `toml:"initial_backoff"`
	MaxBackoff     string `toml:"max_backoff"`
	CallTimeout    string `toml:"call_timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	MaxAttempts    string
	InitialBackoff string
	MaxBackoff     string
	CallTimeout    string
}

// Policy converts the finalized config into a Policy using the given retryable predicate.
func (c *Config) Policy(retryable func(error) bool) Policy {
	initial, _ := time.ParseDuration(c.InitialBackoff)
	maxBackoff, _ := time.ParseDuration(c.MaxBackoff)
	timeout, _ := time.ParseDuration(c.CallTimeout)

	return Policy{
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: initial,
		MaxBackoff:     maxBackoff,
		CallTimeout:    timeout,
		Retryable:      retryable,
	}
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
	if overlay.MaxAttempts != 0 {
		c.MaxAttempts = overlay.MaxAttempts
	}
	if overlay.InitialBackoff != "" {
		c.InitialBackoff = overlay.InitialBackoff
	}
	if overlay.MaxBackoff != "" {
		c.MaxBackoff = overlay.MaxBackoff
	}
	if overlay.CallTimeout != "" {
		c.CallTimeout = overlay.CallTimeout
	}
}

func (c *Config) loadDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff == "" {
		c.InitialBackoff = "500ms"
	}
	if c.MaxBackoff == "" {
		c.MaxBackoff = "10s"
	}
	if c.CallTimeout == "" {
		c.CallTimeout = "2m"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.MaxAttempts != "" {
		if v := os.Getenv(env.MaxAttempts); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxAttempts = n
			}
		}
	}
	if env.InitialBackoff != "" {
		if v := os.Getenv(env.InitialBackoff); v != "" {
			c.InitialBackoff = v
		}
	}
	if env.MaxBackoff != "" {
		if v := os.Getenv(env.MaxBackoff); v != "" {
			c.MaxBackoff = v
		}
	}
	if env.CallTimeout != "" {
		if v := os.Getenv(env.CallTimeout); v != "" {
			c.CallTimeout = v
		}
	}
}

func (c *Config) validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be positive")
	}
	if _, err := time.ParseDuration(c.InitialBackoff); err != nil {
		return fmt.Errorf("invalid initial_backoff: %w", err)
	}
	if _, err := time.ParseDuration(c.MaxBackoff); err != nil {
		return fmt.Errorf("invalid max_backoff: %w", err)
	}
	if _, err := time.ParseDuration(c.CallTimeout); err != nil {
		return fmt.Errorf("invalid call_timeout: %w", err)
	}
	return nil
}

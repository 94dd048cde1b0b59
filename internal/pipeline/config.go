package pipeline

import (
	"fmt"
	"os"
	"strconv"

	"github.com/JaimeStill/covenant/internal/risk"
	"github.com/JaimeStill/covenant/pkg/retry"
)

// Config tunes the orchestrator: retry behavior for capability calls,
// fan-out limits, and risk thresholds.
type Config struct {
	Retry             retry.Config `toml:"retry"`
	Risk              risk.Config  `toml:"risk"`
	AssessConcurrency int          `toml:"assess_concurrency"`
	DraftConcurrency  int          `toml:"draft_concurrency"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Retry             *retry.Env
	Risk              *risk.Env
	AssessConcurrency string
	DraftConcurrency  string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	if err := c.validate(); err != nil {
		return err
	}

	var retryEnv *retry.Env
	var riskEnv *risk.Env
	if env != nil {
		retryEnv = env.Retry
		riskEnv = env.Risk
	}

	if err := c.Retry.Finalize(retryEnv); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if err := c.Risk.Finalize(riskEnv); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	c.Retry.Merge(&overlay.Retry)
	c.Risk.Merge(&overlay.Risk)
	if overlay.AssessConcurrency != 0 {
		c.AssessConcurrency = overlay.AssessConcurrency
	}
	if overlay.DraftConcurrency != 0 {
		c.DraftConcurrency = overlay.DraftConcurrency
	}
}

func (c *Config) loadDefaults() {
	if c.AssessConcurrency <= 0 {
		c.AssessConcurrency = 4
	}
	if c.DraftConcurrency <= 0 {
		c.DraftConcurrency = 4
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.AssessConcurrency != "" {
		if v := os.Getenv(env.AssessConcurrency); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.AssessConcurrency = n
			}
		}
	}
	if env.DraftConcurrency != "" {
		if v := os.Getenv(env.DraftConcurrency); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.DraftConcurrency = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.AssessConcurrency < 1 {
		return fmt.Errorf("assess_concurrency must be positive")
	}
	if c.DraftConcurrency < 1 {
		return fmt.Errorf("draft_concurrency must be positive")
	}
	return nil
}

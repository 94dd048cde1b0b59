package risk

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/JaimeStill/covenant/internal/taxonomy"
)

// Config holds the score thresholds and the controlled factor vocabulary.
type Config struct {
	MediumThreshold float64  `toml:"medium_threshold"`
	HighThreshold   float64  `toml:"high_threshold"`
	Vocabulary      []string `toml:"vocabulary"`
}

// Env maps config fields to environment variable names for override injection.
// Vocabulary is read as a comma-separated list.
type Env struct {
	MediumThreshold string
	HighThreshold   string
	Vocabulary      string
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
	if overlay.MediumThreshold != 0 {
		c.MediumThreshold = overlay.MediumThreshold
	}
	if overlay.HighThreshold != 0 {
		c.HighThreshold = overlay.HighThreshold
	}
	if len(overlay.Vocabulary) > 0 {
		c.Vocabulary = overlay.Vocabulary
	}
}

func (c *Config) loadDefaults() {
	if c.MediumThreshold == 0 {
		c.MediumThreshold = 0.4
	}
	if c.HighThreshold == 0 {
		c.HighThreshold = 0.7
	}
	if len(c.Vocabulary) == 0 {
		for _, f := range taxonomy.DefaultRiskFactors() {
			c.Vocabulary = append(c.Vocabulary, string(f))
		}
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.MediumThreshold != "" {
		if v := os.Getenv(env.MediumThreshold); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.MediumThreshold = f
			}
		}
	}
	if env.HighThreshold != "" {
		if v := os.Getenv(env.HighThreshold); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.HighThreshold = f
			}
		}
	}
	if env.Vocabulary != "" {
		if v := os.Getenv(env.Vocabulary); v != "" {
			var vocab []string
			for item := range strings.SplitSeq(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					vocab = append(vocab, item)
				}
			}
			c.Vocabulary = vocab
		}
	}
}

func (c *Config) validate() error {
	if c.MediumThreshold <= 0 || c.MediumThreshold >= 1 {
		return fmt.Errorf("medium_threshold must be in (0,1)")
	}
	if c.HighThreshold <= c.MediumThreshold || c.HighThreshold > 1 {
		return fmt.Errorf("high_threshold must be in (medium_threshold,1]")
	}
	if len(c.Vocabulary) == 0 {
		return fmt.Errorf("vocabulary must not be empty")
	}
	return nil
}

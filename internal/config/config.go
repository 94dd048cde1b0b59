package config

import (
	"fmt"
	"os"
	"time"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/covenant/internal/capability"
	"github.com/JaimeStill/covenant/internal/pipeline"
	"github.com/JaimeStill/covenant/internal/risk"
	"github.com/JaimeStill/covenant/pkg/database"
	"github.com/JaimeStill/covenant/pkg/retry"
	"github.com/JaimeStill/covenant/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"
	DotEnvFile           = ".env"

	EnvCovenantEnv             = "COVENANT_ENV"
	EnvCovenantShutdownTimeout = "COVENANT_SHUTDOWN_TIMEOUT"
	EnvCovenantVersion         = "COVENANT_VERSION"
)

var databaseEnv = &database.Env{
	DSN:             "COVENANT_DB_DSN",
	Host:            "COVENANT_DB_HOST",
	Port:            "COVENANT_DB_PORT",
	Name:            "COVENANT_DB_NAME",
	User:            "COVENANT_DB_USER",
	Password:        "COVENANT_DB_PASSWORD",
	SSLMode:         "COVENANT_DB_SSL_MODE",
	ApplicationName: "COVENANT_DB_APPLICATION_NAME",
	MaxOpenConns:    "COVENANT_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "COVENANT_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "COVENANT_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "COVENANT_DB_CONN_TIMEOUT",
	ConnectAttempts: "COVENANT_DB_CONNECT_ATTEMPTS",
}

var storageEnv = &storage.Env{
	Provider:         "COVENANT_STORAGE_PROVIDER",
	ContainerName:    "COVENANT_STORAGE_CONTAINER_NAME",
	ConnectionString: "COVENANT_STORAGE_CONNECTION_STRING",
	ServiceURL:       "COVENANT_STORAGE_SERVICE_URL",
	Endpoint:         "COVENANT_STORAGE_ENDPOINT",
	AccessKey:        "COVENANT_STORAGE_ACCESS_KEY",
	SecretKey:        "COVENANT_STORAGE_SECRET_KEY",
	UseSSL:           "COVENANT_STORAGE_USE_SSL",
}

var capabilityEnv = &capability.Env{
	Provider:      "COVENANT_CAPABILITY_PROVIDER",
	RulesPath:     "COVENANT_CAPABILITY_RULES_PATH",
	MaxInputChars: "COVENANT_CAPABILITY_MAX_INPUT_CHARS",
}

var pipelineEnv = &pipeline.Env{
	Retry: &retry.Env{
		MaxAttempts:    "COVENANT_PIPELINE_MAX_ATTEMPTS",
		InitialBackoff: "COVENANT_PIPELINE_INITIAL_BACKOFF",
		MaxBackoff:     "COVENANT_PIPELINE_MAX_BACKOFF",
		CallTimeout:    "COVENANT_PIPELINE_CALL_TIMEOUT",
	},
	Risk: &risk.Env{
		MediumThreshold: "COVENANT_RISK_MEDIUM_THRESHOLD",
		HighThreshold:   "COVENANT_RISK_HIGH_THRESHOLD",
		Vocabulary:      "COVENANT_RISK_VOCABULARY",
	},
	AssessConcurrency: "COVENANT_PIPELINE_ASSESS_CONCURRENCY",
	DraftConcurrency:  "COVENANT_PIPELINE_DRAFT_CONCURRENCY",
}

var loggingEnv = &LoggingEnv{
	Level:  "COVENANT_LOG_LEVEL",
	Format: "COVENANT_LOG_FORMAT",
}

// Config is the root configuration for the Covenant service.
type Config struct {
	Server          ServerConfig         `toml:"server"`
	Database        database.Config      `toml:"database"`
	Storage         storage.Config       `toml:"storage"`
	API             APIConfig            `toml:"api"`
	Agent           gaconfig.AgentConfig `toml:"agent"`
	Capability      capability.Config    `toml:"capability"`
	Pipeline        pipeline.Config      `toml:"pipeline"`
	Logging         LoggingConfig        `toml:"logging"`
	ShutdownTimeout string               `toml:"shutdown_timeout"`
	Version         string               `toml:"version"`
}

// Env returns the COVENANT_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvCovenantEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads an optional .env file, the base config (if present), applies any
// environment overlay, and finalizes all values. Variables already set in the
// process environment win over .env entries. If no config.toml exists,
// defaults and environment variables provide all configuration.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Agent.Merge(&overlay.Agent)
	c.Capability.Merge(&overlay.Capability)
	c.Pipeline.Merge(&overlay.Pipeline)
	c.Logging.Merge(&overlay.Logging)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Capability.Finalize(capabilityEnv); err != nil {
		return fmt.Errorf("capability: %w", err)
	}
	if c.Capability.Provider == capability.ProviderAgent {
		if err := FinalizeAgent(&c.Agent); err != nil {
			return fmt.Errorf("agent: %w", err)
		}
	}
	if err := c.Pipeline.Finalize(pipelineEnv); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Logging.Finalize(loggingEnv); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvCovenantShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvCovenantVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv populates unset variables from .env when the file exists.
func loadDotEnv() error {
	if _, err := os.Stat(DotEnvFile); err != nil {
		return nil
	}
	if err := godotenv.Load(DotEnvFile); err != nil {
		return fmt.Errorf("load %s: %w", DotEnvFile, err)
	}
	return nil
}

func overlayPath() string {
	if env := os.Getenv(EnvCovenantEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

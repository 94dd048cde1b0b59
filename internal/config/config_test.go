package config_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/covenant/internal/config"
)

const baseConfig = `
shutdown_timeout = "30s"
version = "0.1.0"

[server]
host = "0.0.0.0"
port = 8080
read_timeout = "1m"
write_timeout = "15m"
idle_timeout = "2m"

[database]
host = "localhost"
port = 5432
name = "covenant"
user = "covenant"
password = "covenant"
ssl_mode = "disable"

[storage]
provider = "azure"
container_name = "contracts"
connection_string = "DefaultEndpointsProtocol=http;AccountName=covenantstore;AccountKey=key;BlobEndpoint=http://127.0.0.1:10000/covenantstore;"

[api]
base_path = "/api"

[api.pagination]
default_page_size = 25
max_page_size = 50

[capability]
provider = "rules"

[pipeline]
assess_concurrency = 8

[pipeline.retry]
max_attempts = 5

[pipeline.risk]
medium_threshold = 0.3
high_threshold = 0.6

[logging]
level = "debug"
format = "json"
`

const overlayConfig = `
[server]
port = 9090

[database]
host = "prodhost"

[storage]
provider = "minio"
endpoint = "minio:9000"
access_key = "minio"
secret_key = "minio123"
`

// minimalConfig satisfies validation; everything else comes from defaults.
const minimalConfig = `
[database]
name = "covenant"
user = "covenant"

[storage]
connection_string = "conn"
`

func writeConfig(t *testing.T, dir, filename, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", filename, err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
}

func loadFrom(t *testing.T, content string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, content)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	return cfg
}

func TestLoad(t *testing.T) {
	cfg := loadFrom(t, baseConfig)

	if cfg.Server.Port != 8080 {
		t.Errorf("server port: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("db host: got %s, want localhost", cfg.Database.Host)
	}
	if cfg.Storage.ContainerName != "contracts" {
		t.Errorf("storage container: got %s, want contracts", cfg.Storage.ContainerName)
	}
	if cfg.API.Pagination.DefaultPageSize != 25 {
		t.Errorf("pagination default_page_size: got %d, want 25", cfg.API.Pagination.DefaultPageSize)
	}
	if cfg.Pipeline.AssessConcurrency != 8 {
		t.Errorf("assess_concurrency: got %d, want 8", cfg.Pipeline.AssessConcurrency)
	}
	if cfg.Pipeline.DraftConcurrency != 4 {
		t.Errorf("draft_concurrency default: got %d, want 4", cfg.Pipeline.DraftConcurrency)
	}
	if cfg.Pipeline.Retry.MaxAttempts != 5 {
		t.Errorf("retry max_attempts: got %d, want 5", cfg.Pipeline.Retry.MaxAttempts)
	}
	if cfg.Pipeline.Retry.CallTimeout != "2m" {
		t.Errorf("retry call_timeout default: got %s, want 2m", cfg.Pipeline.Retry.CallTimeout)
	}
	if cfg.Pipeline.Risk.MediumThreshold != 0.3 || cfg.Pipeline.Risk.HighThreshold != 0.6 {
		t.Errorf("risk thresholds: got %v/%v, want 0.3/0.6",
			cfg.Pipeline.Risk.MediumThreshold, cfg.Pipeline.Risk.HighThreshold)
	}
	if cfg.Logging.Format != config.LogFormatJSON {
		t.Errorf("logging format: got %s, want json", cfg.Logging.Format)
	}
}

func TestLoadWithOverlay(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	writeConfig(t, dir, "config.staging.toml", overlayConfig)
	chdir(t, dir)

	t.Setenv("COVENANT_ENV", "staging")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port: got %d, want 9090 (from overlay)", cfg.Server.Port)
	}
	if cfg.Database.Host != "prodhost" {
		t.Errorf("db host: got %s, want prodhost (from overlay)", cfg.Database.Host)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("db port: got %d, want 5432 (from base)", cfg.Database.Port)
	}
	if cfg.Storage.Provider != "minio" || cfg.Storage.Endpoint != "minio:9000" {
		t.Errorf("storage: got %s@%s, want minio@minio:9000", cfg.Storage.Provider, cfg.Storage.Endpoint)
	}
	if cfg.Env() != "staging" {
		t.Errorf("env: got %s, want staging", cfg.Env())
	}
}

func TestLoadEnvVarOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	chdir(t, dir)

	t.Setenv("COVENANT_VERSION", "2.0.0")
	t.Setenv("COVENANT_SERVER_PORT", "3000")
	t.Setenv("COVENANT_PIPELINE_DRAFT_CONCURRENCY", "2")
	t.Setenv("COVENANT_RISK_HIGH_THRESHOLD", "0.8")
	t.Setenv("COVENANT_LOG_LEVEL", "warn")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Version != "2.0.0" {
		t.Errorf("version: got %s, want 2.0.0", cfg.Version)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("server port: got %d, want 3000", cfg.Server.Port)
	}
	if cfg.Pipeline.DraftConcurrency != 2 {
		t.Errorf("draft_concurrency: got %d, want 2", cfg.Pipeline.DraftConcurrency)
	}
	if cfg.Pipeline.Risk.HighThreshold != 0.8 {
		t.Errorf("high_threshold: got %v, want 0.8", cfg.Pipeline.Risk.HighThreshold)
	}
	if cfg.Logging.SlogLevel() != slog.LevelWarn {
		t.Errorf("log level: got %v, want warn", cfg.Logging.SlogLevel())
	}
}

func TestLoadNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	t.Setenv("COVENANT_DB_NAME", "testdb")
	t.Setenv("COVENANT_DB_USER", "testuser")
	t.Setenv("COVENANT_STORAGE_CONNECTION_STRING", "conn")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load without config.toml failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port default: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Name != "testdb" {
		t.Errorf("db name from env: got %s, want testdb", cfg.Database.Name)
	}
	if cfg.Capability.Provider != "rules" {
		t.Errorf("capability provider default: got %s, want rules", cfg.Capability.Provider)
	}
	if cfg.Logging.Format != config.LogFormatText {
		t.Errorf("logging format default: got %s, want text", cfg.Logging.Format)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, minimalConfig)
	writeConfig(t, dir, config.DotEnvFile, "COVENANT_VERSION=9.9.9\nCOVENANT_SERVER_PORT=7070\n")
	chdir(t, dir)

	// Variables already present in the environment win over .env entries.
	t.Setenv("COVENANT_SERVER_PORT", "6060")
	t.Cleanup(func() { os.Unsetenv("COVENANT_VERSION") })

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Version != "9.9.9" {
		t.Errorf("version from .env: got %s, want 9.9.9", cfg.Version)
	}
	if cfg.Server.Port != 6060 {
		t.Errorf("server port: got %d, want 6060 from process env", cfg.Server.Port)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, `[server`)
	chdir(t, dir)

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestShutdownTimeoutDuration(t *testing.T) {
	cfg := loadFrom(t, baseConfig)

	if d := cfg.ShutdownTimeoutDuration(); d != 30*time.Second {
		t.Errorf("shutdown timeout: got %v, want 30s", d)
	}
	if addr := cfg.Server.Addr(); addr != "0.0.0.0:8080" {
		t.Errorf("addr: got %s, want 0.0.0.0:8080", addr)
	}

	timeouts := cfg.Server.Timeouts()
	if timeouts.Read != time.Minute || timeouts.Write != 15*time.Minute || timeouts.Idle != 2*time.Minute {
		t.Errorf("timeouts: got %+v", timeouts)
	}
}

func TestServerConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ServerConfig
	}{
		{"port out of range", config.ServerConfig{Port: 70000}},
		{"malformed timeout", config.ServerConfig{ReadTimeout: "soon"}},
		{"negative timeout", config.ServerConfig{IdleTimeout: "-1s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Finalize(); err == nil {
				t.Error("expected error")
			}
		})
	}

	t.Run("malformed port env", func(t *testing.T) {
		t.Setenv(config.EnvServerPort, "eighty")
		var cfg config.ServerConfig
		if err := cfg.Finalize(); err == nil {
			t.Error("expected error for malformed port")
		}
	})
}

func TestDefaults(t *testing.T) {
	cfg := loadFrom(t, minimalConfig)

	if cfg.API.Pagination.DefaultPageSize != 20 {
		t.Errorf("pagination default_page_size: got %d, want 20", cfg.API.Pagination.DefaultPageSize)
	}
	if cfg.API.Pagination.MaxPageSize != 100 {
		t.Errorf("pagination max_page_size: got %d, want 100", cfg.API.Pagination.MaxPageSize)
	}
	if cfg.API.OpenAPI.Title != "Covenant API" {
		t.Errorf("openapi title: got %s, want Covenant API", cfg.API.OpenAPI.Title)
	}
	if cfg.Storage.ContainerName != "contracts" {
		t.Errorf("storage container default: got %s, want contracts", cfg.Storage.ContainerName)
	}
	if cfg.Pipeline.Risk.MediumThreshold != 0.4 || cfg.Pipeline.Risk.HighThreshold != 0.7 {
		t.Errorf("risk thresholds: got %v/%v, want 0.4/0.7",
			cfg.Pipeline.Risk.MediumThreshold, cfg.Pipeline.Risk.HighThreshold)
	}
	if want := int64(50 * 1024 * 1024); cfg.API.MaxUploadSizeBytes() != want {
		t.Errorf("MaxUploadSizeBytes() = %d, want %d", cfg.API.MaxUploadSizeBytes(), want)
	}
}

func TestMaxUploadSizeBytes(t *testing.T) {
	tests := []struct {
		name string
		size string
		want int64
	}{
		{"valid 50MB", "50MB", 50 * 1024 * 1024},
		{"valid 10MB", "10MB", 10 * 1024 * 1024},
		{"invalid falls back to 50MB", "bad", 50 * 1024 * 1024},
		{"empty falls back to 50MB", "", 50 * 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.APIConfig{MaxUploadSize: tt.size}
			if got := cfg.MaxUploadSizeBytes(); got != tt.want {
				t.Errorf("MaxUploadSizeBytes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{
			name:    "invalid port",
			config:  minimalConfig + "\n[server]\nport = 99999\n",
			wantErr: "invalid port",
		},
		{
			name:    "invalid read_timeout",
			config:  minimalConfig + "\n[server]\nread_timeout = \"bad\"\n",
			wantErr: "invalid read_timeout",
		},
		{
			name:    "unknown capability provider",
			config:  minimalConfig + "\n[capability]\nprovider = \"oracle\"\n",
			wantErr: "capability",
		},
		{
			name:    "inverted risk thresholds",
			config:  minimalConfig + "\n[pipeline.risk]\nmedium_threshold = 0.8\nhigh_threshold = 0.5\n",
			wantErr: "risk",
		},
		{
			name:    "nested base path",
			config:  minimalConfig + "\n[api]\nbase_path = \"/v1/api\"\n",
			wantErr: "invalid base_path",
		},
		{
			name:    "unparseable upload size",
			config:  minimalConfig + "\n[api]\nmax_upload_size = \"huge\"\n",
			wantErr: "invalid max_upload_size",
		},
		{
			name:    "invalid log format",
			config:  minimalConfig + "\n[logging]\nformat = \"xml\"\n",
			wantErr: "logging",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, config.BaseConfigFile, tt.config)
			chdir(t, dir)

			_, err := config.Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestAgentFinalizedForAgentProvider(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, minimalConfig+"\n[capability]\nprovider = \"agent\"\n")
	chdir(t, dir)

	t.Setenv("COVENANT_AGENT_PROVIDER_NAME", "azure")
	t.Setenv("COVENANT_AGENT_BASE_URL", "https://myendpoint.openai.azure.com")
	t.Setenv("COVENANT_AGENT_MODEL_NAME", "gpt-5-mini")
	t.Setenv("COVENANT_AGENT_TOKEN", "test-token")
	t.Setenv("COVENANT_AGENT_DEPLOYMENT", "gpt-5-mini")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Agent.Provider == nil || cfg.Agent.Model == nil {
		t.Fatal("agent provider and model should be populated")
	}
	if cfg.Agent.Provider.Name != "azure" {
		t.Errorf("provider name: got %s, want azure", cfg.Agent.Provider.Name)
	}
	if cfg.Agent.Provider.BaseURL != "https://myendpoint.openai.azure.com" {
		t.Errorf("provider base_url: got %s", cfg.Agent.Provider.BaseURL)
	}
	if cfg.Agent.Model.Name != "gpt-5-mini" {
		t.Errorf("model name: got %s, want gpt-5-mini", cfg.Agent.Model.Name)
	}
	if cfg.Agent.Provider.Options["token"] != "test-token" {
		t.Errorf("token: got %v, want test-token", cfg.Agent.Provider.Options["token"])
	}
}

func TestLoggingNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.LoggingConfig
		logFn  func(*slog.Logger)
		want   string
		absent bool
	}{
		{
			name:  "json",
			cfg:   config.LoggingConfig{Level: "info", Format: config.LogFormatJSON},
			logFn: func(l *slog.Logger) { l.Info("stage complete", "stage", "extract") },
			want:  `"stage":"extract"`,
		},
		{
			name:  "text",
			cfg:   config.LoggingConfig{Level: "info", Format: config.LogFormatText},
			logFn: func(l *slog.Logger) { l.Info("stage complete", "stage", "assess") },
			want:  "stage=assess",
		},
		{
			name:   "below level is dropped",
			cfg:    config.LoggingConfig{Level: "warn", Format: config.LogFormatText},
			logFn:  func(l *slog.Logger) { l.Info("noise") },
			want:   "noise",
			absent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFn(tt.cfg.NewLogger(&buf))

			got := strings.Contains(buf.String(), tt.want)
			if got == tt.absent {
				t.Errorf("output %q: contains %q = %v", buf.String(), tt.want, got)
			}
		})
	}
}

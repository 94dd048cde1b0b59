package config

import (
	"fmt"
	"strings"

	"github.com/JaimeStill/covenant/pkg/formatting"
	"github.com/JaimeStill/covenant/pkg/middleware"
	"github.com/JaimeStill/covenant/pkg/openapi"
	"github.com/JaimeStill/covenant/pkg/pagination"
)

const (
	EnvAPIBasePath      = "COVENANT_API_BASE_PATH"
	EnvAPIMaxUploadSize = "COVENANT_API_MAX_UPLOAD_SIZE"

	defaultMaxUploadSize = 50 * 1024 * 1024
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "COVENANT_CORS_ENABLED",
	Origins:          "COVENANT_CORS_ORIGINS",
	AllowedMethods:   "COVENANT_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "COVENANT_CORS_ALLOWED_HEADERS",
	AllowCredentials: "COVENANT_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "COVENANT_CORS_MAX_AGE",
}

var openapiEnv = &openapi.Env{
	Title:       "COVENANT_OPENAPI_TITLE",
	Description: "COVENANT_OPENAPI_DESCRIPTION",
	ServerURL:   "COVENANT_OPENAPI_SERVER_URL",
}

var paginationEnv = &pagination.Env{
	DefaultPageSize: "COVENANT_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "COVENANT_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig configures the /api module. MaxUploadSize is a human size such
// as "50MB" and caps contract uploads.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
	OpenAPI       openapi.Config        `toml:"openapi"`
}

// MaxUploadSizeBytes returns the upload cap, or 50MB when MaxUploadSize does
// not parse.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil || size <= 0 {
		return defaultMaxUploadSize
	}
	return size
}

func (c *APIConfig) Finalize() error {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "50MB"
	}
	envString(&c.BasePath, EnvAPIBasePath)
	envString(&c.MaxUploadSize, EnvAPIMaxUploadSize)

	if !strings.HasPrefix(c.BasePath, "/") || strings.Count(c.BasePath, "/") != 1 {
		return fmt.Errorf("invalid base_path %q: want a single segment such as /api", c.BasePath)
	}
	if size, err := formatting.ParseBytes(c.MaxUploadSize); err != nil || size <= 0 {
		return fmt.Errorf("invalid max_upload_size %q", c.MaxUploadSize)
	}

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.OpenAPI.Finalize(openapiEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	return nil
}

func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}
	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

package openapi

import "os"

// Config carries document metadata for the generated API description.
// ServerURL, when set, is advertised instead of the API base path.
type Config struct {
	Title       string `toml:"title"`
	Description string `toml:"description"`
	ServerURL   string `toml:"server_url"`
}

// Env names the environment variables that override Config fields.
type Env struct {
	Title       string
	Description string
	ServerURL   string
}

func (c *Config) Finalize(env *Env) error {
	if c.Title == "" {
		c.Title = "Covenant API"
	}
	if c.Description == "" {
		c.Description = "Contract analysis pipeline: clause extraction, risk assessment, amendment drafting, and analytics."
	}
	if env != nil {
		override(&c.Title, env.Title)
		override(&c.Description, env.Description)
		override(&c.ServerURL, env.ServerURL)
	}
	return nil
}

func (c *Config) Merge(overlay *Config) {
	for dst, src := range map[*string]string{
		&c.Title:       overlay.Title,
		&c.Description: overlay.Description,
		&c.ServerURL:   overlay.ServerURL,
	} {
		if src != "" {
			*dst = src
		}
	}
}

// Server returns ServerURL when configured, otherwise basePath.
func (c *Config) Server(basePath string) string {
	if c.ServerURL != "" {
		return c.ServerURL
	}
	return basePath
}

func override(field *string, key string) {
	if key == "" {
		return
	}
	if v := os.Getenv(key); v != "" {
		*field = v
	}
}

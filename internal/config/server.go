package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	EnvServerHost         = "COVENANT_SERVER_HOST"
	EnvServerPort         = "COVENANT_SERVER_PORT"
	EnvServerReadTimeout  = "COVENANT_SERVER_READ_TIMEOUT"
	EnvServerWriteTimeout = "COVENANT_SERVER_WRITE_TIMEOUT"
	EnvServerIdleTimeout  = "COVENANT_SERVER_IDLE_TIMEOUT"
)

// ServerConfig holds the HTTP listener settings. The write timeout bounds
// synchronous analysis requests, so it defaults well above the read timeout.
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	ReadTimeout  string `toml:"read_timeout"`
	WriteTimeout string `toml:"write_timeout"`
	IdleTimeout  string `toml:"idle_timeout"`

	timeouts Timeouts
}

// Timeouts are the parsed listener timeouts.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Timeouts returns the durations validated by Finalize.
func (c *ServerConfig) Timeouts() Timeouts {
	return c.timeouts
}

func (c *ServerConfig) Finalize() error {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "1m"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "15m"
	}
	if c.IdleTimeout == "" {
		c.IdleTimeout = "2m"
	}

	envString(&c.Host, EnvServerHost)
	envString(&c.ReadTimeout, EnvServerReadTimeout)
	envString(&c.WriteTimeout, EnvServerWriteTimeout)
	envString(&c.IdleTimeout, EnvServerIdleTimeout)
	if err := envInt(&c.Port, EnvServerPort); err != nil {
		return err
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	var err error
	if c.timeouts.Read, err = duration("read_timeout", c.ReadTimeout); err != nil {
		return err
	}
	if c.timeouts.Write, err = duration("write_timeout", c.WriteTimeout); err != nil {
		return err
	}
	if c.timeouts.Idle, err = duration("idle_timeout", c.IdleTimeout); err != nil {
		return err
	}
	return nil
}

func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	for dst, src := range map[*string]string{
		&c.Host:         overlay.Host,
		&c.ReadTimeout:  overlay.ReadTimeout,
		&c.WriteTimeout: overlay.WriteTimeout,
		&c.IdleTimeout:  overlay.IdleTimeout,
	} {
		if src != "" {
			*dst = src
		}
	}
}

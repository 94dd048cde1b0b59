package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func envString(field *string, key string) {
	if v := os.Getenv(key); v != "" {
		*field = v
	}
}

func envInt(field *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*field = n
	return nil
}

// duration parses a named duration field, rejecting negative values.
func duration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", name)
	}
	return d, nil
}

package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid storage key")
)

// validateKey rejects empty keys, absolute keys, and keys with a ".."
// segment. Keys are slash-separated on every provider.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("%w: %q is absolute", ErrInvalidKey, key)
	}
	for seg := range strings.SplitSeq(key, "/") {
		if seg == ".." {
			return fmt.Errorf("%w: %q escapes its prefix", ErrInvalidKey, key)
		}
	}
	return nil
}

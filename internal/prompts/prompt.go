// Package prompts manages named instruction overrides for the LLM capability
// stages. At most one override per stage is active; without one the stage
// falls back to its built-in instructions.
package prompts

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prompt is a named instruction override for a capability stage.
type Prompt struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Stage        Stage     `json:"stage"`
	Instructions string    `json:"instructions"`
	Description  *string   `json:"description"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateCommand carries the data needed to create a prompt override.
type CreateCommand struct {
	Name         string  `json:"name"`
	Stage        Stage   `json:"stage"`
	Instructions string  `json:"instructions"`
	Description  *string `json:"description"`
}

// UpdateCommand carries the data needed to update a prompt override.
type UpdateCommand struct {
	Name         string  `json:"name"`
	Stage        Stage   `json:"stage"`
	Instructions string  `json:"instructions"`
	Description  *string `json:"description"`
}

func validate(name string, stage Stage, instructions string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(instructions) == "" {
		return ErrEmpty
	}
	if _, err := ParseStage(string(stage)); err != nil {
		return err
	}
	return nil
}

package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/JaimeStill/covenant/internal/prompts"
)

// InstructionSource resolves the tunable instructions and fixed output
// specification for a capability stage. prompts.System satisfies it.
type InstructionSource interface {
	Instructions(ctx context.Context, stage prompts.Stage) (string, error)
	Spec(ctx context.Context, stage prompts.Stage) (string, error)
}

type defaultSource struct{}

func (defaultSource) Instructions(_ context.Context, stage prompts.Stage) (string, error) {
	return prompts.DefaultInstructions(stage)
}

func (defaultSource) Spec(_ context.Context, stage prompts.Stage) (string, error) {
	return prompts.Spec(stage)
}

// Section is a labeled block appended to a composed prompt.
type Section struct {
	Label   string
	Content string
}

// ComposePrompt joins stage instructions, the output specification, and the
// given sections into a single chat prompt. Empty sections are skipped.
func ComposePrompt(
	ctx context.Context,
	src InstructionSource,
	stage prompts.Stage,
	sections ...Section,
) (string, error) {
	instructions, err := src.Instructions(ctx, stage)
	if err != nil {
		return "", fmt.Errorf("load instructions for %s: %w", stage, err)
	}

	spec, err := src.Spec(ctx, stage)
	if err != nil {
		return "", fmt.Errorf("load spec for %s: %w", stage, err)
	}

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\n")
	sb.WriteString(spec)

	for _, s := range sections {
		if strings.TrimSpace(s.Content) == "" {
			continue
		}
		sb.WriteString("\n\n")
		sb.WriteString(s.Label)
		sb.WriteString(":\n\n")
		sb.WriteString(s.Content)
	}

	return sb.String(), nil
}

package capability_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/JaimeStill/covenant/internal/capability"
	"github.com/JaimeStill/covenant/internal/prompts"
)

type fakeSource struct {
	instructions string
	err          error
}

func (f fakeSource) Instructions(_ context.Context, stage prompts.Stage) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.instructions + " (" + string(stage) + ")", nil
}

func (f fakeSource) Spec(_ context.Context, stage prompts.Stage) (string, error) {
	return prompts.Spec(stage)
}

func TestComposePrompt(t *testing.T) {
	t.Run("joins instructions, spec, and sections", func(t *testing.T) {
		got, err := capability.ComposePrompt(
			context.Background(),
			fakeSource{instructions: "Be precise."},
			prompts.StageScore,
			capability.Section{Label: "Clause", Content: "Vendor shall pay."},
			capability.Section{Label: "Skipped", Content: "   "},
		)
		if err != nil {
			t.Fatalf("ComposePrompt: %v", err)
		}

		spec, _ := prompts.Spec(prompts.StageScore)
		if !strings.HasPrefix(got, "Be precise. (score)\n\n"+spec) {
			t.Errorf("prompt does not start with instructions and spec:\n%s", got)
		}
		if !strings.HasSuffix(got, "Clause:\n\nVendor shall pay.") {
			t.Errorf("prompt missing clause section:\n%s", got)
		}
		if strings.Contains(got, "Skipped") {
			t.Error("blank section should be omitted")
		}
	})

	t.Run("instruction error propagates", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := capability.ComposePrompt(
			context.Background(),
			fakeSource{err: boom},
			prompts.StageDraft,
		)
		if !errors.Is(err, boom) {
			t.Errorf("err = %v, want boom", err)
		}
	})
}

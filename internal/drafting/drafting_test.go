package drafting_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/capability"
	"github.com/JaimeStill/covenant/internal/drafting"
	"github.com/JaimeStill/covenant/internal/risk"
	"github.com/JaimeStill/covenant/internal/taxonomy"
)

type mockDrafter struct {
	calls   int
	draftFn func(ctx context.Context, in capability.DraftInput) ([]capability.Draft, error)
}

func (m *mockDrafter) Draft(ctx context.Context, in capability.DraftInput) ([]capability.Draft, error) {
	m.calls++
	return m.draftFn(ctx, in)
}

func returning(drafts ...capability.Draft) *mockDrafter {
	return &mockDrafter{
		draftFn: func(context.Context, capability.DraftInput) ([]capability.Draft, error) {
			return drafts, nil
		},
	}
}

func clauseTarget(level risk.Level) drafting.Target {
	id := uuid.New()
	return drafting.Target{
		ContractID: uuid.New(),
		ClauseID:   &id,
		ClauseType: taxonomy.ClauseIndemnification,
		Title:      "Indemnification",
		Text:       "Vendor shall indemnify Client without limit.",
		Level:      level,
		Factors:    []string{"unbounded_liability"},
	}
}

func TestGenerateNotEligible(t *testing.T) {
	for _, level := range []risk.Level{risk.Low, risk.Unscored} {
		t.Run(string(level), func(t *testing.T) {
			d := returning(capability.Draft{ProposedText: "x"})

			_, err := drafting.New(d).Generate(context.Background(), clauseTarget(level))
			if !errors.Is(err, drafting.ErrNotEligible) {
				t.Errorf("err = %v, want ErrNotEligible", err)
			}
			if d.calls != 0 {
				t.Errorf("drafter called %d times for ineligible clause", d.calls)
			}
		})
	}
}

func TestGenerateClauseDrafts(t *testing.T) {
	d := returning(
		capability.Draft{
			ProposedText:      "  Liability is capped at fees paid.  ",
			Rationale:         "Caps exposure.",
			RiskMitigation:    "Residual exposure limited to fees.",
			NegotiationPoints: []string{"Cap amount", " ", "", "Carve-outs"},
		},
		capability.Draft{
			AmendmentType: "addition",
			ProposedText:  "Add mutual indemnity.",
		},
	)

	target := clauseTarget(risk.High)
	drafts, err := drafting.New(d).Generate(context.Background(), target)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(drafts) != 2 {
		t.Fatalf("drafts = %d, want 2", len(drafts))
	}

	first := drafts[0]
	if first.Type != taxonomy.AmendmentModification {
		t.Errorf("default type = %s, want modification", first.Type)
	}
	if first.ProposedText != "Liability is capped at fees paid." {
		t.Errorf("proposed = %q", first.ProposedText)
	}
	if !slices.Equal(first.NegotiationPoints, []string{"Cap amount", "Carve-outs"}) {
		t.Errorf("points = %v", first.NegotiationPoints)
	}
	if first.ClauseID == nil || *first.ClauseID != *target.ClauseID {
		t.Error("clause id not carried")
	}
	if first.ContractID != target.ContractID {
		t.Error("contract id not carried")
	}
	if first.OriginalText == nil || *first.OriginalText != target.Text {
		t.Errorf("original text = %v", first.OriginalText)
	}

	if drafts[1].Type != taxonomy.AmendmentAddition {
		t.Errorf("second type = %s, want addition", drafts[1].Type)
	}
	if drafts[1].NegotiationPoints == nil {
		t.Error("negotiation points should be empty, not nil")
	}
}

func TestGenerateContractLevel(t *testing.T) {
	d := returning(capability.Draft{ProposedText: "Add a limitation of liability clause."})

	target := drafting.Target{
		ContractID: uuid.New(),
		Level:      risk.Medium,
		Context:    "Contract has no liability cap.",
	}

	drafts, err := drafting.New(d).Generate(context.Background(), target)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if drafts[0].ClauseID != nil || drafts[0].OriginalText != nil {
		t.Error("contract-level draft should have no clause id or original text")
	}
}

func TestGenerateMalformedOutput(t *testing.T) {
	tests := []struct {
		name   string
		drafts []capability.Draft
	}{
		{"no drafts", nil},
		{"empty proposed text", []capability.Draft{{ProposedText: "ok"}, {ProposedText: "   "}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := drafting.New(returning(tt.drafts...)).Generate(context.Background(), clauseTarget(risk.Medium))
			if !errors.Is(err, capability.ErrMalformedOutput) {
				t.Errorf("err = %v, want ErrMalformedOutput", err)
			}
		})
	}
}

func TestGeneratePassesInput(t *testing.T) {
	var seen capability.DraftInput
	d := &mockDrafter{
		draftFn: func(_ context.Context, in capability.DraftInput) ([]capability.Draft, error) {
			seen = in
			return []capability.Draft{{ProposedText: "x"}}, nil
		},
	}

	target := clauseTarget(risk.High)
	if _, err := drafting.New(d).Generate(context.Background(), target); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if seen.RiskLevel != "high" || seen.ClauseType != "indemnification" || seen.Text != target.Text {
		t.Errorf("input = %+v", seen)
	}
	if !slices.Equal(seen.Factors, target.Factors) {
		t.Errorf("factors = %v", seen.Factors)
	}
}

func TestGenerateCapabilityError(t *testing.T) {
	d := &mockDrafter{
		draftFn: func(context.Context, capability.DraftInput) ([]capability.Draft, error) {
			return nil, capability.ErrUnavailable
		},
	}

	_, err := drafting.New(d).Generate(context.Background(), clauseTarget(risk.High))
	if !errors.Is(err, capability.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

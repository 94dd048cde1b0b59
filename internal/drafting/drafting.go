// Package drafting proposes amendments for clauses flagged medium or high risk.
package drafting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/capability"
	"github.com/JaimeStill/covenant/internal/risk"
	"github.com/JaimeStill/covenant/internal/taxonomy"
)

var ErrNotEligible = errors.New("not eligible for amendment")

// Target is a flagged clause, or a contract-level term when ClauseID is nil.
type Target struct {
	ContractID uuid.UUID
	ClauseID   *uuid.UUID
	ClauseType taxonomy.ClauseType
	Title      string
	Text       string
	Level      risk.Level
	Factors    []string
	Analysis   string
	Context    string
}

// Draft is a generated amendment ready to be persisted in draft status.
type Draft struct {
	ContractID        uuid.UUID
	ClauseID          *uuid.UUID
	Type              taxonomy.AmendmentType
	OriginalText      *string
	ProposedText      string
	Rationale         string
	RiskMitigation    string
	NegotiationPoints []string
}

// Generator wraps a Drafter with the eligibility gate and output checks.
type Generator struct {
	drafter capability.Drafter
}

func New(d capability.Drafter) *Generator {
	return &Generator{drafter: d}
}

// Generate drafts amendments for t. Targets below medium risk fail with
// ErrNotEligible before the capability is called.
func (g *Generator) Generate(ctx context.Context, t Target) ([]Draft, error) {
	if !t.Level.Eligible() {
		return nil, fmt.Errorf("%w: risk level %s", ErrNotEligible, t.Level)
	}

	raw, err := g.drafter.Draft(ctx, capability.DraftInput{
		ClauseType: string(t.ClauseType),
		Title:      t.Title,
		Text:       t.Text,
		RiskLevel:  string(t.Level),
		Factors:    t.Factors,
		Analysis:   t.Analysis,
		Context:    t.Context,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no drafts returned", capability.ErrMalformedOutput)
	}

	var original *string
	if t.ClauseID != nil && t.Text != "" {
		text := t.Text
		original = &text
	}

	drafts := make([]Draft, 0, len(raw))
	for i, r := range raw {
		proposed := strings.TrimSpace(r.ProposedText)
		if proposed == "" {
			return nil, fmt.Errorf("%w: draft %d has empty proposed text", capability.ErrMalformedOutput, i)
		}

		kind, ok := taxonomy.ParseAmendmentType(strings.TrimSpace(r.AmendmentType))
		if !ok {
			kind = taxonomy.AmendmentModification
		}

		drafts = append(drafts, Draft{
			ContractID:        t.ContractID,
			ClauseID:          t.ClauseID,
			Type:              kind,
			OriginalText:      original,
			ProposedText:      proposed,
			Rationale:         strings.TrimSpace(r.Rationale),
			RiskMitigation:    strings.TrimSpace(r.RiskMitigation),
			NegotiationPoints: points(r.NegotiationPoints),
		})
	}

	return drafts, nil
}

func points(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

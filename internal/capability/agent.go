package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/JaimeStill/covenant/internal/prompts"
	"github.com/JaimeStill/covenant/internal/taxonomy"
)

type classifyResponse struct {
	Clauses []Segment `json:"clauses"`
}

type draftResponse struct {
	Amendments []Draft `json:"amendments"`
}

// Agent implements Provider with chat completions through go-agents.
// Each call creates a fresh agent so concurrent calls share no state.
type Agent struct {
	cfg       gaconfig.AgentConfig
	src       InstructionSource
	maxInput  int
	validator *validator
	logger    *slog.Logger
}

// NewAgent creates an agent-backed provider. A nil src falls back to the
// built-in stage instructions.
func NewAgent(
	cfg gaconfig.AgentConfig,
	src InstructionSource,
	maxInput int,
	logger *slog.Logger,
) (*Agent, error) {
	v, err := newValidator()
	if err != nil {
		return nil, err
	}
	if src == nil {
		src = defaultSource{}
	}

	return &Agent{
		cfg:       cfg,
		src:       src,
		maxInput:  maxInput,
		validator: v,
		logger:    logger,
	}, nil
}

func (a *Agent) Name() string { return ProviderAgent }

func (a *Agent) Classify(ctx context.Context, text string) ([]Segment, error) {
	content, err := a.chat(
		ctx, prompts.StageClassify,
		Section{Label: "Allowed clause types", Content: joinClauseTypes()},
		Section{Label: "Contract text", Content: truncate(text, a.maxInput)},
	)
	if err != nil {
		return nil, err
	}

	resp, err := decode[classifyResponse](a.validator, prompts.StageClassify, content)
	if err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "classify complete", "segments", len(resp.Clauses))
	return resp.Clauses, nil
}

func (a *Agent) Score(ctx context.Context, in ScoreInput) (Score, error) {
	clause, err := json.MarshalIndent(map[string]string{
		"clause_type":    in.ClauseType,
		"title":          in.Title,
		"section_number": in.Section,
		"text":           truncate(in.Text, a.maxInput),
	}, "", "  ")
	if err != nil {
		return Score{}, fmt.Errorf("serialize clause: %w", err)
	}

	content, err := a.chat(
		ctx, prompts.StageScore,
		Section{Label: "Allowed risk factors", Content: strings.Join(in.Vocabulary, ", ")},
		Section{Label: "Clause", Content: string(clause)},
		Section{Label: "Contract context", Content: truncate(in.Context, a.maxInput)},
	)
	if err != nil {
		return Score{}, err
	}

	return decode[Score](a.validator, prompts.StageScore, content)
}

func (a *Agent) Draft(ctx context.Context, in DraftInput) ([]Draft, error) {
	flagged, err := json.MarshalIndent(map[string]any{
		"clause_type":  in.ClauseType,
		"title":        in.Title,
		"text":         truncate(in.Text, a.maxInput),
		"risk_level":   in.RiskLevel,
		"risk_factors": in.Factors,
		"analysis":     in.Analysis,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize clause: %w", err)
	}

	content, err := a.chat(
		ctx, prompts.StageDraft,
		Section{Label: "Flagged clause", Content: string(flagged)},
		Section{Label: "Contract context", Content: truncate(in.Context, a.maxInput)},
	)
	if err != nil {
		return nil, err
	}

	resp, err := decode[draftResponse](a.validator, prompts.StageDraft, content)
	if err != nil {
		return nil, err
	}
	return resp.Amendments, nil
}

func (a *Agent) Profile(ctx context.Context, text string) (Profile, error) {
	content, err := a.chat(
		ctx, prompts.StageProfile,
		Section{Label: "Suggested contract types", Content: strings.Join(taxonomy.ContractTypes, ", ")},
		Section{Label: "Contract text", Content: truncate(text, a.maxInput)},
	)
	if err != nil {
		return Profile{}, err
	}

	return decode[Profile](a.validator, prompts.StageProfile, content)
}

func (a *Agent) chat(ctx context.Context, stage prompts.Stage, sections ...Section) (string, error) {
	prompt, err := ComposePrompt(ctx, a.src, stage, sections...)
	if err != nil {
		return "", err
	}

	ag, err := agent.New(&a.cfg)
	if err != nil {
		return "", fmt.Errorf("%w: create agent: %w", ErrUnavailable, err)
	}

	resp, err := ag.Chat(ctx, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %w", ErrUnavailable, stage, err)
	}

	return resp.Content(), nil
}

func joinClauseTypes() string {
	types := taxonomy.ClauseTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// Package capability defines the text-understanding functions the pipeline
// depends on and provides two interchangeable implementations: an LLM agent
// backed by go-agents and a deterministic rule set loaded from YAML.
package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

var (
	// ErrUnavailable indicates the provider could not be reached. Retryable.
	ErrUnavailable = errors.New("capability unavailable")
	// ErrMalformedOutput indicates the provider answered with output that
	// does not match the expected shape.
	ErrMalformedOutput = errors.New("capability returned malformed output")
)

// Segment is one clause candidate returned by a Classifier. Start and End are
// byte offsets into the classified text when the provider knows them.
type Segment struct {
	ClauseType string   `json:"clause_type"`
	Title      string   `json:"title"`
	Section    string   `json:"section_number"`
	Text       string   `json:"text"`
	Start      *int     `json:"start,omitempty"`
	End        *int     `json:"end,omitempty"`
	KeyTerms   []string `json:"key_terms"`
}

// ScoreInput is the clause presented to a Scorer. Vocabulary lists the risk
// factor labels the caller accepts. Context is an optional contract summary.
type ScoreInput struct {
	ClauseType string
	Title      string
	Section    string
	Text       string
	Context    string
	Vocabulary []string
}

// Score is a continuous risk estimate in [0,1] with supporting factors.
type Score struct {
	Value    float64  `json:"risk_score"`
	Factors  []string `json:"risk_factors"`
	Analysis string   `json:"analysis"`
}

// DraftInput is a flagged clause (or contract-level term) presented to a Drafter.
type DraftInput struct {
	ClauseType string
	Title      string
	Text       string
	RiskLevel  string
	Factors    []string
	Analysis   string
	Context    string
}

// Draft is a single proposed amendment.
type Draft struct {
	AmendmentType     string   `json:"amendment_type"`
	ProposedText      string   `json:"proposed_text"`
	Rationale         string   `json:"rationale"`
	RiskMitigation    string   `json:"risk_mitigation"`
	NegotiationPoints []string `json:"negotiation_points"`
}

// Profile is contract-level metadata. Dates use YYYY-MM-DD or are empty.
type Profile struct {
	Title          string   `json:"title"`
	ContractType   string   `json:"contract_type"`
	Parties        []string `json:"parties"`
	EffectiveDate  string   `json:"effective_date"`
	ExpirationDate string   `json:"expiration_date"`
	Summary        string   `json:"summary"`
}

// Classifier segments text into typed clause candidates.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]Segment, error)
}

// Scorer estimates the risk of a single clause.
type Scorer interface {
	Score(ctx context.Context, in ScoreInput) (Score, error)
}

// Drafter proposes amendments for a flagged clause.
type Drafter interface {
	Draft(ctx context.Context, in DraftInput) ([]Draft, error)
}

// Profiler extracts contract-level metadata.
type Profiler interface {
	Profile(ctx context.Context, text string) (Profile, error)
}

// Provider bundles every capability behind a single name.
type Provider interface {
	Classifier
	Scorer
	Drafter
	Profiler
	Name() string
}

// New constructs the provider selected by cfg.Provider.
// src may be nil, in which case the agent uses built-in instructions.
func New(
	cfg *Config,
	agent gaconfig.AgentConfig,
	src InstructionSource,
	logger *slog.Logger,
) (Provider, error) {
	logger = logger.With("system", "capability", "provider", cfg.Provider)

	switch cfg.Provider {
	case ProviderRules:
		rules, err := LoadRules(cfg.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		logger.Info("capability provider ready", "rules", len(rules.ClauseTypes))
		return NewRules(rules), nil
	case ProviderAgent:
		return NewAgent(agent, src, cfg.MaxInputChars, logger)
	default:
		return nil, fmt.Errorf("unknown capability provider %q", cfg.Provider)
	}
}

func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	return text[:limit]
}

// Package risk converts continuous capability scores into stable categorical
// risk levels over a controlled factor vocabulary.
package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/JaimeStill/covenant/internal/capability"
	"github.com/JaimeStill/covenant/internal/taxonomy"
)

var (
	ErrAssessmentFailed = errors.New("risk assessment failed")
	ErrInvalidLevel     = errors.New("invalid risk level")
)

// Input is the clause presented for assessment. Context summarizes the
// contract the clause belongs to.
type Input struct {
	Type    taxonomy.ClauseType
	Title   string
	Section string
	Text    string
	Context string
}

// Assessment is the thresholded result for one clause.
type Assessment struct {
	Level    Level    `json:"risk_level"`
	Score    float64  `json:"risk_score"`
	Factors  []string `json:"risk_factors"`
	Analysis string   `json:"analysis"`
}

// Assessor scores clauses with a Scorer and applies thresholds.
type Assessor struct {
	scorer     capability.Scorer
	medium     float64
	high       float64
	vocabulary []string
}

// New creates an Assessor. cfg must be finalized.
func New(scorer capability.Scorer, cfg *Config) *Assessor {
	return &Assessor{
		scorer:     scorer,
		medium:     cfg.MediumThreshold,
		high:       cfg.HighThreshold,
		vocabulary: slices.Clone(cfg.Vocabulary),
	}
}

// Vocabulary returns the accepted factor labels.
func (a *Assessor) Vocabulary() []string {
	return slices.Clone(a.vocabulary)
}

// Assess scores one clause. The level is derived from the rounded score so
// that jitter below the rounding precision cannot flip it.
func (a *Assessor) Assess(ctx context.Context, in Input) (Assessment, error) {
	score, err := a.scorer.Score(ctx, capability.ScoreInput{
		ClauseType: string(in.Type),
		Title:      in.Title,
		Section:    in.Section,
		Text:       in.Text,
		Context:    in.Context,
		Vocabulary: a.Vocabulary(),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Assessment{}, ctxErr
		}
		return Assessment{}, fmt.Errorf("%w: %w", ErrAssessmentFailed, err)
	}

	if math.IsNaN(score.Value) {
		return Assessment{}, fmt.Errorf("%w: %w: score is NaN", ErrAssessmentFailed, capability.ErrMalformedOutput)
	}

	value := round2(min(max(score.Value, 0), 1))

	return Assessment{
		Level:    a.Threshold(value),
		Score:    value,
		Factors:  a.filter(score.Factors),
		Analysis: score.Analysis,
	}, nil
}

// Threshold maps a score to its level.
func (a *Assessor) Threshold(score float64) Level {
	switch {
	case score >= a.high:
		return High
	case score >= a.medium:
		return Medium
	default:
		return Low
	}
}

func (a *Assessor) filter(factors []string) []string {
	out := make([]string, 0, len(factors))
	for _, f := range factors {
		if slices.Contains(a.vocabulary, f) {
			out = append(out, f)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/covenant/internal/amendments"
	"github.com/JaimeStill/covenant/internal/clauses"
	"github.com/JaimeStill/covenant/internal/contracts"
	"github.com/JaimeStill/covenant/internal/drafting"
	"github.com/JaimeStill/covenant/pkg/retry"
)

// AssessClause re-scores one clause synchronously and overwrites its risk
// fields. It fails with ErrConflict while the contract is held.
func (o *Orchestrator) AssessClause(ctx context.Context, id uuid.UUID) (*clauses.Clause, error) {
	c, err := o.clauses.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	tok, ok := o.arena.acquire(c.ContractID, false)
	if !ok {
		return nil, fmt.Errorf("%w: contract %s", ErrConflict, c.ContractID)
	}
	defer o.arena.release(c.ContractID, tok)

	contract, err := o.contracts.Find(ctx, c.ContractID)
	if err != nil {
		return nil, err
	}

	a, err := o.score(ctx, *c, contractContext(contract))
	if err != nil {
		return nil, err
	}

	updated, err := o.clauses.SetRisk(ctx, id, a)
	if err != nil {
		return nil, err
	}

	o.logger.InfoContext(ctx, "clause reassessed",
		"contract_id", c.ContractID,
		"clause_id", id,
		"risk_level", a.Level,
		"risk_score", a.Score,
	)
	return updated, nil
}

// AssessContract re-scores every clause of an analyzed contract and returns
// the clauses in document order. A clause whose re-score fails keeps its
// stored risk fields. It fails with ErrConflict while the contract is held.
func (o *Orchestrator) AssessContract(ctx context.Context, contractID uuid.UUID) ([]clauses.Clause, error) {
	tok, ok := o.arena.acquire(contractID, false)
	if !ok {
		return nil, fmt.Errorf("%w: contract %s", ErrConflict, contractID)
	}
	defer o.arena.release(contractID, tok)

	contract, err := o.contracts.Find(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if contract.Status != contracts.StatusAnalyzed {
		return nil, fmt.Errorf("%w: contract is %s", contracts.ErrInvalidTransition, contract.Status)
	}

	items, err := o.clauses.ByContract(ctx, contractID)
	if err != nil {
		return nil, err
	}

	assessed, failed, err := o.scoreAll(ctx, contract, items)
	if err != nil {
		return nil, err
	}

	o.logger.InfoContext(ctx, "contract reassessed",
		"contract_id", contractID,
		"assessed", assessed,
		"failed", failed,
	)
	return o.clauses.ByContract(ctx, contractID)
}

// GenerateAmendments drafts amendments for every medium or high risk clause
// of a contract and stores them in draft status. It fails with
// drafting.ErrNotEligible when no clause qualifies.
func (o *Orchestrator) GenerateAmendments(ctx context.Context, contractID uuid.UUID) ([]amendments.Amendment, error) {
	tok, ok := o.arena.acquire(contractID, false)
	if !ok {
		return nil, fmt.Errorf("%w: contract %s", ErrConflict, contractID)
	}
	defer o.arena.release(contractID, tok)

	contract, err := o.contracts.Find(ctx, contractID)
	if err != nil {
		return nil, err
	}

	items, err := o.clauses.ByContract(ctx, contractID)
	if err != nil {
		return nil, err
	}

	var targets []drafting.Target
	for _, c := range items {
		if c.RiskLevel.Eligible() {
			targets = append(targets, target(contract, c))
		}
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no medium or high risk clauses", drafting.ErrNotEligible)
	}

	return o.draft(ctx, contractID, targets)
}

// GenerateClauseAmendments drafts amendments for a single clause.
func (o *Orchestrator) GenerateClauseAmendments(ctx context.Context, id uuid.UUID) ([]amendments.Amendment, error) {
	c, err := o.clauses.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	tok, ok := o.arena.acquire(c.ContractID, false)
	if !ok {
		return nil, fmt.Errorf("%w: contract %s", ErrConflict, c.ContractID)
	}
	defer o.arena.release(c.ContractID, tok)

	contract, err := o.contracts.Find(ctx, c.ContractID)
	if err != nil {
		return nil, err
	}

	return o.draft(ctx, c.ContractID, []drafting.Target{target(contract, *c)})
}

// draft generates in parallel and persists every draft together, so a
// failed target leaves no partial batch behind.
func (o *Orchestrator) draft(ctx context.Context, contractID uuid.UUID, targets []drafting.Target) ([]amendments.Amendment, error) {
	results := make([][]drafting.Draft, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.DraftConcurrency)

	for i, t := range targets {
		g.Go(func() error {
			drafts, err := retry.Do(gctx, o.policy, func(ctx context.Context) ([]drafting.Draft, error) {
				return o.generator.Generate(ctx, t)
			})
			if err != nil {
				return err
			}
			results[i] = drafts
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []drafting.Draft
	for _, drafts := range results {
		all = append(all, drafts...)
	}

	created, err := o.amendments.CreateDrafts(ctx, all)
	if err != nil {
		return nil, err
	}

	o.logger.InfoContext(ctx, "amendments generated",
		"contract_id", contractID,
		"targets", len(targets),
		"amendments", len(created),
	)
	return created, nil
}

func target(contract *contracts.Contract, c clauses.Clause) drafting.Target {
	id := c.ID
	return drafting.Target{
		ContractID: contract.ID,
		ClauseID:   &id,
		ClauseType: c.ClauseType,
		Title:      c.Title,
		Text:       c.Text,
		Level:      c.RiskLevel,
		Factors:    c.RiskFactors,
		Analysis:   c.Analysis,
		Context:    contractContext(contract),
	}
}

func contractContext(c *contracts.Contract) string {
	var parts []string
	if c.Title != "" {
		parts = append(parts, "Title: "+c.Title)
	}
	if c.ContractType != "" {
		parts = append(parts, "Type: "+c.ContractType)
	}
	if len(c.Parties) > 0 {
		parts = append(parts, "Parties: "+strings.Join(c.Parties, ", "))
	}
	if c.Summary != "" {
		parts = append(parts, "Summary: "+c.Summary)
	}
	return strings.Join(parts, "\n")
}

// Package pipeline drives a contract through normalize, extract, and assess,
// and runs the synchronous re-assessment and amendment operations. At most one
// operation holds a contract at a time.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/capability"
	"github.com/JaimeStill/covenant/internal/contracts"
	"github.com/JaimeStill/covenant/internal/drafting"
	"github.com/JaimeStill/covenant/internal/extract"
	"github.com/JaimeStill/covenant/internal/risk"
	"github.com/JaimeStill/covenant/pkg/lifecycle"
	"github.com/JaimeStill/covenant/pkg/retry"
)

// failTimeout bounds the write that records a failed run. It runs on a
// context detached from shutdown so the contract does not stay mid-stage.
const failTimeout = 10 * time.Second

// Runtime bundles the dependencies the orchestrator requires.
// Config must be finalized.
type Runtime struct {
	Contracts  ContractStore
	Clauses    ClauseStore
	Amendments AmendmentStore
	Blobs      BlobStore
	Provider   capability.Provider
	Config     *Config
	Logger     *slog.Logger
}

// Orchestrator serializes pipeline work per contract.
type Orchestrator struct {
	contracts  ContractStore
	clauses    ClauseStore
	amendments AmendmentStore
	blobs      BlobStore

	extractor *extract.Extractor
	assessor  *risk.Assessor
	generator *drafting.Generator
	profiler  capability.Profiler

	policy retry.Policy
	cfg    *Config
	arena  *arena
	logger *slog.Logger

	mu   sync.RWMutex
	base context.Context
	runs sync.WaitGroup
}

func New(rt *Runtime) *Orchestrator {
	return &Orchestrator{
		contracts:  rt.Contracts,
		clauses:    rt.Clauses,
		amendments: rt.Amendments,
		blobs:      rt.Blobs,
		extractor:  extract.New(rt.Provider),
		assessor:   risk.New(rt.Provider, &rt.Config.Risk),
		generator:  drafting.New(rt.Provider),
		profiler:   rt.Provider,
		policy:     rt.Config.Retry.Policy(retryable),
		cfg:        rt.Config,
		arena:      newArena(),
		logger:     rt.Logger.With("system", "pipeline"),
		base:       context.Background(),
	}
}

// Start binds background runs to the coordinator's context and registers a
// shutdown hook that waits for them to record their final state.
func (o *Orchestrator) Start(lc *lifecycle.Coordinator) error {
	o.mu.Lock()
	o.base = lc.Context()
	o.mu.Unlock()

	lc.OnShutdown("pipeline", func() {
		<-lc.Context().Done()
		o.logger.Info("waiting for pipeline runs")
		o.Wait()
		o.logger.Info("pipeline runs drained")
	})

	return nil
}

// Wait blocks until every background run has finished.
func (o *Orchestrator) Wait() {
	o.runs.Wait()
}

// Submit stores an upload and starts its pipeline in the background. The
// returned contract is in uploaded status.
func (o *Orchestrator) Submit(ctx context.Context, cmd contracts.CreateCommand) (*contracts.Contract, error) {
	c, err := o.contracts.Create(ctx, cmd)
	if err != nil {
		return nil, err
	}

	tok, ok := o.arena.acquire(c.ID, true)
	if !ok {
		return nil, fmt.Errorf("%w: contract %s", ErrConflict, c.ID)
	}

	o.launch(c.ID, tok, StageNormalize, c.Status)
	return c, nil
}

// Analyze re-triggers the pipeline. A failed contract is reprocessed from the
// start; a contract stranded mid-pipeline resumes from its current stage.
func (o *Orchestrator) Analyze(ctx context.Context, id uuid.UUID) (*contracts.Contract, error) {
	tok, ok := o.arena.acquire(id, true)
	if !ok {
		return nil, fmt.Errorf("%w: contract %s", ErrConflict, id)
	}

	c, stage, err := o.prepare(ctx, id)
	if err != nil {
		o.arena.release(id, tok)
		return nil, err
	}

	o.launch(id, tok, stage, c.Status)
	return c, nil
}

func (o *Orchestrator) prepare(ctx context.Context, id uuid.UUID) (*contracts.Contract, string, error) {
	c, err := o.contracts.Find(ctx, id)
	if err != nil {
		return nil, "", err
	}

	switch c.Status {
	case contracts.StatusError:
		c, err = o.contracts.Transition(ctx, id, contracts.StatusError, contracts.StatusReprocessing)
		if err != nil {
			return nil, "", err
		}
		return c, StageNormalize, nil
	case contracts.StatusUploaded, contracts.StatusNormalizing, contracts.StatusReprocessing:
		return c, StageNormalize, nil
	case contracts.StatusExtracting:
		return c, StageExtract, nil
	case contracts.StatusAssessing:
		return c, StageAssess, nil
	default:
		return nil, "", fmt.Errorf("%w: contract is %s", contracts.ErrInvalidTransition, c.Status)
	}
}

// Cancel stops a contract's pipeline. A run in flight stops at its next stage
// boundary; an idle contract mid-pipeline moves to error immediately.
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID) (*contracts.Contract, error) {
	held, flagged := o.arena.cancel(id)
	switch {
	case flagged:
		o.logger.InfoContext(ctx, "cancellation requested", "contract_id", id)
		return o.contracts.Find(ctx, id)
	case held:
		return nil, fmt.Errorf("%w: contract %s", ErrConflict, id)
	}

	tok, ok := o.arena.acquire(id, false)
	if !ok {
		return nil, fmt.Errorf("%w: contract %s", ErrConflict, id)
	}
	defer o.arena.release(id, tok)

	c, err := o.contracts.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if !c.Status.Active() {
		return nil, fmt.Errorf("%w: contract is %s", contracts.ErrInvalidTransition, c.Status)
	}

	c, err = o.contracts.Fail(ctx, id, contracts.KindCancelled, ErrCancelled.Error())
	if err != nil {
		return nil, err
	}

	o.logger.InfoContext(ctx, "contract cancelled", "contract_id", id)
	return c, nil
}

// Busy reports whether an operation currently holds the contract.
func (o *Orchestrator) Busy(id uuid.UUID) bool {
	return o.arena.busy(id)
}

func (o *Orchestrator) context() context.Context {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.base
}

func (o *Orchestrator) launch(id uuid.UUID, tok *token, stage string, status contracts.Status) {
	ctx := o.context()

	o.runs.Go(func() {
		defer o.arena.release(id, tok)
		o.run(ctx, id, tok, stage, status)
	})
}

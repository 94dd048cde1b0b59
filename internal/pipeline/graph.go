package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	gaoconfig "github.com/JaimeStill/go-agents-orchestration/pkg/config"
	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/JaimeStill/covenant/internal/capability"
	"github.com/JaimeStill/covenant/internal/clauses"
	"github.com/JaimeStill/covenant/internal/contracts"
	"github.com/JaimeStill/covenant/internal/extract"
	"github.com/JaimeStill/covenant/internal/normalize"
	"github.com/JaimeStill/covenant/internal/risk"
	"github.com/JaimeStill/covenant/pkg/retry"
)

// Stage names, in execution order. finalize moves the contract to analyzed.
const (
	StageNormalize = "normalize"
	StageExtract   = "extract"
	StageAssess    = "assess"
	StageFinalize  = "finalize"
)

var stages = []string{StageNormalize, StageExtract, StageAssess, StageFinalize}

var stageStatus = map[string]contracts.Status{
	StageNormalize: contracts.StatusNormalizing,
	StageExtract:   contracts.StatusExtracting,
	StageAssess:    contracts.StatusAssessing,
	StageFinalize:  contracts.StatusAnalyzed,
}

// State keys carried between nodes.
const (
	KeyStatus   = "status"
	KeyDocument = "document"
)

// run is one background execution for a contract.
type run struct {
	id    uuid.UUID
	tok   *token
	stage string
	err   error
}

// boundary stops the run when cancellation was requested or the
// coordinator is shutting down.
func (r *run) boundary(ctx context.Context) error {
	if r.tok.cancelled.Load() || ctx.Err() != nil {
		return ErrCancelled
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, id uuid.UUID, tok *token, entry string, status contracts.Status) {
	r := &run{id: id, tok: tok, stage: entry}
	start := time.Now()

	graph, err := o.buildGraph(r, entry)
	if err != nil {
		o.fail(r, fmt.Errorf("build graph: %w", err))
		return
	}

	o.logger.InfoContext(ctx, "pipeline started", "contract_id", id, "stage", entry, "status", status)

	_, err = graph.Execute(ctx, state.New(nil).Set(KeyStatus, status))
	switch {
	case r.err != nil:
		err = r.err
	case err != nil && ctx.Err() != nil:
		err = ErrCancelled
	}
	if err != nil {
		o.fail(r, err)
		return
	}

	o.logger.InfoContext(ctx, "pipeline complete", "contract_id", id, "duration", time.Since(start))
}

// buildGraph links the stages from entry through finalize.
func (o *Orchestrator) buildGraph(r *run, entry string) (state.StateGraph, error) {
	from := slices.Index(stages, entry)
	if from < 0 || entry == StageFinalize {
		return nil, fmt.Errorf("unknown entry stage %q", entry)
	}

	cfg := gaoconfig.DefaultGraphConfig("covenant-pipeline")
	cfg.Observer = "noop"

	graph, err := state.NewGraph(cfg)
	if err != nil {
		return nil, err
	}

	bodies := map[string]stageFunc{
		StageNormalize: o.normalize,
		StageExtract:   o.extract,
		StageAssess:    o.assess,
		StageFinalize:  nil,
	}

	active := stages[from:]
	for _, name := range active {
		if err := graph.AddNode(name, o.node(r, name, bodies[name])); err != nil {
			return nil, err
		}
	}

	for i := 1; i < len(active); i++ {
		if err := graph.AddEdge(active[i-1], active[i], nil); err != nil {
			return nil, err
		}
	}

	if err := graph.SetEntryPoint(entry); err != nil {
		return nil, err
	}

	if err := graph.SetExitPoint(StageFinalize); err != nil {
		return nil, err
	}

	return graph, nil
}

type stageFunc func(ctx context.Context, r *run, s state.State) (state.State, error)

// node wraps a stage body with the boundary check and the status transition
// into the stage. A nil body only transitions.
func (o *Orchestrator) node(r *run, name string, body stageFunc) state.StateNode {
	target := stageStatus[name]

	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		r.stage = name

		if err := r.boundary(ctx); err != nil {
			r.err = err
			return s, err
		}

		current := statusOf(s)
		if current != target {
			if _, err := o.contracts.Transition(ctx, r.id, current, target); err != nil {
				r.err = err
				return s, err
			}
			s = s.Set(KeyStatus, target)
		}

		if body == nil {
			return s, nil
		}

		start := time.Now()
		s, err := body(ctx, r, s)
		if err != nil {
			r.err = fmt.Errorf("%s: %w", name, err)
			return s, r.err
		}

		o.logger.InfoContext(ctx, "stage complete",
			"contract_id", r.id,
			"stage", name,
			"duration", time.Since(start),
		)

		if err := r.boundary(ctx); err != nil {
			r.err = err
			return s, err
		}

		return s, nil
	})
}

func (o *Orchestrator) normalize(ctx context.Context, r *run, s state.State) (state.State, error) {
	c, err := o.contracts.Find(ctx, r.id)
	if err != nil {
		return s, err
	}

	blob, err := o.blobs.Download(ctx, c.StorageKey)
	if err != nil {
		return s, fmt.Errorf("download %s: %w", c.StorageKey, err)
	}
	data, err := io.ReadAll(blob)
	blob.Close()
	if err != nil {
		return s, fmt.Errorf("read %s: %w", c.StorageKey, err)
	}

	doc, err := retry.Do(ctx, o.policy, func(ctx context.Context) (*normalize.Document, error) {
		return normalize.Normalize(ctx, data, c.ContentType)
	})
	if err != nil {
		return s, err
	}

	if err := o.contracts.SaveText(ctx, r.id, doc); err != nil {
		return s, fmt.Errorf("save text: %w", err)
	}

	o.logger.DebugContext(ctx, "text normalized",
		"contract_id", r.id,
		"chars", len(doc.Text),
		"pages", len(doc.Pages),
	)

	return s.Set(KeyDocument, doc), nil
}

func (o *Orchestrator) extract(ctx context.Context, r *run, s state.State) (state.State, error) {
	doc, err := o.document(ctx, r.id, s)
	if err != nil {
		return s, err
	}

	extracted, err := retry.Do(ctx, o.policy, func(ctx context.Context) ([]extract.Clause, error) {
		return o.extractor.Extract(ctx, doc)
	})
	if err != nil {
		return s, err
	}

	profile, profileErr := retry.Do(ctx, o.policy, func(ctx context.Context) (capability.Profile, error) {
		return o.profiler.Profile(ctx, doc.Text)
	})
	if profileErr != nil {
		o.logger.WarnContext(ctx, "contract profile unavailable", "contract_id", r.id, "error", profileErr)
	}

	items, err := o.clauses.Replace(ctx, r.id, extracted)
	if err != nil {
		return s, fmt.Errorf("replace clauses: %w", err)
	}

	if profileErr == nil {
		if err := o.contracts.SaveProfile(ctx, r.id, contracts.Profile(profile)); err != nil {
			o.logger.WarnContext(ctx, "save contract profile failed", "contract_id", r.id, "error", err)
		}
	}

	o.logger.InfoContext(ctx, "clauses extracted", "contract_id", r.id, "clauses", len(items))
	return s, nil
}

// assess scores every clause that is still unscored. A clause whose
// assessment fails stays unscored and does not fail the stage.
func (o *Orchestrator) assess(ctx context.Context, r *run, s state.State) (state.State, error) {
	contract, err := o.contracts.Find(ctx, r.id)
	if err != nil {
		return s, fmt.Errorf("load contract: %w", err)
	}

	items, err := o.clauses.ByContract(ctx, r.id)
	if err != nil {
		return s, fmt.Errorf("load clauses: %w", err)
	}

	pending := slices.DeleteFunc(items, func(c clauses.Clause) bool {
		return c.RiskLevel != risk.Unscored
	})

	assessed, failed, err := o.scoreAll(ctx, contract, pending)
	if err != nil {
		return s, err
	}

	o.logger.InfoContext(ctx, "clauses assessed",
		"contract_id", r.id,
		"assessed", assessed,
		"failed", failed,
	)
	return s, nil
}

// scoreAll scores items with bounded parallelism and saves each result as it
// completes. Capability failures are logged and counted; only a failed save
// aborts the batch.
func (o *Orchestrator) scoreAll(ctx context.Context, contract *contracts.Contract, items []clauses.Clause) (assessed, failed int32, err error) {
	var ok, bad atomic.Int32
	summary := contractContext(contract)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.AssessConcurrency)

	for _, c := range items {
		g.Go(func() error {
			a, err := o.score(gctx, c, summary)
			if err != nil {
				bad.Add(1)
				o.logger.WarnContext(gctx, "clause assessment failed",
					"contract_id", contract.ID,
					"clause_id", c.ID,
					"error", err,
				)
				return nil
			}

			if _, err := o.clauses.SetRisk(gctx, c.ID, a); err != nil {
				return fmt.Errorf("save clause %s risk: %w", c.ID, err)
			}
			ok.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return ok.Load(), bad.Load(), err
	}
	return ok.Load(), bad.Load(), nil
}

func (o *Orchestrator) score(ctx context.Context, c clauses.Clause, summary string) (risk.Assessment, error) {
	return retry.Do(ctx, o.policy, func(ctx context.Context) (risk.Assessment, error) {
		return o.assessor.Assess(ctx, risk.Input{
			Type:    c.ClauseType,
			Title:   c.Title,
			Section: c.SectionNumber,
			Text:    c.Text,
			Context: summary,
		})
	})
}

// document returns the text normalized earlier in this run, or the cached
// text when the run resumed past normalize.
func (o *Orchestrator) document(ctx context.Context, id uuid.UUID, s state.State) (*normalize.Document, error) {
	if v, ok := s.Get(KeyDocument); ok {
		if doc, ok := v.(*normalize.Document); ok {
			return doc, nil
		}
	}

	doc, err := o.contracts.Text(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load text: %w", err)
	}
	return doc, nil
}

// fail records a failed run on the contract. A normalize failure also drops
// any partial text cache.
func (o *Orchestrator) fail(r *run, err error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(o.context()), failTimeout)
	defer cancel()

	kind := Classify(err)

	if r.stage == StageNormalize {
		if clearErr := o.contracts.ClearText(ctx, r.id); clearErr != nil {
			o.logger.WarnContext(ctx, "clear text cache failed", "contract_id", r.id, "error", clearErr)
		}
	}

	if _, failErr := o.contracts.Fail(ctx, r.id, kind, err.Error()); failErr != nil {
		if errors.Is(failErr, contracts.ErrInvalidTransition) {
			o.logger.WarnContext(ctx, "contract left pipeline before failure was recorded",
				"contract_id", r.id,
				"stage", r.stage,
				"error", err,
			)
			return
		}
		o.logger.ErrorContext(ctx, "record pipeline failure",
			"contract_id", r.id,
			"stage", r.stage,
			"error", failErr,
		)
		return
	}

	o.logger.WarnContext(ctx, "pipeline failed",
		"contract_id", r.id,
		"stage", r.stage,
		"kind", kind,
		"error", err,
	)
}

func statusOf(s state.State) contracts.Status {
	v, ok := s.Get(KeyStatus)
	if !ok {
		return ""
	}
	status, _ := v.(contracts.Status)
	return status
}

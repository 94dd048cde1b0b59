package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/amendments"
	"github.com/JaimeStill/covenant/internal/capability"
	"github.com/JaimeStill/covenant/internal/clauses"
	"github.com/JaimeStill/covenant/internal/contracts"
	"github.com/JaimeStill/covenant/internal/drafting"
	"github.com/JaimeStill/covenant/internal/extract"
	"github.com/JaimeStill/covenant/internal/normalize"
	"github.com/JaimeStill/covenant/internal/pipeline"
	"github.com/JaimeStill/covenant/internal/risk"
	"github.com/JaimeStill/covenant/internal/taxonomy"
	"github.com/JaimeStill/covenant/pkg/lifecycle"
	"github.com/JaimeStill/covenant/pkg/retry"
)

const agreement = "MASTER SERVICES AGREEMENT\n\n" +
	"1. Payment. Customer shall pay within 30 days.\n\n" +
	"2. Liability. Supplier's liability is unlimited.\n"

// memDB backs the fake stores with shared in-memory state.
type memDB struct {
	mu         sync.Mutex
	contracts  map[uuid.UUID]*contracts.Contract
	history    map[uuid.UUID][]contracts.Status
	texts      map[uuid.UUID]*normalize.Document
	blobs      map[string][]byte
	clauses    map[uuid.UUID][]clauses.Clause
	amendments []amendments.Amendment
}

func newMemDB() *memDB {
	return &memDB{
		contracts: make(map[uuid.UUID]*contracts.Contract),
		history:   make(map[uuid.UUID][]contracts.Status),
		texts:     make(map[uuid.UUID]*normalize.Document),
		blobs:     make(map[string][]byte),
		clauses:   make(map[uuid.UUID][]clauses.Clause),
	}
}

func (db *memDB) seed(status contracts.Status, text string) uuid.UUID {
	db.mu.Lock()
	defer db.mu.Unlock()

	id := uuid.New()
	db.contracts[id] = &contracts.Contract{
		ID:          id,
		Filename:    "seeded.txt",
		Title:       "Seeded Agreement",
		ContentType: normalize.MediaText,
		StorageKey:  "contracts/" + id.String(),
		Status:      status,
	}
	db.history[id] = []contracts.Status{status}
	if text != "" {
		db.texts[id] = &normalize.Document{
			Text:  text,
			Pages: []normalize.PageMarker{{Page: 1, Start: 0, End: len(text)}},
		}
	}
	return id
}

func (db *memDB) seedClause(contractID uuid.UUID, kind taxonomy.ClauseType, level risk.Level, score *float64) uuid.UUID {
	db.mu.Lock()
	defer db.mu.Unlock()

	id := uuid.New()
	db.clauses[contractID] = append(db.clauses[contractID], clauses.Clause{
		ID:          id,
		ContractID:  contractID,
		Ordinal:     len(db.clauses[contractID]),
		ClauseType:  kind,
		Title:       string(kind),
		Text:        "The " + string(kind) + " clause.",
		RiskLevel:   level,
		RiskScore:   score,
		RiskFactors: []string{},
		KeyTerms:    []string{},
	})
	return id
}

func (db *memDB) contract(id uuid.UUID) contracts.Contract {
	db.mu.Lock()
	defer db.mu.Unlock()
	return *db.contracts[id]
}

func (db *memDB) statuses(id uuid.UUID) []contracts.Status {
	db.mu.Lock()
	defer db.mu.Unlock()
	return slices.Clone(db.history[id])
}

func (db *memDB) clausesOf(id uuid.UUID) []clauses.Clause {
	db.mu.Lock()
	defer db.mu.Unlock()
	return slices.Clone(db.clauses[id])
}

func (db *memDB) hasText(id uuid.UUID) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, ok := db.texts[id]
	return ok
}

func (db *memDB) amendmentCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.amendments)
}

type fakeContracts struct{ db *memDB }

func (f fakeContracts) Find(_ context.Context, id uuid.UUID) (*contracts.Contract, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	c, ok := f.db.contracts[id]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f fakeContracts) Create(_ context.Context, cmd contracts.CreateCommand) (*contracts.Contract, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	id := uuid.New()
	key := "contracts/" + id.String() + "/" + cmd.Filename
	f.db.blobs[key] = cmd.Data

	c := &contracts.Contract{
		ID:           id,
		Filename:     cmd.Filename,
		Title:        cmd.Title,
		ContentType:  cmd.ContentType,
		SizeBytes:    int64(len(cmd.Data)),
		StorageKey:   key,
		ContractType: cmd.ContractType,
		Status:       contracts.StatusUploaded,
		Parties:      []string{},
	}
	f.db.contracts[id] = c
	f.db.history[id] = []contracts.Status{contracts.StatusUploaded}

	cp := *c
	return &cp, nil
}

func (f fakeContracts) Transition(_ context.Context, id uuid.UUID, from, to contracts.Status) (*contracts.Contract, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	c, ok := f.db.contracts[id]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	if c.Status != from || !contracts.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", contracts.ErrInvalidTransition, c.Status, to)
	}

	c.Status = to
	f.db.history[id] = append(f.db.history[id], to)
	cp := *c
	return &cp, nil
}

func (f fakeContracts) Fail(_ context.Context, id uuid.UUID, kind contracts.ErrorKind, message string) (*contracts.Contract, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	c, ok := f.db.contracts[id]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	if !c.Status.Active() {
		return nil, fmt.Errorf("%w: %s -> error", contracts.ErrInvalidTransition, c.Status)
	}

	c.Status = contracts.StatusError
	c.ErrorKind = &kind
	c.ErrorMessage = &message
	f.db.history[id] = append(f.db.history[id], contracts.StatusError)
	cp := *c
	return &cp, nil
}

func (f fakeContracts) SaveProfile(_ context.Context, id uuid.UUID, p contracts.Profile) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	c := f.db.contracts[id]
	if c.Title == "" {
		c.Title = p.Title
	}
	if c.ContractType == "" {
		c.ContractType = p.ContractType
	}
	c.Parties = p.Parties
	c.Summary = p.Summary
	return nil
}

func (f fakeContracts) SaveText(_ context.Context, id uuid.UUID, doc *normalize.Document) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.texts[id] = doc
	return nil
}

func (f fakeContracts) ClearText(_ context.Context, id uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	delete(f.db.texts, id)
	return nil
}

func (f fakeContracts) Text(_ context.Context, id uuid.UUID) (*normalize.Document, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	doc, ok := f.db.texts[id]
	if !ok {
		return nil, contracts.ErrNoText
	}
	return doc, nil
}

type fakeClauses struct{ db *memDB }

func (f fakeClauses) Find(_ context.Context, id uuid.UUID) (*clauses.Clause, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	for _, items := range f.db.clauses {
		for _, c := range items {
			if c.ID == id {
				return &c, nil
			}
		}
	}
	return nil, clauses.ErrNotFound
}

func (f fakeClauses) ByContract(_ context.Context, contractID uuid.UUID) ([]clauses.Clause, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return slices.Clone(f.db.clauses[contractID]), nil
}

func (f fakeClauses) Replace(_ context.Context, contractID uuid.UUID, extracted []extract.Clause) ([]clauses.Clause, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	items := make([]clauses.Clause, len(extracted))
	for i, e := range extracted {
		items[i] = clauses.Clause{
			ID:            uuid.New(),
			ContractID:    contractID,
			Ordinal:       i,
			ClauseType:    e.Type,
			Title:         e.Title,
			Text:          e.Text,
			SectionNumber: e.Section,
			PageNumber:    e.Page,
			StartOffset:   e.Start,
			EndOffset:     e.End,
			RiskLevel:     risk.Unscored,
			RiskFactors:   []string{},
			KeyTerms:      e.KeyTerms,
		}
	}
	f.db.clauses[contractID] = items
	return slices.Clone(items), nil
}

func (f fakeClauses) SetRisk(_ context.Context, id uuid.UUID, a risk.Assessment) (*clauses.Clause, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	for _, items := range f.db.clauses {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			score := a.Score
			now := time.Now()
			items[i].RiskLevel = a.Level
			items[i].RiskScore = &score
			items[i].RiskFactors = a.Factors
			items[i].Analysis = a.Analysis
			items[i].AssessedAt = &now
			c := items[i]
			return &c, nil
		}
	}
	return nil, clauses.ErrNotFound
}

type fakeAmendments struct{ db *memDB }

func (f fakeAmendments) CreateDrafts(_ context.Context, drafts []drafting.Draft) ([]amendments.Amendment, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	out := make([]amendments.Amendment, len(drafts))
	for i, d := range drafts {
		out[i] = amendments.Amendment{
			ID:                uuid.New(),
			ContractID:        d.ContractID,
			ClauseID:          d.ClauseID,
			AmendmentType:     d.Type,
			Status:            amendments.StatusDraft,
			OriginalText:      d.OriginalText,
			ProposedText:      d.ProposedText,
			Rationale:         d.Rationale,
			RiskMitigation:    d.RiskMitigation,
			NegotiationPoints: d.NegotiationPoints,
		}
	}
	f.db.amendments = append(f.db.amendments, out...)
	return out, nil
}

type fakeBlobs struct{ db *memDB }

func (f fakeBlobs) Download(_ context.Context, key string) (io.ReadCloser, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	data, ok := f.db.blobs[key]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// fakeProvider answers with fixed segments and type-based scores unless a
// test overrides one of the fn fields.
type fakeProvider struct {
	classifyFn func(ctx context.Context, text string) ([]capability.Segment, error)
	scoreFn    func(ctx context.Context, in capability.ScoreInput) (capability.Score, error)
	draftFn    func(ctx context.Context, in capability.DraftInput) ([]capability.Draft, error)
	profileFn  func(ctx context.Context, text string) (capability.Profile, error)

	classifyCalls atomic.Int32
	scoreCalls    atomic.Int32
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Classify(ctx context.Context, text string) ([]capability.Segment, error) {
	p.classifyCalls.Add(1)
	if p.classifyFn != nil {
		return p.classifyFn(ctx, text)
	}
	return []capability.Segment{
		{ClauseType: "payment", Title: "Payment", Section: "1", Text: "1. Payment. Customer shall pay within 30 days."},
		{ClauseType: "liability", Title: "Liability", Section: "2", Text: "2. Liability. Supplier's liability is unlimited."},
	}, nil
}

func (p *fakeProvider) Score(ctx context.Context, in capability.ScoreInput) (capability.Score, error) {
	p.scoreCalls.Add(1)
	if p.scoreFn != nil {
		return p.scoreFn(ctx, in)
	}
	switch in.ClauseType {
	case "liability":
		return capability.Score{Value: 0.9, Factors: []string{"unbounded_liability", "made_up"}, Analysis: "uncapped"}, nil
	case "payment":
		return capability.Score{Value: 0.5, Factors: []string{"payment_risk"}, Analysis: "net 30"}, nil
	default:
		return capability.Score{Value: 0.1, Factors: []string{}, Analysis: "boilerplate"}, nil
	}
}

func (p *fakeProvider) Draft(ctx context.Context, in capability.DraftInput) ([]capability.Draft, error) {
	if p.draftFn != nil {
		return p.draftFn(ctx, in)
	}
	return []capability.Draft{{
		AmendmentType:     "modification",
		ProposedText:      "Revised " + in.Title,
		Rationale:         "reduce exposure",
		RiskMitigation:    "caps liability",
		NegotiationPoints: []string{"cap at fees paid"},
	}}, nil
}

func (p *fakeProvider) Profile(ctx context.Context, text string) (capability.Profile, error) {
	if p.profileFn != nil {
		return p.profileFn(ctx, text)
	}
	return capability.Profile{
		Title:        "Master Services Agreement",
		ContractType: "service",
		Parties:      []string{"Customer", "Supplier"},
		Summary:      "Services for fees.",
	}, nil
}

func newOrchestrator(t *testing.T, p capability.Provider) (*pipeline.Orchestrator, *memDB) {
	t.Helper()

	cfg := &pipeline.Config{
		Retry: retry.Config{
			MaxAttempts:    2,
			InitialBackoff: "1ms",
			MaxBackoff:     "2ms",
			CallTimeout:    "5s",
		},
	}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize config: %v", err)
	}

	db := newMemDB()
	o := pipeline.New(&pipeline.Runtime{
		Contracts:  fakeContracts{db},
		Clauses:    fakeClauses{db},
		Amendments: fakeAmendments{db},
		Blobs:      fakeBlobs{db},
		Provider:   p,
		Config:     cfg,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return o, db
}

func upload(contentType string) contracts.CreateCommand {
	return contracts.CreateCommand{
		Data:        []byte(agreement),
		Filename:    "msa.txt",
		ContentType: contentType,
	}
}

// blocking returns a classifier that signals started and waits for release
// or cancellation.
func blocking(started chan<- struct{}, release <-chan struct{}) func(context.Context, string) ([]capability.Segment, error) {
	var once sync.Once
	return func(ctx context.Context, _ string) ([]capability.Segment, error) {
		once.Do(func() { close(started) })
		select {
		case <-release:
			return []capability.Segment{{ClauseType: "liability", Title: "Liability", Text: "Supplier's liability is unlimited."}}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pipeline")
	}
}

func TestSubmitRunsToAnalyzed(t *testing.T) {
	p := &fakeProvider{}
	o, db := newOrchestrator(t, p)

	c, err := o.Submit(context.Background(), upload(normalize.MediaText))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if c.Status != contracts.StatusUploaded {
		t.Errorf("returned status = %s, want uploaded", c.Status)
	}

	o.Wait()

	got := db.contract(c.ID)
	if got.Status != contracts.StatusAnalyzed {
		t.Fatalf("status = %s, want analyzed", got.Status)
	}

	want := []contracts.Status{
		contracts.StatusUploaded,
		contracts.StatusNormalizing,
		contracts.StatusExtracting,
		contracts.StatusAssessing,
		contracts.StatusAnalyzed,
	}
	if h := db.statuses(c.ID); !slices.Equal(h, want) {
		t.Errorf("history = %v, want %v", h, want)
	}

	if got.Title != "Master Services Agreement" {
		t.Errorf("title = %q, want profile title", got.Title)
	}
	if !db.hasText(c.ID) {
		t.Error("normalized text should stay cached")
	}

	items := db.clausesOf(c.ID)
	if len(items) != 3 {
		t.Fatalf("clauses = %d, want 3", len(items))
	}

	levels := map[taxonomy.ClauseType]risk.Level{}
	for _, item := range items {
		levels[item.ClauseType] = item.RiskLevel
		if item.ClauseType == taxonomy.ClauseLiability {
			if !slices.Equal(item.RiskFactors, []string{"unbounded_liability"}) {
				t.Errorf("liability factors = %v, want vocabulary-filtered", item.RiskFactors)
			}
		}
	}

	wantLevels := map[taxonomy.ClauseType]risk.Level{
		taxonomy.ClauseOther:     risk.Low,
		taxonomy.ClausePayment:   risk.Medium,
		taxonomy.ClauseLiability: risk.High,
	}
	for kind, level := range wantLevels {
		if levels[kind] != level {
			t.Errorf("%s level = %s, want %s", kind, levels[kind], level)
		}
	}

	if o.Busy(c.ID) {
		t.Error("token should be released after the run")
	}
}

func TestSubmitWithRulesProvider(t *testing.T) {
	rules, err := capability.LoadRules("")
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	o, db := newOrchestrator(t, capability.NewRules(rules))

	text := "SERVICES AGREEMENT\n\n" +
		"1. Payment. Client shall pay all invoices within thirty days of receipt.\f" +
		"2. Indemnification. Vendor shall indemnify, defend and hold harmless Client from any and all claims, " +
		"and Vendor's liability under this Section shall be unlimited.\f" +
		"3. Governing Law. This Agreement shall be governed by the laws of the State of Delaware.\n"

	c, err := o.Submit(context.Background(), contracts.CreateCommand{
		Data:        []byte(text),
		Filename:    "services.txt",
		ContentType: normalize.MediaText,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	o.Wait()

	if got := db.contract(c.ID); got.Status != contracts.StatusAnalyzed {
		t.Fatalf("status = %s (%v), want analyzed", got.Status, got.ErrorMessage)
	}

	var indemnity []clauses.Clause
	for _, item := range db.clausesOf(c.ID) {
		if item.ClauseType == taxonomy.ClauseIndemnification {
			indemnity = append(indemnity, item)
		}
	}
	if len(indemnity) != 1 {
		t.Fatalf("indemnification clauses = %d, want 1", len(indemnity))
	}

	clause := indemnity[0]
	if clause.RiskLevel != risk.High {
		t.Errorf("risk level = %s, want high", clause.RiskLevel)
	}
	if !slices.Contains(clause.RiskFactors, "unbounded_liability") {
		t.Errorf("risk factors = %v, want unbounded_liability", clause.RiskFactors)
	}
	if clause.PageNumber != 2 {
		t.Errorf("page = %d, want 2", clause.PageNumber)
	}

	drafts, err := o.GenerateAmendments(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("GenerateAmendments: %v", err)
	}

	var forClause int
	for _, a := range drafts {
		if a.Status != amendments.StatusDraft {
			t.Errorf("amendment status = %s, want draft", a.Status)
		}
		if a.ClauseID != nil && *a.ClauseID == clause.ID {
			forClause++
		}
	}
	if forClause == 0 {
		t.Errorf("no amendment references the indemnification clause: %+v", drafts)
	}
}

func TestSubmitCorruptPDF(t *testing.T) {
	p := &fakeProvider{}
	o, db := newOrchestrator(t, p)

	c, err := o.Submit(context.Background(), contracts.CreateCommand{
		Data:        []byte("%PDF-1.4\n1 0 obj << /Type /Catalog /Pages 2 0 R >>\ntruncated"),
		Filename:    "broken.pdf",
		ContentType: normalize.MediaPDF,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	o.Wait()

	got := db.contract(c.ID)
	if got.Status != contracts.StatusError {
		t.Fatalf("status = %s, want error", got.Status)
	}
	if got.ErrorKind == nil || *got.ErrorKind != contracts.KindCorruptDocument {
		t.Errorf("error kind = %v, want CorruptDocument", got.ErrorKind)
	}
	if n := len(db.clausesOf(c.ID)); n != 0 {
		t.Errorf("clauses = %d, want 0", n)
	}
	if n := p.classifyCalls.Load(); n != 0 {
		t.Errorf("classify calls = %d, want 0", n)
	}
}

func TestSubmitUnsupportedFormat(t *testing.T) {
	p := &fakeProvider{}
	o, db := newOrchestrator(t, p)

	c, err := o.Submit(context.Background(), upload("image/png"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	o.Wait()

	got := db.contract(c.ID)
	if got.Status != contracts.StatusError {
		t.Fatalf("status = %s, want error", got.Status)
	}
	if got.ErrorKind == nil || *got.ErrorKind != contracts.KindUnsupportedFormat {
		t.Errorf("error kind = %v, want UnsupportedFormat", got.ErrorKind)
	}
	if db.hasText(c.ID) {
		t.Error("text cache should be cleared after a normalize failure")
	}
	if n := p.classifyCalls.Load(); n != 0 {
		t.Errorf("classify calls = %d, want 0", n)
	}
}

func TestExtractionFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantKind  contracts.ErrorKind
		wantCalls int32
	}{
		{"unavailable is retried", capability.ErrUnavailable, contracts.KindCapabilityUnavailable, 2},
		{"malformed is not retried", capability.ErrMalformedOutput, contracts.KindExtractionFailed, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{
				classifyFn: func(context.Context, string) ([]capability.Segment, error) {
					return nil, tt.err
				},
			}
			o, db := newOrchestrator(t, p)

			c, err := o.Submit(context.Background(), upload(normalize.MediaText))
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			o.Wait()

			got := db.contract(c.ID)
			if got.Status != contracts.StatusError {
				t.Fatalf("status = %s, want error", got.Status)
			}
			if *got.ErrorKind != tt.wantKind {
				t.Errorf("error kind = %s, want %s", *got.ErrorKind, tt.wantKind)
			}
			if n := p.classifyCalls.Load(); n != tt.wantCalls {
				t.Errorf("classify calls = %d, want %d", n, tt.wantCalls)
			}
			if !db.hasText(c.ID) {
				t.Error("text cache should survive an extract failure")
			}
		})
	}
}

func TestProfileFailureIsNotFatal(t *testing.T) {
	p := &fakeProvider{
		profileFn: func(context.Context, string) (capability.Profile, error) {
			return capability.Profile{}, capability.ErrMalformedOutput
		},
	}
	o, db := newOrchestrator(t, p)

	c, err := o.Submit(context.Background(), upload(normalize.MediaText))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	o.Wait()

	got := db.contract(c.ID)
	if got.Status != contracts.StatusAnalyzed {
		t.Fatalf("status = %s, want analyzed", got.Status)
	}
	if got.Title != "" {
		t.Errorf("title = %q, want empty", got.Title)
	}
}

func TestClauseAssessmentFailureLeavesClauseUnscored(t *testing.T) {
	p := &fakeProvider{}
	p.scoreFn = func(_ context.Context, in capability.ScoreInput) (capability.Score, error) {
		if in.ClauseType == "liability" {
			return capability.Score{}, capability.ErrMalformedOutput
		}
		return capability.Score{Value: 0.2}, nil
	}
	o, db := newOrchestrator(t, p)

	c, err := o.Submit(context.Background(), upload(normalize.MediaText))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	o.Wait()

	if got := db.contract(c.ID); got.Status != contracts.StatusAnalyzed {
		t.Fatalf("status = %s, want analyzed", got.Status)
	}

	for _, item := range db.clausesOf(c.ID) {
		switch item.ClauseType {
		case taxonomy.ClauseLiability:
			if item.RiskLevel != risk.Unscored || item.RiskScore != nil {
				t.Errorf("liability = %s/%v, want unscored", item.RiskLevel, item.RiskScore)
			}
		default:
			if item.RiskLevel != risk.Low {
				t.Errorf("%s level = %s, want low", item.ClauseType, item.RiskLevel)
			}
		}
	}
}

func TestAnalyze(t *testing.T) {
	t.Run("analyzed contract is rejected", func(t *testing.T) {
		o, db := newOrchestrator(t, &fakeProvider{})
		id := db.seed(contracts.StatusAnalyzed, agreement)

		_, err := o.Analyze(context.Background(), id)
		if !errors.Is(err, contracts.ErrInvalidTransition) {
			t.Fatalf("err = %v, want ErrInvalidTransition", err)
		}
		if o.Busy(id) {
			t.Error("token should be released after a rejected analyze")
		}
	})

	t.Run("missing contract", func(t *testing.T) {
		o, _ := newOrchestrator(t, &fakeProvider{})

		_, err := o.Analyze(context.Background(), uuid.New())
		if !errors.Is(err, contracts.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("failed contract is reprocessed", func(t *testing.T) {
		p := &fakeProvider{}
		var failed atomic.Bool
		p.classifyFn = func(context.Context, string) ([]capability.Segment, error) {
			if failed.CompareAndSwap(false, true) {
				return nil, capability.ErrMalformedOutput
			}
			return []capability.Segment{{ClauseType: "payment", Text: "Customer shall pay within 30 days."}}, nil
		}
		o, db := newOrchestrator(t, p)

		c, err := o.Submit(context.Background(), upload(normalize.MediaText))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		o.Wait()

		if got := db.contract(c.ID); got.Status != contracts.StatusError {
			t.Fatalf("first run status = %s, want error", got.Status)
		}

		got, err := o.Analyze(context.Background(), c.ID)
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		if got.Status != contracts.StatusReprocessing {
			t.Errorf("returned status = %s, want reprocessing", got.Status)
		}
		o.Wait()

		if got := db.contract(c.ID); got.Status != contracts.StatusAnalyzed {
			t.Fatalf("status = %s, want analyzed", got.Status)
		}

		history := db.statuses(c.ID)
		if !slices.Contains(history, contracts.StatusReprocessing) {
			t.Errorf("history %v should pass through reprocessing", history)
		}
	})

	t.Run("stranded contract resumes from its stage", func(t *testing.T) {
		p := &fakeProvider{}
		o, db := newOrchestrator(t, p)
		id := db.seed(contracts.StatusExtracting, agreement)

		if _, err := o.Analyze(context.Background(), id); err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		o.Wait()

		got := db.contract(id)
		if got.Status != contracts.StatusAnalyzed {
			t.Fatalf("status = %s (%v), want analyzed", got.Status, got.ErrorMessage)
		}
		if p.classifyCalls.Load() != 1 {
			t.Errorf("classify calls = %d, want 1", p.classifyCalls.Load())
		}
		if len(db.clausesOf(id)) != 3 {
			t.Errorf("clauses = %d, want 3", len(db.clausesOf(id)))
		}
	})
}

func TestConcurrentOperationsConflict(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	p := &fakeProvider{classifyFn: blocking(started, release)}
	o, db := newOrchestrator(t, p)

	id := db.seed(contracts.StatusExtracting, agreement)
	clauseID := db.seedClause(id, taxonomy.ClauseLiability, risk.Unscored, nil)

	if _, err := o.Analyze(context.Background(), id); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	waitFor(t, started)

	if !o.Busy(id) {
		t.Error("contract should be busy during a run")
	}

	if _, err := o.Analyze(context.Background(), id); !errors.Is(err, pipeline.ErrConflict) {
		t.Errorf("second Analyze err = %v, want ErrConflict", err)
	}
	if _, err := o.AssessClause(context.Background(), clauseID); !errors.Is(err, pipeline.ErrConflict) {
		t.Errorf("AssessClause err = %v, want ErrConflict", err)
	}
	if _, err := o.GenerateAmendments(context.Background(), id); !errors.Is(err, pipeline.ErrConflict) {
		t.Errorf("GenerateAmendments err = %v, want ErrConflict", err)
	}
	if _, err := o.AssessContract(context.Background(), id); !errors.Is(err, pipeline.ErrConflict) {
		t.Errorf("AssessContract err = %v, want ErrConflict", err)
	}

	close(release)
	o.Wait()

	if got := db.contract(id); got.Status != contracts.StatusAnalyzed {
		t.Errorf("status = %s, want analyzed", got.Status)
	}
}

func TestCancel(t *testing.T) {
	t.Run("in flight stops at the next boundary", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})

		p := &fakeProvider{classifyFn: blocking(started, release)}
		o, db := newOrchestrator(t, p)

		c, err := o.Submit(context.Background(), upload(normalize.MediaText))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		waitFor(t, started)

		got, err := o.Cancel(context.Background(), c.ID)
		if err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if got.Status != contracts.StatusExtracting {
			t.Errorf("returned status = %s, want extracting", got.Status)
		}

		close(release)
		o.Wait()

		final := db.contract(c.ID)
		if final.Status != contracts.StatusError {
			t.Fatalf("status = %s, want error", final.Status)
		}
		if *final.ErrorKind != contracts.KindCancelled {
			t.Errorf("error kind = %s, want Cancelled", *final.ErrorKind)
		}
		if n := p.scoreCalls.Load(); n != 0 {
			t.Errorf("score calls = %d, want 0 after cancellation", n)
		}
	})

	t.Run("idle active contract fails immediately", func(t *testing.T) {
		o, db := newOrchestrator(t, &fakeProvider{})
		id := db.seed(contracts.StatusAssessing, agreement)

		got, err := o.Cancel(context.Background(), id)
		if err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if got.Status != contracts.StatusError || *got.ErrorKind != contracts.KindCancelled {
			t.Errorf("got %s/%v, want error/Cancelled", got.Status, got.ErrorKind)
		}
	})

	t.Run("terminal contract is rejected", func(t *testing.T) {
		o, db := newOrchestrator(t, &fakeProvider{})
		id := db.seed(contracts.StatusAnalyzed, agreement)

		if _, err := o.Cancel(context.Background(), id); !errors.Is(err, contracts.ErrInvalidTransition) {
			t.Errorf("err = %v, want ErrInvalidTransition", err)
		}
	})
}

func TestShutdownCancelsRuns(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	p := &fakeProvider{classifyFn: blocking(started, release)}
	o, db := newOrchestrator(t, p)

	lc := lifecycle.New()
	if err := o.Start(lc); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c, err := o.Submit(context.Background(), upload(normalize.MediaText))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, started)

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	got := db.contract(c.ID)
	if got.Status != contracts.StatusError {
		t.Fatalf("status = %s, want error", got.Status)
	}
	if *got.ErrorKind != contracts.KindCancelled {
		t.Errorf("error kind = %s, want Cancelled", *got.ErrorKind)
	}
}

func TestAssessClause(t *testing.T) {
	o, db := newOrchestrator(t, &fakeProvider{})
	id := db.seed(contracts.StatusAnalyzed, agreement)
	low := 0.1
	clauseID := db.seedClause(id, taxonomy.ClauseLiability, risk.Low, &low)

	got, err := o.AssessClause(context.Background(), clauseID)
	if err != nil {
		t.Fatalf("AssessClause: %v", err)
	}
	if got.RiskLevel != risk.High || *got.RiskScore != 0.9 {
		t.Errorf("got %s/%v, want high/0.9", got.RiskLevel, *got.RiskScore)
	}

	if _, err := o.AssessClause(context.Background(), uuid.New()); !errors.Is(err, clauses.ErrNotFound) {
		t.Errorf("missing clause err = %v, want ErrNotFound", err)
	}
}

func TestAssessContract(t *testing.T) {
	low, high := 0.1, 0.9

	t.Run("rescores every clause with contract context", func(t *testing.T) {
		p := &fakeProvider{}
		var summaries sync.Map
		p.scoreFn = func(_ context.Context, in capability.ScoreInput) (capability.Score, error) {
			summaries.Store(in.ClauseType, in.Context)
			if in.ClauseType == "payment" {
				return capability.Score{}, capability.ErrMalformedOutput
			}
			return capability.Score{Value: 0.9, Factors: []string{"unbounded_liability"}}, nil
		}
		o, db := newOrchestrator(t, p)
		id := db.seed(contracts.StatusAnalyzed, agreement)
		db.seedClause(id, taxonomy.ClauseLiability, risk.Low, &low)
		db.seedClause(id, taxonomy.ClausePayment, risk.High, &high)

		got, err := o.AssessContract(context.Background(), id)
		if err != nil {
			t.Fatalf("AssessContract: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("clauses = %d, want 2", len(got))
		}

		if got[0].RiskLevel != risk.High || *got[0].RiskScore != 0.9 {
			t.Errorf("liability = %s/%v, want high/0.9", got[0].RiskLevel, *got[0].RiskScore)
		}
		if got[1].RiskLevel != risk.High || *got[1].RiskScore != high {
			t.Errorf("payment = %s/%v, want stored high/%v kept", got[1].RiskLevel, *got[1].RiskScore, high)
		}

		summary, _ := summaries.Load("liability")
		if summary != "Title: Seeded Agreement" {
			t.Errorf("score context = %q, want contract title", summary)
		}
		if o.Busy(id) {
			t.Error("token should be released")
		}
	})

	t.Run("contract must be analyzed", func(t *testing.T) {
		o, db := newOrchestrator(t, &fakeProvider{})
		id := db.seed(contracts.StatusAssessing, agreement)

		if _, err := o.AssessContract(context.Background(), id); !errors.Is(err, contracts.ErrInvalidTransition) {
			t.Errorf("err = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("missing contract", func(t *testing.T) {
		o, _ := newOrchestrator(t, &fakeProvider{})

		if _, err := o.AssessContract(context.Background(), uuid.New()); !errors.Is(err, contracts.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestGenerateAmendments(t *testing.T) {
	high, medium, low := 0.9, 0.5, 0.1

	t.Run("drafts every eligible clause", func(t *testing.T) {
		o, db := newOrchestrator(t, &fakeProvider{})
		id := db.seed(contracts.StatusAnalyzed, agreement)
		highID := db.seedClause(id, taxonomy.ClauseLiability, risk.High, &high)
		mediumID := db.seedClause(id, taxonomy.ClausePayment, risk.Medium, &medium)
		db.seedClause(id, taxonomy.ClauseNotices, risk.Low, &low)
		db.seedClause(id, taxonomy.ClauseOther, risk.Unscored, nil)

		got, err := o.GenerateAmendments(context.Background(), id)
		if err != nil {
			t.Fatalf("GenerateAmendments: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("amendments = %d, want 2", len(got))
		}

		targets := []uuid.UUID{*got[0].ClauseID, *got[1].ClauseID}
		if !slices.Contains(targets, highID) || !slices.Contains(targets, mediumID) {
			t.Errorf("targets = %v, want high and medium clauses", targets)
		}
		for _, a := range got {
			if a.Status != amendments.StatusDraft {
				t.Errorf("status = %s, want draft", a.Status)
			}
			if a.OriginalText == nil {
				t.Error("clause amendments should carry the original text")
			}
		}
	})

	t.Run("no eligible clause", func(t *testing.T) {
		o, db := newOrchestrator(t, &fakeProvider{})
		id := db.seed(contracts.StatusAnalyzed, agreement)
		db.seedClause(id, taxonomy.ClauseNotices, risk.Low, &low)

		_, err := o.GenerateAmendments(context.Background(), id)
		if !errors.Is(err, drafting.ErrNotEligible) {
			t.Fatalf("err = %v, want ErrNotEligible", err)
		}
	})

	t.Run("failed draft persists nothing", func(t *testing.T) {
		p := &fakeProvider{}
		p.draftFn = func(_ context.Context, in capability.DraftInput) ([]capability.Draft, error) {
			if in.ClauseType == "payment" {
				return nil, capability.ErrMalformedOutput
			}
			return []capability.Draft{{ProposedText: "Cap liability."}}, nil
		}
		o, db := newOrchestrator(t, p)
		id := db.seed(contracts.StatusAnalyzed, agreement)
		db.seedClause(id, taxonomy.ClauseLiability, risk.High, &high)
		db.seedClause(id, taxonomy.ClausePayment, risk.Medium, &medium)

		_, err := o.GenerateAmendments(context.Background(), id)
		if !errors.Is(err, capability.ErrMalformedOutput) {
			t.Fatalf("err = %v, want ErrMalformedOutput", err)
		}
		if n := db.amendmentCount(); n != 0 {
			t.Errorf("stored amendments = %d, want 0", n)
		}
	})
}

func TestGenerateClauseAmendments(t *testing.T) {
	high, low := 0.8, 0.2

	o, db := newOrchestrator(t, &fakeProvider{})
	id := db.seed(contracts.StatusAnalyzed, agreement)
	highID := db.seedClause(id, taxonomy.ClauseLiability, risk.High, &high)
	lowID := db.seedClause(id, taxonomy.ClauseNotices, risk.Low, &low)

	got, err := o.GenerateClauseAmendments(context.Background(), highID)
	if err != nil {
		t.Fatalf("GenerateClauseAmendments: %v", err)
	}
	if len(got) != 1 || *got[0].ClauseID != highID {
		t.Errorf("got %+v, want one amendment for the high clause", got)
	}

	if _, err := o.GenerateClauseAmendments(context.Background(), lowID); !errors.Is(err, drafting.ErrNotEligible) {
		t.Errorf("low clause err = %v, want ErrNotEligible", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want contracts.ErrorKind
	}{
		{"nil", nil, ""},
		{"cancelled", pipeline.ErrCancelled, contracts.KindCancelled},
		{"context canceled", fmt.Errorf("extract: %w", context.Canceled), contracts.KindCancelled},
		{"conflict", pipeline.ErrConflict, contracts.KindPipelineConflict},
		{"unsupported", fmt.Errorf("normalize: %w", normalize.ErrUnsupportedFormat), contracts.KindUnsupportedFormat},
		{"corrupt", normalize.ErrCorruptDocument, contracts.KindCorruptDocument},
		{"timeout", fmt.Errorf("%w: %w", extract.ErrExtractionFailed, retry.ErrTimeout), contracts.KindTimeout},
		{"unavailable", fmt.Errorf("%w: %w", extract.ErrExtractionFailed, capability.ErrUnavailable), contracts.KindCapabilityUnavailable},
		{"extraction", fmt.Errorf("%w: %w", extract.ErrExtractionFailed, capability.ErrMalformedOutput), contracts.KindExtractionFailed},
		{"assessment", risk.ErrAssessmentFailed, contracts.KindAssessmentFailed},
		{"not eligible", drafting.ErrNotEligible, contracts.KindNotEligibleForAmendment},
		{"amendment transition", amendments.ErrInvalidTransition, contracts.KindInvalidAmendmentTransition},
		{"other", errors.New("boom"), contracts.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pipeline.Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

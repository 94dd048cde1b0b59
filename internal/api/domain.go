package api

import (
	"fmt"

	"github.com/JaimeStill/covenant/internal/amendments"
	"github.com/JaimeStill/covenant/internal/analytics"
	"github.com/JaimeStill/covenant/internal/capability"
	"github.com/JaimeStill/covenant/internal/clauses"
	"github.com/JaimeStill/covenant/internal/contracts"
	"github.com/JaimeStill/covenant/internal/pipeline"
	"github.com/JaimeStill/covenant/internal/prompts"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Contracts  contracts.System
	Clauses    clauses.System
	Amendments amendments.System
	Analytics  analytics.System
	Prompts    prompts.System
	Pipeline   *pipeline.Orchestrator
}

// NewDomain creates all domain systems from the API runtime. The pipeline
// reads stage instructions from the prompts system.
func NewDomain(runtime *Runtime) (*Domain, error) {
	db := runtime.Database.Connection()

	contractsSystem := contracts.New(db, runtime.Storage, runtime.Logger, runtime.Pagination)
	clausesSystem := clauses.New(db, runtime.Logger, runtime.Pagination)
	amendmentsSystem := amendments.New(db, runtime.Logger, runtime.Pagination)
	promptsSystem := prompts.New(db, runtime.Logger, runtime.Pagination)

	provider, err := capability.New(
		runtime.Capability,
		runtime.Agent,
		promptsSystem,
		runtime.Logger,
	)
	if err != nil {
		return nil, fmt.Errorf("capability init failed: %w", err)
	}

	orchestrator := pipeline.New(&pipeline.Runtime{
		Contracts:  contractsSystem,
		Clauses:    clausesSystem,
		Amendments: amendmentsSystem,
		Blobs:      runtime.Storage,
		Provider:   provider,
		Config:     runtime.Pipeline,
		Logger:     runtime.Logger,
	})

	return &Domain{
		Contracts:  contractsSystem,
		Clauses:    clausesSystem,
		Amendments: amendmentsSystem,
		Analytics:  analytics.New(db, runtime.Logger),
		Prompts:    promptsSystem,
		Pipeline:   orchestrator,
	}, nil
}

package pipeline

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/amendments"
	"github.com/JaimeStill/covenant/internal/clauses"
	"github.com/JaimeStill/covenant/internal/contracts"
	"github.com/JaimeStill/covenant/internal/drafting"
	"github.com/JaimeStill/covenant/internal/extract"
	"github.com/JaimeStill/covenant/internal/normalize"
	"github.com/JaimeStill/covenant/internal/risk"
)

// ContractStore is the slice of contracts.System the orchestrator drives.
type ContractStore interface {
	Find(ctx context.Context, id uuid.UUID) (*contracts.Contract, error)
	Create(ctx context.Context, cmd contracts.CreateCommand) (*contracts.Contract, error)
	Transition(ctx context.Context, id uuid.UUID, from, to contracts.Status) (*contracts.Contract, error)
	Fail(ctx context.Context, id uuid.UUID, kind contracts.ErrorKind, message string) (*contracts.Contract, error)
	SaveProfile(ctx context.Context, id uuid.UUID, p contracts.Profile) error
	SaveText(ctx context.Context, id uuid.UUID, doc *normalize.Document) error
	ClearText(ctx context.Context, id uuid.UUID) error
	Text(ctx context.Context, id uuid.UUID) (*normalize.Document, error)
}

// ClauseStore is the slice of clauses.System the orchestrator drives.
type ClauseStore interface {
	Find(ctx context.Context, id uuid.UUID) (*clauses.Clause, error)
	ByContract(ctx context.Context, contractID uuid.UUID) ([]clauses.Clause, error)
	Replace(ctx context.Context, contractID uuid.UUID, extracted []extract.Clause) ([]clauses.Clause, error)
	SetRisk(ctx context.Context, id uuid.UUID, a risk.Assessment) (*clauses.Clause, error)
}

// AmendmentStore persists generated drafts.
type AmendmentStore interface {
	CreateDrafts(ctx context.Context, drafts []drafting.Draft) ([]amendments.Amendment, error)
}

// BlobStore reads uploaded contract files.
type BlobStore interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

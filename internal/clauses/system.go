package clauses

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/amendments"
	"github.com/JaimeStill/covenant/internal/extract"
	"github.com/JaimeStill/covenant/internal/risk"
	"github.com/JaimeStill/covenant/pkg/pagination"
)

// System defines the public contract for clause domain operations.
type System interface {
	Handler(runner Runner) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Clause], error)

	Find(ctx context.Context, id uuid.UUID) (*Clause, error)

	// ByContract returns the contract's clauses in document order.
	ByContract(ctx context.Context, contractID uuid.UUID) ([]Clause, error)

	// Replace deletes the contract's clauses, and the amendments attached to
	// them, then inserts extracted in order. It runs in one transaction.
	Replace(ctx context.Context, contractID uuid.UUID, extracted []extract.Clause) ([]Clause, error)

	// SetRisk overwrites the clause's risk fields in a single statement.
	SetRisk(ctx context.Context, id uuid.UUID, a risk.Assessment) (*Clause, error)
}

// Runner performs the synchronous pipeline operations exposed on clauses.
type Runner interface {
	AssessClause(ctx context.Context, id uuid.UUID) (*Clause, error)
	AssessContract(ctx context.Context, contractID uuid.UUID) ([]Clause, error)
	GenerateClauseAmendments(ctx context.Context, id uuid.UUID) ([]amendments.Amendment, error)
}

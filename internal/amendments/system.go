package amendments

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/drafting"
	"github.com/JaimeStill/covenant/pkg/pagination"
)

// System defines the public contract for amendment domain operations.
type System interface {
	Handler(runner Runner) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Amendment], error)

	Find(ctx context.Context, id uuid.UUID) (*Amendment, error)

	// Create stores a manually authored amendment in draft status.
	Create(ctx context.Context, cmd CreateCommand) (*Amendment, error)

	// CreateDrafts persists generated drafts in one transaction. A draft whose
	// clause does not belong to its contract fails the whole batch.
	CreateDrafts(ctx context.Context, drafts []drafting.Draft) ([]Amendment, error)

	// Transition moves an amendment along the review status machine.
	Transition(ctx context.Context, id uuid.UUID, to Status) (*Amendment, error)

	// Delete removes a draft or rejected amendment.
	Delete(ctx context.Context, id uuid.UUID) error
}

// Runner performs the amendment generation exposed on contracts.
type Runner interface {
	GenerateAmendments(ctx context.Context, contractID uuid.UUID) ([]Amendment, error)
}

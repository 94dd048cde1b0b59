package contracts

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/normalize"
	"github.com/JaimeStill/covenant/pkg/pagination"
)

// System defines the public contract for contract domain operations.
// Status changes are conditional on the current status so concurrent
// writers cannot skip or repeat a stage.
type System interface {
	Handler(runner Runner, maxUploadSize int64) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Contract], error)

	Find(ctx context.Context, id uuid.UUID) (*Contract, error)
	Create(ctx context.Context, cmd CreateCommand) (*Contract, error)

	// Transition moves the contract from one status to another. It returns
	// ErrInvalidTransition when the table forbids the move or the stored
	// status is no longer from.
	Transition(ctx context.Context, id uuid.UUID, from, to Status) (*Contract, error)

	// Fail moves an active contract to error and records why.
	Fail(ctx context.Context, id uuid.UUID, kind ErrorKind, message string) (*Contract, error)

	SaveProfile(ctx context.Context, id uuid.UUID, p Profile) error
	SaveText(ctx context.Context, id uuid.UUID, doc *normalize.Document) error
	ClearText(ctx context.Context, id uuid.UUID) error
	Text(ctx context.Context, id uuid.UUID) (*normalize.Document, error)

	// Source opens the stored upload. The caller closes the reader.
	Source(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Contract, error)
}

// Runner drives the analysis pipeline for the contract endpoints.
type Runner interface {
	Submit(ctx context.Context, cmd CreateCommand) (*Contract, error)
	Analyze(ctx context.Context, id uuid.UUID) (*Contract, error)
	Cancel(ctx context.Context, id uuid.UUID) (*Contract, error)
}

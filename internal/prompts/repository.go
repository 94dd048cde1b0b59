package prompts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/pkg/pagination"
	"github.com/JaimeStill/covenant/pkg/query"
	"github.com/JaimeStill/covenant/pkg/repository"
)

const returning = `
		RETURNING id, name, stage, instructions, description, active, created_at, updated_at`

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a prompt repository implementing the System interface.
func New(
	db *sql.DB,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "prompts"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Prompt], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort...).
		WhereSearch(page.Search, "Name", "Description")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	result, err := repository.QueryPage(ctx, r.db, qb, page, scanPrompt)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)
	return r.one(ctx, r.db, q, args...)
}

func (r *repo) Active(ctx context.Context, stage Stage) (*Prompt, error) {
	if _, err := ParseStage(string(stage)); err != nil {
		return nil, err
	}

	q, args := query.
		NewBuilder(projection).
		WhereEquals("Stage", string(stage)).
		WhereEquals("Active", true).
		BuildSingleOrNull()

	return r.one(ctx, r.db, q, args...)
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Prompt, error) {
	if err := validate(cmd.Name, cmd.Stage, cmd.Instructions); err != nil {
		return nil, err
	}

	p, err := r.one(ctx, r.db, `
		INSERT INTO prompts(name, stage, instructions, description)
		VALUES ($1, $2, $3, $4)`+returning,
		cmd.Name, cmd.Stage, cmd.Instructions, cmd.Description,
	)
	if err != nil {
		return nil, err
	}

	r.logger.Info("prompt created", "id", p.ID, "name", p.Name, "stage", p.Stage)
	return p, nil
}

// Update rewrites a prompt. Moving an active prompt to another stage clears
// its active flag so the target stage keeps its current override.
func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Prompt, error) {
	if err := validate(cmd.Name, cmd.Stage, cmd.Instructions); err != nil {
		return nil, err
	}

	p, err := r.one(ctx, r.db, `
		UPDATE prompts
		SET name = $2,
			instructions = $4,
			description = $5,
			active = active AND stage = $3,
			stage = $3,
			updated_at = NOW()
		WHERE id = $1`+returning,
		id, cmd.Name, cmd.Stage, cmd.Instructions, cmd.Description,
	)
	if err != nil {
		return nil, err
	}

	r.logger.Info("prompt updated", "id", p.ID, "name", p.Name, "stage", p.Stage)
	return p, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, r.db, "DELETE FROM prompts WHERE id = $1", id)
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt deleted", "id", id)
	return nil
}

// Activate clears the stage's current override before setting this one; the
// partial unique index on (stage) WHERE active rejects any other order.
func (r *repo) Activate(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (*Prompt, error) {
		q, args := query.NewBuilder(projection).BuildSingle("ID", id)
		target, err := r.one(ctx, tx, q, args...)
		if err != nil {
			return nil, err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE prompts SET active = false, updated_at = NOW()
			WHERE stage = $1 AND active AND id <> $2`,
			target.Stage, id,
		); err != nil {
			return nil, fmt.Errorf("deactivate current: %w", err)
		}

		return r.one(ctx, tx, `
			UPDATE prompts SET active = true, updated_at = NOW()
			WHERE id = $1`+returning,
			id,
		)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("prompt activated", "id", p.ID, "name", p.Name, "stage", p.Stage)
	return p, nil
}

func (r *repo) Deactivate(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	p, err := r.one(ctx, r.db, `
		UPDATE prompts SET active = false, updated_at = NOW()
		WHERE id = $1`+returning,
		id,
	)
	if err != nil {
		return nil, err
	}

	r.logger.Info("prompt deactivated", "id", p.ID, "name", p.Name, "stage", p.Stage)
	return p, nil
}

func (r *repo) Instructions(ctx context.Context, stage Stage) (string, error) {
	p, err := r.Active(ctx, stage)
	switch {
	case err == nil:
		return p.Instructions, nil
	case errors.Is(err, ErrNotFound):
		return DefaultInstructions(stage)
	default:
		return "", fmt.Errorf("resolve %s instructions: %w", stage, err)
	}
}

func (r *repo) Spec(_ context.Context, stage Stage) (string, error) {
	return Spec(stage)
}

// one runs a single-row statement and maps its errors to prompt errors.
func (r *repo) one(ctx context.Context, q repository.Querier, stmt string, args ...any) (*Prompt, error) {
	p, err := repository.QueryOne(ctx, q, stmt, args, scanPrompt)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

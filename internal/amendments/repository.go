package amendments

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/contracts"
	"github.com/JaimeStill/covenant/internal/drafting"
	"github.com/JaimeStill/covenant/internal/taxonomy"
	"github.com/JaimeStill/covenant/pkg/pagination"
	"github.com/JaimeStill/covenant/pkg/query"
	"github.com/JaimeStill/covenant/pkg/repository"
)

// insertQuery stores a row only when the contract exists and, for clause
// amendments, the clause belongs to that contract.
const insertQuery = `
	INSERT INTO amendments(
		contract_id, clause_id, amendment_type, status, original_text,
		proposed_text, rationale, risk_mitigation, negotiation_points
	)
	SELECT $1::uuid, $2::uuid, $3::text, 'draft', $4::text, $5::text, $6::text, $7::text, $8::jsonb
	WHERE EXISTS (SELECT 1 FROM contracts WHERE id = $1::uuid)
		AND ($2::uuid IS NULL OR EXISTS (
			SELECT 1 FROM clauses WHERE id = $2::uuid AND contract_id = $1::uuid
		))` + returning

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an amendment repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "amendments"),
		pagination: pagination,
	}
}

func (r *repo) Handler(runner Runner) *Handler {
	return NewHandler(r, runner, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Amendment], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "ProposedText", "Rationale")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	result, err := repository.QueryPage(ctx, r.db, qb, page, scanAmendment)
	if err != nil {
		return nil, fmt.Errorf("list amendments: %w", err)
	}
	return result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Amendment, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	a, err := repository.QueryOne(ctx, r.db, q, args, scanAmendment)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &a, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Amendment, error) {
	if strings.TrimSpace(cmd.ProposedText) == "" {
		return nil, fmt.Errorf("%w: proposed_text is required", ErrInvalidAmendment)
	}

	typ, ok := taxonomy.ParseAmendmentType(cmd.AmendmentType)
	if !ok {
		return nil, fmt.Errorf("%w: unknown amendment_type %q", ErrInvalidAmendment, cmd.AmendmentType)
	}

	items, err := r.CreateDrafts(ctx, []drafting.Draft{{
		ContractID:        cmd.ContractID,
		ClauseID:          cmd.ClauseID,
		Type:              typ,
		OriginalText:      cmd.OriginalText,
		ProposedText:      cmd.ProposedText,
		Rationale:         cmd.Rationale,
		RiskMitigation:    cmd.RiskMitigation,
		NegotiationPoints: cmd.NegotiationPoints,
	}})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

func (r *repo) CreateDrafts(ctx context.Context, drafts []drafting.Draft) ([]Amendment, error) {
	items, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) ([]Amendment, error) {
		out := make([]Amendment, 0, len(drafts))
		for _, d := range drafts {
			points := d.NegotiationPoints
			if points == nil {
				points = []string{}
			}
			pointsJSON, err := json.Marshal(points)
			if err != nil {
				return nil, fmt.Errorf("marshal negotiation_points: %w", err)
			}

			args := []any{
				d.ContractID,
				d.ClauseID,
				string(d.Type),
				d.OriginalText,
				d.ProposedText,
				d.Rationale,
				d.RiskMitigation,
				pointsJSON,
			}

			a, err := repository.QueryOne(ctx, tx, insertQuery, args, scanAmendment)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, ownershipError(d)
				}
				return nil, err
			}
			out = append(out, a)
		}
		return out, nil
	})

	if err != nil {
		if repository.IsCheckViolation(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAmendment, err)
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if len(items) > 0 {
		r.logger.Info("amendments drafted", "contract_id", items[0].ContractID, "count", len(items))
	}
	return items, nil
}

func (r *repo) Transition(ctx context.Context, id uuid.UUID, to Status) (*Amendment, error) {
	if _, err := ParseStatus(string(to)); err != nil {
		return nil, err
	}

	current, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(current.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
	}

	q := `
		UPDATE amendments
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2` + returning

	args := []any{id, string(current.Status), string(to)}

	a, err := repository.QueryOne(ctx, r.db, q, args, scanAmendment)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, current.Status)
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("amendment status changed", "id", id, "from", current.Status, "to", to)
	return &a, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, r.db,
		"DELETE FROM amendments WHERE id = $1 AND status IN ('draft', 'rejected')",
		id,
	)
	if err == nil {
		r.logger.Info("amendment deleted", "id", id)
		return nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	current, findErr := r.Find(ctx, id)
	if findErr != nil {
		return findErr
	}
	return fmt.Errorf("%w: status %s", ErrNotDeletable, current.Status)
}

func ownershipError(d drafting.Draft) error {
	if d.ClauseID != nil {
		return fmt.Errorf("%w: clause %s, contract %s", ErrClauseMismatch, d.ClauseID, d.ContractID)
	}
	return contracts.ErrNotFound
}

package clauses

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/contracts"
	"github.com/JaimeStill/covenant/internal/extract"
	"github.com/JaimeStill/covenant/internal/risk"
	"github.com/JaimeStill/covenant/pkg/pagination"
	"github.com/JaimeStill/covenant/pkg/query"
	"github.com/JaimeStill/covenant/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a clause repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "clauses"),
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
) (*pagination.PageResult[Clause], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort...).
		WhereSearch(page.Search, "Title", "Text")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	result, err := repository.QueryPage(ctx, r.db, qb, page, scanClause)
	if err != nil {
		return nil, fmt.Errorf("list clauses: %w", err)
	}
	return result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Clause, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	c, err := repository.QueryOne(ctx, r.db, q, args, scanClause)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &c, nil
}

func (r *repo) ByContract(ctx context.Context, contractID uuid.UUID) ([]Clause, error) {
	q, args := query.
		NewBuilder(projection, query.SortField{Field: "Ordinal"}).
		WhereEquals("ContractID", contractID).
		Build()

	items, err := repository.QueryMany(ctx, r.db, q, args, scanClause)
	if err != nil {
		return nil, fmt.Errorf("query contract clauses: %w", err)
	}
	return items, nil
}

func (r *repo) Replace(ctx context.Context, contractID uuid.UUID, extracted []extract.Clause) ([]Clause, error) {
	insertQ := `
		INSERT INTO clauses(
			contract_id, ordinal, clause_type, title, text, section_number,
			page_number, start_offset, end_offset, key_terms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)` + returning

	items, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) ([]Clause, error) {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM amendments WHERE contract_id = $1 AND clause_id IS NOT NULL",
			contractID,
		); err != nil {
			return nil, fmt.Errorf("delete clause amendments: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM clauses WHERE contract_id = $1", contractID); err != nil {
			return nil, fmt.Errorf("delete clauses: %w", err)
		}

		out := make([]Clause, 0, len(extracted))
		for i, e := range extracted {
			terms := e.KeyTerms
			if terms == nil {
				terms = []string{}
			}
			termsJSON, err := json.Marshal(terms)
			if err != nil {
				return nil, fmt.Errorf("marshal key_terms: %w", err)
			}

			args := []any{
				contractID,
				i + 1,
				string(e.Type),
				e.Title,
				e.Text,
				e.Section,
				e.Page,
				e.Start,
				e.End,
				termsJSON,
			}

			c, err := repository.QueryOne(ctx, tx, insertQ, args, scanClause)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	})

	if err != nil {
		if repository.IsForeignKeyViolation(err) {
			return nil, contracts.ErrNotFound
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("clauses replaced", "contract_id", contractID, "count", len(items))
	return items, nil
}

func (r *repo) SetRisk(ctx context.Context, id uuid.UUID, a risk.Assessment) (*Clause, error) {
	factors := a.Factors
	if factors == nil {
		factors = []string{}
	}
	factorsJSON, err := json.Marshal(factors)
	if err != nil {
		return nil, fmt.Errorf("marshal risk_factors: %w", err)
	}

	q := `
		UPDATE clauses
		SET risk_level = $2, risk_score = $3, risk_factors = $4, analysis = $5, assessed_at = NOW()
		WHERE id = $1` + returning

	args := []any{id, string(a.Level), a.Score, factorsJSON, a.Analysis}

	c, err := repository.QueryOne(ctx, r.db, q, args, scanClause)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &c, nil
}

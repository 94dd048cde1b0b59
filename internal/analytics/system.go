package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/covenant/pkg/repository"
)

// System reads the entity projections analytics are computed from.
type System interface {
	Handler() *Handler
	Snapshot(ctx context.Context) (Snapshot, error)
}

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "analytics"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

// Snapshot reads all three tables in one read-only transaction so the
// projections are mutually consistent.
func (r *repo) Snapshot(ctx context.Context) (Snapshot, error) {
	snap, err := repository.WithReadTx(ctx, r.db, func(tx *sql.Tx) (Snapshot, error) {
		var s Snapshot
		var err error

		s.Contracts, err = repository.QueryMany(ctx, tx,
			"SELECT contract_type, status FROM contracts", nil,
			func(sc repository.Scanner) (ContractRow, error) {
				var row ContractRow
				err := sc.Scan(&row.ContractType, &row.Status)
				return row, err
			},
		)
		if err != nil {
			return s, fmt.Errorf("query contracts: %w", err)
		}

		s.Clauses, err = repository.QueryMany(ctx, tx,
			"SELECT clause_type, risk_level FROM clauses", nil,
			func(sc repository.Scanner) (ClauseRow, error) {
				var row ClauseRow
				err := sc.Scan(&row.ClauseType, &row.RiskLevel)
				return row, err
			},
		)
		if err != nil {
			return s, fmt.Errorf("query clauses: %w", err)
		}

		s.Amendments, err = repository.QueryMany(ctx, tx,
			"SELECT status FROM amendments", nil,
			func(sc repository.Scanner) (AmendmentRow, error) {
				var row AmendmentRow
				err := sc.Scan(&row.Status)
				return row, err
			},
		)
		if err != nil {
			return s, fmt.Errorf("query amendments: %w", err)
		}

		return s, nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	r.logger.Debug("analytics snapshot read",
		"contracts", len(snap.Contracts),
		"clauses", len(snap.Clauses),
		"amendments", len(snap.Amendments),
	)
	return snap, nil
}

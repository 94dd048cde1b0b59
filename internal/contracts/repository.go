package contracts

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/normalize"
	"github.com/JaimeStill/covenant/pkg/formatting"
	"github.com/JaimeStill/covenant/pkg/pagination"
	"github.com/JaimeStill/covenant/pkg/query"
	"github.com/JaimeStill/covenant/pkg/repository"
	"github.com/JaimeStill/covenant/pkg/storage"
)

type repo struct {
	db         *sql.DB
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a contract repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "contracts"),
		pagination: pagination,
	}
}

func (r *repo) Handler(runner Runner, maxUploadSize int64) *Handler {
	return NewHandler(r, runner, r.logger, r.pagination, maxUploadSize)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Contract], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Filename", "Title", "Summary")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	result, err := repository.QueryPage(ctx, r.db, qb, page, scanContract)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	return result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Contract, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	c, err := repository.QueryOne(ctx, r.db, q, args, scanContract)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &c, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Contract, error) {
	id := uuid.New()
	key := buildStorageKey(id, sanitizeFilename(cmd.Filename))

	if err := r.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), cmd.ContentType); err != nil {
		return nil, fmt.Errorf("upload contract blob: %w", err)
	}

	contractType := cmd.ContractType
	if contractType == "" {
		contractType = "other"
	}

	q := `
		INSERT INTO contracts(id, filename, title, content_type, size_bytes, storage_key, contract_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		_, err := tx.ExecContext(ctx, q,
			id,
			cmd.Filename,
			cmd.Title,
			cmd.ContentType,
			int64(len(cmd.Data)),
			key,
			contractType,
			StatusUploaded,
		)
		return struct{}{}, err
	})

	if err != nil {
		if delErr := r.storage.Delete(ctx, key); delErr != nil {
			r.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("contract created",
		"id", id,
		"filename", cmd.Filename,
		"size", formatting.FormatBytes(int64(len(cmd.Data)), 1),
	)
	return r.Find(ctx, id)
}

func (r *repo) Transition(ctx context.Context, id uuid.UUID, from, to Status) (*Contract, error) {
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	q := `
		UPDATE contracts
		SET status = $3,
			error_kind = CASE WHEN $3 = 'reprocessing' THEN NULL ELSE error_kind END,
			error_message = CASE WHEN $3 = 'reprocessing' THEN NULL ELSE error_message END,
			updated_at = NOW()
		WHERE id = $1 AND status = $2`

	if err := repository.ExecExpectOne(ctx, r.db, q, id, from, to); err != nil {
		return nil, r.transitionError(ctx, id, from, to, err)
	}

	r.logger.Info("contract status changed", "id", id, "from", from, "to", to)
	return r.Find(ctx, id)
}

func (r *repo) Fail(ctx context.Context, id uuid.UUID, kind ErrorKind, message string) (*Contract, error) {
	q := `
		UPDATE contracts
		SET status = 'error', error_kind = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($4)`

	if err := repository.ExecExpectOne(ctx, r.db, q, id, kind, message, activeStatuses()); err != nil {
		return nil, r.transitionError(ctx, id, "", StatusError, err)
	}

	r.logger.Warn("contract failed", "id", id, "kind", kind, "message", message)
	return r.Find(ctx, id)
}

// transitionError distinguishes a missing contract from one whose status
// moved underneath a conditional update.
func (r *repo) transitionError(ctx context.Context, id uuid.UUID, from, to Status, err error) error {
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	current, findErr := r.Find(ctx, id)
	if findErr != nil {
		return findErr
	}

	if from == "" {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
	}
	return fmt.Errorf("%w: expected %s, found %s", ErrInvalidTransition, from, current.Status)
}

func (r *repo) SaveProfile(ctx context.Context, id uuid.UUID, p Profile) error {
	parties := p.Parties
	if parties == nil {
		parties = []string{}
	}
	partiesJSON, err := json.Marshal(parties)
	if err != nil {
		return fmt.Errorf("marshal parties: %w", err)
	}

	q := `
		UPDATE contracts
		SET title = CASE WHEN title = '' THEN $2 ELSE title END,
			contract_type = CASE WHEN contract_type IN ('', 'other') AND $3 <> '' THEN $3 ELSE contract_type END,
			parties = $4,
			effective_date = NULLIF($5, '')::date,
			expiration_date = NULLIF($6, '')::date,
			summary = $7,
			updated_at = NOW()
		WHERE id = $1`

	err = repository.ExecExpectOne(ctx, r.db, q,
		id,
		p.Title,
		p.ContractType,
		partiesJSON,
		p.EffectiveDate,
		p.ExpirationDate,
		p.Summary,
	)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func (r *repo) SaveText(ctx context.Context, id uuid.UUID, doc *normalize.Document) error {
	markers, err := json.Marshal(doc.Pages)
	if err != nil {
		return fmt.Errorf("marshal page markers: %w", err)
	}

	err = repository.ExecExpectOne(ctx, r.db,
		"UPDATE contracts SET normalized_text = $2, page_markers = $3, updated_at = NOW() WHERE id = $1",
		id, doc.Text, markers,
	)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func (r *repo) ClearText(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, r.db,
		"UPDATE contracts SET normalized_text = NULL, page_markers = '[]', updated_at = NOW() WHERE id = $1",
		id,
	)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func (r *repo) Text(ctx context.Context, id uuid.UUID) (*normalize.Document, error) {
	var (
		text       *string
		markersRaw []byte
	)

	err := r.db.QueryRowContext(ctx,
		"SELECT normalized_text, page_markers FROM contracts WHERE id = $1",
		id,
	).Scan(&text, &markersRaw)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if text == nil {
		return nil, ErrNoText
	}

	doc := &normalize.Document{Text: *text, Pages: []normalize.PageMarker{}}
	if len(markersRaw) > 0 {
		if err := json.Unmarshal(markersRaw, &doc.Pages); err != nil {
			return nil, fmt.Errorf("unmarshal page markers: %w", err)
		}
	}
	return doc, nil
}

func activeStatuses() []string {
	var out []string
	for _, s := range Statuses() {
		if s.Active() {
			out = append(out, string(s))
		}
	}
	return out
}

func buildStorageKey(id uuid.UUID, filename string) string {
	return fmt.Sprintf("contracts/%s/%s", id, filename)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "" || name == "/" {
		name = "contract"
	}
	return url.PathEscape(name)
}

func (r *repo) Source(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Contract, error) {
	c, err := r.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	blob, err := r.storage.Download(ctx, c.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: source document missing from storage", ErrNotFound)
		}
		return nil, nil, fmt.Errorf("download source: %w", err)
	}
	return blob, c, nil
}

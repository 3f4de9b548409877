package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerstack/ledgerstack/constants"
	"github.com/ledgerstack/ledgerstack/internal/common"
)

// Extraction is the central record tracking one uploaded document through the
// pipeline.
type Extraction struct {
	ID         uuid.UUID
	OwnerID    uuid.UUID
	ObjectPath string
	Filename   string
	Text       *string
	Category   *string
	Payload    json.RawMessage
	Status     constants.ExtractionStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ExtractionRepository persists extractions. Every guarded transition matches
// on (id, owner_id, status) and reports common.ErrNotFound when zero rows
// match, so a stale, foreign or already-applied request is indistinguishable
// from a missing record.
type ExtractionRepository interface {
	Create(ctx context.Context, e *Extraction) error
	Get(ctx context.Context, id, ownerID uuid.UUID) (*Extraction, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]*Extraction, error)
	SetText(ctx context.Context, id, ownerID uuid.UUID, text string) error
	SetExtracted(ctx context.Context, id, ownerID uuid.UUID, category string, payload json.RawMessage) error
	Finalize(ctx context.Context, id, ownerID uuid.UUID, payload json.RawMessage, proj Projection) error
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
	DeleteByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
}

type extractionRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewExtractionRepository(db *sql.DB, log *slog.Logger) ExtractionRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractionRepo{db: db, log: log}
}

const extractionColumns = `id, owner_id, object_path, filename, doc_text, category, payload, status, created_at, updated_at`

func (r *extractionRepo) Create(ctx context.Context, e *Extraction) error {
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = constants.StatusToRecognize
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO extractions (id, owner_id, object_path, filename, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID.String(), e.OwnerID.String(), e.ObjectPath, e.Filename, string(e.Status), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		r.log.Error("extraction create failed", "extraction_id", e.ID, "err", err)
		return common.WrapError(err, "create extraction")
	}
	r.log.Info("extraction created", "extraction_id", e.ID, "owner_id", e.OwnerID, "filename", e.Filename)
	return nil
}

func (r *extractionRepo) Get(ctx context.Context, id, ownerID uuid.UUID) (*Extraction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE id = $1 AND owner_id = $2`,
		id.String(), ownerID.String())
	e, err := scanExtraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundError("extraction not found")
	}
	if err != nil {
		r.log.Error("extraction get failed", "extraction_id", id, "err", err)
		return nil, common.WrapError(err, "get extraction")
	}
	return e, nil
}

func (r *extractionRepo) List(ctx context.Context, ownerID uuid.UUID) ([]*Extraction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE owner_id = $1 ORDER BY updated_at DESC`,
		ownerID.String())
	if err != nil {
		r.log.Error("extraction list failed", "owner_id", ownerID, "err", err)
		return nil, common.WrapError(err, "list extractions")
	}
	defer rows.Close()

	var out []*Extraction
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan extraction")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetText applies the TO_RECOGNIZE -> TO_EXTRACT transition. The empty string
// is a legal value: it records that recognition ran and found nothing.
func (r *extractionRepo) SetText(ctx context.Context, id, ownerID uuid.UUID, text string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE extractions SET doc_text = $1, status = $2, updated_at = $3
		 WHERE id = $4 AND owner_id = $5 AND status = $6`,
		text, string(constants.StatusToExtract), time.Now().UTC(),
		id.String(), ownerID.String(), string(constants.StatusToRecognize))
	if err != nil {
		r.log.Error("extraction set_text failed", "extraction_id", id, "err", err)
		return common.WrapError(err, "set text")
	}
	return r.requireOneRow(res, id, "set_text")
}

// SetExtracted applies the TO_EXTRACT -> TO_VERIFY transition.
func (r *extractionRepo) SetExtracted(ctx context.Context, id, ownerID uuid.UUID, category string, payload json.RawMessage) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE extractions SET category = $1, payload = $2, status = $3, updated_at = $4
		 WHERE id = $5 AND owner_id = $6 AND status = $7`,
		category, []byte(payload), string(constants.StatusToVerify), time.Now().UTC(),
		id.String(), ownerID.String(), string(constants.StatusToExtract))
	if err != nil {
		r.log.Error("extraction set_extracted failed", "extraction_id", id, "err", err)
		return common.WrapError(err, "set extracted")
	}
	return r.requireOneRow(res, id, "set_extracted")
}

// Finalize applies the TO_VERIFY -> VERIFIED transition and writes the
// category projection in the same transaction, so a verified extraction is
// never left without its projection.
func (r *extractionRepo) Finalize(ctx context.Context, id, ownerID uuid.UUID, payload json.RawMessage, proj Projection) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return common.WrapError(err, "begin finalize tx")
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE extractions SET payload = $1, status = $2, updated_at = $3
		 WHERE id = $4 AND owner_id = $5 AND status = $6`,
		[]byte(payload), string(constants.StatusVerified), now,
		id.String(), ownerID.String(), string(constants.StatusToVerify))
	if err != nil {
		r.log.Error("extraction finalize failed", "extraction_id", id, "err", err)
		return common.WrapError(err, "finalize extraction")
	}
	if err := r.requireOneRow(res, id, "finalize"); err != nil {
		return err
	}

	if err := proj.insertTx(ctx, tx, ownerID, id, now); err != nil {
		r.log.Error("projection insert failed", "extraction_id", id, "err", err)
		return common.WrapError(err, "insert projection")
	}

	if err := tx.Commit(); err != nil {
		return common.WrapError(err, "commit finalize tx")
	}
	r.log.Info("extraction finalized", "extraction_id", id, "owner_id", ownerID)
	return nil
}

func (r *extractionRepo) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM extractions WHERE id = $1 AND owner_id = $2`,
		id.String(), ownerID.String())
	if err != nil {
		r.log.Error("extraction delete failed", "extraction_id", id, "err", err)
		return common.WrapError(err, "delete extraction")
	}
	return r.requireOneRow(res, id, "delete")
}

func (r *extractionRepo) DeleteByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM extractions WHERE owner_id = $1`, ownerID.String())
	if err != nil {
		r.log.Error("extraction delete_by_owner failed", "owner_id", ownerID, "err", err)
		return 0, common.WrapError(err, "delete extractions by owner")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *extractionRepo) requireOneRow(res sql.Result, id uuid.UUID, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return common.WrapError(err, "rows affected")
	}
	if n == 0 {
		r.log.Warn("extraction transition matched no rows", "extraction_id", id, "op", op)
		return common.NotFoundError("extraction not found")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExtraction(row rowScanner) (*Extraction, error) {
	var (
		e        Extraction
		idStr    string
		ownerStr string
		text     sql.NullString
		category sql.NullString
		payload  []byte
		status   string
	)
	if err := row.Scan(&idStr, &ownerStr, &e.ObjectPath, &e.Filename, &text, &category, &payload, &status, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	owner, err := uuid.Parse(ownerStr)
	if err != nil {
		return nil, err
	}
	e.ID = id
	e.OwnerID = owner
	if text.Valid {
		t := text.String
		e.Text = &t
	}
	if category.Valid {
		c := category.String
		e.Category = &c
	}
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	e.Status = constants.ExtractionStatus(status)
	return &e, nil
}

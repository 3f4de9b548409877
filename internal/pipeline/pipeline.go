// Package pipeline owns the extraction lifecycle: one transition function per
// edge of TO_RECOGNIZE -> TO_EXTRACT -> TO_VERIFY -> VERIFIED. Every
// transition calls its external collaborator first and persists only on
// success, guarded by the (id, owner, status) compare-and-swap in the
// repository, so a failed or timed-out call leaves the record retryable and a
// concurrent duplicate surfaces as not-found.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerstack/ledgerstack/constants"
	"github.com/ledgerstack/ledgerstack/internal/common"
	"github.com/ledgerstack/ledgerstack/internal/docai"
	"github.com/ledgerstack/ledgerstack/internal/repository"
	"github.com/ledgerstack/ledgerstack/internal/schema"
	"github.com/ledgerstack/ledgerstack/internal/storage"
)

// Recognizer reads text out of a stored document reachable at a signed URL.
type Recognizer interface {
	Recognize(ctx context.Context, docURL string, mc docai.ModelConfig) (string, error)
}

// Classifier picks one category label for free text.
type Classifier interface {
	Classify(ctx context.Context, text string, categories []string, mc docai.ModelConfig) (constants.Category, error)
}

// FieldExtractor produces a schema-constrained payload from text.
type FieldExtractor interface {
	Extract(ctx context.Context, text string, jsonSchema map[string]any, mc docai.ModelConfig) (json.RawMessage, error)
}

// Config holds pipeline behavior knobs.
type Config struct {
	SignedURLTTL time.Duration
	DefaultModel string
	BulkWorkers  int
	BulkTimeout  time.Duration
}

// Pipeline coordinates the object store, the document services and the
// extraction repository.
type Pipeline struct {
	logger     *slog.Logger
	cfg        Config
	extraction repository.ExtractionRepository
	store      storage.ObjectStore
	recognizer Recognizer
	classifier Classifier
	extractor  FieldExtractor
}

func New(
	logger *slog.Logger,
	cfg Config,
	extractions repository.ExtractionRepository,
	store storage.ObjectStore,
	recognizer Recognizer,
	classifier Classifier,
	extractor FieldExtractor,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = 10 * time.Minute
	}
	if cfg.BulkWorkers <= 0 {
		cfg.BulkWorkers = 4
	}
	if cfg.BulkTimeout <= 0 {
		cfg.BulkTimeout = 3 * time.Minute
	}
	return &Pipeline{
		logger:     logger,
		cfg:        cfg,
		extraction: extractions,
		store:      store,
		recognizer: recognizer,
		classifier: classifier,
		extractor:  extractor,
	}
}

func (p *Pipeline) model(mc docai.ModelConfig) docai.ModelConfig {
	if mc.Model == "" {
		mc.Model = p.cfg.DefaultModel
	}
	return mc
}

// Upload stores the document first and creates the extraction record at
// TO_RECOGNIZE; the object is removed again if the insert fails so no
// unreferenced object survives a half-applied upload.
func (p *Pipeline) Upload(ctx context.Context, ownerID uuid.UUID, filename, contentType string, r io.Reader) (*repository.Extraction, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, common.InvalidInputError("filename is required")
	}

	id := uuid.New()
	key := fmt.Sprintf("%s/%s.pdf", ownerID, id)

	if err := p.store.Put(ctx, key, contentType, r); err != nil {
		p.logger.Error("pipeline.upload.store_failed", "owner_id", ownerID, "err", err)
		return nil, err
	}

	e := &repository.Extraction{
		ID:         id,
		OwnerID:    ownerID,
		ObjectPath: key,
		Filename:   filename,
		Status:     constants.StatusToRecognize,
	}
	if err := p.extraction.Create(ctx, e); err != nil {
		if derr := p.store.Delete(ctx, key); derr != nil {
			p.logger.Error("pipeline.upload.compensate_failed", "key", key, "err", derr)
		}
		return nil, err
	}

	p.logger.Info("pipeline.upload.ok", "extraction_id", id, "owner_id", ownerID, "filename", filename)
	return e, nil
}

// Get returns one extraction for its owner.
func (p *Pipeline) Get(ctx context.Context, ownerID, id uuid.UUID) (*repository.Extraction, error) {
	return p.extraction.Get(ctx, id, ownerID)
}

// List returns the owner's extractions, most recently touched first.
func (p *Pipeline) List(ctx context.Context, ownerID uuid.UUID) ([]*repository.Extraction, error) {
	return p.extraction.List(ctx, ownerID)
}

// Recognize runs the TO_RECOGNIZE -> TO_EXTRACT transition: sign a URL for
// the stored object, call the recognition service, persist the text. An
// unparseable document yields empty text and still advances, so the user can
// type the text by hand.
func (p *Pipeline) Recognize(ctx context.Context, ownerID, id uuid.UUID, mc docai.ModelConfig) (*repository.Extraction, error) {
	e, err := p.extraction.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if e.Status != constants.StatusToRecognize {
		return nil, common.NotFoundError("extraction not found")
	}

	url, err := p.store.SignedGetURL(e.ObjectPath, p.cfg.SignedURLTTL)
	if err != nil {
		return nil, err
	}

	text, err := p.recognizer.Recognize(ctx, url, p.model(mc))
	if err != nil {
		p.logger.Error("pipeline.recognize.failed", "extraction_id", id, "err", err)
		return nil, err
	}

	if err := p.extraction.SetText(ctx, id, ownerID, text); err != nil {
		return nil, err
	}

	p.logger.Info("pipeline.recognize.ok", "extraction_id", id, "chars", len(text))
	return p.extraction.Get(ctx, id, ownerID)
}

// SaveText is the manual correction path for the same transition: the user
// supplies the text instead of the recognition service.
func (p *Pipeline) SaveText(ctx context.Context, ownerID, id uuid.UUID, text string) (*repository.Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return nil, common.InvalidInputError("text is required")
	}
	if err := p.extraction.SetText(ctx, id, ownerID, text); err != nil {
		return nil, err
	}
	p.logger.Info("pipeline.save_text.ok", "extraction_id", id, "chars", len(text))
	return p.extraction.Get(ctx, id, ownerID)
}

// Extract runs the TO_EXTRACT -> TO_VERIFY transition: classify the text,
// look up the category schema, call the extraction service (with its single
// refine retry) and persist category plus payload.
func (p *Pipeline) Extract(ctx context.Context, ownerID, id uuid.UUID, mc docai.ModelConfig) (*repository.Extraction, error) {
	e, err := p.extraction.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if e.Status != constants.StatusToExtract {
		return nil, common.NotFoundError("extraction not found")
	}
	if e.Text == nil || strings.TrimSpace(*e.Text) == "" {
		return nil, common.InvalidInputError("extraction has no text; correct it manually first")
	}

	mc = p.model(mc)
	cat, err := p.classifier.Classify(ctx, *e.Text, constants.AsStringSlice(), mc)
	if err != nil {
		p.logger.Error("pipeline.classify.failed", "extraction_id", id, "err", err)
		return nil, err
	}

	entry, ok := schema.Get(cat)
	if !ok {
		return nil, common.UpstreamError(fmt.Sprintf("no schema registered for category %q", cat), nil)
	}

	payload, err := p.extractor.Extract(ctx, *e.Text, entry.SchemaMap, mc)
	if err != nil {
		p.logger.Error("pipeline.extract.failed", "extraction_id", id, "category", string(cat), "err", err)
		return nil, err
	}
	if err := entry.Validate(payload); err != nil {
		p.logger.Error("pipeline.extract.local_validation_failed", "extraction_id", id, "err", err)
		return nil, common.UpstreamError("extraction output failed local schema validation", err)
	}

	if err := p.extraction.SetExtracted(ctx, id, ownerID, string(cat), payload); err != nil {
		return nil, err
	}

	p.logger.Info("pipeline.extract.ok", "extraction_id", id, "category", string(cat))
	return p.extraction.Get(ctx, id, ownerID)
}

// SaveExtracted is the save-only variant of the same transition: the caller
// supplies category and payload directly, no model call. The payload is
// validated against the registry schema before any write.
func (p *Pipeline) SaveExtracted(ctx context.Context, ownerID, id uuid.UUID, category string, payload json.RawMessage) (*repository.Extraction, error) {
	cat, ok := constants.Canonicalize(category)
	if !ok {
		return nil, common.InvalidInputErrorf("unknown category %q", category)
	}
	entry, ok := schema.Get(cat)
	if !ok {
		return nil, common.InvalidInputErrorf("no schema registered for category %q", cat)
	}
	if err := entry.Validate(payload); err != nil {
		return nil, common.InvalidInputError(err.Error())
	}

	if err := p.extraction.SetExtracted(ctx, id, ownerID, string(cat), payload); err != nil {
		return nil, err
	}
	p.logger.Info("pipeline.save_extracted.ok", "extraction_id", id, "category", string(cat))
	return p.extraction.Get(ctx, id, ownerID)
}

// Verify runs the terminal transition: persist the user-corrected payload,
// flip to VERIFIED and write the category projection, all in one transaction.
func (p *Pipeline) Verify(ctx context.Context, ownerID, id uuid.UUID, payload json.RawMessage) (*repository.Extraction, error) {
	e, err := p.extraction.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if e.Status != constants.StatusToVerify || e.Category == nil {
		return nil, common.NotFoundError("extraction not found")
	}

	cat, ok := constants.Canonicalize(*e.Category)
	if !ok {
		return nil, common.InvalidInputErrorf("extraction has unknown category %q", *e.Category)
	}
	entry, ok := schema.Get(cat)
	if !ok {
		return nil, common.InvalidInputErrorf("no schema registered for category %q", cat)
	}
	if err := entry.Validate(payload); err != nil {
		return nil, common.InvalidInputError(err.Error())
	}

	proj, err := entry.Decode(payload)
	if err != nil {
		return nil, common.InvalidInputError(err.Error())
	}

	if err := p.extraction.Finalize(ctx, id, ownerID, payload, proj); err != nil {
		return nil, err
	}

	p.logger.Info("pipeline.verify.ok", "extraction_id", id, "category", string(cat))
	return p.extraction.Get(ctx, id, ownerID)
}

// Delete removes the backing object first and the record only after that
// succeeds. A record pointing at a missing object is the failure mode this
// ordering prevents.
func (p *Pipeline) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	e, err := p.extraction.Get(ctx, id, ownerID)
	if err != nil {
		return err
	}

	if err := p.store.Delete(ctx, e.ObjectPath); err != nil {
		p.logger.Error("pipeline.delete.object_failed", "extraction_id", id, "key", e.ObjectPath, "err", err)
		return err
	}
	if err := p.extraction.Delete(ctx, id, ownerID); err != nil {
		return err
	}

	p.logger.Info("pipeline.delete.ok", "extraction_id", id)
	return nil
}

// PurgeOwner removes every object under the owner's prefix and then every
// extraction row. Object deletion goes first, mirroring Delete.
func (p *Pipeline) PurgeOwner(ctx context.Context, ownerID uuid.UUID) (objects, records int, err error) {
	objects, err = p.store.DeletePrefix(ctx, ownerID.String())
	if err != nil {
		return 0, 0, err
	}
	records, err = p.extraction.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return objects, 0, err
	}
	p.logger.Info("pipeline.purge.ok", "owner_id", ownerID, "objects", objects, "records", records)
	return objects, records, nil
}

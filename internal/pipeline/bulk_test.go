package pipeline_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerstack/ledgerstack/constants"
	"github.com/ledgerstack/ledgerstack/internal/common"
	"github.com/ledgerstack/ledgerstack/internal/docai"
)

func TestBulkProcessHappyPath(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	owner := uuid.New()

	ids := []uuid.UUID{
		e.upload(t, owner).ID,
		e.upload(t, owner).ID,
		e.upload(t, owner).ID,
	}

	results := e.pipe.BulkProcess(ctx, owner, ids, docai.ModelConfig{})
	require.Len(t, results, 3)
	for i, r := range results {
		assert.True(t, r.OK(), "item %d: %v", i, r.Err)
		assert.Equal(t, ids[i], r.ID, "results keep input order")
		assert.Equal(t, "extract", r.Stage)
	}

	for _, id := range ids {
		got, err := e.pipe.Get(ctx, owner, id)
		require.NoError(t, err)
		assert.Equal(t, constants.StatusToVerify, got.Status)
	}
}

func TestBulkFailedItemDoesNotAbortSiblings(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	owner := uuid.New()

	good1 := e.upload(t, owner).ID
	bad := e.upload(t, owner).ID
	good2 := e.upload(t, owner).ID

	e.stub.recognize = func(docURL string) (string, error) {
		if strings.Contains(docURL, bad.String()) {
			return "", common.UpstreamError("service choked on this one", nil)
		}
		return "TOTAL 12.50", nil
	}

	results := e.pipe.BulkProcess(ctx, owner, []uuid.UUID{good1, bad, good2}, docai.ModelConfig{})
	require.Len(t, results, 3)

	assert.True(t, results[0].OK())
	assert.Equal(t, "extract", results[0].Stage)
	assert.True(t, results[2].OK())

	assert.False(t, results[1].OK())
	assert.Equal(t, "recognize", results[1].Stage, "failure reported at the stage that failed")
	assert.ErrorIs(t, results[1].Err, common.ErrUpstream)

	// The failed item is still at TO_RECOGNIZE, retryable on its own.
	got, err := e.pipe.Get(ctx, owner, bad)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusToRecognize, got.Status)

	for _, id := range []uuid.UUID{good1, good2} {
		got, err := e.pipe.Get(ctx, owner, id)
		require.NoError(t, err)
		assert.Equal(t, constants.StatusToVerify, got.Status)
	}
}

func TestBulkEmptyTextFailsItemButAdvancesRecord(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	owner := uuid.New()

	good := e.upload(t, owner).ID
	blank := e.upload(t, owner).ID

	e.stub.recognize = func(docURL string) (string, error) {
		if strings.Contains(docURL, blank.String()) {
			return "", nil
		}
		return "TOTAL 12.50", nil
	}

	results := e.pipe.BulkProcess(ctx, owner, []uuid.UUID{good, blank}, docai.ModelConfig{})

	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.Equal(t, "recognize", results[1].Stage)
	assert.ErrorIs(t, results[1].Err, common.ErrInvalidInput)

	// The record itself advanced; the user can type the text and continue.
	got, err := e.pipe.Get(ctx, owner, blank)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusToExtract, got.Status)
	require.NotNil(t, got.Text)
	assert.Empty(t, *got.Text)
}

func TestBulkForeignIDReportsNotFound(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	owner := uuid.New()

	mine := e.upload(t, owner).ID
	theirs := e.upload(t, uuid.New()).ID

	results := e.pipe.BulkProcess(ctx, owner, []uuid.UUID{mine, theirs}, docai.ModelConfig{})

	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.ErrorIs(t, results[1].Err, common.ErrNotFound)
}

func TestBulkPanickingItemIsIsolated(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	owner := uuid.New()

	good := e.upload(t, owner).ID
	poison := e.upload(t, owner).ID

	e.stub.recognize = func(docURL string) (string, error) {
		if strings.Contains(docURL, poison.String()) {
			panic("boom")
		}
		return "TOTAL 12.50", nil
	}

	results := e.pipe.BulkProcess(ctx, owner, []uuid.UUID{good, poison}, docai.ModelConfig{})

	assert.True(t, results[0].OK())
	require.False(t, results[1].OK())
	assert.Contains(t, results[1].Err.Error(), "panicked")
}

func TestBulkEmptyInput(t *testing.T) {
	e := newEnv(t, nil)
	results := e.pipe.BulkProcess(context.Background(), uuid.New(), nil, docai.ModelConfig{})
	assert.Empty(t, results)
}

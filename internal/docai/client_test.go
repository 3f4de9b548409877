package docai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerstack/ledgerstack/constants"
	"github.com/ledgerstack/ledgerstack/internal/common"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		RecognizeURL: srv.URL + "/recognize",
		ClassifyURL:  srv.URL + "/classify",
		ExtractURL:   srv.URL + "/extract",
		APIKey:       "service-key",
	}, nil)
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestRecognizeReturnsContent(t *testing.T) {
	var gotAuth, gotProviderKey string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotProviderKey = r.Header.Get("X-Provider-Key")
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])
		assert.Equal(t, "https://files.example/doc.pdf?sig=x", body["url"])
		writeJSON(t, w, http.StatusOK, map[string]string{"content": "TOTAL 12.50"})
	})

	text, err := c.Recognize(context.Background(), "https://files.example/doc.pdf?sig=x",
		ModelConfig{Model: "gpt-4o-mini", ProviderKey: "user-key"})
	require.NoError(t, err)
	assert.Equal(t, "TOTAL 12.50", text)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "user-key", gotProviderKey)
}

func TestRecognizeUnparseableIsEmptyNotError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnprocessableEntity, map[string]string{"error": "cannot parse document"})
	})

	text, err := c.Recognize(context.Background(), "https://files.example/doc.pdf", ModelConfig{Model: "m"})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestRecognizeServerErrorIsUpstream(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Recognize(context.Background(), "https://files.example/doc.pdf", ModelConfig{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, common.CodeUpstream, common.ErrorCode(err))
}

func TestClassifyCanonicalizesLabel(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.ElementsMatch(t, []any{"receipts", "invoices", "credit card statements"}, body["categories"])
		writeJSON(t, w, http.StatusOK, map[string]any{
			"classification": map[string]string{"classification": "Invoice"},
		})
	})

	cat, err := c.Classify(context.Background(), "some text", constants.AsStringSlice(), ModelConfig{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, constants.Invoices, cat)
}

func TestClassifyRejectsLabelOutsideVocabulary(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"classification": map[string]string{"classification": "tax return"},
		})
	})

	_, err := c.Classify(context.Background(), "some text", constants.AsStringSlice(), ModelConfig{Model: "m"})
	require.ErrorIs(t, err, ErrNoClassification)
	assert.Equal(t, common.CodeUpstream, common.ErrorCode(err))
}

func TestClassifyRejectsEmptyLabel(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"classification": map[string]string{"classification": "   "},
		})
	})

	_, err := c.Classify(context.Background(), "some text", constants.AsStringSlice(), ModelConfig{Model: "m"})
	require.ErrorIs(t, err, ErrNoClassification)
}

func TestExtractRetriesOnceWithRefine(t *testing.T) {
	var calls int
	var refineOnSecond bool
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch calls {
		case 1:
			_, hasRefine := body["refine"]
			assert.False(t, hasRefine)
			writeJSON(t, w, http.StatusUnprocessableEntity, map[string]string{"error": "schema mismatch"})
		case 2:
			refineOnSecond, _ = body["refine"].(bool)
			writeJSON(t, w, http.StatusOK, map[string]string{"output": `{"merchant_name":"Blue Bottle"}`})
		default:
			t.Errorf("unexpected call %d", calls)
		}
	})

	out, err := c.Extract(context.Background(), "text", map[string]any{"type": "object"}, ModelConfig{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, refineOnSecond)
	assert.JSONEq(t, `{"merchant_name":"Blue Bottle"}`, string(out))
}

func TestExtractSecondSchemaFailureIsTerminal(t *testing.T) {
	var calls int
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(t, w, http.StatusUnprocessableEntity, map[string]string{"error": "schema mismatch"})
	})

	_, err := c.Extract(context.Background(), "text", map[string]any{"type": "object"}, ModelConfig{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, 2, calls, "exactly one retry")
	assert.Equal(t, common.CodeSchemaValidation, common.ErrorCode(err))
}

func TestExtractNon422IsNotRetried(t *testing.T) {
	var calls int
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Extract(context.Background(), "text", map[string]any{"type": "object"}, ModelConfig{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, common.CodeUpstream, common.ErrorCode(err))
}

func TestExtractRejectsNonJSONOutput(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]string{"output": "not json at all"})
	})

	_, err := c.Extract(context.Background(), "text", map[string]any{"type": "object"}, ModelConfig{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, common.CodeUpstream, common.ErrorCode(err))
}

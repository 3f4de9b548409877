package docai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ledgerstack/ledgerstack/internal/common"
)

// Extract asks the extraction service for a payload matching jsonSchema. The
// service overloads 422 to mean "model output failed schema validation"; that
// one condition is retried exactly once with refine set, anything else is not
// retried. A second 422 surfaces as a schema validation failure. This 422
// semantic belongs to this endpoint only and must not leak into the other
// clients.
func (c *Client) Extract(ctx context.Context, text string, jsonSchema map[string]any, mc ModelConfig) (json.RawMessage, error) {
	out, status, err := c.extractOnce(ctx, text, jsonSchema, mc, false)
	if err != nil && status == http.StatusUnprocessableEntity {
		c.log.Warn("docai.extract.schema_invalid_retrying", "refine", true)
		out, status, err = c.extractOnce(ctx, text, jsonSchema, mc, true)
		if err != nil && status == http.StatusUnprocessableEntity {
			return nil, common.SchemaValidationError("extraction output failed schema validation after refine", err)
		}
	}
	if err != nil {
		return nil, common.UpstreamError(fmt.Sprintf("field extraction failed (status %d)", status), err)
	}
	return out, nil
}

func (c *Client) extractOnce(ctx context.Context, text string, jsonSchema map[string]any, mc ModelConfig, refine bool) (json.RawMessage, int, error) {
	start := time.Now()
	body := map[string]any{
		"model":      mc.Model,
		"jsonSchema": jsonSchema,
		"text":       text,
	}
	if refine {
		body["refine"] = true
	}

	raw, status, err := sendJSON(ctx, c.httpClient, c.cfg.ExtractURL, body, c.headers(mc), c.log)
	if err != nil {
		return nil, status, err
	}

	var resp struct {
		Output string `json:"output"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, status, fmt.Errorf("malformed extraction response: %w", err)
	}
	payload := json.RawMessage(resp.Output)
	if !json.Valid(payload) {
		return nil, status, fmt.Errorf("extraction output is not valid json")
	}

	c.log.Info("docai.extract.ok",
		"refine", refine,
		"bytes", len(payload),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return payload, status, nil
}

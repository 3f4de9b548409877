package docai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ledgerstack/ledgerstack/constants"
	"github.com/ledgerstack/ledgerstack/internal/common"
)

// ErrNoClassification reports a response with no usable label or a label
// outside the allowed vocabulary.
var ErrNoClassification = errors.New("no classification found")

// Classify asks the classification service to pick one label from categories
// for the given text. The returned label is canonicalized; anything absent or
// outside the vocabulary is an error, never silently defaulted.
func (c *Client) Classify(ctx context.Context, text string, categories []string, mc ModelConfig) (constants.Category, error) {
	start := time.Now()
	body := map[string]any{
		"model":      mc.Model,
		"categories": categories,
		"text":       text,
	}

	raw, status, err := sendJSON(ctx, c.httpClient, c.cfg.ClassifyURL, body, c.headers(mc), c.log)
	if err != nil {
		return "", common.UpstreamError(fmt.Sprintf("classification failed (status %d)", status), err)
	}

	var out struct {
		Classification struct {
			Classification string `json:"classification"`
		} `json:"classification"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", common.UpstreamError("malformed classification response", err)
	}

	label := strings.TrimSpace(out.Classification.Classification)
	if label == "" {
		return "", common.UpstreamError("empty classification", ErrNoClassification)
	}
	cat, ok := constants.Canonicalize(label)
	if !ok {
		c.log.Warn("docai.classify.unknown_label", "label", label)
		return "", common.UpstreamError(fmt.Sprintf("classification %q not in vocabulary", label), ErrNoClassification)
	}

	c.log.Info("docai.classify.ok",
		"category", string(cat),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return cat, nil
}

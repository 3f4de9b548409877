package docai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ledgerstack/ledgerstack/internal/common"
)

// Recognize asks the text extraction service to read the document behind
// docURL. A 422 from the service means "not parseable" and yields the empty
// string with no error; the caller lets the user type the text manually. Any
// other non-success is an upstream failure.
func (c *Client) Recognize(ctx context.Context, docURL string, mc ModelConfig) (string, error) {
	start := time.Now()
	body := map[string]any{
		"model": mc.Model,
		"url":   docURL,
	}

	raw, status, err := sendJSON(ctx, c.httpClient, c.cfg.RecognizeURL, body, c.headers(mc), c.log)
	if err != nil {
		if status == http.StatusUnprocessableEntity {
			c.log.Warn("docai.recognize.unparseable",
				"elapsed_ms", time.Since(start).Milliseconds())
			return "", nil
		}
		return "", common.UpstreamError(fmt.Sprintf("text recognition failed (status %d)", status), err)
	}

	var out struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", common.UpstreamError("malformed recognition response", err)
	}

	c.log.Info("docai.recognize.ok",
		"chars", len(out.Content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out.Content, nil
}

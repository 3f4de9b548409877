// Package docai holds the clients for the three external document services:
// text recognition, classification and schema-guided field extraction. They
// share one HTTP idiom and one credential scheme; status-specific semantics
// (the 422 overloads) stay local to the client that owns them.
package docai

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds the endpoints and the intermediary service credential.
type Config struct {
	RecognizeURL string
	ClassifyURL  string
	ExtractURL   string
	APIKey       string
	Timeout      time.Duration
}

// ModelConfig selects the model and provider credential for one call. It is
// passed per invocation so the orchestration core stays free of any provider's
// specifics.
type ModelConfig struct {
	Model       string `json:"model"`
	ProviderKey string `json:"-"`
}

// Client talks to the document services.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

func (c *Client) headers(mc ModelConfig) map[string]string {
	h := map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	}
	if mc.ProviderKey != "" {
		h["X-Provider-Key"] = mc.ProviderKey
	}
	return h
}

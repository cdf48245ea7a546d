package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// Logger receives delivery diagnostics. *logging.Logger satisfies it.
type Logger interface {
	Warnf(format string, v ...interface{})
}

// Webhook posts messages as JSON to a gateway endpoint.
type Webhook struct {
	url    string
	token  string
	client *http.Client
	logger Logger
}

// WebhookOption configures a Webhook
type WebhookOption func(*Webhook)

// WithToken sends "Authorization: Bearer <token>" with every request
func WithToken(token string) WebhookOption {
	return func(w *Webhook) {
		w.token = token
	}
}

// WithHTTPClient replaces the default client (10s timeout)
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(w *Webhook) {
		w.client = client
	}
}

// WithLogger records delivery failures instead of dropping them silently
func WithLogger(logger Logger) WebhookOption {
	return func(w *Webhook) {
		w.logger = logger
	}
}

// NewWebhook creates a webhook notifier for the given URL
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:    url,
		client: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// wakePayload is the body understood by the gateway's wake endpoint.
type wakePayload struct {
	Text string `json:"text"`
	Mode string `json:"mode"`
}

// Notify delivers msg. Errors are logged (if a logger is attached) and dropped.
func (w *Webhook) Notify(ctx context.Context, msg Message) {
	if err := w.send(ctx, msg); err != nil && w.logger != nil {
		w.logger.Warnf("notification %s not delivered: %v", msg.Prefix, err)
	}
}

func (w *Webhook) send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(wakePayload{Text: msg.String(), Mode: "now"})
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned %s", resp.Status)
	}
	return nil
}

// New returns a Webhook when url is set and Nop otherwise.
func New(url, token string, logger Logger) Notifier {
	if url == "" {
		return Nop{}
	}
	opts := []WebhookOption{WithToken(token)}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	return NewWebhook(url, opts...)
}

package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bsm/internal/config"
	"bsm/internal/domain"

	"github.com/go-resty/resty/v2"
)

// WebhookMirror posts delivered events to an HTTP endpoint as JSON.
// Params: platform label, endpoint URL, method, timeout, and headers.
// Returns: best-effort mirror; failures never affect delivery state.
type WebhookMirror struct {
	platform string
	method   string
	url      string
	client   *resty.Client
}

// mirrorPayload is the JSON body posted by WebhookMirror.
type mirrorPayload struct {
	Platform string       `json:"platform"`
	Event    domain.Event `json:"event"`
}

// NewWebhookMirror creates mirror sender.
func NewWebhookMirror(platform string, cfg config.WebhookConfig) *WebhookMirror {
	timeoutSec := cfg.TimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodPost
	}
	client := resty.New().
		SetTimeout(time.Duration(timeoutSec)*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeaders(cfg.Headers)
	return &WebhookMirror{
		platform: platform,
		method:   method,
		url:      cfg.URL,
		client:   client,
	}
}

// Publish posts one delivered event.
// Params: context and event.
// Returns: transport or HTTP status error.
func (m *WebhookMirror) Publish(ctx context.Context, event domain.Event) error {
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(mirrorPayload{Platform: m.platform, Event: event}).
		Execute(m.method, m.url)
	if err != nil {
		return fmt.Errorf("webhook send: %w", err)
	}
	if !resp.IsSuccess() {
		body := strings.TrimSpace(resp.String())
		if len(body) > 4096 {
			body = body[:4096]
		}
		if body == "" {
			return fmt.Errorf("webhook status=%d", resp.StatusCode())
		}
		return fmt.Errorf("webhook status=%d body=%s", resp.StatusCode(), body)
	}
	return nil
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bsm/internal/config"
	"bsm/internal/domain"
	"bsm/internal/permanent"
)

// MattermostSender posts rendered markdown through Mattermost REST API.
// Params: API base URL, bot token, and HTTP timeout.
// Returns: Mattermost platform sender.
type MattermostSender struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewMattermostSender creates Mattermost sender.
func NewMattermostSender(cfg config.MattermostConfig) *MattermostSender {
	timeoutSec := cfg.TimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &MattermostSender{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:   config.ResolveSecret(cfg.BotToken, cfg.BotTokenEnv),
		client:  &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

// Platform returns sender platform name.
func (s *MattermostSender) Platform() string {
	return config.PlatformMattermost
}

// ResolveChannel reads channel metadata.
// Params: channel ID.
// Returns: ErrChannelUnresolvable on 403/404.
func (s *MattermostSender) ResolveChannel(ctx context.Context, channel string) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/v4/channels/"+url.PathEscape(channel), nil)
	if err != nil {
		return fmt.Errorf("build mattermost request: %w", err)
	}
	s.authorize(request)

	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("mattermost channel lookup: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return classifyMattermostStatus(response)
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

// Send creates one post.
// Params: message with ping or rendered Text.
// Returns: transport or classified HTTP error.
func (s *MattermostSender) Send(ctx context.Context, message Message) error {
	text := message.Text
	if message.IsPing() {
		text = FormatHandlePing(message.Ping)
	}
	if strings.TrimSpace(text) == "" {
		return permanent.Mark(fmt.Errorf("mattermost message for %s is empty", message.Channel))
	}

	body, err := json.Marshal(struct {
		ChannelID string `json:"channel_id"`
		Message   string `json:"message"`
	}{ChannelID: message.Channel, Message: text})
	if err != nil {
		return fmt.Errorf("encode mattermost payload: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v4/posts", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mattermost request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	s.authorize(request)

	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("mattermost send: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return classifyMattermostStatus(response)
	}
	var decoded struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode mattermost response: %w", err)
	}
	if strings.TrimSpace(decoded.ID) == "" {
		return errors.New("mattermost response missing id")
	}
	return nil
}

func (s *MattermostSender) authorize(request *http.Request) {
	request.Header.Set("Authorization", "Bearer "+s.token)
}

// classifyMattermostStatus builds status error and marks non-retryable ones.
func classifyMattermostStatus(response *http.Response) error {
	err := unexpectedHTTPStatusError("mattermost", response)
	switch response.StatusCode {
	case http.StatusForbidden, http.StatusNotFound:
		err = fmt.Errorf("%w: %v", domain.ErrChannelUnresolvable, err)
	}
	return permanent.FromStatus(response.StatusCode, err)
}

// unexpectedHTTPStatusError formats non-2xx HTTP response with optional body.
// Params: sender prefix label and HTTP response pointer.
// Returns: status-only or status+body error.
func unexpectedHTTPStatusError(prefix string, response *http.Response) error {
	if response == nil {
		return fmt.Errorf("%s status=0", prefix)
	}
	rawBody, readErr := io.ReadAll(io.LimitReader(response.Body, 4096))
	if readErr != nil {
		return fmt.Errorf("%s status=%d (read body error: %w)", prefix, response.StatusCode, readErr)
	}
	trimmedBody := strings.TrimSpace(string(rawBody))
	if trimmedBody == "" {
		return fmt.Errorf("%s status=%d", prefix, response.StatusCode)
	}
	return fmt.Errorf("%s status=%d body=%s", prefix, response.StatusCode, trimmedBody)
}

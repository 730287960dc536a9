package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"text/template"
	"time"

	"bsm/internal/config"
	"bsm/internal/domain"
	"bsm/internal/logging"
	"bsm/internal/permanent"
)

// Message is one outbound platform message.
// Ping messages carry only Ping; embed messages carry Embed and optional rendered Text.
type Message struct {
	Channel string
	Ping    string
	Embed   *domain.Embed
	Text    string
}

// IsPing reports whether message is the role mention sent ahead of an embed.
func (m Message) IsPing() bool {
	return m.Embed == nil && m.Ping != ""
}

// Sender delivers messages to one chat platform.
// Params: channel references in the platform's native ID format.
// Returns: transport errors; non-retryable ones carry permanent marker.
type Sender interface {
	Platform() string
	ResolveChannel(ctx context.Context, channel string) error
	Send(ctx context.Context, message Message) error
}

// Dispatcher turns crossing events into platform messages with retries.
// Params: platform sender, retry policy, text template, and optional webhook mirror.
// Returns: engine notifier with confirmed synchronous delivery.
type Dispatcher struct {
	sender Sender
	logger *slog.Logger

	mu       sync.RWMutex
	retry    config.NotifyRetry
	template *template.Template
	mirror   *WebhookMirror

	// pinged holds crossings whose ping went out but whose embed did not.
	pingMu sync.Mutex
	pinged map[crossingKey]domain.EventKind
}

// crossingKey identifies one rule/match pair across cycles.
type crossingKey struct {
	ruleID   int64
	match    domain.MatchKind
	matchKey string
}

// NewDispatcher builds dispatcher for sender platform.
// Params: sender, notify config snapshot, and optional logger.
// Returns: dispatcher or template parse error.
func NewDispatcher(sender Sender, cfg config.NotifyConfig, logger *slog.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	dispatcher := &Dispatcher{sender: sender, logger: logger, pinged: make(map[crossingKey]domain.EventKind)}
	if err := dispatcher.ApplyConfig(cfg); err != nil {
		return nil, err
	}
	return dispatcher, nil
}

// ApplyConfig swaps retry policy, template, and mirror from a reloaded snapshot.
// Params: notify config snapshot.
// Returns: template parse error; previous settings stay active on error.
func (d *Dispatcher) ApplyConfig(cfg config.NotifyConfig) error {
	platform := d.sender.Platform()
	compiled, err := compileTemplate(platform, config.PlatformTemplate(cfg, platform))
	if err != nil {
		return err
	}
	var mirror *WebhookMirror
	if cfg.Webhook.Enabled {
		mirror = NewWebhookMirror(platform, cfg.Webhook)
	}

	d.mu.Lock()
	d.retry = config.PlatformRetry(cfg, platform)
	d.template = compiled
	d.mirror = mirror
	d.mu.Unlock()
	return nil
}

// Platform returns sender platform name.
func (d *Dispatcher) Platform() string {
	return d.sender.Platform()
}

// ResolveChannel checks that rule target channel is reachable.
// Params: platform channel reference.
// Returns: error wrapping domain.ErrChannelUnresolvable.
func (d *Dispatcher) ResolveChannel(ctx context.Context, channel string) error {
	if strings.TrimSpace(channel) == "" {
		return fmt.Errorf("%w: empty channel", domain.ErrChannelUnresolvable)
	}
	err := d.sender.ResolveChannel(ctx, channel)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrChannelUnresolvable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrChannelUnresolvable, channel, err)
}

// Deliver sends optional ping and then the embed for one event.
// A ping already accepted for the same pending crossing is not repeated.
// Params: context and event built by the engine.
// Returns: nil only when every message was accepted by the platform.
func (d *Dispatcher) Deliver(ctx context.Context, event domain.Event) error {
	d.mu.RLock()
	retry := d.retry
	tmpl := d.template
	mirror := d.mirror
	d.mu.RUnlock()

	key := crossingKey{ruleID: event.RuleID, match: event.Match, matchKey: event.MatchKey}
	if event.Ping != "" && !d.alreadyPinged(key, event.Kind) {
		ping := Message{Channel: event.Channel, Ping: event.Ping}
		if err := d.sendWithRetry(ctx, ping, retry); err != nil {
			return fmt.Errorf("send ping for rule %d: %w", event.RuleID, err)
		}
		d.markPinged(key, event.Kind)
	}

	text, err := renderText(tmpl, event)
	if err != nil {
		return permanent.Mark(err)
	}
	embed := event.Embed
	message := Message{Channel: event.Channel, Embed: &embed, Text: text}
	if err := d.sendWithRetry(ctx, message, retry); err != nil {
		return fmt.Errorf("send embed for rule %d: %w", event.RuleID, err)
	}
	d.clearPinged(key)

	if mirror != nil {
		if err := mirror.Publish(ctx, event); err != nil {
			d.logger.Warn("webhook mirror failed", "rule_id", event.RuleID, "error", err.Error())
		}
	}
	return nil
}

// alreadyPinged reports whether the ping for this crossing was accepted earlier.
func (d *Dispatcher) alreadyPinged(key crossingKey, kind domain.EventKind) bool {
	d.pingMu.Lock()
	defer d.pingMu.Unlock()
	pending, ok := d.pinged[key]
	return ok && pending == kind
}

func (d *Dispatcher) markPinged(key crossingKey, kind domain.EventKind) {
	d.pingMu.Lock()
	d.pinged[key] = kind
	d.pingMu.Unlock()
}

func (d *Dispatcher) clearPinged(key crossingKey) {
	d.pingMu.Lock()
	delete(d.pinged, key)
	d.pingMu.Unlock()
}

// sendWithRetry sends one message with platform retry policy.
// Params: message and retry policy.
// Returns: final error after at most retry.Attempts() sends; permanent errors stop immediately.
func (d *Dispatcher) sendWithRetry(ctx context.Context, message Message, retry config.NotifyRetry) error {
	if !retry.Enabled {
		return d.sender.Send(ctx, message)
	}

	attempt := 0
	backoff := time.Duration(retry.InitialMS) * time.Millisecond
	maxBackoff := time.Duration(retry.MaxMS) * time.Millisecond
	timer := time.NewTimer(time.Hour)
	stopTimer(timer)
	defer stopTimer(timer)

	for {
		attempt++
		err := d.sender.Send(ctx, message)
		if err == nil {
			if retry.LogEachAttempt && attempt > 1 {
				d.logger.Info("notify send recovered after retries", "platform", d.sender.Platform(), "attempt", attempt)
			}
			return nil
		}
		if retry.LogEachAttempt {
			d.logger.Warn("notify send attempt failed", "platform", d.sender.Platform(), "attempt", attempt, "error", err.Error())
		}
		if permanent.Is(err) {
			return err
		}
		if attempt >= retry.Attempts() {
			return fmt.Errorf("%s failed after %d attempts: %w", d.sender.Platform(), attempt, err)
		}

		timer.Reset(backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		if strings.EqualFold(retry.Backoff, "exponential") {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// stopTimer stops timer and drains a pending tick.
func stopTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}

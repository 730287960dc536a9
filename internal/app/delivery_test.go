package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bsm/internal/config"
	"bsm/internal/domain"
	"bsm/internal/metrics"
	"bsm/internal/notify"
)

// channelSender rejects every message for one channel and accepts the rest.
type channelSender struct {
	mu       sync.Mutex
	down     string
	attempts map[string]int
}

func (s *channelSender) Platform() string { return config.PlatformMattermost }

func (s *channelSender) ResolveChannel(context.Context, string) error { return nil }

func (s *channelSender) Send(_ context.Context, message notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[message.Channel]++
	if message.Channel == s.down {
		return errors.New("502 bad gateway")
	}
	return nil
}

func (s *channelSender) count(channel string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[channel]
}

func TestRunCycleFailingChannelDoesNotBlockLaterRules(t *testing.T) {
	t.Parallel()

	sender := &channelSender{down: "down-channel", attempts: make(map[string]int)}
	retry := config.NotifyRetry{Enabled: true, Backoff: "fixed", InitialMS: 1, MaxMS: 1}
	dispatcher, err := notify.NewDispatcher(sender, config.NotifyConfig{Mattermost: config.MattermostConfig{Retry: retry}}, nil)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	rules := seededStore(t,
		domain.AlertRule{GuildID: "g1", NameFilter: "Elite", MinPlayers: domain.IntPtr(50), TargetChannel: "down-channel"},
		domain.AlertRule{GuildID: "g1", MapFilter: "Wakistan", MinPlayers: domain.IntPtr(50), TargetChannel: "ops"},
	)
	feed := &scriptedFeed{batches: [][]domain.ServerRecord{{eliteServer(60)}}}
	runner := newRunner(feed, rules, dispatcher, metrics.New())

	for cycle := 1; cycle <= 2; cycle++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		report, err := runner.RunCycle(ctx)
		cancel()
		if err != nil {
			t.Fatalf("cycle %d: %v", cycle, err)
		}
		if len(report.Failed) != 1 || report.Failed[0].Event.RuleID != 1 {
			t.Fatalf("cycle %d: expected rule 1 delivery failure, got %+v", cycle, report.Failed)
		}
		if cycle == 1 && (len(report.Delivered) != 1 || report.Delivered[0].RuleID != 2) {
			t.Fatalf("expected rule 2 to fire despite rule 1 failing, got %+v", report.Delivered)
		}
		if cycle == 2 && len(report.Delivered) != 0 {
			t.Fatalf("rule 2 must not fire twice, got %+v", report.Delivered)
		}
		if got := sender.count("down-channel"); got != 3*cycle {
			t.Fatalf("cycle %d: expected %d bounded attempts, got %d", cycle, 3*cycle, got)
		}
	}
	if got := sender.count("ops"); got != 1 {
		t.Fatalf("expected one delivery to ops, got %d", got)
	}
}

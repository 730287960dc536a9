package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"bsm/internal/clock"
	"bsm/internal/command"
	"bsm/internal/config"
	"bsm/internal/discord"
	"bsm/internal/engine"
	"bsm/internal/feed"
	"bsm/internal/logging"
	"bsm/internal/metrics"
	"bsm/internal/notify"
	"bsm/internal/store"
)

// Service composes runtime dependencies and process lifecycle.
// Params: config source and shared runtime components.
// Returns: runnable monitor service.
type Service struct {
	source     config.ConfigSource
	mu         sync.Mutex
	cfg        config.Config
	logger     *slog.Logger
	closeLog   func()
	store      store.Store
	metrics    *metrics.Metrics
	dispatcher *notify.Dispatcher
	runner     *CycleRunner
	scheduler  *Scheduler
	commands   *command.Handler
	bot        *discord.Bot
	ready      <-chan struct{}
	httpSrv    *http.Server
	readyFlag  atomic.Bool
	clock      clock.Clock
}

// NewService builds service instance from config source.
// Params: config source and clock implementation.
// Returns: initialized service or setup error.
func NewService(source config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	logger = logger.With("service", cfg.Service.Name)

	service := &Service{
		source:   source,
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		metrics:  metrics.New(),
		clock:    clk,
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	rules, err := store.New(initCtx, cfg.Store, cfg.Rule)
	if err != nil {
		service.cleanupInitResources()
		return nil, fmt.Errorf("build rule store: %w", err)
	}
	service.store = rules

	servers := feed.New(cfg.Feed)
	service.commands = command.NewHandler(rules, servers, clk, logger, command.WithRecorder(service.metrics))

	sender, err := service.buildSender()
	if err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	dispatcher, err := notify.NewDispatcher(sender, cfg.Notify, logger)
	if err != nil {
		service.cleanupInitResources()
		return nil, fmt.Errorf("build dispatcher: %w", err)
	}
	service.dispatcher = dispatcher

	service.runner = NewCycleRunner(servers, rules, engine.New(dispatcher, logger), service.metrics, clk, logger)
	service.scheduler = NewScheduler(func(ctx context.Context) error {
		_, err := service.runner.RunCycle(ctx)
		return err
	}, time.Duration(cfg.Service.PollIntervalSec)*time.Second, logger)

	if err := service.buildHTTPServer(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	return service, nil
}

// buildSender creates chat platform sender and, for Discord, the gateway bot.
// Params: none.
// Returns: platform sender or setup error.
func (s *Service) buildSender() (notify.Sender, error) {
	switch s.cfg.Chat.Platform {
	case config.PlatformDiscord:
		bot, err := discord.New(s.cfg.Notify.Discord, s.commands, s.logger)
		if err != nil {
			return nil, err
		}
		s.bot = bot
		s.ready = bot.Ready()
		return notify.NewDiscordSender(bot), nil
	case config.PlatformTelegram:
		s.ready = closedChannel()
		return notify.NewTelegramSender(s.cfg.Notify.Telegram), nil
	case config.PlatformMattermost:
		s.ready = closedChannel()
		return notify.NewMattermostSender(s.cfg.Notify.Mattermost), nil
	default:
		return nil, fmt.Errorf("unsupported chat platform %q", s.cfg.Chat.Platform)
	}
}

// Commands returns slash command handler.
func (s *Service) Commands() *command.Handler {
	return s.commands
}

// Run starts service lifecycle and blocks until shutdown signal.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	s.mu.Lock()
	listen := s.cfg.HTTP.Listen
	platform := s.cfg.Chat.Platform
	reloadEnabled := s.cfg.Service.ReloadEnabled
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "listen", listen)
		err := s.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	if s.bot != nil {
		if err := s.bot.Open(); err != nil {
			runCancel()
			_ = s.shutdown(nil)
			return err
		}
	}

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		select {
		case <-runCtx.Done():
			return
		case <-s.ready:
			s.readyFlag.Store(true)
			s.logger.Info("chat platform ready", "platform", platform)
		}
	}()

	workers.Add(1)
	go func() {
		defer workers.Done()
		_ = s.scheduler.Run(runCtx, s.ready)
	}()

	if reloadEnabled {
		workers.Add(1)
		go func() {
			defer workers.Done()
			err := config.Watch(runCtx, s.source, s.logger, func(next config.Config) {
				if err := s.applyConfig(next); err != nil {
					s.logger.Error("reload failed", "error", err.Error())
				}
			})
			if err != nil {
				s.logger.Error("config watch failed", "error", err.Error())
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errChan:
		runErr = fmt.Errorf("http server failed: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	}
	runCancel()
	if err := s.shutdown(&workers); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// applyConfig applies reloadable settings of a new snapshot.
// Params: validated config snapshot.
// Returns: error when snapshot changes restart-only settings or templates fail to compile.
func (s *Service) applyConfig(next config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if next.Chat.Platform != s.cfg.Chat.Platform {
		return fmt.Errorf("chat.platform change requires restart")
	}
	if next.Store.Backend != s.cfg.Store.Backend {
		return fmt.Errorf("store.backend change requires restart")
	}
	if err := s.dispatcher.ApplyConfig(next.Notify); err != nil {
		return fmt.Errorf("apply notify config: %w", err)
	}
	if next.Service.PollIntervalSec != s.cfg.Service.PollIntervalSec {
		s.scheduler.SetInterval(time.Duration(next.Service.PollIntervalSec) * time.Second)
	}
	s.cfg = next
	s.logger.Info("configuration reloaded")
	return nil
}

// shutdown closes runtime resources in dependency order.
// Params: optional wait group of background workers.
// Returns: first close error.
func (s *Service) shutdown(workers *sync.WaitGroup) error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown failed", "error", err.Error())
		markErr(fmt.Errorf("http shutdown: %w", err))
	}
	if workers != nil {
		workers.Wait()
	}
	if s.bot != nil {
		if err := s.bot.Close(); err != nil {
			s.logger.Error("discord close failed", "error", err.Error())
			markErr(err)
		}
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("store close failed", "error", err.Error())
		markErr(fmt.Errorf("store close: %w", err))
	}
	s.logger.Info("service stopped")
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// cleanupInitResources closes partially initialized resources on startup failures.
// Params: none.
// Returns: all acquired resources closed best-effort.
func (s *Service) cleanupInitResources() {
	if s.bot != nil {
		_ = s.bot.Close()
		s.bot = nil
	}
	if s.store != nil {
		_ = s.store.Close()
		s.store = nil
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// buildHTTPServer wires health, readiness, and metrics endpoints.
// Params: none.
// Returns: setup error.
func (s *Service) buildHTTPServer() error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.HTTP.HealthPath, func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ok"))
	})
	mux.HandleFunc(s.cfg.HTTP.ReadyPath, func(writer http.ResponseWriter, _ *http.Request) {
		if !s.readyFlag.Load() {
			writer.WriteHeader(http.StatusServiceUnavailable)
			_, _ = writer.Write([]byte("not-ready"))
			return
		}
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ready"))
	})
	mux.Handle(s.cfg.HTTP.MetricsPath, s.metrics.Handler())

	s.httpSrv = &http.Server{
		Addr:              s.cfg.HTTP.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

func closedChannel() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

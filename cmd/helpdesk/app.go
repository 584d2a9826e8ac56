// ABOUTME: Wires the helpdesk components together from a loaded config
// ABOUTME: Session registry, escalation engine, notifiers, archive, orchestrator and reporter

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/2389/helpdesk/internal/config"
	"github.com/2389/helpdesk/internal/conversation"
	"github.com/2389/helpdesk/internal/escalation"
	"github.com/2389/helpdesk/internal/notify"
	"github.com/2389/helpdesk/internal/reporter"
	"github.com/2389/helpdesk/internal/responder"
	"github.com/2389/helpdesk/internal/session"
	"github.com/2389/helpdesk/internal/store"
)

// app holds every long-lived component of one helpdesk process.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	archive  store.Store // nil when archiving is disabled
	sessions *session.Store
	engine   *escalation.Engine
	events   *conversation.EventBroadcaster
	orch     *conversation.Orchestrator
	reporter *reporter.Reporter

	observed chan struct{} // closed when the reporter's event feed stops
	final    reporter.Report
}

// loadConfig reads the config file. A missing file at a default location
// yields defaults; a missing file named explicitly is an error.
func loadConfig(flagPath string) (*config.Config, string, error) {
	path := config.Path(flagPath)
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if errors.Is(err, fs.ErrNotExist) && flagPath == "" && os.Getenv("HELPDESK_CONFIG") == "" {
		return config.Default(), "", nil
	}
	return nil, path, fmt.Errorf("loading config: %w", err)
}

// getDataPath returns the helpdesk data directory.
// Priority: XDG_DATA_HOME/helpdesk > ~/.local/share/helpdesk
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "helpdesk")
}

// newApp builds the component graph. Console alerts go to out.
func newApp(cfg *config.Config, logger *slog.Logger, gen responder.Generator, out io.Writer) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	var archive *notify.Archive
	if cfg.Archive.Path != "" {
		st, err := store.NewSQLiteStore(cfg.Archive.Path)
		if err != nil {
			return nil, fmt.Errorf("opening archive: %w", err)
		}
		a.archive = st
		archive = notify.NewArchive(st, cfg.Escalation.NotifyTimeout, logger)
	}

	sessionOpts := []session.Option{
		session.WithLogger(logger),
		session.WithRetention(cfg.Sessions.Retention),
		session.WithSweepInterval(cfg.Sessions.SweepInterval),
	}
	if archive != nil {
		sessionOpts = append(sessionOpts, session.WithPurgeHook(archive.PurgeHook()))
	}
	a.sessions = session.NewStore(sessionOpts...)

	sinks := []notify.Notifier{notify.NewConsole(out), notify.NewLog(logger)}
	if cfg.Escalation.WebhookURL != "" {
		client := &http.Client{Timeout: cfg.Escalation.NotifyTimeout}
		sinks = append(sinks, notify.NewWebhook(cfg.Escalation.WebhookURL, client))
	}

	engineOpts := []escalation.Option{
		escalation.WithLogger(logger),
		escalation.WithNotifier(notify.NewFanout(logger, cfg.Escalation.NotifyTimeout, sinks...)),
		escalation.WithNotifyTimeout(cfg.Escalation.NotifyTimeout),
	}
	if archive != nil {
		engineOpts = append(engineOpts, escalation.WithRecorder(archive))
	}
	a.engine = escalation.NewEngine(a.sessions, engineOpts...)

	if gen == nil {
		gen = responder.NewKeyword(cfg.Conversation.EscalationThreshold)
	}
	a.events = conversation.NewEventBroadcaster(logger)
	a.orch = conversation.New(a.sessions, gen, a.engine,
		conversation.WithLogger(logger),
		conversation.WithMaxTurns(cfg.Conversation.MaxTurns),
		conversation.WithEscalationThreshold(cfg.Conversation.EscalationThreshold),
		conversation.WithBroadcaster(a.events),
	)

	a.reporter = reporter.New(a.engine, a.sessions, logger)
	if cfg.Reporting.Schedule != "" {
		if err := a.reporter.Schedule(cfg.Reporting.Schedule); err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

// runBackground starts the reporter and its event feed. They stop with ctx
// or when Close shuts the broadcaster down.
func (a *app) runBackground(ctx context.Context) {
	events, _ := a.events.Subscribe(ctx, conversation.AllSessions)
	a.observed = make(chan struct{})
	go func() {
		defer close(a.observed)
		a.reporter.Observe(ctx, events)
	}()
	if a.reporter.JobCount() > 0 {
		go func() { _ = a.reporter.Start(ctx) }()
	}
}

// Close archives ended sessions, logs a final report and releases resources.
func (a *app) Close() {
	if a.sessions != nil {
		if n := a.sessions.Drain(); n > 0 {
			a.logger.Debug("drained retained sessions", "count", n)
		}
		a.sessions.Close()
	}
	// Closing the broadcaster ends the event feed; wait for it so the
	// final report counts every published event.
	if a.events != nil {
		a.events.Close()
	}
	if a.observed != nil {
		<-a.observed
	}
	if a.reporter != nil && a.engine != nil {
		a.final = a.reporter.Report()
	}
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.logger.Error("closing archive", "error", err)
		}
	}
}

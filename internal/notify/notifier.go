package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Notifier delivers a sweep summary to one destination.
type Notifier interface {
	Notify(ctx context.Context, s Summary) error
}

// Sweep outcomes carried in a Summary.
const (
	StateCompleted = "completed"
	StateAborted   = "aborted"
)

// Summary describes a finished sweep.
type Summary struct {
	ID      string
	State   string
	Plans   []string
	Runs    int
	Failed  int
	Gaps    int
	Elapsed time.Duration
	Reason  string
}

// Text renders the summary as one line.
func (s Summary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "benchmatrix sweep %s %s: %s, %d runs, %d failed, %d gaps in %s",
		shortID(s.ID), s.State, strings.Join(s.Plans, "+"), s.Runs, s.Failed, s.Gaps, s.Elapsed.Round(time.Second))
	if s.Reason != "" {
		fmt.Fprintf(&b, " (%s)", s.Reason)
	}
	return b.String()
}

// Manager fans a summary out to every configured notifier.
type Manager struct {
	notifiers map[string]Notifier
	logger    *slog.Logger
}

// NewManager builds a manager for the configured webhooks; empty URLs are skipped.
func NewManager(slackURL, discordURL string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{notifiers: make(map[string]Notifier), logger: logger}
	if slackURL != "" {
		m.Add("slack", NewSlackNotifier(slackURL))
	}
	if discordURL != "" {
		m.Add("discord", NewDiscordNotifier(discordURL))
	}
	return m
}

// Add registers a notifier under name.
func (m *Manager) Add(name string, n Notifier) {
	m.notifiers[name] = n
}

// Enabled reports whether any notifier is configured.
func (m *Manager) Enabled() bool {
	return len(m.notifiers) > 0
}

// Notify sends s to every notifier. Failures are logged and returned joined;
// one failing destination does not stop the others.
func (m *Manager) Notify(ctx context.Context, s Summary) error {
	var errs []error
	for name, n := range m.notifiers {
		if err := n.Notify(ctx, s); err != nil {
			m.logger.Warn("Notification failed", "provider", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		m.logger.Debug("Notification sent", "provider", name, "sweep", s.ID)
	}
	return errors.Join(errs...)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

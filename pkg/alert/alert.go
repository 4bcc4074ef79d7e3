package alert

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kevinzhu/skillpulse/pkg/trend"
)

// Notification is the data sent for one skill whose trend score spiked.
type Notification struct {
	Skill    string `json:"skill"`
	Category string `json:"category"`
	Score    int    `json:"score"`
	Previous int    `json:"previous"`
	Delta    int    `json:"delta"`
}

// Notifier delivers notifications to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts spike notifications to all registered notifiers.
// It satisfies the engine's notifier hook; delivery failures are logged
// and never fail a refresh.
type Manager struct {
	notifiers []Notifier
	log       *zap.Logger
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier, log *zap.Logger) *Manager {
	return &Manager{notifiers: notifiers, log: log}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// NotifySpikes sends one notification per spiked skill.
func (m *Manager) NotifySpikes(ctx context.Context, spikes []trend.Spike) {
	for _, s := range spikes {
		n := &Notification{
			Skill:    s.Skill.Name,
			Category: string(s.Skill.Category),
			Score:    s.Skill.TrendScore,
			Previous: s.Previous,
			Delta:    s.Delta,
		}
		if err := m.Broadcast(ctx, n); err != nil {
			m.log.Warn("spike notification failed",
				zap.String("skill", s.Skill.ID),
				zap.Error(err))
		}
	}
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

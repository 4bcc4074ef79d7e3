// Package scheduler optionally drives periodic refresh and collection.
// The engine stays request-triggered; ticks are just another trigger,
// made safe against overlap by the engine's timestamp touch.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kevinzhu/skillpulse/internal/store"
	"github.com/kevinzhu/skillpulse/pkg/feed"
	"github.com/kevinzhu/skillpulse/pkg/trend"
)

// Scheduler runs periodic trend refreshes and article collection.
type Scheduler struct {
	engine     *trend.Engine
	collector  *feed.Collector // nil disables collection
	store      store.Store
	refreshInt time.Duration // zero disables refresh ticks
	collectInt time.Duration // zero disables collect ticks
	log        *zap.Logger
}

// New creates a new scheduler. Intervals of zero disable the
// corresponding tick.
func New(engine *trend.Engine, collector *feed.Collector, st store.Store, refreshInt, collectInt time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		engine:     engine,
		collector:  collector,
		store:      st,
		refreshInt: refreshInt,
		collectInt: collectInt,
		log:        log,
	}
}

// Enabled reports whether any tick is configured.
func (s *Scheduler) Enabled() bool {
	return s.refreshInt > 0 || (s.collectInt > 0 && s.collector != nil)
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	var refreshC <-chan time.Time // nil channel blocks forever
	if s.refreshInt > 0 {
		t := time.NewTicker(s.refreshInt)
		defer t.Stop()
		refreshC = t.C
	}

	var collectC <-chan time.Time
	if s.collectInt > 0 && s.collector != nil {
		t := time.NewTicker(s.collectInt)
		defer t.Stop()
		collectC = t.C
	}

	s.log.Info("scheduler running",
		zap.Duration("refresh_interval", s.refreshInt),
		zap.Duration("collect_interval", s.collectInt))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-refreshC:
			// Scores takes the cheap cached paths when another trigger
			// already refreshed recently.
			if _, err := s.engine.Scores(ctx); err != nil {
				s.log.Warn("scheduled refresh failed", zap.Error(err))
			}
		case <-collectC:
			s.collect(ctx)
		}
	}
}

func (s *Scheduler) collect(ctx context.Context) {
	articles, err := s.collector.Collect(ctx)
	if err != nil {
		s.log.Warn("scheduled collection failed", zap.Error(err))
		return
	}
	if err := s.store.UpsertArticles(ctx, articles); err != nil {
		s.log.Warn("persist articles failed", zap.Error(err))
		return
	}
	s.log.Info("articles collected", zap.Int("count", len(articles)))
}

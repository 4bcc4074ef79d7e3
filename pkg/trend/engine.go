package trend

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kevinzhu/skillpulse/internal/metrics"
	"github.com/kevinzhu/skillpulse/internal/store"
	"github.com/kevinzhu/skillpulse/pkg/cache"
	"github.com/kevinzhu/skillpulse/pkg/signal"
	"github.com/kevinzhu/skillpulse/pkg/skill"
)

// scoresCacheKey is the fast-tier key for the full sorted result set.
const scoresCacheKey = "trend:scores"

// Spike is a skill whose score rose past the alert threshold in one refresh.
type Spike struct {
	Skill    SkillTrend
	Previous int
	Delta    int
}

// Notifier is told about score spikes after a successful refresh.
type Notifier interface {
	NotifySpikes(ctx context.Context, spikes []Spike)
}

// Config tunes the engine's cache and refresh behavior.
type Config struct {
	// FreshnessWindow is the max age before a durable record is stale.
	FreshnessWindow time.Duration
	// MinFreshRatio gates the durable tier: the set counts as fresh only
	// when the fresh fraction strictly exceeds this ratio. The exact
	// boundary (e.g. 12 of 15 at 0.80) refreshes.
	MinFreshRatio float64
	// CacheTTL is the fast-tier TTL for the result set.
	CacheTTL time.Duration
	// HistoryWindow bounds persisted history per skill.
	HistoryWindow int
	// SignalWindowDays is the trailing activity window the fetchers cover.
	SignalWindowDays int
	// SpikeThreshold is the minimum score rise that triggers a notification.
	// Zero disables spike notifications.
	SpikeThreshold int
}

func (c Config) withDefaults() Config {
	if c.FreshnessWindow <= 0 {
		c.FreshnessWindow = 24 * time.Hour
	}
	if c.MinFreshRatio <= 0 {
		c.MinFreshRatio = 0.80
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 24 * time.Hour
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = DefaultHistoryWindow
	}
	if c.SignalWindowDays <= 0 {
		c.SignalWindowDays = 30
	}
	return c
}

// Engine coordinates the two cache tiers, the signal fetchers and the
// calculator. Safe for concurrent triggers: the timestamp touch in
// refresh steers concurrent deciders onto the durable-fresh path instead
// of a second quota-consuming refresh.
type Engine struct {
	store    store.Store
	cache    cache.Cache
	github   signal.GitHubFetcher
	youtube  signal.YouTubeFetcher
	calc     *Calculator
	catalog  *skill.Catalog
	notifier Notifier
	cfg      Config
	log      *zap.Logger

	now func() time.Time
}

// NewEngine creates the orchestrator. The cache is injected, created once
// at process start and closed at shutdown by the caller.
func NewEngine(
	st store.Store,
	fast cache.Cache,
	github signal.GitHubFetcher,
	youtube signal.YouTubeFetcher,
	catalog *skill.Catalog,
	notifier Notifier,
	cfg Config,
	log *zap.Logger,
) *Engine {
	metrics.SetTrackedSkills(catalog.Len())
	return &Engine{
		store:    st,
		cache:    fast,
		github:   github,
		youtube:  youtube,
		calc:     NewCalculator(catalog),
		catalog:  catalog,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		log:      log,
		now:      time.Now,
	}
}

// Scores returns the full tracked skill set, sorted descending by trend
// score. Fast tier first, then the durable store behind a freshness
// check, then a full refresh.
func (e *Engine) Scores(ctx context.Context) ([]SkillTrend, error) {
	if b, ok := e.cache.Get(scoresCacheKey); ok {
		var trends []SkillTrend
		if err := json.Unmarshal(b, &trends); err == nil {
			metrics.CacheRequest("fast", "hit")
			return trends, nil
		}
		// Corrupt payload: drop it and fall through.
		e.cache.Delete(scoresCacheKey)
	}
	metrics.CacheRequest("fast", "miss")

	now := e.now().UTC()
	fresh, err := e.store.FreshScores(ctx, now.Add(-e.cfg.FreshnessWindow))
	if err != nil {
		// Durable tier unreadable counts as stale, not fatal.
		e.log.Warn("durable freshness check failed", zap.Error(err))
		fresh = nil
	}

	total := e.catalog.Len()
	if total > 0 && float64(len(fresh))/float64(total) > e.cfg.MinFreshRatio {
		// Freshness gates on the ratio, but the response is the whole
		// persisted set, stale stragglers included.
		recs, listErr := e.store.ListScores(ctx)
		if listErr == nil && len(recs) > 0 {
			metrics.CacheRequest("durable", "hit")
			trends := recordsToTrends(recs)
			e.writeFastTier(trends)
			return trends, nil
		}
		if listErr != nil {
			e.log.Warn("durable read failed", zap.Error(listErr))
		}
	}
	metrics.CacheRequest("durable", "stale")

	trends, err := e.Refresh(ctx)
	if err != nil {
		metrics.Refresh("error")
		return nil, err
	}
	metrics.Refresh("ok")
	return trends, nil
}

// Refresh recomputes every tracked skill from external signals. Always
// operates on the full set: peer normalization would be corrupted by a
// partial refresh.
func (e *Engine) Refresh(ctx context.Context) ([]SkillTrend, error) {
	now := e.now().UTC()
	defs := e.catalog.All()

	// Touch timestamps before any slow fetch so a concurrent trigger
	// entering the freshness decision during this refresh takes the
	// durable-fresh path. A narrow read-stale/touch race remains; a
	// duplicate refresh is cheaper than real locking.
	if err := e.store.TouchScores(ctx, e.catalog.IDs(), now); err != nil {
		e.log.Warn("touch timestamps failed", zap.Error(err))
	}

	// Previous scores, for spike detection after the refresh.
	previous := e.previousScores(ctx)

	window := signal.DateRange{From: now.AddDate(0, 0, -e.cfg.SignalWindowDays), To: now}

	// The two sources fetch independently; results combine once both
	// complete. Per-skill failures have already degraded to zero metrics
	// inside the fetchers, so an error here is a source-level outage.
	type ghResult struct {
		m   map[string]signal.GitHubMetrics
		err error
	}
	ghCh := make(chan ghResult, 1)
	go func() {
		m, err := e.github.Fetch(ctx, defs, window)
		ghCh <- ghResult{m: m, err: err}
	}()

	ytMetrics, ytErr := e.youtube.Fetch(ctx, defs)
	gh := <-ghCh

	if gh.err != nil {
		return nil, fmt.Errorf("github signals: %w", gh.err)
	}
	if ytErr != nil {
		return nil, fmt.Errorf("youtube signals: %w", ytErr)
	}

	trends, err := e.calc.ComputeAll(gh.m, ytMetrics, now)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	// Persist score first, history second. A crash between the two
	// leaves history one entry short, which the next refresh tolerates.
	for i := range trends {
		t := &trends[i]
		rec := trendToRecord(t)
		if err := e.store.UpsertScore(ctx, rec); err != nil {
			// Computed scores are still returned: durability traded
			// for availability.
			e.log.Error("persist score failed", zap.String("skill", t.ID), zap.Error(err))
			continue
		}
		if err := e.appendHistory(ctx, t.ID, t.TrendScore); err != nil {
			e.log.Error("append history failed", zap.String("skill", t.ID), zap.Error(err))
		}
	}

	sort.SliceStable(trends, func(i, j int) bool {
		if trends[i].TrendScore != trends[j].TrendScore {
			return trends[i].TrendScore > trends[j].TrendScore
		}
		return trends[i].Name < trends[j].Name
	})

	e.writeFastTier(trends)
	e.notifySpikes(ctx, previous, trends)

	return trends, nil
}

// History returns up to window persisted scores for one skill, oldest
// first. Unknown skills fail fast.
func (e *Engine) History(ctx context.Context, skillID string, window int) ([]int, error) {
	if _, err := e.catalog.Lookup(skillID); err != nil {
		return nil, err
	}
	scores, err := e.store.GetHistory(ctx, skillID)
	if err != nil {
		return nil, err
	}
	return HistoryTail(scores, window), nil
}

func (e *Engine) appendHistory(ctx context.Context, skillID string, score int) error {
	scores, err := e.store.GetHistory(ctx, skillID)
	if err != nil {
		return err
	}
	return e.store.UpsertHistory(ctx, skillID, AppendHistory(scores, score, e.cfg.HistoryWindow))
}

func (e *Engine) previousScores(ctx context.Context) map[string]int {
	recs, err := e.store.ListScores(ctx)
	if err != nil {
		e.log.Warn("load previous scores failed", zap.Error(err))
		return nil
	}
	prev := make(map[string]int, len(recs))
	for _, r := range recs {
		prev[r.SkillID] = r.TrendScore
	}
	return prev
}

func (e *Engine) notifySpikes(ctx context.Context, previous map[string]int, trends []SkillTrend) {
	if e.notifier == nil || e.cfg.SpikeThreshold <= 0 || len(previous) == 0 {
		return
	}

	var spikes []Spike
	for _, t := range trends {
		prev, ok := previous[t.ID]
		if !ok {
			continue
		}
		if delta := t.TrendScore - prev; delta >= e.cfg.SpikeThreshold {
			spikes = append(spikes, Spike{Skill: t, Previous: prev, Delta: delta})
		}
	}
	if len(spikes) > 0 {
		e.notifier.NotifySpikes(ctx, spikes)
	}
}

// writeFastTier caches the sorted result set. Best-effort: a fast-tier
// failure is a performance problem, never a correctness one.
func (e *Engine) writeFastTier(trends []SkillTrend) {
	b, err := json.Marshal(trends)
	if err != nil {
		e.log.Warn("encode fast-tier payload failed", zap.Error(err))
		return
	}
	e.cache.Set(scoresCacheKey, b, e.cfg.CacheTTL)
}

// Invalidate drops the fast-tier entry, forcing the next read through
// the durable freshness check.
func (e *Engine) Invalidate() {
	e.cache.Delete(scoresCacheKey)
}

func trendToRecord(t *SkillTrend) *store.ScoreRecord {
	return &store.ScoreRecord{
		SkillID:        t.ID,
		Name:           t.Name,
		Category:       string(t.Category),
		TrendScore:     t.TrendScore,
		GitHubScore:    t.Breakdown.GitHub,
		YouTubeScore:   t.Breakdown.YouTube,
		GitHubWeight:   t.Breakdown.Weights.GitHub,
		YouTubeWeight:  t.Breakdown.Weights.YouTube,
		GitHubSamples:  t.Metadata.GitHubSampleSize,
		YouTubeSamples: t.Metadata.YouTubeSampleSize,
		UpdatedAt:      t.UpdatedAt,
	}
}

func recordsToTrends(recs []store.ScoreRecord) []SkillTrend {
	trends := make([]SkillTrend, 0, len(recs))
	for _, r := range recs {
		trends = append(trends, SkillTrend{
			ID:         r.SkillID,
			Name:       r.Name,
			Category:   skill.Category(r.Category),
			TrendScore: r.TrendScore,
			Breakdown: Breakdown{
				GitHub:  r.GitHubScore,
				YouTube: r.YouTubeScore,
				Weights: Weights{GitHub: r.GitHubWeight, YouTube: r.YouTubeWeight},
			},
			Metadata: Metadata{
				GitHubSampleSize:  r.GitHubSamples,
				YouTubeSampleSize: r.YouTubeSamples,
			},
			UpdatedAt: r.UpdatedAt,
		})
	}
	return trends
}

package trend

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevinzhu/skillpulse/internal/store"
	"github.com/kevinzhu/skillpulse/pkg/signal"
	"github.com/kevinzhu/skillpulse/pkg/skill"
)

// callLog records the order of side effects across fakes.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeStore struct {
	mu            sync.Mutex
	log           *callLog
	scores        map[string]store.ScoreRecord
	history       map[string][]int
	freshOverride []store.ScoreRecord
	failUpsert    bool
}

func newFakeStore(log *callLog) *fakeStore {
	return &fakeStore{
		log:     log,
		scores:  make(map[string]store.ScoreRecord),
		history: make(map[string][]int),
	}
}

func (f *fakeStore) UpsertScore(_ context.Context, rec *store.ScoreRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("upsert:" + rec.SkillID)
	if f.failUpsert {
		return fmt.Errorf("disk full")
	}
	f.scores[rec.SkillID] = *rec
	return nil
}

func (f *fakeStore) ListScores(context.Context) ([]store.ScoreRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.ScoreRecord
	for _, r := range f.scores {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) FreshScores(context.Context, time.Time) ([]store.ScoreRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("fresh")
	return f.freshOverride, nil
}

func (f *fakeStore) TouchScores(_ context.Context, ids []string, _ time.Time) error {
	f.log.add("touch")
	return nil
}

func (f *fakeStore) GetHistory(_ context.Context, skillID string) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[skillID], nil
}

func (f *fakeStore) UpsertHistory(_ context.Context, skillID string, scores []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("history:" + skillID)
	f.history[skillID] = scores
	return nil
}

func (f *fakeStore) UpsertArticles(context.Context, []store.Article) error { return nil }
func (f *fakeStore) ListArticles(context.Context, store.ArticleListOpts) ([]store.Article, error) {
	return nil, nil
}
func (f *fakeStore) Close() error { return nil }

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string][]byte)} }

func (f *fakeCache) Get(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.data[key]
	return b, ok
}

func (f *fakeCache) Set(key string, value []byte, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
}

func (f *fakeCache) Delete(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
}

func (f *fakeCache) Close() error { return nil }

type fakeGitHub struct {
	log     *callLog
	metrics map[string]signal.GitHubMetrics
	err     error
}

func (f *fakeGitHub) Fetch(_ context.Context, defs []skill.Definition, _ signal.DateRange) (map[string]signal.GitHubMetrics, error) {
	f.log.add("fetch:github")
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]signal.GitHubMetrics, len(defs))
	for _, d := range defs {
		out[d.ID] = f.metrics[d.ID]
	}
	return out, nil
}

type fakeYouTube struct {
	log     *callLog
	metrics map[string]signal.YouTubeMetrics
	err     error
}

func (f *fakeYouTube) Fetch(_ context.Context, defs []skill.Definition) (map[string]signal.YouTubeMetrics, error) {
	f.log.add("fetch:youtube")
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]signal.YouTubeMetrics, len(defs))
	for _, d := range defs {
		out[d.ID] = f.metrics[d.ID]
	}
	return out, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	spikes []Spike
}

func (f *fakeNotifier) NotifySpikes(_ context.Context, spikes []Spike) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spikes = append(f.spikes, spikes...)
}

func wideCatalog(t *testing.T, n int) *skill.Catalog {
	t.Helper()
	defs := make([]skill.Definition, 0, n)
	cats := skill.AllCategories()
	for i := 0; i < n; i++ {
		defs = append(defs, skill.Definition{
			ID:          fmt.Sprintf("s%02d", i),
			DisplayName: fmt.Sprintf("Skill %02d", i),
			Category:    cats[i%len(cats)],
		})
	}
	c, err := skill.NewCatalog(defs)
	require.NoError(t, err)
	return c
}

type engineFixture struct {
	engine   *Engine
	store    *fakeStore
	cache    *fakeCache
	github   *fakeGitHub
	youtube  *fakeYouTube
	notifier *fakeNotifier
	log      *callLog
}

func newFixture(t *testing.T, catalog *skill.Catalog, cfg Config) *engineFixture {
	t.Helper()

	log := &callLog{}
	st := newFakeStore(log)
	fc := newFakeCache()
	gh := &fakeGitHub{log: log, metrics: map[string]signal.GitHubMetrics{}}
	yt := &fakeYouTube{log: log, metrics: map[string]signal.YouTubeMetrics{}}
	notifier := &fakeNotifier{}

	for _, d := range catalog.All() {
		gh.metrics[d.ID] = signal.GitHubMetrics{RepoCount: 10, AvgStars: 5, TotalForks: 3, SampleSize: 30}
		yt.metrics[d.ID] = signal.YouTubeMetrics{VideoCount: 5, TotalViews: 2000, AvgEngagement: 0.02, SampleSize: 5}
	}

	eng := NewEngine(st, fc, gh, yt, catalog, notifier, cfg, zap.NewNop())
	return &engineFixture{engine: eng, store: st, cache: fc, github: gh, youtube: yt, notifier: notifier, log: log}
}

func TestScoresFastTierHit(t *testing.T) {
	catalog := wideCatalog(t, 3)
	fx := newFixture(t, catalog, Config{})

	cached := []SkillTrend{{ID: "s00", Name: "Skill 00", TrendScore: 77}}
	b, err := json.Marshal(cached)
	require.NoError(t, err)
	fx.cache.Set(scoresCacheKey, b, time.Hour)

	got, err := fx.engine.Scores(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cached, got)
	assert.Empty(t, fx.log.snapshot(), "fast hit must not reach store or fetchers")
}

func TestScoresDurableFreshSkipsFetch(t *testing.T) {
	catalog := wideCatalog(t, 15)
	fx := newFixture(t, catalog, Config{})

	now := time.Now().UTC()
	for i, d := range catalog.All() {
		fx.store.scores[d.ID] = store.ScoreRecord{
			SkillID: d.ID, Name: d.DisplayName, Category: string(d.Category),
			TrendScore: 90 - i, UpdatedAt: now,
		}
	}
	// 13 of 15 fresh: 0.867 > 0.80, durable tier serves.
	all, err := fx.store.ListScores(context.Background())
	require.NoError(t, err)
	fx.store.freshOverride = all[:13]

	got, err := fx.engine.Scores(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 15, "durable path returns the whole persisted set")

	for _, call := range fx.log.snapshot() {
		assert.NotContains(t, call, "fetch", "durable-fresh path must not fetch")
	}

	_, ok := fx.cache.Get(scoresCacheKey)
	assert.True(t, ok, "durable hit populates the fast tier")
}

func TestScoresExactBoundaryRefreshes(t *testing.T) {
	catalog := wideCatalog(t, 15)
	fx := newFixture(t, catalog, Config{})

	now := time.Now().UTC()
	for _, d := range catalog.All() {
		fx.store.scores[d.ID] = store.ScoreRecord{SkillID: d.ID, UpdatedAt: now}
	}
	all, err := fx.store.ListScores(context.Background())
	require.NoError(t, err)
	// Exactly 12 of 15 fresh = 0.80: not strictly above the ratio, so
	// the whole set refreshes.
	fx.store.freshOverride = all[:12]

	_, err = fx.engine.Scores(context.Background())
	require.NoError(t, err)

	calls := fx.log.snapshot()
	assert.Contains(t, calls, "fetch:github")
	assert.Contains(t, calls, "fetch:youtube")
}

func TestRefreshTouchesBeforeFetching(t *testing.T) {
	catalog := wideCatalog(t, 4)
	fx := newFixture(t, catalog, Config{})

	_, err := fx.engine.Refresh(context.Background())
	require.NoError(t, err)

	calls := fx.log.snapshot()
	touchIdx, fetchIdx := -1, -1
	for i, c := range calls {
		if c == "touch" && touchIdx < 0 {
			touchIdx = i
		}
		if (c == "fetch:github" || c == "fetch:youtube") && fetchIdx < 0 {
			fetchIdx = i
		}
	}
	require.GreaterOrEqual(t, touchIdx, 0)
	require.GreaterOrEqual(t, fetchIdx, 0)
	assert.Less(t, touchIdx, fetchIdx, "timestamps must be touched before any slow fetch")
}

func TestRefreshSortsDescending(t *testing.T) {
	catalog := wideCatalog(t, 6)
	fx := newFixture(t, catalog, Config{})

	// Give one skill per category a stronger signal so scores differ.
	for i, d := range catalog.All() {
		fx.github.metrics[d.ID] = signal.GitHubMetrics{RepoCount: 5 * (i + 1), AvgStars: 10, SampleSize: 30}
		fx.youtube.metrics[d.ID] = signal.YouTubeMetrics{VideoCount: i + 1, TotalViews: 1000, SampleSize: 5}
	}

	trends, err := fx.engine.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, trends, 6)

	for i := 1; i < len(trends); i++ {
		assert.GreaterOrEqual(t, trends[i-1].TrendScore, trends[i].TrendScore)
	}
}

func TestRefreshPersistsScoresAndHistory(t *testing.T) {
	catalog := wideCatalog(t, 3)
	fx := newFixture(t, catalog, Config{HistoryWindow: 6})

	for i := 0; i < 8; i++ {
		_, err := fx.engine.Refresh(context.Background())
		require.NoError(t, err)
	}

	fx.store.mu.Lock()
	defer fx.store.mu.Unlock()
	require.Len(t, fx.store.scores, 3)
	for id, scores := range fx.store.history {
		assert.Len(t, scores, 6, "history for %s capped at window", id)
	}
}

func TestRefreshScoreUpsertPrecedesHistoryAppend(t *testing.T) {
	catalog := wideCatalog(t, 2)
	fx := newFixture(t, catalog, Config{})

	_, err := fx.engine.Refresh(context.Background())
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, c := range fx.log.snapshot() {
		if id, ok := cutPrefix(c, "upsert:"); ok {
			seen[id] = true
		}
		if id, ok := cutPrefix(c, "history:"); ok {
			assert.True(t, seen[id], "history append for %s must follow its score upsert", id)
		}
	}
}

func TestRefreshPersistenceFailureStillReturnsScores(t *testing.T) {
	catalog := wideCatalog(t, 3)
	fx := newFixture(t, catalog, Config{})
	fx.store.failUpsert = true

	trends, err := fx.engine.Refresh(context.Background())
	require.NoError(t, err, "durability is traded for availability")
	assert.Len(t, trends, 3)

	fx.store.mu.Lock()
	defer fx.store.mu.Unlock()
	assert.Empty(t, fx.store.history, "no history without a persisted score")
}

func TestRefreshSourceOutageSurfaces(t *testing.T) {
	catalog := wideCatalog(t, 2)
	fx := newFixture(t, catalog, Config{})
	fx.github.err = fmt.Errorf("no credentials: %w", signal.ErrSourceUnavailable)

	_, err := fx.engine.Refresh(context.Background())
	require.ErrorIs(t, err, signal.ErrSourceUnavailable)
}

func TestRefreshNotifiesSpikes(t *testing.T) {
	catalog := wideCatalog(t, 2)
	fx := newFixture(t, catalog, Config{SpikeThreshold: 10})

	// Previous scores well below what the fixture metrics produce.
	for _, d := range catalog.All() {
		fx.store.scores[d.ID] = store.ScoreRecord{SkillID: d.ID, TrendScore: 1}
	}

	_, err := fx.engine.Refresh(context.Background())
	require.NoError(t, err)

	fx.notifier.mu.Lock()
	defer fx.notifier.mu.Unlock()
	require.NotEmpty(t, fx.notifier.spikes)
	for _, s := range fx.notifier.spikes {
		assert.GreaterOrEqual(t, s.Delta, 10)
		assert.Equal(t, 1, s.Previous)
	}
}

func TestHistoryUnknownSkill(t *testing.T) {
	catalog := wideCatalog(t, 2)
	fx := newFixture(t, catalog, Config{})

	_, err := fx.engine.History(context.Background(), "nope", 6)
	var unknown *skill.ErrUnknownSkill
	require.ErrorAs(t, err, &unknown)
}

func TestHistoryReturnsTail(t *testing.T) {
	catalog := wideCatalog(t, 2)
	fx := newFixture(t, catalog, Config{})
	fx.store.history["s00"] = []int{1, 2, 3, 4, 5, 6, 7, 8}

	scores, err := fx.engine.History(context.Background(), "s00", 6)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 5, 6, 7, 8}, scores)
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return "", false
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/kevinzhu/skillpulse/internal/config"
	"github.com/kevinzhu/skillpulse/internal/logging"
	"github.com/kevinzhu/skillpulse/internal/scheduler"
	"github.com/kevinzhu/skillpulse/internal/store"
	"github.com/kevinzhu/skillpulse/pkg/alert"
	"github.com/kevinzhu/skillpulse/pkg/cache"
	"github.com/kevinzhu/skillpulse/pkg/feed"
	"github.com/kevinzhu/skillpulse/pkg/server"
	sig "github.com/kevinzhu/skillpulse/pkg/signal"
	"github.com/kevinzhu/skillpulse/pkg/skill"
	"github.com/kevinzhu/skillpulse/pkg/trend"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// app bundles everything a command needs, so commands share one wiring path.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	db        store.Store
	fast      cache.Cache
	catalog   *skill.Catalog
	engine    *trend.Engine
	collector *feed.Collector
}

func buildApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	fast := cache.NewMemory(cfg.Cache.ParseTTL())

	engine := trend.NewEngine(
		db,
		fast,
		sig.NewGitHub(cfg.Sources.GitHub.Token, log.Named("github")),
		sig.NewYouTube(cfg.Sources.YouTube.APIKey, log.Named("youtube")),
		catalog,
		buildNotifier(cfg, log),
		trend.Config{
			FreshnessWindow: cfg.Cache.ParseFreshnessWindow(),
			MinFreshRatio:   cfg.Cache.MinFreshRatio,
			CacheTTL:        cfg.Cache.ParseTTL(),
			HistoryWindow:   cfg.History.Window,
			SpikeThreshold:  cfg.Alerts.SpikeThreshold,
		},
		log.Named("engine"),
	)

	var collector *feed.Collector
	if cfg.Feeds.Enabled && len(cfg.Feeds.Feeds) > 0 {
		collector = feed.NewCollector(cfg.Feeds.Feeds, catalog, cfg.Feeds.ParseMaxAge(), log.Named("feed"))
	}

	return &app{
		cfg:       cfg,
		log:       log,
		db:        db,
		fast:      fast,
		catalog:   catalog,
		engine:    engine,
		collector: collector,
	}, nil
}

func (a *app) close() {
	a.fast.Close()
	a.db.Close()
	a.log.Sync()
}

func buildNotifier(cfg *config.Config, log *zap.Logger) trend.Notifier {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	if len(notifiers) == 0 {
		return nil
	}
	return alert.NewManager(notifiers, log.Named("alert"))
}

func runServe(port int) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := server.New(a.engine, a.db, a.catalog, a.collector, a.log.Named("http"), port)
	return srv.ListenAndServe(ctx)
}

func runRefresh(jsonOutput bool) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	trends, err := a.engine.Refresh(context.Background())
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(trends)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tCATEGORY\tSKILL\tGITHUB\tYOUTUBE\tWEIGHTS")
	for _, t := range trends {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.1f\t%.1f\t%.2f/%.2f\n",
			t.TrendScore, t.Category, t.Name,
			t.Breakdown.GitHub, t.Breakdown.YouTube,
			t.Breakdown.Weights.GitHub, t.Breakdown.Weights.YouTube)
	}
	return w.Flush()
}

func runSeed() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	a.log.Info("seeding scores and history",
		zap.Int("skills", a.catalog.Len()),
		zap.Int("history_window", a.cfg.History.Window))

	if _, err := a.engine.Refresh(context.Background()); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	if a.collector != nil {
		ctx := context.Background()
		articles, err := a.collector.Collect(ctx)
		if err != nil {
			a.log.Warn("article collection failed", zap.Error(err))
		} else if err := a.db.UpsertArticles(ctx, articles); err != nil {
			a.log.Warn("persist articles failed", zap.Error(err))
		}
	}

	return nil
}

func runDaemon(port int) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(a.engine, a.collector, a.db,
		a.cfg.Schedule.ParseRefreshInterval(),
		a.cfg.Schedule.ParseCollectInterval(),
		a.log.Named("scheduler"))

	if sched.Enabled() {
		go func() {
			if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
				a.log.Error("scheduler error", zap.Error(err))
			}
		}()
	}

	srv := server.New(a.engine, a.db, a.catalog, a.collector, a.log.Named("http"), port)
	return srv.ListenAndServe(ctx)
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kevinzhu/skillpulse/internal/store"
	"github.com/kevinzhu/skillpulse/pkg/feed"
	"github.com/kevinzhu/skillpulse/pkg/signal"
	"github.com/kevinzhu/skillpulse/pkg/skill"
	"github.com/kevinzhu/skillpulse/pkg/trend"
)

// Server provides the HTTP API.
type Server struct {
	engine    *trend.Engine
	store     store.Store
	catalog   *skill.Catalog
	collector *feed.Collector // nil when feeds are disabled
	log       *zap.Logger
	port      int
}

// New creates a new HTTP server.
func New(engine *trend.Engine, st store.Store, catalog *skill.Catalog, collector *feed.Collector, log *zap.Logger, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		engine:    engine,
		store:     st,
		catalog:   catalog,
		collector: collector,
		log:       log,
		port:      port,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/trends", s.handleTrends)
		r.Get("/trends/{skill}/history", s.handleHistory)
		r.Get("/skills", s.handleSkills)
		r.Get("/articles", s.handleArticles)
		r.Post("/collect", s.handleCollect)
	})

	return r
}

// ListenAndServe starts the HTTP server and blocks until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTrends is the public "get trend scores" operation: idempotent,
// parameterless, always the full tracked set sorted descending.
func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	trends, err := s.engine.Scores(r.Context())
	if err != nil {
		if errors.Is(err, signal.ErrSourceUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "data source unavailable: "+err.Error())
			return
		}
		s.log.Error("trend scores failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  trends,
		"count": len(trends),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	skillID := chi.URLParam(r, "skill")

	window := trend.DefaultHistoryWindow
	if v := r.URL.Query().Get("window"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			window = n
		}
	}

	scores, err := s.engine.History(r.Context(), skillID, window)
	if err != nil {
		var unknown *skill.ErrUnknownSkill
		if errors.As(err, &unknown) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.log.Error("history read failed", zap.String("skill", skillID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"skill": skillID,
		"data":  trend.WithSyntheticLeadIn(scores),
	})
}

func (s *Server) handleSkills(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  s.catalog.All(),
		"count": s.catalog.Len(),
	})
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	opts := store.ArticleListOpts{Limit: 100}
	if v := r.URL.Query().Get("skill"); v != "" {
		if _, err := s.catalog.Lookup(v); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		opts.SkillID = v
	}
	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			opts.Since = t
		}
	}

	articles, err := s.store.ListArticles(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  articles,
		"count": len(articles),
	})
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		writeError(w, http.StatusNotImplemented, "feed collection disabled")
		return
	}

	articles, err := s.collector.Collect(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.store.UpsertArticles(r.Context(), articles); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"collected": len(articles)})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

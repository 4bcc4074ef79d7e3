package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound reports a missing record.
var ErrNotFound = errors.New("record not found")

// ScoreRecord is the persisted trend score for one skill, upserted on
// every refresh. trend_score is stored as an integer so reads return
// exactly what was written.
type ScoreRecord struct {
	SkillID        string    `db:"skill_id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Category       string    `db:"category" json:"category"`
	TrendScore     int       `db:"trend_score" json:"trendScore"`
	GitHubScore    float64   `db:"github_score" json:"githubScore"`
	YouTubeScore   float64   `db:"youtube_score" json:"youtubeScore"`
	GitHubWeight   float64   `db:"github_weight" json:"githubWeight"`
	YouTubeWeight  float64   `db:"youtube_weight" json:"youtubeWeight"`
	GitHubSamples  int       `db:"github_samples" json:"githubSampleSize"`
	YouTubeSamples int       `db:"youtube_samples" json:"youtubeSampleSize"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// Article is a collected learning article for one skill.
type Article struct {
	ID          string    `db:"id" json:"id"`
	SkillID     string    `db:"skill_id" json:"skillId"`
	Title       string    `db:"title" json:"title"`
	URL         string    `db:"url" json:"url"`
	FeedName    string    `db:"feed_name" json:"feedName"`
	Summary     string    `db:"summary" json:"summary"`
	PublishedAt time.Time `db:"published_at" json:"publishedAt"`
	CollectedAt time.Time `db:"collected_at" json:"collectedAt"`
}

// ArticleListOpts controls article listing.
type ArticleListOpts struct {
	SkillID string
	Since   time.Time
	Limit   int
}

// Store is the persistence interface.
type Store interface {
	UpsertScore(ctx context.Context, rec *ScoreRecord) error
	ListScores(ctx context.Context) ([]ScoreRecord, error)
	FreshScores(ctx context.Context, since time.Time) ([]ScoreRecord, error)
	TouchScores(ctx context.Context, skillIDs []string, now time.Time) error

	GetHistory(ctx context.Context, skillID string) ([]int, error)
	UpsertHistory(ctx context.Context, skillID string, scores []int) error

	UpsertArticles(ctx context.Context, articles []Article) error
	ListArticles(ctx context.Context, opts ArticleListOpts) ([]Article, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertScore(ctx context.Context, rec *ScoreRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trend_scores (skill_id, name, category, trend_score, github_score, youtube_score, github_weight, youtube_weight, github_samples, youtube_samples, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(skill_id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			trend_score = excluded.trend_score,
			github_score = excluded.github_score,
			youtube_score = excluded.youtube_score,
			github_weight = excluded.github_weight,
			youtube_weight = excluded.youtube_weight,
			github_samples = excluded.github_samples,
			youtube_samples = excluded.youtube_samples,
			updated_at = excluded.updated_at
	`, rec.SkillID, rec.Name, rec.Category, rec.TrendScore,
		rec.GitHubScore, rec.YouTubeScore, rec.GitHubWeight, rec.YouTubeWeight,
		rec.GitHubSamples, rec.YouTubeSamples, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert score %s: %w", rec.SkillID, err)
	}
	return nil
}

func (s *SQLiteStore) ListScores(ctx context.Context) ([]ScoreRecord, error) {
	var recs []ScoreRecord
	err := s.db.SelectContext(ctx, &recs,
		"SELECT * FROM trend_scores ORDER BY trend_score DESC, skill_id")
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	return recs, nil
}

// FreshScores returns records updated at or after since. It is the
// authoritative freshness check behind the durable cache tier.
func (s *SQLiteStore) FreshScores(ctx context.Context, since time.Time) ([]ScoreRecord, error) {
	var recs []ScoreRecord
	err := s.db.SelectContext(ctx, &recs,
		"SELECT * FROM trend_scores WHERE updated_at >= ? ORDER BY trend_score DESC, skill_id",
		since)
	if err != nil {
		return nil, fmt.Errorf("fresh scores: %w", err)
	}
	return recs, nil
}

// TouchScores bumps updated_at without recomputing scores, so concurrent
// refresh deciders observe the records as fresh and skip redundant
// external fetches.
func (s *SQLiteStore) TouchScores(ctx context.Context, skillIDs []string, now time.Time) error {
	if len(skillIDs) == 0 {
		return nil
	}

	query, args, err := sqlx.In(
		"UPDATE trend_scores SET updated_at = ? WHERE skill_id IN (?)",
		now, skillIDs)
	if err != nil {
		return fmt.Errorf("touch scores: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("touch scores: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetHistory(ctx context.Context, skillID string) ([]int, error) {
	var scoresJSON string
	err := s.db.GetContext(ctx, &scoresJSON,
		"SELECT scores FROM trend_history WHERE skill_id = ?", skillID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get history %s: %w", skillID, err)
	}

	var scores []int
	if err := json.Unmarshal([]byte(scoresJSON), &scores); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", skillID, err)
	}
	return scores, nil
}

func (s *SQLiteStore) UpsertHistory(ctx context.Context, skillID string, scores []int) error {
	scoresJSON, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("encode history %s: %w", skillID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trend_history (skill_id, scores, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(skill_id) DO UPDATE SET
			scores = excluded.scores,
			updated_at = excluded.updated_at
	`, skillID, string(scoresJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert history %s: %w", skillID, err)
	}
	return nil
}

func (s *SQLiteStore) UpsertArticles(ctx context.Context, articles []Article) error {
	for i := range articles {
		a := &articles[i]
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO articles (id, skill_id, title, url, feed_name, summary, published_at, collected_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				summary = excluded.summary,
				collected_at = excluded.collected_at
		`, a.ID, a.SkillID, a.Title, a.URL, a.FeedName, a.Summary, a.PublishedAt, a.CollectedAt)
		if err != nil {
			return fmt.Errorf("upsert article %s: %w", a.ID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListArticles(ctx context.Context, opts ArticleListOpts) ([]Article, error) {
	query := "SELECT * FROM articles WHERE 1=1"
	var args []any

	if opts.SkillID != "" {
		query += " AND skill_id = ?"
		args = append(args, opts.SkillID)
	}
	if !opts.Since.IsZero() {
		query += " AND published_at >= ?"
		args = append(args, opts.Since)
	}

	query += " ORDER BY published_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var articles []Article
	if err := s.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return articles, nil
}

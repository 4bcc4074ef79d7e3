package store

const schema = `
CREATE TABLE IF NOT EXISTS trend_scores (
    skill_id        TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    category        TEXT NOT NULL,
    trend_score     INTEGER NOT NULL DEFAULT 0,
    github_score    REAL NOT NULL DEFAULT 0,
    youtube_score   REAL NOT NULL DEFAULT 0,
    github_weight   REAL NOT NULL DEFAULT 0.5,
    youtube_weight  REAL NOT NULL DEFAULT 0.5,
    github_samples  INTEGER NOT NULL DEFAULT 0,
    youtube_samples INTEGER NOT NULL DEFAULT 0,
    updated_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scores_updated ON trend_scores(updated_at);
CREATE INDEX IF NOT EXISTS idx_scores_category ON trend_scores(category);

CREATE TABLE IF NOT EXISTS trend_history (
    skill_id   TEXT PRIMARY KEY,
    scores     TEXT NOT NULL DEFAULT '[]',
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS articles (
    id           TEXT PRIMARY KEY,
    skill_id     TEXT NOT NULL,
    title        TEXT NOT NULL,
    url          TEXT NOT NULL DEFAULT '',
    feed_name    TEXT NOT NULL DEFAULT '',
    summary      TEXT NOT NULL DEFAULT '',
    published_at DATETIME NOT NULL,
    collected_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_articles_skill ON articles(skill_id);
CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at);
`

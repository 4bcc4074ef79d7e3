package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kevinzhu/skillpulse/internal/metrics"
	"github.com/kevinzhu/skillpulse/pkg/skill"
)

const (
	githubGraphQLURL = "https://api.github.com/graphql"

	// githubBatchSize keeps each aggregated query under GitHub's
	// query-complexity limit.
	githubBatchSize = 5

	// githubSampleCap bounds the star/fork sample per skill.
	githubSampleCap = 50
)

// GitHub fetches repository-creation activity through the GraphQL search
// API, batching several skills into one aliased query per request.
type GitHub struct {
	client   *http.Client
	endpoint string
	token    string
	log      *zap.Logger
}

// NewGitHub creates a GitHub signal fetcher.
func NewGitHub(token string, log *zap.Logger) *GitHub {
	return &GitHub{
		client:   &http.Client{Timeout: 30 * time.Second},
		endpoint: githubGraphQLURL,
		token:    token,
		log:      log,
	}
}

// Fetch returns metrics for every given skill. A failed batch degrades all
// skills in that batch to zero metrics instead of failing the refresh. A
// missing token is a source-level outage: an all-zero result would be
// indistinguishable from genuine low signal.
func (g *GitHub) Fetch(ctx context.Context, skills []skill.Definition, window DateRange) (map[string]GitHubMetrics, error) {
	if g.token == "" {
		return nil, fmt.Errorf("github: token required (set GITHUB_TOKEN): %w", ErrSourceUnavailable)
	}
	out := make(map[string]GitHubMetrics, len(skills))
	for _, s := range skills {
		out[s.ID] = GitHubMetrics{}
	}

	for start := 0; start < len(skills); start += githubBatchSize {
		end := start + githubBatchSize
		if end > len(skills) {
			end = len(skills)
		}
		batch := skills[start:end]

		results, err := g.fetchBatch(ctx, batch, window)
		if err != nil {
			g.log.Warn("github batch degraded to zero metrics",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			metrics.SignalFetchFailure("github")
			continue
		}
		for id, m := range results {
			out[id] = m
		}
	}

	return out, nil
}

func (g *GitHub) fetchBatch(ctx context.Context, batch []skill.Definition, window DateRange) (map[string]GitHubMetrics, error) {
	timer := metrics.SignalFetchTimer("github")
	defer timer.ObserveDuration()

	query := buildBatchQuery(batch, window)

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("marshal graphql query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create github request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch github search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github API status %d", resp.StatusCode)
	}

	var result ghGraphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode github response: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("github graphql: %s", result.Errors[0].Message)
	}

	out := make(map[string]GitHubMetrics, len(batch))
	for i, s := range batch {
		search, ok := result.Data[fmt.Sprintf("s%d", i)]
		if !ok {
			out[s.ID] = GitHubMetrics{}
			continue
		}

		var totalStars, totalForks int
		for _, n := range search.Nodes {
			totalStars += n.StargazerCount
			totalForks += n.ForkCount
		}

		m := GitHubMetrics{
			RepoCount:  search.RepositoryCount,
			TotalStars: totalStars,
			TotalForks: totalForks,
			SampleSize: len(search.Nodes),
		}
		if m.SampleSize > 0 {
			m.AvgStars = float64(totalStars) / float64(m.SampleSize)
		}
		out[s.ID] = m
	}

	return out, nil
}

// buildBatchQuery aliases one search sub-query per skill so a whole batch
// costs a single request.
func buildBatchQuery(batch []skill.Definition, window DateRange) string {
	var b strings.Builder
	b.WriteString("query {")
	for i, s := range batch {
		q := fmt.Sprintf("%s created:%s..%s",
			s.GitHubQuery,
			window.From.Format("2006-01-02"),
			window.To.Format("2006-01-02"))
		fmt.Fprintf(&b, `
  s%d: search(query: %q, type: REPOSITORY, first: %d) {
    repositoryCount
    nodes { ... on Repository { stargazerCount forkCount } }
  }`, i, q, githubSampleCap)
	}
	b.WriteString("\n}")
	return b.String()
}

type ghGraphQLResponse struct {
	Data   map[string]ghSearch `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type ghSearch struct {
	RepositoryCount int `json:"repositoryCount"`
	Nodes           []struct {
		StargazerCount int `json:"stargazerCount"`
		ForkCount      int `json:"forkCount"`
	} `json:"nodes"`
}

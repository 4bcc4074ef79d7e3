package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kevinzhu/skillpulse/internal/metrics"
	"github.com/kevinzhu/skillpulse/pkg/skill"
)

const (
	youtubeSearchURL = "https://www.googleapis.com/youtube/v3/search"
	youtubeVideosURL = "https://www.googleapis.com/youtube/v3/videos"

	// youtubeSampleCap bounds results per skill query.
	youtubeSampleCap = 50

	// youtubeWindowDays is the trailing publish window for searches.
	youtubeWindowDays = 30

	// youtubeConcurrency bounds simultaneous per-skill fetches.
	youtubeConcurrency = 4
)

// YouTube fetches video counts, views and engagement per skill. Each skill
// is fetched independently; one skill failing never aborts its siblings.
type YouTube struct {
	client    *http.Client
	searchURL string
	videosURL string
	apiKey    string
	log       *zap.Logger
}

// NewYouTube creates a YouTube signal fetcher.
func NewYouTube(apiKey string, log *zap.Logger) *YouTube {
	return &YouTube{
		client:    &http.Client{Timeout: 30 * time.Second},
		searchURL: youtubeSearchURL,
		videosURL: youtubeVideosURL,
		apiKey:    apiKey,
		log:       log,
	}
}

// Fetch returns metrics for every given skill, fetching skills concurrently.
// A failed skill degrades to zero metrics; a missing API key is a
// source-level outage and fails the fetch outright.
func (y *YouTube) Fetch(ctx context.Context, skills []skill.Definition) (map[string]YouTubeMetrics, error) {
	if y.apiKey == "" {
		return nil, fmt.Errorf("youtube: API key required (set YOUTUBE_API_KEY): %w", ErrSourceUnavailable)
	}
	out := make(map[string]YouTubeMetrics, len(skills))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(youtubeConcurrency)

	for _, s := range skills {
		s := s
		g.Go(func() error {
			m, err := y.fetchSkill(gctx, s)
			if err != nil {
				y.log.Warn("youtube skill degraded to zero metrics",
					zap.String("skill", s.ID),
					zap.Error(err))
				metrics.SignalFetchFailure("youtube")
				m = YouTubeMetrics{}
			}
			mu.Lock()
			out[s.ID] = m
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (y *YouTube) fetchSkill(ctx context.Context, s skill.Definition) (YouTubeMetrics, error) {
	timer := metrics.SignalFetchTimer("youtube")
	defer timer.ObserveDuration()

	ids, err := y.search(ctx, s.YouTubeQuery)
	if err != nil {
		return YouTubeMetrics{}, err
	}
	if len(ids) == 0 {
		return YouTubeMetrics{}, nil
	}

	stats, err := y.statistics(ctx, ids)
	if err != nil {
		return YouTubeMetrics{}, err
	}

	m := YouTubeMetrics{VideoCount: len(ids)}
	var engagementSum float64
	var engaged int
	for _, st := range stats {
		m.TotalViews += st.ViewCount
		if st.ViewCount > 0 {
			engagementSum += float64(st.LikeCount) / float64(st.ViewCount)
			engaged++
		}
	}
	m.SampleSize = len(stats)
	if engaged > 0 {
		m.AvgEngagement = engagementSum / float64(engaged)
	}
	return m, nil
}

func (y *YouTube) search(ctx context.Context, query string) ([]string, error) {
	publishedAfter := time.Now().AddDate(0, 0, -youtubeWindowDays).Format(time.RFC3339)

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("order", "viewCount")
	params.Set("publishedAfter", publishedAfter)
	params.Set("maxResults", fmt.Sprintf("%d", youtubeSampleCap))
	params.Set("key", y.apiKey)

	var result ytSearchResult
	if err := y.getJSON(ctx, y.searchURL+"?"+params.Encode(), &result); err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}

	var ids []string
	for _, item := range result.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	return ids, nil
}

func (y *YouTube) statistics(ctx context.Context, ids []string) ([]ytStatistics, error) {
	var stats []ytStatistics

	// The videos endpoint accepts at most 50 IDs per request.
	for start := 0; start < len(ids); start += 50 {
		end := start + 50
		if end > len(ids) {
			end = len(ids)
		}

		params := url.Values{}
		params.Set("part", "statistics")
		params.Set("id", strings.Join(ids[start:end], ","))
		params.Set("key", y.apiKey)

		var result ytVideoResult
		if err := y.getJSON(ctx, y.videosURL+"?"+params.Encode(), &result); err != nil {
			return nil, fmt.Errorf("youtube statistics: %w", err)
		}
		for _, v := range result.Items {
			stats = append(stats, v.Statistics)
		}
	}
	return stats, nil
}

func (y *YouTube) getJSON(ctx context.Context, reqURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

type ytSearchResult struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type ytStatistics struct {
	ViewCount int64 `json:"viewCount,string"`
	LikeCount int64 `json:"likeCount,string"`
}

type ytVideoResult struct {
	Items []struct {
		ID         string       `json:"id"`
		Statistics ytStatistics `json:"statistics"`
	} `json:"items"`
}

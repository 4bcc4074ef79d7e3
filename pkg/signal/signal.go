package signal

import (
	"context"
	"errors"
	"time"

	"github.com/kevinzhu/skillpulse/pkg/skill"
)

// ErrSourceUnavailable reports a total outage of a signal source, e.g.
// missing credentials. Distinct from a per-skill fetch failure, which
// degrades to zero metrics: an all-zero result set computed during an
// outage would be indistinguishable from genuine low signal.
var ErrSourceUnavailable = errors.New("signal source unavailable")

// DateRange bounds the activity window a fetch covers.
type DateRange struct {
	From time.Time
	To   time.Time
}

// TrailingDays returns a range covering the last n days ending now.
func TrailingDays(n int) DateRange {
	now := time.Now().UTC()
	return DateRange{From: now.AddDate(0, 0, -n), To: now}
}

// GitHubMetrics is the sampled repository activity for one skill in one
// refresh. Counts above the sample cap are a volume signal, not a census.
type GitHubMetrics struct {
	RepoCount  int     `json:"repoCount"`
	TotalStars int     `json:"totalStars"`
	TotalForks int     `json:"totalForks"`
	AvgStars   float64 `json:"avgStars"`
	SampleSize int     `json:"sampleSize"`
}

// YouTubeMetrics is the sampled video activity for one skill in one refresh.
type YouTubeMetrics struct {
	VideoCount    int     `json:"videoCount"`
	TotalViews    int64   `json:"totalViews"`
	AvgEngagement float64 `json:"avgEngagement"`
	SampleSize    int     `json:"sampleSize"`
}

// GitHubFetcher returns repository metrics for a set of skills.
type GitHubFetcher interface {
	Fetch(ctx context.Context, skills []skill.Definition, window DateRange) (map[string]GitHubMetrics, error)
}

// YouTubeFetcher returns video metrics for a set of skills.
type YouTubeFetcher interface {
	Fetch(ctx context.Context, skills []skill.Definition) (map[string]YouTubeMetrics, error)
}

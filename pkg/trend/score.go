package trend

import (
	"fmt"
	"math"
	"time"

	"github.com/kevinzhu/skillpulse/pkg/signal"
	"github.com/kevinzhu/skillpulse/pkg/skill"
)

// Weight pairs chosen by signal strength. YouTube is trusted more by
// default as a higher-frequency proxy for learner interest.
const (
	githubStrongSamples  = 5
	youtubeStrongSamples = 3
)

// Weights is the github/youtube split applied to normalized components.
// The two always sum to 1.0.
type Weights struct {
	GitHub  float64 `json:"github"`
	YouTube float64 `json:"youtube"`
}

// Breakdown carries the normalized per-source components behind a score.
type Breakdown struct {
	GitHub  float64 `json:"github"`
	YouTube float64 `json:"youtube"`
	Weights Weights `json:"weights"`
}

// Metadata carries the sample sizes a score was computed from.
type Metadata struct {
	GitHubSampleSize  int `json:"githubSampleSize"`
	YouTubeSampleSize int `json:"youtubeSampleSize"`
}

// SkillTrend is one skill's computed trend result.
type SkillTrend struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Category   skill.Category `json:"category"`
	TrendScore int            `json:"trendScore"`
	Breakdown  Breakdown      `json:"breakdown"`
	Metadata   Metadata       `json:"metadata"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// RawGitHubScore converts sampled repository metrics into a raw score.
func RawGitHubScore(m signal.GitHubMetrics) float64 {
	return nanToZero(float64(m.RepoCount)*2.0 + m.AvgStars*0.5 + float64(m.TotalForks)*0.1)
}

// RawYouTubeScore converts sampled video metrics into a raw score.
func RawYouTubeScore(m signal.YouTubeMetrics) float64 {
	return nanToZero(float64(m.VideoCount)*10 + float64(m.TotalViews)/1000 + m.AvgEngagement*500)
}

// NormalizeToPeers maps a raw score to a percentage of its category
// leader. Anchored at zero: no signal scores 0, never negative or
// inflated. An empty peer group defaults to a neutral 50.
func NormalizeToPeers(value float64, peerRaw []float64) float64 {
	if len(peerRaw) == 0 {
		return 50
	}
	peerMax := 0.0
	for _, v := range peerRaw {
		if v > peerMax {
			peerMax = v
		}
	}
	return nanToZero(value / math.Max(peerMax, 1) * 100)
}

// SelectWeights picks the github/youtube weight pair from sample
// strength, not category.
func SelectWeights(githubSamples, youtubeSamples int) Weights {
	githubStrong := githubSamples > githubStrongSamples
	youtubeStrong := youtubeSamples > youtubeStrongSamples

	switch {
	case githubStrong && youtubeStrong:
		return Weights{GitHub: 0.40, YouTube: 0.60}
	case githubStrong:
		return Weights{GitHub: 0.70, YouTube: 0.30}
	case youtubeStrong:
		return Weights{GitHub: 0.20, YouTube: 0.80}
	default:
		return Weights{GitHub: 0.50, YouTube: 0.50}
	}
}

// Calculator turns raw per-skill metrics into normalized, weighted,
// clamped trend scores. Pure: same inputs, same outputs.
type Calculator struct {
	catalog *skill.Catalog
}

// NewCalculator creates a calculator over the tracked catalog.
func NewCalculator(catalog *skill.Catalog) *Calculator {
	return &Calculator{catalog: catalog}
}

// ComputeAll scores every tracked skill. Both metric maps must cover the
// complete catalog: normalization is relative to the whole peer group, so
// a partial set would corrupt the baseline. A skill missing from either
// map fails the whole computation.
func (c *Calculator) ComputeAll(github map[string]signal.GitHubMetrics, youtube map[string]signal.YouTubeMetrics, now time.Time) ([]SkillTrend, error) {
	defs := c.catalog.All()

	for _, d := range defs {
		if _, ok := github[d.ID]; !ok {
			return nil, fmt.Errorf("compute scores: missing github metrics for %q (full tracked set required)", d.ID)
		}
		if _, ok := youtube[d.ID]; !ok {
			return nil, fmt.Errorf("compute scores: missing youtube metrics for %q (full tracked set required)", d.ID)
		}
	}

	rawGH := make(map[string]float64, len(defs))
	rawYT := make(map[string]float64, len(defs))
	for _, d := range defs {
		rawGH[d.ID] = RawGitHubScore(github[d.ID])
		rawYT[d.ID] = RawYouTubeScore(youtube[d.ID])
	}

	out := make([]SkillTrend, 0, len(defs))
	for _, d := range defs {
		t, err := c.Compute(d.ID, github[d.ID], youtube[d.ID], rawGH, rawYT)
		if err != nil {
			return nil, err
		}
		t.UpdatedAt = now
		out = append(out, t)
	}
	return out, nil
}

// Compute scores a single skill against peer-group raw scores. The skill
// must exist in the catalog: an unknown skill is an error, distinct from
// a zero-signal skill which legitimately scores 0.
func (c *Calculator) Compute(id string, gh signal.GitHubMetrics, yt signal.YouTubeMetrics, peerRawGitHub, peerRawYouTube map[string]float64) (SkillTrend, error) {
	def, err := c.catalog.Lookup(id)
	if err != nil {
		return SkillTrend{}, err
	}

	peers := c.catalog.Peers(def.Category)
	peerGH := make([]float64, 0, len(peers))
	peerYT := make([]float64, 0, len(peers))
	for _, p := range peers {
		if v, ok := peerRawGitHub[p.ID]; ok {
			peerGH = append(peerGH, nanToZero(v))
		}
		if v, ok := peerRawYouTube[p.ID]; ok {
			peerYT = append(peerYT, nanToZero(v))
		}
	}

	normGH := NormalizeToPeers(nanToZero(peerRawGitHub[id]), peerGH)
	normYT := NormalizeToPeers(nanToZero(peerRawYouTube[id]), peerYT)
	weights := SelectWeights(gh.SampleSize, yt.SampleSize)

	composite := nanToZero(normGH*weights.GitHub + normYT*weights.YouTube)
	score := int(math.Round(clamp(composite, 0, 100)))

	return SkillTrend{
		ID:         def.ID,
		Name:       def.DisplayName,
		Category:   def.Category,
		TrendScore: score,
		Breakdown: Breakdown{
			GitHub:  normGH,
			YouTube: normYT,
			Weights: weights,
		},
		Metadata: Metadata{
			GitHubSampleSize:  gh.SampleSize,
			YouTubeSampleSize: yt.SampleSize,
		},
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// nanToZero keeps NaN out of persisted records: missing or bad inputs
// count as no signal.
func nanToZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

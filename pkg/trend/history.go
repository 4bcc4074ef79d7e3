package trend

import "math/rand"

// DefaultHistoryWindow bounds persisted history per skill. Sparkline
// views slice a shorter tail on read; see HistoryTail.
const DefaultHistoryWindow = 30

// SparklineWindow is the short tail used by lightweight chart views.
const SparklineWindow = 6

// AppendHistory returns scores with score appended, truncated from the
// front so at most window entries remain (FIFO eviction, oldest first).
func AppendHistory(scores []int, score, window int) []int {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	out := make([]int, 0, len(scores)+1)
	out = append(out, scores...)
	out = append(out, score)
	if len(out) > window {
		out = out[len(out)-window:]
	}
	return out
}

// HistoryTail returns the last n entries of scores.
func HistoryTail(scores []int, n int) []int {
	if n <= 0 || n >= len(scores) {
		return scores
	}
	return scores[len(scores)-n:]
}

// HistoryPoint is one charted history value. Synthetic points are
// generated on read and never persisted.
type HistoryPoint struct {
	Score     int  `json:"score"`
	Synthetic bool `json:"synthetic,omitempty"`
}

// syntheticLeadInPoints is the length of the generated lead-in curve.
const syntheticLeadInPoints = 5

// WithSyntheticLeadIn converts persisted scores to chart points. When only
// one real point exists it prepends a short jittered lead-in so first-day
// charts are not a single dot. Purely cosmetic, computed per read and
// flagged so callers can distinguish it from real history.
func WithSyntheticLeadIn(scores []int) []HistoryPoint {
	points := make([]HistoryPoint, 0, len(scores)+syntheticLeadInPoints)

	if len(scores) == 1 {
		base := float64(scores[0])
		for i := 0; i < syntheticLeadInPoints; i++ {
			// Multiplicative jitter of a few percent around the real score.
			jitter := 1 + (rand.Float64()-0.5)*0.08
			v := int(base * jitter)
			if v < 0 {
				v = 0
			}
			if v > 100 {
				v = 100
			}
			points = append(points, HistoryPoint{Score: v, Synthetic: true})
		}
	}

	for _, s := range scores {
		points = append(points, HistoryPoint{Score: s})
	}
	return points
}

package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevinzhu/skillpulse/pkg/skill"
)

func newTestYouTube(t *testing.T, search, videos http.HandlerFunc) *YouTube {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/search", search)
	mux.HandleFunc("/videos", videos)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	y := NewYouTube("test-key", zap.NewNop())
	y.searchURL = srv.URL + "/search"
	y.videosURL = srv.URL + "/videos"
	return y
}

func searchResponse(ids ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			items = append(items, map[string]any{"id": map[string]string{"videoId": id}})
		}
		json.NewEncoder(w).Encode(map[string]any{"items": items})
	}
}

func statsResponse(stats map[string][2]int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var items []map[string]any
		for id, s := range stats {
			items = append(items, map[string]any{
				"id": id,
				"statistics": map[string]string{
					"viewCount": fmt.Sprintf("%d", s[0]),
					"likeCount": fmt.Sprintf("%d", s[1]),
				},
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"items": items})
	}
}

func TestYouTubeFetchComputesEngagement(t *testing.T) {
	y := newTestYouTube(t,
		searchResponse("v1", "v2"),
		statsResponse(map[string][2]int64{
			"v1": {1000, 100}, // 0.10
			"v2": {2000, 40},  // 0.02
		}),
	)

	defs := []skill.Definition{{ID: "react", DisplayName: "React", Category: skill.CategoryFrontend, YouTubeQuery: "react tutorial"}}
	out, err := y.Fetch(context.Background(), defs)
	require.NoError(t, err)

	m := out["react"]
	assert.Equal(t, 2, m.VideoCount)
	assert.Equal(t, int64(3000), m.TotalViews)
	assert.InDelta(t, 0.06, m.AvgEngagement, 1e-9)
	assert.Equal(t, 2, m.SampleSize)
}

func TestYouTubeZeroViewVideosExcludedFromEngagement(t *testing.T) {
	y := newTestYouTube(t,
		searchResponse("v1", "v2"),
		statsResponse(map[string][2]int64{
			"v1": {0, 0},
			"v2": {1000, 50},
		}),
	)

	defs := []skill.Definition{{ID: "golang", DisplayName: "Go", Category: skill.CategoryBackend}}
	out, err := y.Fetch(context.Background(), defs)
	require.NoError(t, err)

	assert.InDelta(t, 0.05, out["golang"].AvgEngagement, 1e-9)
}

func TestYouTubeSkillFailureIsolated(t *testing.T) {
	y := newTestYouTube(t,
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("q") == "broken" {
				http.Error(w, "quota exceeded", http.StatusForbidden)
				return
			}
			searchResponse("v1")(w, r)
		},
		statsResponse(map[string][2]int64{"v1": {500, 5}}),
	)

	defs := []skill.Definition{
		{ID: "ok", DisplayName: "OK", Category: skill.CategoryBackend, YouTubeQuery: "fine"},
		{ID: "bad", DisplayName: "Bad", Category: skill.CategoryBackend, YouTubeQuery: "broken"},
	}

	out, err := y.Fetch(context.Background(), defs)
	require.NoError(t, err, "one failed skill must not abort siblings")
	require.Len(t, out, 2)

	assert.Equal(t, 1, out["ok"].VideoCount)
	assert.Zero(t, out["bad"].VideoCount, "failed skill degrades to zero metrics")
}

func TestYouTubeEmptySearchIsZeroMetrics(t *testing.T) {
	y := newTestYouTube(t, searchResponse(), statsResponse(nil))

	defs := []skill.Definition{{ID: "rare", DisplayName: "Rare", Category: skill.CategoryDesign}}
	out, err := y.Fetch(context.Background(), defs)
	require.NoError(t, err)
	assert.Equal(t, YouTubeMetrics{}, out["rare"])
}

func TestYouTubeMissingKeyIsOutage(t *testing.T) {
	y := NewYouTube("", zap.NewNop())
	_, err := y.Fetch(context.Background(), []skill.Definition{{ID: "x", Category: skill.CategoryDesign}})
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

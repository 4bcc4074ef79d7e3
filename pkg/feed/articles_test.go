package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevinzhu/skillpulse/pkg/skill"
)

func testCatalog(t *testing.T) *skill.Catalog {
	t.Helper()
	catalog, err := skill.NewCatalog([]skill.Definition{
		{ID: "react", DisplayName: "React", Category: skill.CategoryFrontend},
		{ID: "docker", DisplayName: "Docker", Category: skill.CategoryDevOps},
	})
	require.NoError(t, err)
	return catalog
}

func rssBody(items string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test Feed</title>` + items + `</channel></rss>`
}

func rssItem(title, guid string, published time.Time) string {
	return fmt.Sprintf(
		`<item><title>%s</title><link>https://example.com/%s</link><guid>%s</guid><pubDate>%s</pubDate><description>desc</description></item>`,
		title, guid, guid, published.Format(time.RFC1123Z))
}

func TestCollectMatchesSkillsByKeyword(t *testing.T) {
	now := time.Now()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssBody(
			rssItem("Getting started with React hooks", "a1", now)+
				rssItem("Docker compose in production", "a2", now)+
				rssItem("Why I switched to vim", "a3", now)))
	}))
	defer ts.Close()

	c := NewCollector([]Feed{{Name: "testfeed", URL: ts.URL}}, testCatalog(t), 0, zap.NewNop())
	articles, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 2, "unmatched entries are dropped")

	assert.Equal(t, "react", articles[0].SkillID)
	assert.Equal(t, "docker", articles[1].SkillID)
	assert.Equal(t, "testfeed", articles[0].FeedName)
	assert.NotEmpty(t, articles[0].ID)
}

func TestCollectSkipsStaleEntries(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssBody(
			rssItem("React 19 is out", "fresh", time.Now())+
				rssItem("React 16 retrospective", "old", time.Now().Add(-30*24*time.Hour))))
	}))
	defer ts.Close()

	c := NewCollector([]Feed{{Name: "testfeed", URL: ts.URL}}, testCatalog(t), 7*24*time.Hour, zap.NewNop())
	articles, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "React 19 is out", articles[0].Title)
}

func TestCollectFeedFailureIsolated(t *testing.T) {
	now := time.Now()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssBody(rssItem("Docker networking deep dive", "d1", now)))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	c := NewCollector([]Feed{
		{Name: "broken", URL: bad.URL},
		{Name: "working", URL: good.URL},
	}, testCatalog(t), 0, zap.NewNop())

	articles, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "working", articles[0].FeedName)
}

func TestArticleIDStableAndFeedScoped(t *testing.T) {
	a := articleID("feedA", "guid-1", "")
	assert.Equal(t, a, articleID("feedA", "guid-1", ""))
	assert.NotEqual(t, a, articleID("feedB", "guid-1", ""), "same guid in another feed is another article")

	// Falls back to the link when the feed has no GUIDs.
	assert.Equal(t,
		articleID("feedA", "", "https://example.com/x"),
		articleID("feedA", "", "https://example.com/x"))
}

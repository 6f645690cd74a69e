package feed_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/refhound/refhound/internal/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func listingJSON(count int, after string, idPrefix string) string {
	children := ""

	for i := 0; i < count; i++ {
		if i > 0 {
			children += ","
		}

		children += fmt.Sprintf(`{"data": {
			"id": "%s%d",
			"title": "Post %d",
			"selftext": "body %d",
			"url": "https://example.com/%d",
			"created_utc": 1767225600,
			"permalink": "/r/referralcodes/comments/%s%d"
		}}`, idPrefix, i, i, i, i, idPrefix, i)
	}

	return fmt.Sprintf(`{"data": {"children": [%s], "after": %q}}`, children, after)
}

type recordingSleep struct {
	calls []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)

	return nil
}

func newTestClient(baseURL string, pageSize int, sleep feed.SleepFunc) *feed.Client {
	return feed.NewClient(feed.Config{
		BaseURL:  baseURL,
		Channel:  "referralcodes",
		PageSize: pageSize,
		Sleep:    sleep,
	}, zap.NewNop())
}

func TestClient_Fetch(t *testing.T) {
	t.Run("returns posts and continuation token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/r/referralcodes/new.json", r.URL.Path)
			assert.Equal(t, "25", r.URL.Query().Get("limit"))

			fmt.Fprint(w, listingJSON(2, "t3_next", "a"))
		}))
		defer server.Close()

		client := newTestClient(server.URL, 25, nil)

		page := client.Fetch(context.Background(), "")

		require.Len(t, page.Posts, 2)
		assert.Equal(t, "t3_next", page.NextToken)
		assert.Equal(t, "a0", page.Posts[0].ID)
		assert.Equal(t, "Post 0", page.Posts[0].Title)
		assert.Equal(t, "body 0", page.Posts[0].Body)
		assert.Equal(t, time.Unix(1767225600, 0).UTC(), page.Posts[0].CreatedAt)
	})

	t.Run("passes continuation token through", func(t *testing.T) {
		var gotAfter string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAfter = r.URL.Query().Get("after")

			fmt.Fprint(w, listingJSON(1, "", "b"))
		}))
		defer server.Close()

		client := newTestClient(server.URL, 25, nil)
		client.Fetch(context.Background(), "t3_prev")

		assert.Equal(t, "t3_prev", gotAfter)
	})

	t.Run("server error collapses to empty page", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := newTestClient(server.URL, 25, nil)

		page := client.Fetch(context.Background(), "")

		assert.Empty(t, page.Posts)
		assert.Empty(t, page.NextToken)
	})

	t.Run("malformed body collapses to empty page", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "<html>not json</html>")
		}))
		defer server.Close()

		client := newTestClient(server.URL, 25, nil)

		page := client.Fetch(context.Background(), "")

		assert.Empty(t, page.Posts)
		assert.Empty(t, page.NextToken)
	})

	t.Run("unreachable host collapses to empty page", func(t *testing.T) {
		client := newTestClient("http://127.0.0.1:1", 25, nil)

		page := client.Fetch(context.Background(), "")

		assert.Empty(t, page.Posts)
		assert.Empty(t, page.NextToken)
	})
}

func TestClient_Collect(t *testing.T) {
	t.Run("pages until token runs out with pauses between pages", func(t *testing.T) {
		requests := 0

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++

			if r.URL.Query().Get("after") == "" {
				fmt.Fprint(w, listingJSON(25, "t3_page2", "a"))

				return
			}

			fmt.Fprint(w, listingJSON(10, "", "b"))
		}))
		defer server.Close()

		sleeper := &recordingSleep{}
		client := newTestClient(server.URL, 25, sleeper.sleep)

		posts := client.Collect(context.Background(), 5)

		assert.Len(t, posts, 35)
		assert.Equal(t, 2, requests)

		// one pause before the second fetch, none before the first
		require.Len(t, sleeper.calls, 1)
		assert.GreaterOrEqual(t, sleeper.calls[0], time.Second)
	})

	t.Run("stops at the page ceiling", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, listingJSON(5, "t3_more", "c"))
		}))
		defer server.Close()

		sleeper := &recordingSleep{}
		client := newTestClient(server.URL, 5, sleeper.sleep)

		posts := client.Collect(context.Background(), 3)

		assert.Len(t, posts, 15)
		assert.Len(t, sleeper.calls, 2)
	})

	t.Run("empty first page yields no posts", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, listingJSON(0, "", "d"))
		}))
		defer server.Close()

		client := newTestClient(server.URL, 25, nil)

		posts := client.Collect(context.Background(), 3)

		assert.Empty(t, posts)
	})

	t.Run("fetch failure mid-run is treated as end of data", func(t *testing.T) {
		requests := 0

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			requests++

			if requests == 1 {
				fmt.Fprint(w, listingJSON(10, "t3_page2", "e"))

				return
			}

			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		sleeper := &recordingSleep{}
		client := newTestClient(server.URL, 10, sleeper.sleep)

		posts := client.Collect(context.Background(), 5)

		assert.Len(t, posts, 10)
		assert.Equal(t, 2, requests)
	})
}

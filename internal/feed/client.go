// Package feed fetches raw posts from a public forum listing endpoint.
//
// The endpoint is a reddit-style JSON listing: GET
// {base}/r/{channel}/new.json?limit=N&after=token, returning a wrapper
// envelope with a list of post items and an opaque continuation token.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const httpTimeout = 15 * time.Second

// RawPost is a single post as returned by the listing endpoint. It is
// consumed once by the extractor and never persisted.
type RawPost struct {
	ID        string
	Title     string
	Body      string
	URL       string
	CreatedAt time.Time
	Permalink string
}

// Page is one page of the listing plus the continuation token for the next.
// An empty NextToken means the listing is exhausted.
type Page struct {
	Posts     []RawPost
	NextToken string
}

// SleepFunc pauses for d, or returns early with the context's error.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Config holds the fetcher's parameters.
type Config struct {
	// BaseURL is the listing host, e.g. "https://www.reddit.com".
	BaseURL string
	// Channel is the community being scraped, e.g. "referralcodes".
	Channel string
	// PageSize bounds the number of posts per page.
	PageSize int
	// PageDelay is the pause between successive page fetches. Minimum one
	// second so the upstream does not throttle us.
	PageDelay time.Duration
	// Sleep is the pause implementation; nil uses a real timer.
	Sleep SleepFunc
}

// Client pages through the listing endpoint for one channel.
type Client struct {
	cfg    Config
	http   *http.Client
	sleep  SleepFunc
	logger *zap.Logger
}

// NewClient creates a listing client with a shared HTTP client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 25
	}

	if cfg.PageDelay < time.Second {
		cfg.PageDelay = time.Second
	}

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: httpTimeout},
		sleep:  sleep,
		logger: logger,
	}
}

// listingEnvelope mirrors the listing endpoint's response shape.
type listingEnvelope struct {
	Data struct {
		Children []struct {
			Data listingPost `json:"data"`
		} `json:"children"`
		After string `json:"after"`
	} `json:"data"`
}

type listingPost struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	SelfText   string  `json:"selftext"`
	URL        string  `json:"url"`
	CreatedUTC float64 `json:"created_utc"`
	Permalink  string  `json:"permalink"`
}

// Fetch retrieves one page. Transport or shape errors are logged and
// collapse to an empty page with no continuation token: the caller treats
// that as "no more data", never as a hard failure.
func (c *Client) Fetch(ctx context.Context, token string) Page {
	endpoint := fmt.Sprintf("%s/r/%s/new.json", c.cfg.BaseURL, url.PathEscape(c.cfg.Channel))

	params := url.Values{}
	params.Set("limit", strconv.Itoa(c.cfg.PageSize))

	if token != "" {
		params.Set("after", token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		c.logger.Warn("failed to build listing request", zap.Error(err))

		return Page{}
	}

	req.Header.Set("User-Agent", "refhound/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("listing fetch failed",
			zap.String("channel", c.cfg.Channel),
			zap.Error(err),
		)

		return Page{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("listing fetch returned non-200",
			zap.String("channel", c.cfg.Channel),
			zap.Int("status", resp.StatusCode),
		)

		return Page{}
	}

	var envelope listingEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		c.logger.Warn("malformed listing response",
			zap.String("channel", c.cfg.Channel),
			zap.Error(err),
		)

		return Page{}
	}

	posts := make([]RawPost, 0, len(envelope.Data.Children))

	for _, child := range envelope.Data.Children {
		item := child.Data
		posts = append(posts, RawPost{
			ID:        item.ID,
			Title:     item.Title,
			Body:      item.SelfText,
			URL:       item.URL,
			CreatedAt: time.Unix(int64(item.CreatedUTC), 0).UTC(),
			Permalink: item.Permalink,
		})
	}

	return Page{Posts: posts, NextToken: envelope.Data.After}
}

// Collect pages through the listing until maxPages is reached, a page comes
// back empty, or no continuation token is returned. Successive fetches are
// separated by the configured page delay.
func (c *Client) Collect(ctx context.Context, maxPages int) []RawPost {
	var all []RawPost

	token := ""

	for page := 0; page < maxPages; page++ {
		if page > 0 {
			if err := c.sleep(ctx, c.cfg.PageDelay); err != nil {
				break
			}
		}

		p := c.Fetch(ctx, token)
		if len(p.Posts) == 0 {
			break
		}

		all = append(all, p.Posts...)

		c.logger.Info("listing page fetched",
			zap.String("channel", c.cfg.Channel),
			zap.Int("page", page+1),
			zap.Int("posts", len(p.Posts)),
		)

		if p.NextToken == "" {
			break
		}

		token = p.NextToken
	}

	return all
}

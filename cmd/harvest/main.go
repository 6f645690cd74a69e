// Command harvest runs one extraction-and-ingestion pass over a forum
// channel: it pages through the listing endpoint, extracts referral records
// from each post under the configured rate budget, and persists whatever
// the dedup gateway accepts.
//
// Usage:
//
//	harvest https://www.reddit.com/r/referralcodes/
//
// Configuration comes from the environment (a .env file is honored):
//
//	DATABASE_URL         postgres connection string (default postgres://localhost:5432/refhound)
//	REDIS_ADDR           redis address (default localhost:6379)
//	COHERE_API_KEY       extraction model credential (required)
//	COHERE_MODEL         extraction model (default command-r)
//	MAX_PAGES            listing page ceiling (default 3)
//	PAGE_SIZE            posts per page (default 25)
//	BATCH_SIZE           posts per batch (default 10)
//	REQUESTS_PER_MINUTE  extraction rate budget (default 15)
//	LOG_FORMAT           console or json (default console)
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/refhound/refhound/internal/container"
	"github.com/refhound/refhound/internal/feed"
	"github.com/refhound/refhound/internal/pipeline"
	"github.com/samber/do"
	"go.uber.org/zap"
)

// gracePeriod lets in-flight writes and event publishes settle before a
// fatal exit.
const gracePeriod = 2 * time.Second

var channelPattern = regexp.MustCompile(`^/r/([^/]+)`)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	baseURL, channel, err := parseFeedURL(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
		usage()
		os.Exit(2)
	}

	options := optionsFromEnv(baseURL, channel)

	injector := do.New()
	do.ProvideValue(injector, options)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.PostgresPackage(injector)
	container.RepositoryPackage(injector)
	container.PublisherGroupPackage(injector)
	container.GatewayPackage(injector)
	container.ExtractorPackage(injector)
	container.FeedPackage(injector)
	container.PipelinePackage(injector)

	logger := do.MustInvoke[*zap.Logger](injector)
	client := do.MustInvoke[*feed.Client](injector)
	runner := do.MustInvoke[*pipeline.Runner](injector)

	ctx := context.Background()

	logger.Info("harvest starting",
		zap.String("channel", channel),
		zap.Int("max_pages", options.MaxPages),
		zap.Int("batch_size", options.BatchSize),
		zap.Int("requests_per_minute", options.RequestsPerMinute),
	)

	posts := client.Collect(ctx, options.MaxPages)

	stats, err := runner.Run(ctx, posts)
	if err != nil {
		logger.Error("harvest aborted", zap.Error(err))
		time.Sleep(gracePeriod)
		os.Exit(1)
	}

	logger.Info("harvest complete",
		zap.Int("processed", stats.Processed),
		zap.Int("extracted", stats.Extracted),
		zap.Int("saved", stats.Saved),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)

	if err := injector.Shutdown(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

// parseFeedURL extracts the listing base URL and channel name from a feed
// URL whose path must match /r/<channel>/...
func parseFeedURL(raw string) (baseURL, channel string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid feed url %q: %w", raw, err)
	}

	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("feed url %q must be absolute", raw)
	}

	match := channelPattern.FindStringSubmatch(u.Path)
	if match == nil {
		return "", "", fmt.Errorf("feed url path %q must match /r/<channel>/", u.Path)
	}

	return u.Scheme + "://" + u.Host, match[1], nil
}

func optionsFromEnv(baseURL, channel string) *container.Options {
	return &container.Options{
		DatabaseURL:       getEnv("DATABASE_URL", "postgres://localhost:5432/refhound"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		CohereAPIKey:      os.Getenv("COHERE_API_KEY"),
		CohereModel:       getEnv("COHERE_MODEL", "command-r"),
		Channel:           channel,
		FeedBaseURL:       baseURL,
		MaxPages:          getEnvInt("MAX_PAGES", 3),
		PageSize:          getEnvInt("PAGE_SIZE", 25),
		BatchSize:         getEnvInt("BATCH_SIZE", 10),
		RequestsPerMinute: getEnvInt("REQUESTS_PER_MINUTE", 15),
		LogFormat:         getEnv("LOG_FORMAT", "console"),
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return defaultValue
	}

	return n
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: harvest <feed-url>")
	fmt.Fprintln(os.Stderr, "  <feed-url>  listing URL whose path matches /r/<channel>/, e.g.")
	fmt.Fprintln(os.Stderr, "              https://www.reddit.com/r/referralcodes/")
}

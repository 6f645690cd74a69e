package container

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
	"github.com/refhound/refhound/internal/analytics"
	"github.com/refhound/refhound/internal/extract"
	"github.com/refhound/refhound/internal/feed"
	"github.com/refhound/refhound/internal/handlers"
	"github.com/refhound/refhound/internal/health"
	"github.com/refhound/refhound/internal/messaging"
	"github.com/refhound/refhound/internal/middleware"
	"github.com/refhound/refhound/internal/pipeline"
	"github.com/refhound/refhound/internal/ratelimit"
	"github.com/refhound/refhound/internal/referral"
	"github.com/refhound/refhound/internal/store"
	"github.com/refhound/refhound/internal/sweeper"
	"github.com/samber/do"
	"go.uber.org/zap"
)

const recordIDLength = 14

// LoggerPackage provides the zap logger.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		options := do.MustInvoke[*Options](i)

		if options.LogFormat == "json" {
			return zap.NewProduction()
		}

		return zap.NewDevelopment()
	})
}

// RedisPackage provides the redis client.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*redis.Client, error) {
		options := do.MustInvoke[*Options](i)

		return redis.NewClient(&redis.Options{Addr: options.RedisAddr}), nil
	})
}

// PostgresPackage provides the pgx connection pool.
func PostgresPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*pgxpool.Pool, error) {
		options := do.MustInvoke[*Options](i)

		return pgxpool.New(context.Background(), options.DatabaseURL)
	})
}

// RepositoryPackage provides the record repository: postgres behind a redis
// read cache.
func RepositoryPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (referral.Repository, error) {
		options := do.MustInvoke[*Options](i)
		pool := do.MustInvoke[*pgxpool.Pool](i)
		client := do.MustInvoke[*redis.Client](i)

		ttl := time.Duration(options.CacheTTLMinutes) * time.Minute

		return store.NewRedisCacheRepository(store.NewPostgresStore(pool), client, ttl), nil
	})
}

// PublisherGroupPackage provides the event publisher and the typed publish
// functions for the ingest and expiry streams.
func PublisherGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		client := do.MustInvoke[*redis.Client](i)

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: client},
			watermill.NopLogger{},
		)
		if err != nil {
			return nil, err
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(injector, func(i *do.Injector) (messaging.Publish[analytics.RecordIngestedEvent], error) {
		group := do.MustInvoke[*messaging.PublisherGroup](i)

		return messaging.NewPublishFunc[analytics.RecordIngestedEvent](
			group.Publisher(), analytics.TopicRecordIngested), nil
	})

	do.Provide(injector, func(i *do.Injector) (messaging.Publish[analytics.RecordExpiredEvent], error) {
		group := do.MustInvoke[*messaging.PublisherGroup](i)

		return messaging.NewPublishFunc[analytics.RecordExpiredEvent](
			group.Publisher(), analytics.TopicRecordExpired), nil
	})
}

// GatewayPackage provides the dedup/persistence gateway.
func GatewayPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*referral.Gateway, error) {
		repo := do.MustInvoke[referral.Repository](i)
		publishIngested := do.MustInvoke[messaging.Publish[analytics.RecordIngestedEvent]](i)
		logger := do.MustInvoke[*zap.Logger](i)

		newID, err := nanoid.Standard(recordIDLength)
		if err != nil {
			return nil, err
		}

		return referral.NewGateway(repo, newID, publishIngested, logger), nil
	})
}

// ExtractorPackage provides the language-model extraction client.
func ExtractorPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (extract.Extractor, error) {
		options := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		client := extract.NewCohereClient(options.CohereAPIKey)

		return extract.NewCohereExtractor(client, options.CohereModel, options.Channel, logger), nil
	})
}

// FeedPackage provides the listing fetcher.
func FeedPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*feed.Client, error) {
		options := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		return feed.NewClient(feed.Config{
			BaseURL:  options.FeedBaseURL,
			Channel:  options.Channel,
			PageSize: options.PageSize,
		}, logger), nil
	})
}

// PipelinePackage provides the batch extraction runner.
func PipelinePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*pipeline.Runner, error) {
		options := do.MustInvoke[*Options](i)
		extractor := do.MustInvoke[extract.Extractor](i)
		gateway := do.MustInvoke[*referral.Gateway](i)
		logger := do.MustInvoke[*zap.Logger](i)

		throttle := pipeline.NewIntervalThrottle(options.RequestsPerMinute, nil)

		return pipeline.NewRunner(extractor, gateway, throttle, pipeline.Config{
			BatchSize: options.BatchSize,
		}, logger), nil
	})
}

// SweeperPackage provides the expiry sweeper and its cron scheduler.
func SweeperPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*sweeper.Sweeper, error) {
		repo := do.MustInvoke[referral.Repository](i)
		publishExpired := do.MustInvoke[messaging.Publish[analytics.RecordExpiredEvent]](i)
		logger := do.MustInvoke[*zap.Logger](i)

		return sweeper.New(repo, publishExpired, logger), nil
	})

	do.Provide(injector, func(i *do.Injector) (*sweeper.Scheduler, error) {
		options := do.MustInvoke[*Options](i)
		sw := do.MustInvoke[*sweeper.Sweeper](i)
		logger := do.MustInvoke[*zap.Logger](i)

		return sweeper.NewScheduler(sw, options.SweepSpec, logger), nil
	})
}

// RateLimitPackage provides the inbound API rate limiter.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (ratelimit.Limiter, error) {
		options := do.MustInvoke[*Options](i)

		return ratelimit.NewSlidingWindowLimiter(
			store.NewRateLimitMemoryStore(),
			int64(options.RateLimitPerMinute),
			time.Minute,
		), nil
	})
}

// HTTPPackage provides the router and the huma API with all routes and
// middlewares registered.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		router := do.MustInvoke[*chi.Mux](i)
		repo := do.MustInvoke[referral.Repository](i)
		gateway := do.MustInvoke[*referral.Gateway](i)
		limiter := do.MustInvoke[ratelimit.Limiter](i)
		client := do.MustInvoke[*redis.Client](i)
		pool := do.MustInvoke[*pgxpool.Pool](i)
		logger := do.MustInvoke[*zap.Logger](i)

		api := humachi.New(router, huma.DefaultConfig("Refhound", "1.0.0"))
		api.UseMiddleware(middleware.RateLimiter(api, limiter))

		handlers.RegisterRoutes(api, handlers.NewRecordHandler(repo, gateway, logger))
		health.RegisterRoutes(api, health.NewHandler(
			health.NewRedisChecker(client),
			health.NewPostgresChecker(pool),
		))

		return api, nil
	})
}

// ConsumerGroupPackage provides the analytics consumer group.
func ConsumerGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		client := do.MustInvoke[*redis.Client](i)
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := redisstream.NewSubscriber(
			redisstream.SubscriberConfig{
				Client:        client,
				ConsumerGroup: "refhound-analytics",
			},
			watermill.NopLogger{},
		)
		if err != nil {
			return nil, err
		}

		tracker := analytics.NewRedisTracker(client)

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(messaging.NewConsumer(
			subscriber, analytics.TopicRecordIngested, analytics.IngestedHandler(tracker), logger))
		group.Add(messaging.NewConsumer(
			subscriber, analytics.TopicRecordExpired, analytics.ExpiredHandler(tracker), logger))

		return group, nil
	})
}

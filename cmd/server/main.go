package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/dharmasatrya/flightquery/internal/cache"
	"github.com/dharmasatrya/flightquery/internal/config"
	"github.com/dharmasatrya/flightquery/internal/credentials"
	"github.com/dharmasatrya/flightquery/internal/governor"
	"github.com/dharmasatrya/flightquery/internal/handler"
	"github.com/dharmasatrya/flightquery/internal/metrics"
	"github.com/dharmasatrya/flightquery/internal/orchestrator"
	"github.com/dharmasatrya/flightquery/internal/pricing"
	"github.com/dharmasatrya/flightquery/internal/providers"
	"github.com/dharmasatrya/flightquery/internal/quota"
	"github.com/dharmasatrya/flightquery/internal/ratelimit"
	"github.com/dharmasatrya/flightquery/internal/reconcile"
	"github.com/dharmasatrya/flightquery/internal/search"
)

func main() {
	cfg := config.Load()

	var rdb *redis.Client
	if cfg.RedisEnabled {
		client, err := cache.NewRedisClient(cache.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer client.Close()
		rdb = client
		log.Printf("Redis enabled (host: %s:%s) for tokens and quotas", cfg.RedisHost, cfg.RedisPort)
	} else {
		log.Println("Redis disabled, tokens and quotas are kept in memory")
	}

	var (
		tokens   cache.TokenCache
		counters quota.Counter
	)
	limits := quota.Limits{
		providers.AmadeusName: cfg.AmadeusMonthlyQuota,
		providers.SerpAPIName: cfg.SerpAPIMonthlyQuota,
	}
	if rdb != nil {
		tokens = cache.NewRedisTokenCache(rdb)
		counters = quota.NewRedisCounter(rdb, limits)
	} else {
		tokens = cache.NewMemoryTokenCache()
		counters = quota.NewMemoryCounter(limits)
	}

	registry := metrics.NewRegistry()
	for key := range limits {
		key := key
		registry.WatchQuota(key, func(ctx context.Context) (int64, error) {
			return counters.Used(ctx, key)
		})
	}

	var amadeus *providers.AmadeusClient
	if cfg.AmadeusConfigured() {
		amadeus = &providers.AmadeusClient{
			BaseURL:     cfg.AmadeusBaseURL,
			Client:      &http.Client{Timeout: cfg.AttemptTimeout},
			Credentials: credentials.NewOAuthProvider(cfg.AmadeusBaseURL+"/v1/security/oauth2/token", cfg.AmadeusClientID, cfg.AmadeusClientSecret, tokens),
			Quota:       counters,
		}
	}

	sourceList := initializeSources(cfg, amadeus, counters)
	if len(sourceList) == 0 {
		log.Println("No sources configured; every search will fail with a Google Flights link")
	}
	names := make([]string, len(sourceList))
	for i, s := range sourceList {
		names[i] = s.Name()
	}
	log.Printf("Initialized %d flight sources in priority order %v", len(sourceList), names)

	rateLimiter := ratelimit.NewProviderLimiterWithDefaults()
	rateLimiter.SetProviderLimit(providers.ScraperName, cfg.ScraperRPS, 1)
	rateLimiter.SetProviderLimit(providers.SerpAPIName, 1, 2)
	rateLimiter.SetProviderLimit(providers.AmadeusName, 10, 10)

	orch := orchestrator.NewOrchestrator(sourceList, orchestrator.Config{
		AttemptTimeout: cfg.AttemptTimeout,
		RateLimiter:    rateLimiter,
		Metrics:        registry,
	})
	rec := reconcile.NewReconciler(orch, reconcile.Config{
		TopK:     cfg.ContinuationTopK,
		MaxPairs: cfg.MaxRoundTripPairs,
		Metrics:  registry,
	})
	gov := governor.NewGovernor(governor.Limits{
		DateRange: cfg.DateRangeCeiling,
		Airports:  cfg.AirportCeiling,
	}, registry)

	var confirmer *pricing.Confirmer
	if amadeus != nil {
		confirmer = pricing.NewConfirmer(amadeus, registry)
	} else {
		log.Println("Amadeus not configured, price confirmation disabled")
	}

	svc := search.NewService(orch, rec, gov, confirmer, search.Config{
		Workers: cfg.BatchWorkers,
		Metrics: registry,
	})

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())

	handler.Register(e, handler.NewSearchHandler(svc), registry)

	go func() {
		log.Printf("Starting flight query server on port %s", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Stopped.")
}

// initializeSources builds the configured adapters in SOURCE_PRIORITY order.
// Unknown or unconfigured names are skipped.
func initializeSources(cfg config.Config, amadeus *providers.AmadeusClient, counters quota.Counter) []providers.Source {
	var sourceList []providers.Source
	seen := make(map[string]bool)

	for _, name := range cfg.SourcePriority {
		if seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case providers.ScraperName:
			if !cfg.ScraperEnabled {
				log.Println("Scraper disabled")
				continue
			}
			sourceList = append(sourceList, &providers.ScraperProvider{
				BaseURL: cfg.ScraperBaseURL,
				Client:  &http.Client{},
				Timeout: cfg.AttemptTimeout,
			})
		case providers.SerpAPIName:
			if !cfg.SerpAPIConfigured() {
				log.Println("SerpAPI key not set, skipping serpapi")
				continue
			}
			sourceList = append(sourceList, &providers.SerpAPIProvider{
				APIKey:  cfg.SerpAPIKey,
				BaseURL: cfg.SerpAPIBaseURL,
				Client:  &http.Client{},
				Timeout: cfg.AttemptTimeout,
				Retries: cfg.ProviderRetries,
				Backoff: cfg.ProviderBackoff,
				Quota:   counters,
			})
		case providers.AmadeusName:
			if amadeus == nil {
				log.Println("Amadeus credentials not set, skipping amadeus")
				continue
			}
			sourceList = append(sourceList, &providers.AmadeusProvider{Client: amadeus})
		default:
			log.Printf("Unknown source %q in SOURCE_PRIORITY, skipping", name)
		}
	}
	return sourceList
}

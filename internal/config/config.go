// Package config reads server settings from the environment, after loading an
// optional .env file.
package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// SourcePriority is the fallback order, first tried first.
	SourcePriority []string
	AttemptTimeout time.Duration
	BatchWorkers   int

	DateRangeCeiling  int
	AirportCeiling    int
	ContinuationTopK  int
	MaxRoundTripPairs int

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string

	AmadeusClientID     string
	AmadeusClientSecret string
	AmadeusBaseURL      string
	AmadeusMonthlyQuota int64

	SerpAPIKey          string
	SerpAPIBaseURL      string
	SerpAPIMonthlyQuota int64

	ScraperEnabled bool
	ScraperBaseURL string
	ScraperRPS     float64

	ProviderRetries int
	ProviderBackoff time.Duration
}

// Load reads files (".env" when none are given) and then the environment.
// Missing files are ignored; variables already set win over file values.
func Load(files ...string) Config {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[config] ignoring env file: %v", err)
	}
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		Port:              getEnv("PORT", "8080"),
		SourcePriority:    getEnvList("SOURCE_PRIORITY", []string{"scraper", "serpapi", "amadeus"}),
		AttemptTimeout:    getEnvDuration("ATTEMPT_TIMEOUT", 15*time.Second),
		BatchWorkers:      getEnvInt("BATCH_WORKERS", 4),
		DateRangeCeiling:  getEnvInt("DATE_RANGE_CEILING", 30),
		AirportCeiling:    getEnvInt("AIRPORT_CEILING", 12),
		ContinuationTopK:  getEnvInt("CONTINUATION_TOP_K", 3),
		MaxRoundTripPairs: getEnvInt("MAX_ROUND_TRIP_PAIRS", 10),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		AmadeusClientID:     getEnv("AMADEUS_CLIENT_ID", ""),
		AmadeusClientSecret: getEnv("AMADEUS_CLIENT_SECRET", ""),
		AmadeusBaseURL:      strings.TrimRight(getEnv("AMADEUS_BASE_URL", "https://test.api.amadeus.com"), "/"),
		AmadeusMonthlyQuota: int64(getEnvInt("AMADEUS_MONTHLY_QUOTA", 2000)),

		SerpAPIKey:          getEnv("SERPAPI_API_KEY", ""),
		SerpAPIBaseURL:      getEnv("SERPAPI_BASE_URL", "https://serpapi.com/search"),
		SerpAPIMonthlyQuota: int64(getEnvInt("SERPAPI_MONTHLY_QUOTA", 100)),

		ScraperEnabled: getEnvBool("SCRAPER_ENABLED", true),
		ScraperBaseURL: getEnv("SCRAPER_BASE_URL", "http://localhost:8000"),
		ScraperRPS:     getEnvFloat("SCRAPER_RPS", 1),

		ProviderRetries: getEnvInt("PROVIDER_RETRIES", 2),
		ProviderBackoff: getEnvDuration("PROVIDER_BACKOFF", 500*time.Millisecond),
	}
}

func (c Config) AmadeusConfigured() bool {
	return c.AmadeusClientID != "" && c.AmadeusClientSecret != ""
}

func (c Config) SerpAPIConfigured() bool {
	return c.SerpAPIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// getEnvList splits a comma-separated value, dropping blanks and lower-casing.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

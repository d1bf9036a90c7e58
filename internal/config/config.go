// Package config loads every tunable the engine recognizes from the
// environment, grounded on cmd/engine/main.go's requireEnv/getEnvOrDefault
// helpers — the Go corpus has no pydantic-settings equivalent, so env-var
// parsing with typed defaults is the idiom carried over verbatim.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/rawblock/kyt-engine/internal/kyt"
)

// Config is the fully resolved set of spec.md §6 configuration names plus
// the ambient names the HTTP/CLI layers need (cache backend selection,
// database DSN, bitcoin RPC credentials, auth token, listen port).
type Config struct {
	// cache.*
	CacheBackend  string // "memory" | "sql" | "remote"
	CacheTTLSecs  int
	DatabaseURL   string
	RemoteCacheAddr string

	// provider.*
	ProviderRequestsPerSecond float64
	ProviderMaxRetries        int
	ProviderRetryDelaySecs    float64
	ProviderTimeoutSecs       float64

	// bitcoin-family node RPC, used by btcprovider when set
	BTCRPCHost string
	BTCRPCUser string
	BTCRPCPass string

	// tracer.*
	TracerConcurrency   int
	TracerBatchCap      int
	TracerMaxAddresses  int
	TracerMaxDepth      int

	// scorer.*
	ScorerProximityDecay float64
	ScorerTagWeights     map[kyt.RiskTag]float64

	// HTTP surface
	APIAuthToken string
	Port         string
}

// Load reads every recognized environment variable, falling back to the
// teacher's defaults (mirrored from spec.md §6 / the Tracer's own
// New*Config constructors) for anything unset. Nothing here is
// security-sensitive enough to warrant requireEnv's fail-fast: a KYT
// engine with no auth token or no Postgres DSN still runs, just without
// those optional capabilities — unlike the teacher's DATABASE_URL/
// BTC_RPC_USER/PASS, which gated whether the process could start at all.
func Load() Config {
	cfg := Config{
		CacheBackend:    getEnvOrDefault("CACHE_BACKEND", "memory"),
		CacheTTLSecs:    getEnvIntOrDefault("CACHE_TTL_SECONDS", 24*60*60),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RemoteCacheAddr: getEnvOrDefault("REMOTE_CACHE_ADDR", "localhost:6379"),

		ProviderRequestsPerSecond: getEnvFloatOrDefault("PROVIDER_REQUESTS_PER_SECOND", 10.0),
		ProviderMaxRetries:        getEnvIntOrDefault("PROVIDER_MAX_RETRIES", 3),
		ProviderRetryDelaySecs:    getEnvFloatOrDefault("PROVIDER_RETRY_DELAY_SECONDS", 1.0),
		ProviderTimeoutSecs:       getEnvFloatOrDefault("PROVIDER_TIMEOUT_SECONDS", 30.0),

		BTCRPCHost: getEnvOrDefault("BTC_RPC_HOST", "localhost:8332"),
		BTCRPCUser: os.Getenv("BTC_RPC_USER"),
		BTCRPCPass: os.Getenv("BTC_RPC_PASS"),

		TracerConcurrency:  getEnvIntOrDefault("TRACER_CONCURRENCY", kyt.DefaultConcurrencyLimit),
		TracerBatchCap:     getEnvIntOrDefault("TRACER_BATCH_CAP", kyt.DefaultBatchCap),
		TracerMaxAddresses: getEnvIntOrDefault("TRACER_MAX_ADDRESSES", kyt.DefaultMaxAddresses),
		TracerMaxDepth:     getEnvIntOrDefault("TRACER_MAX_DEPTH", kyt.DefaultMaxDepth),

		ScorerProximityDecay: getEnvFloatOrDefault("SCORER_PROXIMITY_DECAY", kyt.DefaultProximityDecay),
		ScorerTagWeights:     parseTagWeights(os.Getenv("SCORER_TAG_WEIGHTS")),

		APIAuthToken: os.Getenv("API_AUTH_TOKEN"),
		Port:         getEnvOrDefault("PORT", "5339"),
	}

	if cfg.CacheBackend == "sql" && cfg.DatabaseURL == "" {
		log.Printf("[Config] CACHE_BACKEND=sql but DATABASE_URL is unset; falling back to memory")
		cfg.CacheBackend = "memory"
	}

	return cfg
}

// TracerConfig builds the kyt.TracerConfig this Config describes, merging
// any SCORER_TAG_WEIGHTS override onto the default tag-weight table.
func (c Config) TracerConfig() kyt.TracerConfig {
	tc := kyt.NewTracerConfig()
	tc.ConcurrencyLimit = c.TracerConcurrency
	tc.BatchCap = c.TracerBatchCap
	tc.MaxAddresses = c.TracerMaxAddresses
	tc.MaxDepth = c.TracerMaxDepth
	tc.Scorer.ProximityDecay = c.ScorerProximityDecay
	if len(c.ScorerTagWeights) > 0 {
		merged := make(map[kyt.RiskTag]float64, len(kyt.TagWeights))
		for tag, w := range kyt.TagWeights {
			merged[tag] = w
		}
		for tag, w := range c.ScorerTagWeights {
			merged[tag] = w
		}
		tc.Scorer.TagWeights = merged
	}
	return tc
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("[Config] invalid integer for %s=%q, using default %d", key, val, fallback)
		return fallback
	}
	return n
}

func getEnvFloatOrDefault(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Printf("[Config] invalid float for %s=%q, using default %v", key, val, fallback)
		return fallback
	}
	return f
}

// parseTagWeights reads "tag:weight,tag:weight" pairs, e.g.
// "mixer:1.0,exchange:0.3", matching scorer.tag-weights from spec.md §6.
func parseTagWeights(raw string) map[kyt.RiskTag]float64 {
	if raw == "" {
		return nil
	}
	out := make(map[kyt.RiskTag]float64)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			log.Printf("[Config] malformed SCORER_TAG_WEIGHTS entry %q, skipping", pair)
			continue
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			log.Printf("[Config] malformed SCORER_TAG_WEIGHTS weight %q, skipping", pair)
			continue
		}
		out[kyt.RiskTag(strings.TrimSpace(parts[0]))] = w
	}
	return out
}

// String renders a redacted summary, never including credentials.
func (c Config) String() string {
	return fmt.Sprintf(
		"cache=%s tracer(concurrency=%d batch=%d maxAddr=%d maxDepth=%d) scorer(decay=%.2f) port=%s",
		c.CacheBackend, c.TracerConcurrency, c.TracerBatchCap, c.TracerMaxAddresses, c.TracerMaxDepth,
		c.ScorerProximityDecay, c.Port,
	)
}

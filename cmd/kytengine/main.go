package main

import (
	"context"
	"log"
	"time"

	"github.com/rawblock/kyt-engine/internal/api"
	"github.com/rawblock/kyt-engine/internal/btcprovider"
	"github.com/rawblock/kyt-engine/internal/cache"
	"github.com/rawblock/kyt-engine/internal/chainconfig"
	"github.com/rawblock/kyt-engine/internal/config"
	"github.com/rawblock/kyt-engine/internal/httpprovider"
	"github.com/rawblock/kyt-engine/internal/kyt"
	"github.com/rawblock/kyt-engine/internal/provider"
)

// bitcoinFamilyChains lists the chainconfig slugs the node-backed
// btcprovider.Client can serve directly; every other chain routes
// through the general httpprovider.Client.
var bitcoinFamilyChains = []string{"bitcoin", "litecoin", "dogecoin", "bitcoin-cash"}

func main() {
	log.Println("Starting KYT Engine (Know-Your-Transaction compliance microservice)...")

	cfg := config.Load()
	log.Printf("Config: %s", cfg)

	cacheBackend := setupCache(cfg)
	defer cacheBackend.Close()

	blockchainProvider := setupProvider(cfg)

	tracer := kyt.NewTracer(blockchainProvider, cacheBackend, chainconfig.Default, cfg.TracerConfig())
	if history, ok := cacheBackend.(kyt.HistoryRecorder); ok {
		tracer.History = history
	}

	cases := kyt.NewCaseManager()

	wsHub := api.NewHub()
	go wsHub.Run()

	r := api.SetupRouter(tracer, cases, cacheBackend, blockchainProvider, wsHub, cfg)

	log.Printf("Engine running on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupCache resolves the configured Cache backend, falling back to an
// in-memory cache (with a warning) if a sql/remote backend fails to
// connect — a degraded engine with no persistent cache is still useful,
// unlike a dead process.
func setupCache(cfg config.Config) cache.Cache {
	switch cfg.CacheBackend {
	case "sql":
		pg, err := cache.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: failed to connect to Postgres cache backend, falling back to memory: %v", err)
			return cache.NewMemoryCache()
		}
		return pg
	case "remote":
		rc := cache.NewRemoteCache(cfg.RemoteCacheAddr)
		if err := rc.Ping(context.Background()); err != nil {
			log.Printf("Warning: failed to connect to remote cache backend, falling back to memory: %v", err)
			return cache.NewMemoryCache()
		}
		return rc
	default:
		return cache.NewMemoryCache()
	}
}

// setupProvider builds the Composite BlockchainProvider: a general REST
// backend for every chain in the registry, with a node-backed specialist
// registered for the bitcoin-family chains whenever BTC_RPC_USER/PASS are
// configured.
func setupProvider(cfg config.Config) kyt.BlockchainProvider {
	general := httpprovider.New(httpprovider.Config{
		RequestsPerSecond: cfg.ProviderRequestsPerSecond,
		MaxRetries:        cfg.ProviderMaxRetries,
		RetryDelay:        time.Duration(cfg.ProviderRetryDelaySecs * float64(time.Second)),
		Timeout:           time.Duration(cfg.ProviderTimeoutSecs * float64(time.Second)),
	})

	composite := provider.NewComposite(general)

	if cfg.BTCRPCUser == "" || cfg.BTCRPCPass == "" {
		log.Println("BTC_RPC_USER/BTC_RPC_PASS not set — bitcoin-family chains route through the general HTTP provider only")
		return composite
	}

	for _, chain := range bitcoinFamilyChains {
		btc, err := btcprovider.New(btcprovider.Config{
			Host:  cfg.BTCRPCHost,
			User:  cfg.BTCRPCUser,
			Pass:  cfg.BTCRPCPass,
			Chain: chain,
		})
		if err != nil {
			log.Printf("Warning: failed to connect node-backed provider for %s, falling back to HTTP provider: %v", chain, err)
			continue
		}
		composite.RegisterSpecialized(chain, btc)
	}

	return composite
}

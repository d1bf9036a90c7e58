package api

import (
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/kyt-engine/internal/cache"
	"github.com/rawblock/kyt-engine/internal/config"
	"github.com/rawblock/kyt-engine/internal/kyt"
)

// APIHandler holds every dependency the KYT HTTP surface needs: the
// Tracer (the whole of analyze()), a CaseManager for C17, direct handles
// on the Cache/Provider for the health check, the websocket hub for live
// trace events, and the resolved Config for the default trace depth.
type APIHandler struct {
	tracer   *kyt.Tracer
	cases    *kyt.CaseManager
	cache    cache.Cache
	provider kyt.BlockchainProvider
	wsHub    *Hub
	cfg      config.Config
}

// SetupRouter wires the gin.Engine the same way the teacher's
// SetupRouter does: CORS middleware first, then public routes, then a
// bearer-token + rate-limited group for everything that spends a
// provider/cache budget.
func SetupRouter(tracer *kyt.Tracer, cases *kyt.CaseManager, cacheBackend cache.Cache, p kyt.BlockchainProvider, wsHub *Hub, cfg config.Config) *gin.Engine {
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS env var
	// Production: ALLOWED_ORIGINS=https://example.com,https://www.example.com
	// Development: ALLOWED_ORIGINS=http://localhost:3000 (or leave empty for *)
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{
		tracer:   tracer,
		cases:    cases,
		cache:    cacheBackend,
		provider: p,
		wsHub:    wsHub,
		cfg:      cfg,
	}

	// ── Public endpoints (no auth) ─────────────────────────────
	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
	}

	// ── Protected endpoints (require bearer token if API_AUTH_TOKEN set) ──
	// Rate-limited to 30 req/min per IP (burst=5) — analyze() spends a
	// Provider budget on every cache miss, so this floor matters here
	// more than anywhere else in the surface.
	auth := r.Group("/api/v1")
	auth.Use(AuthMiddleware())
	auth.Use(NewRateLimiter(30, 5).Middleware())
	{
		auth.GET("/analyze/:chain/:txid", handler.handleAnalyze)

		caseRoutes := auth.Group("/cases")
		{
			caseRoutes.POST("", handler.handleCreateCase)
			caseRoutes.GET("/:id", handler.handleGetCase)
			caseRoutes.POST("/:id/trace", handler.handleCaseTrace)
			caseRoutes.GET("/:id/timeline", handler.handleCaseTimeline)
			caseRoutes.POST("/:id/tag", handler.handleTagAddress)
		}
	}

	return r
}

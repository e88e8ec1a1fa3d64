// Package server is the HTTP adapter over the interaction checker and the
// knowledge base admin contract.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Skufu/medsafe/internal/checker"
	"github.com/Skufu/medsafe/internal/config"
	"github.com/Skufu/medsafe/internal/kb"
	"github.com/Skufu/medsafe/internal/logging"
	"github.com/Skufu/medsafe/internal/metrics"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 1 << 20

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Options wires the router. Checker and Store are required.
type Options struct {
	Checker *checker.Checker
	Store   kb.Store
	// Health backs /readyz. Nil reports the storage check as disabled.
	Health  HealthChecker
	Metrics *metrics.Metrics
	Logger  logging.Logger
	// AdminToken enables the admin routes behind bearer auth.
	AdminToken   string
	RateLimit    config.RateLimit
	MaxBodyBytes int64
}

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	h := &handlers{checker: opts.Checker, store: opts.Store, log: opts.Logger}

	router := gin.New()
	_ = router.SetTrustedProxies(nil)
	router.Use(
		requestID(),
		requestLogger(opts.Logger),
		recovery(opts.Logger),
		observe(opts.Metrics),
		limitBodySize(opts.MaxBodyBytes),
		cors.New(cors.Config{
			AllowOrigins:  []string{"*"},
			AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
			ExposeHeaders: []string{requestIDHeader},
			MaxAge:        12 * time.Hour,
		}),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", readyz(opts.Health, opts.Store))
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	api := router.Group("/api", rateLimit(opts.RateLimit))
	api.POST("/drugs/check-interaction", h.checkInteraction)
	api.GET("/drugs/:name", h.lookupDrug)

	if opts.AdminToken != "" {
		admin := api.Group("/admin", requireAdmin(opts.AdminToken))
		admin.POST("/drugs", h.addDrug)
		admin.POST("/drugs/:id/synonyms", h.addSynonym)
		admin.PUT("/facts", h.upsertFact)
		admin.GET("/facts", h.listFacts)
		admin.GET("/export", h.export)
		admin.POST("/import", h.importDataset)
	}

	return router
}

func readyz(db HealthChecker, store kb.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		kbStatus := gin.H{"version": store.Version(), "drugs": len(store.Drugs())}
		if db == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "disabled", "kb": kbStatus})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"db":     fmt.Sprintf("unhealthy: %v", err),
				"kb":     kbStatus,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"db":     "ok",
			"kb":     kbStatus,
		})
	}
}

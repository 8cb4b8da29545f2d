package api

import (
	"context"
	"time"

	"github.com/RishiKendai/aegis-local/internal/config"
	"github.com/RishiKendai/aegis-local/internal/plagiarism"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const limiterIdleTimeout = time.Hour

// Dependencies are the services the handlers read from and write to
type Dependencies struct {
	Corpus  plagiarism.CorpusSource
	Queue   CheckQueue
	Status  StatusStore
	Reports ReportReader
}

func SetupRoutes(ctx context.Context, cfg *config.Config, deps Dependencies) *gin.Engine {
	router := gin.Default()

	// Create handler
	handler := NewHandler(deps, cfg.MaxConcurrentSync, cfg.MaxTextBytes)

	// Create rate limiter
	rateLimiter := NewRateLimiter(cfg.RateLimitRPS, int(cfg.RateLimitRPS*2))
	go cleanupLimiters(ctx, rateLimiter)

	// Middleware
	router.Use(MetricsMiddleware())
	router.Use(ErrorHandlerMiddleware())

	// Health endpoint (no auth)
	router.GET("/health", handler.Health)

	// API routes (with auth and rate limiting)
	api := router.Group("/api/v1")
	api.Use(JWTAuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer))
	api.Use(RateLimitMiddleware(rateLimiter))
	{
		api.POST("/score", handler.Score)
		api.POST("/checks", handler.SubmitCheck)
		api.GET("/checks/:id", handler.GetCheck)
		api.GET("/submissions/:id/checks", handler.ListSubmissionChecks)
		api.GET("/corpus", handler.ListCorpus)
	}

	return router
}

func cleanupLimiters(ctx context.Context, limiter *RateLimiter) {
	ticker := time.NewTicker(limiterIdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := limiter.Cleanup(limiterIdleTimeout); removed > 0 {
				log.Debug().Int("removed", removed).Msg("Dropped idle rate limiters")
			}
		}
	}
}

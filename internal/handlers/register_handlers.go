package handlers

import (
	"net/http"
	"slices"
	"time"

	"github.com/SscSPs/kiosc_finance_app/cmd/docs"
	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
	"github.com/SscSPs/kiosc_finance_app/internal/middleware"
	"github.com/SscSPs/kiosc_finance_app/internal/platform/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Observability carries the optional hooks wired around the API.
type Observability struct {
	// Metrics is served at /metrics when set.
	Metrics http.Handler
	// Events receives one analytics event per successful API call.
	Events middleware.EventSink
}

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
	obs Observability,
) error {
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "session": services.Sync.State()})
	})
	if obs.Metrics != nil {
		r.GET("/metrics", gin.WrapH(obs.Metrics))
	}

	if err := setupAPIV1Routes(r, cfg, services, obs.Events); err != nil {
		return err
	}

	setupSwaggerRoutes(r, cfg)
	return nil
}

// setupAPIV1Routes configures the /api/v1 group and delegates to specific entity route registrations
func setupAPIV1Routes(
	r *gin.Engine,
	cfg *config.Config,
	service *portssvc.ServiceContainer,
	events middleware.EventSink,
) error {
	chain := []gin.HandlerFunc{middleware.AuthMiddleware(cfg.JWTSecret)}
	if cfg.RateLimit != "" {
		limiter, err := middleware.NewIPRateLimiter(cfg.RateLimit)
		if err != nil {
			return err
		}
		chain = append(chain, middleware.RateLimit(limiter))
	}
	if events != nil {
		chain = append(chain, middleware.PosthogMiddleware(events))
	}
	v1 := r.Group("/api/v1", chain...)

	registerCollectionRoutes(v1, service.Store, service.Validator)
	registerJournalRoutes(v1, service.Store, service.Validator)
	registerBudgetRoutes(v1, service.Store)
	registerAuditRoutes(v1, service.Store)
	registerSyncRoutes(v1, service.Sync)
	return nil
}

// setupSwaggerRoutes configures the swagger documentation routes
func setupSwaggerRoutes(r *gin.Engine, cfg *config.Config) {
	if cfg.IsProduction {
		//no swagger in prod
		return
	}
	docs.SwaggerInfo.BasePath = "/api/v1"
	swagger := r.Group("/swagger")
	swagger.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

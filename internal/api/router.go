package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"workshop-access-backend/config"
	"workshop-access-backend/internal/core"
	"workshop-access-backend/internal/logger"
	"workshop-access-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(svc *core.Service, cfg config.ServerConfig, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger(log.With("component", "http")))
	if cfg.RequestIPHeader != "" {
		r.TrustedPlatform = cfg.RequestIPHeader
	}
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", cfg.IdentityHeader},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	handler := NewHandler(svc, log)

	catalog := mw.NewCatalogCache(time.Duration(cfg.CacheTTLSeconds) * time.Second)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(mw.Identity(cfg.IdentityHeader), mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst))
	{
		// Catalog reads do not depend on the caller and are cached until the
		// next catalog write.
		api.GET("/machines", catalog.Listing(), handler.GetMachines)
		api.GET("/modules", catalog.Listing(), handler.GetModules)
		api.PUT("/machines/:machine_id/lifecycle", catalog.FlushOnWrite(), handler.PutMachineLifecycle)
		api.PUT("/modules/:module_id/lifecycle", catalog.FlushOnWrite(), handler.PutModuleLifecycle)
		api.GET("/machines/:machine_id/eligibility", handler.GetEligibility)

		api.POST("/progress/validate", handler.ValidateProgress)
		api.GET("/progress", handler.ListProgress)
		api.GET("/modules/:module_id/progress", handler.GetProgress)
		api.PUT("/modules/:module_id/progress", handler.PutProgress)

		api.POST("/reservations", handler.CreateReservation)
		api.GET("/reservations", handler.ListReservations)
		api.POST("/reservations/:reservation_id/transition", handler.TransitionReservation)

		api.GET("/managers/:manager_id/availability", handler.GetAvailability)
		api.GET("/machines/:machine_id/availability", handler.GetMachineAvailability)
		api.POST("/availability/blocks", handler.CreateBlock)
		api.DELETE("/availability/blocks/:block_id", handler.DeleteBlock)
		api.POST("/availability/rules", handler.CreateRule)
		api.DELETE("/availability/rules/:rule_id", handler.DeleteRule)

		api.POST("/appointments", handler.CreateAppointment)
		api.GET("/appointments", handler.ListAppointments)
		api.POST("/appointments/:appointment_id/cancel", handler.CancelAppointment)
		api.POST("/appointments/:appointment_id/complete", handler.CompleteAppointment)

		api.PUT("/users/:user_id/checkouts/:machine_id", handler.PutCheckout)
		api.DELETE("/users/:user_id/checkouts/:machine_id", handler.DeleteCheckout)

		api.POST("/admin/sweep", handler.Sweep)
	}

	return r
}

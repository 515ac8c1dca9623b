package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/bloodbank/bloodbank/internal/config"
	"github.com/bloodbank/bloodbank/internal/domain/bloodunit"
	"github.com/bloodbank/bloodbank/internal/domain/eligibility"
	"github.com/bloodbank/bloodbank/internal/domain/scheduling"
	"github.com/bloodbank/bloodbank/internal/platform/metrics"
	"github.com/bloodbank/bloodbank/internal/platform/middleware"
)

const version = "0.1.0"

type services struct {
	eligibility *eligibility.Service
	units       *bloodunit.Service
	schedules   *scheduling.Service
}

// newRouter builds the HTTP surface. dbHealth may be nil when no database is
// attached.
func newRouter(cfg *config.Config, logger zerolog.Logger, svcs services, dbHealth echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if dbHealth != nil {
		e.GET("/health/db", dbHealth)
	}
	e.GET("/metrics", metrics.Handler())

	api := e.Group("/api/v1")
	api.Use(middleware.BodyLimit(cfg.BodyLimit))
	api.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))

	eligibility.NewHandler(svcs.eligibility).RegisterRoutes(api)
	bloodunit.NewHandler(svcs.units).RegisterRoutes(api)
	scheduling.NewHandler(svcs.schedules).RegisterRoutes(api)

	return e
}

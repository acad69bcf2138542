// Package server assembles the echo instance: middleware, error handling,
// metrics and the API routes.
package server

import (
	"net/http"

	"projecthub-service/internal/handler"
	"projecthub-service/internal/middleware"
	"projecthub-service/pkg/jwtutil"
	"projecthub-service/pkg/logger"
	"projecthub-service/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

// Options configure the server
type Options struct {
	AllowedOrigins []string
	JWT            *jwtutil.JWTUtil
	Handler        *handler.Handler
}

// New returns an echo instance serving the API under /api and metrics
// under /metrics
func New(opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler

	e.Use(echomiddleware.Recover())
	e.Use(middleware.RequestIDMiddleware())
	e.Use(prometheus.MetricsMiddleware())
	e.Use(logger.Middleware())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     opts.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, middleware.RequestIDHeader},
		AllowCredentials: true,
	}))
	e.Use(echomiddleware.BodyLimit("1M"))

	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))

	api := e.Group("/api")
	opts.Handler.Register(api, middleware.JWTAuthMiddleware(opts.JWT))

	return e
}

package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/patiponrmutl/TutorSystem/handlers"
	"github.com/patiponrmutl/TutorSystem/middlewares"
)

// NewServer builds the echo instance with the standard middleware chain and
// every route registered.
func NewServer(log *zap.SugaredLogger, tch *handlers.TutorHandler, health echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middlewares.RequestID())
	e.Use(middlewares.RequestLogger(log))
	e.Use(middlewares.Metrics())
	e.Use(middleware.CORS())

	Register(e, tch, health)
	return e
}

// Register wires all HTTP routes.
func Register(e *echo.Echo, tch *handlers.TutorHandler, health echo.HandlerFunc) {
	e.GET("/health", health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")

	api.GET("/tutors", tch.List)
	api.POST("/tutors", tch.Create)
	api.GET("/tutors/search", tch.Search)
	api.GET("/tutors/recent", tch.ListRecent)
	api.GET("/tutors/subject/:subject", tch.ListBySubject)
	api.GET("/tutors/:id", tch.Get)
	api.PUT("/tutors/:id", tch.Update)
	api.DELETE("/tutors/:id", tch.Delete)
}

package router

import (
	"ventasbi/internal/config"
	"ventasbi/internal/handler"
	"ventasbi/internal/middleware"

	"github.com/gin-gonic/gin"
)

// New wires the reporting API and returns a configured Gin engine. The API is
// read-only: it publishes the latest certified run, it never triggers one.
func New(cfg *config.Config) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())

	reportsH := handler.NewReportsHandler(cfg.OutputDir)

	r.GET("/health", handler.Health(cfg.OutputDir))

	v1 := r.Group("/v1")
	{
		v1.GET("/hechos", reportsH.Facts)
		v1.GET("/canales", reportsH.Channels)
		v1.GET("/categorias", reportsH.Categories)
		v1.GET("/articulos", reportsH.Articles)
		v1.GET("/auditoria", reportsH.Audit)
	}

	return r
}

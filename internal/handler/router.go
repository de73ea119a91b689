package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/replconsole/internal/middleware"
)

type RouterDeps struct {
	Console    *ConsoleHandler
	Properties *PropertiesHandler
	Page       *PageHandler
	// OpenWindow is the per-client interval between session creations.
	OpenWindow time.Duration
}

func RegisterRoutes(root *gin.RouterGroup, deps RouterDeps) {
	if deps.Page != nil {
		root.GET("/", deps.Page.Index)
		root.StaticFS("/static", deps.Page.assets)
	}

	api := root.Group("/api/v1")
	api.GET("/properties", deps.Properties.Get)

	api.POST("/sessions", middleware.RateLimit(deps.OpenWindow), deps.Console.Open)
	api.GET("/sessions/:id", deps.Console.Get)
	api.GET("/sessions/:id/output", deps.Console.Output)
	api.POST("/sessions/:id/submit", deps.Console.Submit)
	api.DELETE("/sessions/:id", deps.Console.Close)
	api.GET("/sessions/:id/transcript", deps.Console.Transcript)
}

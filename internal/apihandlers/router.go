package apihandlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"msgsort/internal/app"
)

const requestIDHeader = "X-Request-ID"

// requestID echoes the caller's X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// NewRouter builds the HTTP API around a.
func NewRouter(a *app.App) *gin.Engine {
	router := gin.Default() // Includes logger and recovery middleware
	router.Use(requestID())

	h := NewAPIHandler(a)
	router.GET("/", h.RootHandler)
	router.GET("/health", h.HealthHandler)
	router.GET("/metrics", gin.WrapH(a.Metrics.Handler()))

	v1 := router.Group("/api/v1")
	{
		categoryGroup := v1.Group("/categories")
		{
			categoryGroup.GET("", h.ListCategoriesHandler)
			categoryGroup.POST("", h.CreateCategoryHandler)
			categoryGroup.GET("/export", h.ExportCategoriesHandler)
			categoryGroup.POST("/import", h.ImportCategoriesHandler)
			categoryGroup.DELETE("/:name", h.DeleteCategoryHandler)
		}
		v1.POST("/classify", h.ClassifyHandler)
		v1.POST("/messages", h.IngestMessageHandler)
		v1.GET("/stats", h.StatsHandler)
	}
	return router
}

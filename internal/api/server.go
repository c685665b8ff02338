package api

import (
	"github.com/gin-gonic/gin"
)

// NewServer builds the read-only HTTP API with all routes configured.
func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// CORS for the dashboard front end
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	r.GET("/", handler.GetStatus)
	r.GET("/api/contents", handler.GetContents)
	r.GET("/api/channels", handler.GetChannels)
	r.GET("/api/daily-summary", handler.GetDailySummary)

	return r
}

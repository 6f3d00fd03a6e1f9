package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates the HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey, mediaDir, thumbsDir string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	// CORS middleware for the dashboard page
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey, mediaDir, thumbsDir)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey, mediaDir, thumbsDir string) {
	r.GET("/health", handler.Health)

	api := r.Group("/api")
	if apiAccessKey != "" {
		api.Use(authMiddleware(apiAccessKey))
		slog.Info("API authentication enabled")
	} else {
		slog.Info("API authentication disabled (API_ACCESS_KEY not set)")
	}
	{
		api.GET("/records", handler.ListRecords)
		api.GET("/records/inaccessible", handler.ListInaccessible)
		api.GET("/records/:id", handler.GetRecord)
		api.DELETE("/records/:id", handler.DeleteRecord)
		api.POST("/records/delete", handler.DeleteBatch)
		api.PUT("/records/:id/tags", handler.UpdateTags)
		api.PUT("/records/:id/category", handler.UpdateCategory)
		api.PUT("/records/:id/note", handler.UpdateNote)
		api.POST("/records/:id/download", handler.DownloadOne)
		api.GET("/records/:id/thumbnail", handler.GetThumbnail)

		api.GET("/stats", handler.GetStats)
		api.GET("/analytics", handler.GetAnalytics)
		api.GET("/filters", handler.GetFilterOptions)

		api.POST("/scan", handler.Scan)
		api.POST("/validate", handler.Validate)
		api.POST("/scrape", handler.Scrape)
		api.POST("/download", handler.DownloadBatch)
		api.POST("/download-all", handler.DownloadAll)
		api.POST("/process-all", handler.ProcessAll)
		api.GET("/tasks/status", handler.TaskStatus)
		api.POST("/reindex", handler.Reindex)

		api.GET("/config", handler.GetConfig)
		api.PUT("/config", handler.UpdateConfig)
	}

	// Downloaded files are served directly; the dashboard links into them
	r.Static("/media", mediaDir)
	r.Static("/thumbnails", thumbsDir)

	// Root endpoint with basic information
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service":     "mediakeep",
			"version":     handler.version,
			"description": "Social post collector: scans notes for links, validates, scrapes and archives them",
			"endpoints": map[string]string{
				"records":   "/api/records",
				"stats":     "/api/stats",
				"analytics": "/api/analytics",
				"scan":      "/api/scan (POST)",
				"status":    "/api/tasks/status",
				"health":    "/health",
			},
			"api_status": map[string]interface{}{
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

// authMiddleware creates authentication middleware for API endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		// Also check Authorization header with Bearer prefix
		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

package server

import (
	"net/http"

	"github.com/OFFIS-RIT/kgraph/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	// Ingestion routes
	e.POST("/ingest/upload", routes.UploadFileHandler)
	e.POST("/ingest/url", routes.IngestURLHandler)

	// Graph routes
	e.GET("/graph", routes.GetGraphHandler)
	e.GET("/node/:id", routes.GetNodeHandler)
	e.GET("/stats", routes.GetStatsHandler)
	e.GET("/communities", routes.GetCommunitiesHandler)
	e.POST("/communities", routes.RunCommunitiesHandler)

	// Query routes
	e.GET("/search", routes.SearchHandler)
	e.POST("/qa", routes.QAHandler)
}

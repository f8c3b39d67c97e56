package server

import (
	"github.com/podgraph/backend/internal/server/middleware"
	"github.com/podgraph/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Podcast routes
	apiRoutes.GET("/podcasts", routes.GetPodcastsHandler, middleware.RequirePermission("podcast.view"))
	apiRoutes.POST("/podcasts", routes.CreatePodcastHandler, middleware.RequirePermission("podcast.create"))
	apiRoutes.GET("/jobs/:id", routes.GetJobHandler, middleware.RequirePermission("podcast.view"))

	// Graph routes
	apiRoutes.GET("/graph", routes.GetGraphHandler, middleware.RequirePermission("graph.view"))
	apiRoutes.GET("/graph/bookmarks", routes.GetBookmarksHandler, middleware.RequirePermission("graph.view"))
	apiRoutes.PATCH("/graph/nodes/:id/bookmark", routes.BookmarkNodeHandler, middleware.RequirePermission("graph.update"))
	apiRoutes.GET("/speakers", routes.GetSpeakersHandler, middleware.RequirePermission("graph.view"))
	apiRoutes.POST("/ask", routes.AskHandler, middleware.RequirePermission("graph.ask"))

	// Coach routes
	apiRoutes.POST("/routine", routes.GenerateRoutineHandler, middleware.RequirePermission("coach.use"))
	apiRoutes.POST("/goals/rephrase", routes.RephraseGoalsHandler, middleware.RequirePermission("coach.use"))
}

package middleware

import (
	"github.com/podgraph/backend/internal/queue"
	"github.com/podgraph/backend/pkg/ai"
	"github.com/podgraph/backend/pkg/graph"
	"github.com/podgraph/backend/pkg/store"
	"github.com/podgraph/backend/pkg/youtube"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      string
	Role        string
	Permissions []string
}

type App struct {
	Store     store.GraphStorage
	Publisher queue.IngestPublisher
	Keyfunc   jwt.Keyfunc
	AiClient  ai.GraphAIClient
	Graph     *graph.GraphClient
	YouTube   *youtube.Client

	MasterAPIKey string
	MasterUserID string
	DemoUserID   string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}

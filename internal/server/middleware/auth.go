package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var allPermissions = []string{
	"podcast.create",
	"podcast.view",
	"graph.view",
	"graph.update",
	"graph.ask",
	"coach.use",
}

// demoPermissions never allow a write to the demo user's data.
var demoPermissions = []string{
	"podcast.view",
	"graph.view",
	"graph.ask",
	"coach.use",
}

const demoHeader = "X-Demo"

func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		app := c.(*AppContext).App

		// Demo mode reads the shared demo graph without credentials
		if strings.EqualFold(c.Request().Header.Get(demoHeader), "true") {
			if app.DemoUserID == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Demo mode is disabled"})
			}
			c.(*AppContext).User = &AppUser{
				UserID:      app.DemoUserID,
				Role:        "demo",
				Permissions: demoPermissions,
			}
			return next(c)
		}

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")

		// Master API Key bypass
		if app.MasterAPIKey != "" && app.MasterUserID != "" && token == app.MasterAPIKey {
			c.(*AppContext).User = &AppUser{
				UserID:      app.MasterUserID,
				Role:        "admin",
				Permissions: allPermissions,
			}
			return next(c)
		}

		if app.Keyfunc == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		parsed, err := jwt.Parse(token, app.Keyfunc)
		if err != nil || !parsed.Valid {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		userID, _ := claims["id"].(string)
		if userID == "" {
			userID, _ = claims.GetSubject()
		}
		if userID == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid user ID"})
		}

		role := "user"
		if roleClaim, ok := claims["role"].(string); ok {
			role = roleClaim
		}

		// Tokens without a permissions claim get every permission; an
		// explicit list, even an empty one, is taken as is.
		permissions := allPermissions
		if permsClaim, present := claims["permissions"]; present {
			permissions = []string{}
			if list, ok := permsClaim.([]any); ok {
				for _, p := range list {
					if pStr, ok := p.(string); ok {
						permissions = append(permissions, pStr)
					}
				}
			}
		}

		c.(*AppContext).User = &AppUser{
			UserID:      userID,
			Role:        role,
			Permissions: permissions,
		}

		return next(c)
	}
}

package routes

import (
	"errors"
	"net/http"

	"github.com/podgraph/backend/pkg/coach"
	"github.com/podgraph/backend/pkg/graph"
	"github.com/podgraph/backend/pkg/logger"
	"github.com/podgraph/backend/pkg/store"
	"github.com/podgraph/backend/pkg/youtube"

	"github.com/labstack/echo/v4"
)

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, graph.ErrInput),
		errors.Is(err, youtube.ErrInvalidURL),
		errors.Is(err, coach.ErrEmptyPrompt):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrOwnership):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrUpstream),
		errors.Is(err, coach.ErrGeneration),
		errors.Is(err, youtube.ErrUnavailable),
		errors.Is(err, youtube.ErrRejected):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func errorResponse(c echo.Context, err error) error {
	status := errorStatus(err)
	switch status {
	case http.StatusInternalServerError:
		logger.Error("[Server] Request failed", "path", c.Path(), "err", err)
		return c.JSON(status, map[string]string{"error": "Internal server error"})
	case http.StatusBadGateway:
		logger.Warn("[Server] Upstream failure", "path", c.Path(), "err", err)
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
}

func invalidParams(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
}

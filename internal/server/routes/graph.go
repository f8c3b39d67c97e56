package routes

import (
	"net/http"

	"github.com/podgraph/backend/internal/server/middleware"
	"github.com/podgraph/backend/pkg/graph"

	"github.com/labstack/echo/v4"
)

func GetGraphHandler(c echo.Context) error {
	user := c.(*middleware.AppContext).User
	if user == nil {
		return unauthorized(c)
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	nodes, err := app.Store.ListNodes(ctx, user.UserID)
	if err != nil {
		return errorResponse(c, err)
	}
	edges, err := app.Store.ListEdges(ctx, user.UserID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"graph_with_granularity": graph.BuildGranularities(nodes, edges),
	})
}

func BookmarkNodeHandler(c echo.Context) error {
	type bookmarkParams struct {
		NodeID       string `param:"id" validate:"required"`
		IsBookmarked *bool  `json:"is_bookmarked" validate:"required"`
	}

	params := new(bookmarkParams)
	if err := c.Bind(params); err != nil {
		return invalidParams(c)
	}
	if err := c.Validate(params); err != nil {
		return invalidParams(c)
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return unauthorized(c)
	}

	app := c.(*middleware.AppContext).App
	if err := app.Store.SetBookmark(c.Request().Context(), user.UserID, params.NodeID, *params.IsBookmarked); err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"id":            params.NodeID,
		"is_bookmarked": *params.IsBookmarked,
	})
}

func GetBookmarksHandler(c echo.Context) error {
	user := c.(*middleware.AppContext).User
	if user == nil {
		return unauthorized(c)
	}

	app := c.(*middleware.AppContext).App
	nodes, err := app.Store.ListBookmarkedNodes(c.Request().Context(), user.UserID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, nodes)
}

func GetSpeakersHandler(c echo.Context) error {
	user := c.(*middleware.AppContext).User
	if user == nil {
		return unauthorized(c)
	}

	app := c.(*middleware.AppContext).App
	speakers, err := app.Store.ListSpeakers(c.Request().Context(), user.UserID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, speakers)
}

func AskHandler(c echo.Context) error {
	type askBody struct {
		Question    string `json:"question" validate:"required"`
		SpeakerID   string `json:"speaker_id" validate:"required"`
		SpeakerName string `json:"speaker_name" validate:"required"`
	}

	data := new(askBody)
	if err := c.Bind(data); err != nil {
		return invalidParams(c)
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing question, speaker_id, or speaker_name"})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return unauthorized(c)
	}

	app := c.(*middleware.AppContext).App
	answer, err := app.Graph.Ask(c.Request().Context(), graph.AskParams{
		UserID:      user.UserID,
		SpeakerID:   data.SpeakerID,
		SpeakerName: data.SpeakerName,
		Question:    data.Question,
	}, app.AiClient, app.Store)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, answer)
}

package routes

import (
	"net/http"

	"github.com/podgraph/backend/internal/server/middleware"
	"github.com/podgraph/backend/pkg/coach"

	"github.com/labstack/echo/v4"
)

type promptBody struct {
	Prompt string `json:"prompt" validate:"required"`
}

func bindPrompt(c echo.Context) (*promptBody, bool) {
	data := new(promptBody)
	if err := c.Bind(data); err != nil {
		return nil, false
	}
	if err := c.Validate(data); err != nil {
		return nil, false
	}
	return data, true
}

func GenerateRoutineHandler(c echo.Context) error {
	data, ok := bindPrompt(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body. 'prompt' is required and must be a string."})
	}

	app := c.(*middleware.AppContext).App
	routine, err := coach.GenerateRoutine(c.Request().Context(), data.Prompt, app.AiClient)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"data": routine})
}

func RephraseGoalsHandler(c echo.Context) error {
	data, ok := bindPrompt(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body. 'prompt' is required and must be a string."})
	}

	app := c.(*middleware.AppContext).App
	goals, err := coach.RephraseGoals(c.Request().Context(), data.Prompt, app.AiClient)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"data": map[string][]string{"goals": goals}})
}

package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// handleError maps pipeline errors to responses. Input errors carry their
// reason to the client; anything else is logged and hidden.
func handleError(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return errorJSON(c, http.StatusNotFound, "Not found")
	case common.IsValidation(err):
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	logger.Error("[Server] Request failed", "op", op, "err", err)
	return errorJSON(c, http.StatusInternalServerError, "Internal server error")
}

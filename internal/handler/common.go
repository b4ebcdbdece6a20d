package handler // handler package implements the HTTP endpoints of the API

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/itportfolio/apptrack/internal/middleware"
	"github.com/itportfolio/apptrack/internal/model"
)

// fail writes the uniform error body. Every failure, whatever its kind,
// carries the single canonical success flag and a human-readable message.
func fail(c echo.Context, code int, msg string) error {
	return c.JSON(code, echo.Map{"success": false, "message": msg})
}

// getUser returns the identity resolved by the JWT middleware.
func getUser(c echo.Context) (*model.User, error) {
	u, ok := c.Get(middleware.CtxUser).(*model.User)
	if !ok || u == nil {
		return nil, errors.New("no authenticated user in context")
	}
	return u, nil
}

// getUserID returns the id of the authenticated operator.
func getUserID(c echo.Context) (uint64, error) {
	u, err := getUser(c)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

// reqCtx bounds database work for one request.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

package middleware // reusable HTTP middleware for the API

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/itportfolio/apptrack/internal/repository"
	"github.com/itportfolio/apptrack/internal/utils"
)

// Context keys populated by JWTAuth for downstream handlers.
const (
	CtxUserID = "user_id"
	CtxUser   = "user"
)

// JWTAuth returns an Echo middleware that verifies a bearer access token
// and resolves it back to a stored identity on every request. The token is
// read from the Authorization header ("Bearer <token>"); when that header
// is absent the legacy raw `token` header is accepted for compatibility
// with older clients.
//
// A token whose subject no longer resolves to a stored account is rejected
// with 401: a removed operator must not keep mutating records just because
// their token is still signed correctly.
func JWTAuth(secret string, users *repository.UserRepo) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "missing bearer token"})
			}

			uid, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				msg := "invalid token"
				switch {
				case errors.Is(err, utils.ErrTokenExpired):
					msg = "token expired"
				case errors.Is(err, utils.ErrTokenNotYetValid):
					msg = "token not yet valid"
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": msg})
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			u, err := users.GetByID(ctx, uid)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unknown identity"})
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to resolve identity"})
			}

			c.Set(CtxUserID, u.ID)
			c.Set(CtxUser, u)
			return next(c)
		}
	}
}

// bearerToken extracts the raw token from the request. Authorization with
// the Bearer scheme wins; the bare `token` header is the legacy transport.
func bearerToken(c echo.Context) string {
	auth := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(c.Request().Header.Get("token"))
}

package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireAuth validates the Bearer token and places the authenticated
// *models.User in the echo context under "user". Requests without a valid
// session are rejected.
func RequireAuth(tokenService *TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, ok := bearerToken(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			user, err := tokenService.ValidateAccessToken(tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set("user", user)
			return next(c)
		}
	}
}

// OptionalAuth identifies a logged-in user when a valid Bearer token is
// present but lets anonymous requests through untouched. Pages that are
// public-but-personalized (the blog reader) use this.
func OptionalAuth(tokenService *TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if tokenString, ok := bearerToken(c); ok {
				if user, err := tokenService.ValidateAccessToken(tokenString); err == nil {
					c.Set("user", user)
				}
			}
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, bool) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

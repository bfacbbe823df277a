package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// unauthorizedMessage is the only 401 body the API ever returns. Whether a
// token was expired, malformed, or revoked is deliberately not disclosed.
const unauthorizedMessage = "invalid or expired token"

// Middleware returns echo middleware that requires a valid bearer access
// token, storing the verified claims on the request context.
func Middleware(tm *TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := ExtractBearer(c.Request().Header.Get("Authorization"))
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, unauthorizedMessage)
			}

			claims, err := tm.VerifyAccess(c.Request().Context(), token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, unauthorizedMessage)
			}

			ctx := WithClaims(c.Request().Context(), claims)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireRole returns middleware allowing only principals whose role tag is
// in the given set. Must run after Middleware.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleFromContext(c.Request().Context())
			if !allowed[role] {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
			}
			return next(c)
		}
	}
}

// RequestContext carries the caller-facing request metadata orchestrations
// hand to the activity and audit loggers.
type RequestContext struct {
	IPAddress string
	UserAgent string
}

// RequestContextFrom derives the logging metadata from an echo context. The
// IP is the first of X-Forwarded-For head, the remote address, or the
// X-Real-IP header; "Unknown" when none is available.
func RequestContextFrom(c echo.Context) RequestContext {
	ip := c.RealIP()
	if ip == "" {
		ip = c.Request().Header.Get("X-Real-IP")
	}
	if ip == "" {
		ip = "Unknown"
	}
	return RequestContext{
		IPAddress: ip,
		UserAgent: c.Request().UserAgent(),
	}
}

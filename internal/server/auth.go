package server

import (
	"crypto/subtle"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"freeway/internal/core"
	"freeway/internal/projects"
)

// KeyValidator authenticates project API keys. *projects.Cache satisfies this interface.
type KeyValidator interface {
	ValidateAPIKey(rawKey string) (projects.ProjectInfo, bool)
}

// RateLimiter throttles projects. *ratelimit.Limiter satisfies this interface.
type RateLimiter interface {
	Allow(projectID string, rpm int) bool
	RetryAfter(projectID string, rpm int) time.Duration
}

// extractAPIKey reads the key from X-Api-Key, falling back to a Bearer token.
func extractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-Api-Key")); key != "" {
		return key
	}
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}

// AuthMiddleware resolves the caller from its API key and stores it in the
// request context. The admin key yields an admin caller; any other key must
// belong to an active project.
func AuthMiddleware(adminKey string, keys KeyValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := extractAPIKey(c.Request())
			if key == "" {
				return handleError(c, core.NewAuthenticationError("", "API key is required"))
			}

			var caller core.Caller
			switch {
			case adminKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) == 1:
				caller = core.Caller{Admin: true}
			case keys != nil:
				info, ok := keys.ValidateAPIKey(key)
				if !ok || !info.IsActive {
					return handleError(c, core.NewAuthenticationError("", "Invalid API key"))
				}
				caller = core.Caller{
					ProjectID:          info.ID,
					ProjectName:        info.Name,
					RateLimitPerMinute: info.RateLimitPerMinute,
				}
			default:
				return handleError(c, core.NewAuthenticationError("", "Invalid API key"))
			}

			ctx := core.WithCaller(c.Request().Context(), caller)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireAdmin rejects callers that did not authenticate with the admin key.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller, ok := core.GetCaller(c.Request().Context())
			if !ok || !caller.Admin {
				return handleError(c, core.NewPermissionError("Admin access required"))
			}
			return next(c)
		}
	}
}

// RequireProject rejects callers that are not projects. Completions are
// always attributed to a project.
func RequireProject() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller, ok := core.GetCaller(c.Request().Context())
			if !ok || caller.ProjectID == "" {
				return handleError(c, core.NewPermissionError("A project API key is required"))
			}
			return next(c)
		}
	}
}

// RateLimitMiddleware enforces each project's requests-per-minute. Admin
// callers are not limited. A nil limiter disables the check.
func RateLimitMiddleware(limiter RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limiter == nil {
				return next(c)
			}
			caller, ok := core.GetCaller(c.Request().Context())
			if !ok || caller.ProjectID == "" {
				return next(c)
			}
			if limiter.Allow(caller.ProjectID, caller.RateLimitPerMinute) {
				return next(c)
			}

			wait := limiter.RetryAfter(caller.ProjectID, caller.RateLimitPerMinute)
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
			return handleError(c, core.NewRateLimitError("", "Rate limit exceeded for project "+caller.ProjectName))
		}
	}
}

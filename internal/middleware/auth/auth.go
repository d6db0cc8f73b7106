package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jmorand/crm-backend/internal/logging"
	"github.com/jmorand/crm-backend/internal/models"
	"github.com/jmorand/crm-backend/internal/store"
	"github.com/jmorand/crm-backend/internal/token"
)

// UserContextKey is where the guard stores the resolved account.
const UserContextKey = "currentUser"

// Guard verifies bearer tokens and resolves them to an account in the
// API-user store.
type Guard struct {
	Tokens *token.Service
	Users  *store.UserStore
}

// RequireUser extracts the bearer token, verifies it and loads the subject
// account. Any failure is a 401 with a Bearer challenge.
func (g *Guard) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx).With("middleware", "require_user")

		raw, ok := bearerToken(c.Request())
		if !ok {
			return unauthorized(c)
		}
		subject, err := g.Tokens.Verify(raw)
		if err != nil {
			l.Warn("token rejected", "error", err)
			return unauthorized(c)
		}
		user, err := g.Users.GetByEmail(ctx, subject)
		if err != nil {
			l.Warn("token subject unknown", "subject", subject)
			return unauthorized(c)
		}

		c.Set(UserContextKey, user)
		return next(c)
	}
}

// RequireActive rejects accounts whose active flag is off. The 404 matches
// the wire behavior clients already depend on.
func RequireActive(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := CurrentUser(c)
		if user == nil {
			return unauthorized(c)
		}
		if !user.IsActive {
			return echo.NewHTTPError(http.StatusNotFound, "Inactive User")
		}
		return next(c)
	}
}

// CurrentUser returns the account set by RequireUser, or nil outside a
// guarded route.
func CurrentUser(c echo.Context) *models.User {
	if u, ok := c.Get(UserContextKey).(*models.User); ok {
		return u
	}
	return nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func unauthorized(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return echo.NewHTTPError(http.StatusUnauthorized, "Could not verify credentials")
}

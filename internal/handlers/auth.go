package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jmorand/crm-backend/internal/logging"
	"github.com/jmorand/crm-backend/internal/middleware/auth"
	"github.com/jmorand/crm-backend/internal/store"
	"github.com/jmorand/crm-backend/internal/token"
)

// AuthHandler serves the token-issuing endpoints under /auth.
type AuthHandler struct {
	Users  *store.UserStore
	Tokens *token.Service
}

// Token implements the OAuth2 password flow: form-encoded username/password
// in, bearer token out. Bad credentials and inactive accounts both answer
// 404, matching the wire behavior existing clients rely on.
func (h *AuthHandler) Token(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_token")

	email := c.FormValue("username")
	password := c.FormValue("password")

	user, err := h.Users.Authenticate(ctx, email, password)
	if err != nil {
		if err == store.ErrInvalidCredentials {
			l.Warn("login failed", "email", email)
			return echo.NewHTTPError(http.StatusNotFound, "Wrong info !")
		}
		l.Error("login error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	if !user.IsActive {
		l.Warn("login rejected", "email", email, "reason", "inactive")
		return echo.NewHTTPError(http.StatusNotFound, "Inactive User")
	}

	accessToken, err := h.Tokens.Issue(user.Email)
	if err != nil {
		l.Error("token issue failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	l.Info("login successful", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": accessToken,
		"token_type":   "bearer",
	})
}

// VerifyToken reports whether the presented token resolves to an account.
// The guard has already done the work by the time this runs.
func (h *AuthHandler) VerifyToken(c echo.Context) error {
	user := auth.CurrentUser(c)
	return c.JSON(http.StatusOK, echo.Map{
		"valid": true,
		"user": echo.Map{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

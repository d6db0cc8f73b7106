package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jmorand/crm-backend/internal/events"
	"github.com/jmorand/crm-backend/internal/logging"
	"github.com/jmorand/crm-backend/internal/middleware/auth"
	"github.com/jmorand/crm-backend/internal/store"
)

// UserHandler serves API-account administration under /auth/user.
type UserHandler struct {
	Users    *store.UserStore
	Producer *events.Producer
}

type userRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (h *UserHandler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"Current User": auth.CurrentUser(c)})
}

func (h *UserHandler) Profile(c echo.Context) error {
	return c.JSON(http.StatusOK, auth.CurrentUser(c))
}

func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	user, err := h.Users.GetByID(c.Request().Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_create")

	var req userRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Users.Create(ctx, req.Name, req.Email, req.Role, req.Password)
	if err != nil {
		if err == store.ErrEmailTaken {
			return echo.NewHTTPError(http.StatusNotFound, "User already exists!")
		}
		l.Error("create failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]interface{}{"action": "created", "id": user.ID, "email": user.Email})
	l.Info("user created", "user_id", user.ID)
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req userRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Users.Update(ctx, id, req.Name, req.Email, req.Role)
	if err != nil {
		switch err {
		case store.ErrNotFound:
			return echo.NewHTTPError(http.StatusNotFound, "User does not exist!")
		case store.ErrEmailTaken:
			return echo.NewHTTPError(http.StatusNotFound, "User already exists!")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]interface{}{"action": "updated", "id": user.ID, "email": user.Email})
	return c.JSON(http.StatusOK, user)
}

// Delete removes an account. The authenticated caller may not delete
// themself.
func (h *UserHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c)
	if err != nil {
		return err
	}

	target, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User does not exist !")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if current := auth.CurrentUser(c); current != nil && current.ID == target.ID {
		return echo.NewHTTPError(http.StatusNotFound, "You cannot delete yourself!")
	}

	if err := h.Users.Delete(ctx, id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]interface{}{"action": "deleted", "id": id})
	return c.JSON(http.StatusOK, echo.Map{"message": "User Deleted"})
}

func (h *UserHandler) List(c echo.Context) error {
	users, err := h.Users.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx := c.Request().Context()
	key := strconv.FormatUint(uint64(asUint(event["id"])), 10)
	if err := h.Producer.Publish(ctx, events.TopicUserEvents, key, event); err != nil {
		logging.FromContext(ctx).Warn("user event publish failed", "error", err)
	}
}

func asUint(v interface{}) uint {
	if id, ok := v.(uint); ok {
		return id
	}
	return 0
}

func pathID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

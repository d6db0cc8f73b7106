package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jmorand/crm-backend/internal/events"
	"github.com/jmorand/crm-backend/internal/logging"
	"github.com/jmorand/crm-backend/internal/middleware/auth"
	"github.com/jmorand/crm-backend/internal/models"
	"github.com/jmorand/crm-backend/internal/search"
	"github.com/jmorand/crm-backend/internal/store"
	"github.com/jmorand/crm-backend/internal/util"
)

// ContactHandler serves the CRM record endpoints under /crm. Search is nil
// when no Elasticsearch cluster is configured.
type ContactHandler struct {
	Contacts *store.ContactStore
	Producer *events.Producer
	Search   *search.Service
}

type contactRequest struct {
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Telephone string `json:"telephone"`
}

func (h *ContactHandler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"current_user": auth.CurrentUser(c)})
}

func (h *ContactHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	contact, err := h.Contacts.GetByID(c.Request().Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) GetByEmail(c echo.Context) error {
	contact, err := h.Contacts.GetByEmail(c.Request().Context(), c.Param("email"))
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "contact_create")

	var req contactRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	contact := &models.Contact{
		Name:      req.Name,
		FirstName: req.FirstName,
		Email:     req.Email,
		Telephone: req.Telephone,
	}
	if err := h.Contacts.Create(ctx, contact); err != nil {
		if err == store.ErrEmailTaken {
			return echo.NewHTTPError(http.StatusNotFound, "User already exists!")
		}
		l.Error("create failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.index(c, contact)
	h.publish(c, map[string]interface{}{"action": "created", "id": contact.ID, "email": contact.Email})
	l.Info("contact created", "contact_id", contact.ID)
	return c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req contactRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	contact, err := h.Contacts.Update(ctx, id, models.Contact{
		Name:      req.Name,
		FirstName: req.FirstName,
		Email:     req.Email,
		Telephone: req.Telephone,
	})
	if err != nil {
		switch err {
		case store.ErrNotFound:
			return echo.NewHTTPError(http.StatusNotFound, "User does not exist!")
		case store.ErrEmailTaken:
			return echo.NewHTTPError(http.StatusNotFound, "User already exists!")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.index(c, contact)
	h.publish(c, map[string]interface{}{"action": "updated", "id": contact.ID, "email": contact.Email})
	return c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c)
	if err != nil {
		return err
	}

	if err := h.Contacts.Delete(ctx, id); err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User does not exist !")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if h.Search != nil {
		if err := h.Search.DeleteContact(ctx, id); err != nil {
			logging.FromContext(ctx).Warn("contact deindex failed", "contact_id", id, "error", err)
		}
	}
	h.publish(c, map[string]interface{}{"action": "deleted", "id": id})
	return c.JSON(http.StatusOK, echo.Map{"message": "User Deleted"})
}

func (h *ContactHandler) List(c echo.Context) error {
	contacts, err := h.Contacts.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, contacts)
}

// SearchContacts is full-text lookup over the contact index. 503 when no
// cluster is configured.
func (h *ContactHandler) SearchContacts(c echo.Context) error {
	if h.Search == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is not configured")
	}
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing query")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	from, size := util.Calculate(page, size)

	total, contacts, err := h.Search.Search(c.Request().Context(), q, from, size)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "users": contacts})
}

func (h *ContactHandler) index(c echo.Context, contact *models.Contact) {
	if h.Search == nil {
		return
	}
	ctx := c.Request().Context()
	if err := h.Search.IndexContact(ctx, contact); err != nil {
		logging.FromContext(ctx).Warn("contact index failed", "contact_id", contact.ID, "error", err)
	}
}

func (h *ContactHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx := c.Request().Context()
	key := strconv.FormatUint(uint64(asUint(event["id"])), 10)
	if err := h.Producer.Publish(ctx, events.TopicContactEvents, key, event); err != nil {
		logging.FromContext(ctx).Warn("contact event publish failed", "error", err)
	}
}

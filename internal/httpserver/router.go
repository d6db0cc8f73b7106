package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jmorand/crm-backend/internal/handlers"
	"github.com/jmorand/crm-backend/internal/middleware/auth"
)

type Deps struct {
	Auth     *handlers.AuthHandler
	Users    *handlers.UserHandler
	Contacts *handlers.ContactHandler
	Manifest *handlers.ManifestHandler
	Guard    *auth.Guard
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"message": "Welcome to CRM API!"})
	})
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	ag := e.Group("/auth")
	ag.POST("/token", d.Auth.Token)
	ag.GET("/verify_token", d.Auth.VerifyToken, d.Guard.RequireUser)

	users := e.Group("/auth/user")
	// Account creation is deliberately open, matching the original API.
	users.POST("/create/", d.Users.Create)

	managed := users.Group("", d.Guard.RequireUser)
	managed.GET("/", d.Users.Root)
	managed.GET("/profile", d.Users.Profile, auth.RequireActive)
	managed.GET("/users/", d.Users.List)
	managed.GET("/users/:id", d.Users.Get)
	managed.PUT("/users/:id", d.Users.Update)
	managed.DELETE("/users/:id", d.Users.Delete)

	crm := e.Group("/crm", d.Guard.RequireUser)
	crm.GET("/", d.Contacts.Root)
	crm.GET("/users/", d.Contacts.List)
	crm.GET("/users/search", d.Contacts.SearchContacts)
	crm.GET("/users/:id", d.Contacts.Get)
	crm.GET("/users/email/:email", d.Contacts.GetByEmail)
	crm.POST("/users/", d.Contacts.Create)
	crm.PUT("/users/:id", d.Contacts.Update)
	crm.DELETE("/users/:id", d.Contacts.Delete)

	update := e.Group("/update")
	update.GET("/latest", d.Manifest.Latest)
}

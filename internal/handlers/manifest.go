package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jmorand/crm-backend/internal/logging"
	"github.com/jmorand/crm-backend/internal/manifest"
)

// ManifestHandler serves the client-update manifest.
type ManifestHandler struct {
	Manifest *manifest.Service
}

// Latest returns the manifest of the current client distribution, rebuilt
// only when the directory changed since the last request.
func (h *ManifestHandler) Latest(c echo.Context) error {
	m, err := h.Manifest.GetOrRebuild()
	if err != nil {
		logging.FromContext(c.Request().Context()).Error("manifest rebuild failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

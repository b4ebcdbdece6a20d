package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/itportfolio/apptrack/internal/queue"
	"github.com/itportfolio/apptrack/internal/repository"
	queue_publisher "github.com/itportfolio/apptrack/internal/service"
)

// ApplicationHandler serves the application aggregate endpoints.
type ApplicationHandler struct {
	Apps *repository.ApplicationRepo
}

func NewApplicationHandler(apps *repository.ApplicationRepo) *ApplicationHandler {
	return &ApplicationHandler{Apps: apps}
}

// appID parses the :id path parameter. Per the external contract a
// malformed id is indistinguishable from an unknown one, so both surface
// as not-found.
func appID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// Create handles POST /v1/applications.
func (h *ApplicationHandler) Create(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return fail(c, http.StatusBadRequest, "application name is required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	a, err := h.Apps.Create(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrAppNameExists) {
			return fail(c, http.StatusConflict, "an application with this name already exists")
		}
		return fail(c, http.StatusInternalServerError, "could not create application")
	}

	_ = queue_publisher.PublishActivity(c.Request().Context(), queue.ActivityEvent{
		Kind:            queue.KindApplicationCreated,
		ApplicationID:   a.ID,
		ApplicationName: a.Name,
		ActorID:         actorID,
		OccurredAt:      time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "application": a})
}

// List handles GET /v1/applications and returns every application with its
// embedded phases, ordered by creation time ascending.
func (h *ApplicationHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	apps, err := h.Apps.ListAll(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "could not list applications")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "applications": apps})
}

// Get handles GET /v1/applications/:id.
func (h *ApplicationHandler) Get(c echo.Context) error {
	id, ok := appID(c)
	if !ok {
		return fail(c, http.StatusNotFound, "application not found")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	a, err := h.Apps.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAppNotFound) {
			return fail(c, http.StatusNotFound, "application not found")
		}
		return fail(c, http.StatusInternalServerError, "could not load application")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "application": a})
}

// Rename handles PATCH /v1/applications/:id.
func (h *ApplicationHandler) Rename(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	id, ok := appID(c)
	if !ok {
		return fail(c, http.StatusNotFound, "application not found")
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return fail(c, http.StatusBadRequest, "application name is required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Apps.UpdateName(ctx, id, name); err != nil {
		switch {
		case errors.Is(err, repository.ErrAppNotFound):
			return fail(c, http.StatusNotFound, "application not found")
		case errors.Is(err, repository.ErrAppNameExists):
			return fail(c, http.StatusConflict, "an application with this name already exists")
		}
		return fail(c, http.StatusInternalServerError, "rename failed")
	}

	a, err := h.Apps.GetByID(ctx, id)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "could not load application")
	}

	_ = queue_publisher.PublishActivity(c.Request().Context(), queue.ActivityEvent{
		Kind:            queue.KindApplicationRenamed,
		ApplicationID:   a.ID,
		ApplicationName: a.Name,
		ActorID:         actorID,
		OccurredAt:      time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{"success": true, "application": a})
}

// Delete handles DELETE /v1/applications/:id. The application, its phases
// and every connected service referencing it are removed in one
// transaction.
func (h *ApplicationHandler) Delete(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	id, ok := appID(c)
	if !ok {
		return fail(c, http.StatusNotFound, "application not found")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Apps.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrAppNotFound) {
			return fail(c, http.StatusNotFound, "application not found")
		}
		return fail(c, http.StatusInternalServerError, "delete failed")
	}

	_ = queue_publisher.PublishActivity(c.Request().Context(), queue.ActivityEvent{
		Kind:          queue.KindApplicationDeleted,
		ApplicationID: id,
		ActorID:       actorID,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "application deleted"})
}

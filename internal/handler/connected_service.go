package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/itportfolio/apptrack/internal/queue"
	"github.com/itportfolio/apptrack/internal/repository"
	queue_publisher "github.com/itportfolio/apptrack/internal/service"
)

// ConnectedServiceHandler serves the registry of external systems linked
// to applications.
type ConnectedServiceHandler struct {
	Services *repository.ConnectedServiceRepo
}

func NewConnectedServiceHandler(s *repository.ConnectedServiceRepo) *ConnectedServiceHandler {
	return &ConnectedServiceHandler{Services: s}
}

// Add handles POST /v1/applications/:id/services.
func (h *ConnectedServiceHandler) Add(c echo.Context) error {
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
		return fail(c, http.StatusBadRequest, "service name is required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	svc, err := h.Services.Create(ctx, id, name)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAppNotFound):
			return fail(c, http.StatusNotFound, "application not found")
		case errors.Is(err, repository.ErrServiceNameExists):
			return fail(c, http.StatusConflict, "a service with this name is already connected to this application")
		}
		return fail(c, http.StatusInternalServerError, "could not connect service")
	}

	_ = queue_publisher.PublishActivity(c.Request().Context(), queue.ActivityEvent{
		Kind:          queue.KindServiceConnected,
		ApplicationID: id,
		Subject:       svc.Name,
		ActorID:       actorID,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "service": svc})
}

// List handles GET /v1/applications/:id/services. An application with no
// connected services yields an empty list, not an error.
func (h *ConnectedServiceHandler) List(c echo.Context) error {
	id, ok := appID(c)
	if !ok {
		return fail(c, http.StatusNotFound, "application not found")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	services, err := h.Services.ListByApplication(ctx, id)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "could not list services")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "services": services})
}

// Update handles PATCH /v1/services/:id, renaming a service with the same
// per-application uniqueness check as creation.
func (h *ConnectedServiceHandler) Update(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	serviceID := strings.TrimSpace(c.Param("id"))
	if serviceID == "" {
		return fail(c, http.StatusNotFound, "connected service not found")
	}
	var body struct {
		Name *string `json:"name"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if body.Name == nil {
		// Nothing to change; return the current record.
		ctx, cancel := reqCtx(c)
		defer cancel()
		svc, err := h.Services.GetByID(ctx, serviceID)
		if err != nil {
			if errors.Is(err, repository.ErrServiceNotFound) {
				return fail(c, http.StatusNotFound, "connected service not found")
			}
			return fail(c, http.StatusInternalServerError, "could not load service")
		}
		return c.JSON(http.StatusOK, echo.Map{"success": true, "service": svc})
	}
	name := strings.TrimSpace(*body.Name)
	if name == "" {
		return fail(c, http.StatusBadRequest, "service name must not be empty")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	svc, err := h.Services.UpdateName(ctx, serviceID, name)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrServiceNotFound):
			return fail(c, http.StatusNotFound, "connected service not found")
		case errors.Is(err, repository.ErrServiceNameExists):
			return fail(c, http.StatusConflict, "a service with this name is already connected to this application")
		}
		return fail(c, http.StatusInternalServerError, "could not update service")
	}

	_ = queue_publisher.PublishActivity(c.Request().Context(), queue.ActivityEvent{
		Kind:          queue.KindServiceUpdated,
		ApplicationID: svc.ApplicationID,
		Subject:       svc.Name,
		ActorID:       actorID,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{"success": true, "service": svc})
}

// Delete handles DELETE /v1/services/:id.
func (h *ConnectedServiceHandler) Delete(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	serviceID := strings.TrimSpace(c.Param("id"))
	if serviceID == "" {
		return fail(c, http.StatusNotFound, "connected service not found")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Services.DeleteByID(ctx, serviceID); err != nil {
		if errors.Is(err, repository.ErrServiceNotFound) {
			return fail(c, http.StatusNotFound, "connected service not found")
		}
		return fail(c, http.StatusInternalServerError, "could not delete service")
	}

	_ = queue_publisher.PublishActivity(c.Request().Context(), queue.ActivityEvent{
		Kind:       queue.KindServiceRemoved,
		Subject:    serviceID,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "connected service deleted"})
}

package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/itportfolio/apptrack/internal/model"
	"github.com/itportfolio/apptrack/internal/queue"
	"github.com/itportfolio/apptrack/internal/repository"
	queue_publisher "github.com/itportfolio/apptrack/internal/service"
)

// PhaseHandler serves the embedded-phase endpoints. Mutations return the
// whole updated application so clients always see the aggregate after a
// change.
type PhaseHandler struct {
	Apps   *repository.ApplicationRepo
	Phases *repository.PhaseRepo
}

func NewPhaseHandler(apps *repository.ApplicationRepo, phases *repository.PhaseRepo) *PhaseHandler {
	return &PhaseHandler{Apps: apps, Phases: phases}
}

// completionDateLayout is the wire format of phase completion dates; they
// are calendar dates with no time component.
const completionDateLayout = "2006-01-02"

// Add handles POST /v1/applications/:id/phases.
func (h *PhaseHandler) Add(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	id, ok := appID(c)
	if !ok {
		return fail(c, http.StatusNotFound, "application not found")
	}
	var body struct {
		Name           string `json:"name"`
		CompletionDate string `json:"completion_date"`
		Description    string `json:"description"`
		Status         string `json:"status"`
		Order          *int   `json:"order"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return fail(c, http.StatusBadRequest, "phase name is required")
	}
	date, err := time.Parse(completionDateLayout, body.CompletionDate)
	if err != nil {
		return fail(c, http.StatusBadRequest, "completion_date must be a date of the form YYYY-MM-DD")
	}
	status := model.PhaseStatus(body.Status)
	if body.Status == "" {
		status = model.PhaseStatusPending
	} else if !model.ValidPhaseStatus(status) {
		return fail(c, http.StatusBadRequest, "status must be pending, in-progress or completed")
	}
	order := 0
	if body.Order != nil {
		order = *body.Order
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Phases.Add(ctx, id, name, date, strings.TrimSpace(body.Description), status, order)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAppNotFound):
			return fail(c, http.StatusNotFound, "application not found")
		case errors.Is(err, repository.ErrPhaseNameExists):
			return fail(c, http.StatusConflict, "a phase with this name already exists in this application")
		}
		return fail(c, http.StatusInternalServerError, "could not add phase")
	}

	a, err := h.Apps.GetByID(ctx, id)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "could not load application")
	}

	_ = queue_publisher.PublishActivity(c.Request().Context(), queue.ActivityEvent{
		Kind:            queue.KindPhaseAdded,
		ApplicationID:   a.ID,
		ApplicationName: a.Name,
		Subject:         p.Name,
		ActorID:         actorID,
		OccurredAt:      time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "application": a})
}

// Update handles PATCH /v1/phases/:id. The phase is addressed by its own
// id; the owning application is discovered by the repository. Only the
// supplied fields change.
func (h *PhaseHandler) Update(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	phaseID := strings.TrimSpace(c.Param("id"))
	if phaseID == "" {
		return fail(c, http.StatusNotFound, "phase not found")
	}
	var body struct {
		Name           *string `json:"name"`
		CompletionDate *string `json:"completion_date"`
		Description    *string `json:"description"`
		Status         *string `json:"status"`
		Order          *int    `json:"order"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}

	var upd repository.PhaseUpdate
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			return fail(c, http.StatusBadRequest, "phase name must not be empty")
		}
		upd.Name = &name
	}
	if body.CompletionDate != nil {
		date, err := time.Parse(completionDateLayout, *body.CompletionDate)
		if err != nil {
			return fail(c, http.StatusBadRequest, "completion_date must be a date of the form YYYY-MM-DD")
		}
		upd.CompletionDate = &date
	}
	if body.Description != nil {
		desc := strings.TrimSpace(*body.Description)
		upd.Description = &desc
	}
	if body.Status != nil {
		status := model.PhaseStatus(*body.Status)
		if !model.ValidPhaseStatus(status) {
			return fail(c, http.StatusBadRequest, "status must be pending, in-progress or completed")
		}
		upd.Status = &status
	}
	if body.Order != nil {
		upd.SortOrder = body.Order
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	ownerID, err := h.Phases.UpdateByID(ctx, phaseID, upd)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPhaseNotFound):
			return fail(c, http.StatusNotFound, "phase not found")
		case errors.Is(err, repository.ErrPhaseNameExists):
			return fail(c, http.StatusConflict, "a phase with this name already exists in this application")
		}
		return fail(c, http.StatusInternalServerError, "could not update phase")
	}

	a, err := h.Apps.GetByID(ctx, ownerID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "could not load application")
	}

	_ = queue_publisher.PublishActivity(c.Request().Context(), queue.ActivityEvent{
		Kind:            queue.KindPhaseUpdated,
		ApplicationID:   a.ID,
		ApplicationName: a.Name,
		Subject:         phaseID,
		ActorID:         actorID,
		OccurredAt:      time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{"success": true, "application": a})
}

// Delete handles DELETE /v1/phases/:id with an atomic single-row delete;
// sibling phases are untouched.
func (h *PhaseHandler) Delete(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	phaseID := strings.TrimSpace(c.Param("id"))
	if phaseID == "" {
		return fail(c, http.StatusNotFound, "phase not found")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	ownerID, err := h.Phases.DeleteByID(ctx, phaseID)
	if err != nil {
		if errors.Is(err, repository.ErrPhaseNotFound) {
			return fail(c, http.StatusNotFound, "phase not found")
		}
		return fail(c, http.StatusInternalServerError, "could not delete phase")
	}

	a, err := h.Apps.GetByID(ctx, ownerID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "could not load application")
	}

	_ = queue_publisher.PublishActivity(c.Request().Context(), queue.ActivityEvent{
		Kind:            queue.KindPhaseDeleted,
		ApplicationID:   a.ID,
		ApplicationName: a.Name,
		Subject:         phaseID,
		ActorID:         actorID,
		OccurredAt:      time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{"success": true, "application": a})
}

// List handles GET /v1/applications/:id/phases, sorted by the order field
// ascending with insertion order as the tie-break.
func (h *PhaseHandler) List(c echo.Context) error {
	id, ok := appID(c)
	if !ok {
		return fail(c, http.StatusNotFound, "application not found")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	phases, err := h.Phases.ListByApplication(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAppNotFound) {
			return fail(c, http.StatusNotFound, "application not found")
		}
		return fail(c, http.StatusInternalServerError, "could not list phases")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "phases": phases})
}

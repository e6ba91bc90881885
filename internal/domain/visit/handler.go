package visit

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/odonto/odonto/internal/domain/odontogram"
	"github.com/odonto/odonto/internal/domain/patient"
	"github.com/odonto/odonto/internal/platform/auth"
	"github.com/odonto/odonto/internal/platform/websocket"
	"github.com/odonto/odonto/pkg/pagination"
)

type Handler struct {
	svc    *Service
	events websocket.EventPublisher
}

// NewHandler serves visits. events may be nil.
func NewHandler(svc *Service, events websocket.EventPublisher) *Handler {
	return &Handler{svc: svc, events: events}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RoleDentist, auth.RoleAssistant))
	readGroup.GET("/visits", h.ListVisits)
	readGroup.GET("/visits/:id", h.GetVisit)
	readGroup.GET("/patients/:id/odontogram/history", h.GetHistory)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleDentist, auth.RoleAssistant))
	writeGroup.POST("/visits", h.CreateVisit)
	writeGroup.PUT("/visits/:id", h.UpdateVisit)
	writeGroup.PUT("/visits/:id/odontogram", h.SaveChart)
	writeGroup.DELETE("/visits/:id", h.DeleteVisit)

	// Only the treating dentist closes a visit.
	dentistGroup := api.Group("", auth.RequireRole(auth.RoleDentist))
	dentistGroup.POST("/visits/:id/finalize", h.FinalizeVisit)
}

// httpError maps service errors onto status codes. Anything unrecognized
// gets the fallback code.
func httpError(err error, fallback int) error {
	switch {
	case errors.Is(err, ErrVisitNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "visit not found")
	case errors.Is(err, ErrVisitFinalized):
		return echo.NewHTTPError(http.StatusConflict, "visit is finalized and can no longer be changed")
	case errors.Is(err, patient.ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return echo.NewHTTPError(fallback, err.Error())
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreateVisit(c echo.Context) error {
	var v Visit
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateVisit(c.Request().Context(), &v); err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetVisit(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.GetVisit(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListVisits(c echo.Context) error {
	pg := pagination.FromContext(c)

	if patientID := c.QueryParam("patient_id"); patientID != "" {
		pid, err := uuid.Parse(patientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		visits, total, err := h.svc.ListVisitsByPatient(c.Request().Context(), pid, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(visits, total, pg))
	}

	visits, total, err := h.svc.ListVisits(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(visits, total, pg))
}

func (h *Handler) UpdateVisit(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var d Details
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.UpdateDetails(c.Request().Context(), id, d)
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) SaveChart(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body struct {
		Chart odontogram.Chart `json:"chart"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.SaveCurrentChart(c.Request().Context(), id, body.Chart)
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	publish(c.Request().Context(), h.events, h.svc, websocket.EventChartSaved, v.ID, uuid.Nil, chartEvent{Chart: v.Odontogramas.Current, Status: v.Status})
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) FinalizeVisit(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.FinalizeVisit(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	publish(c.Request().Context(), h.events, h.svc, websocket.EventVisitFinalized, v.ID, uuid.Nil, chartEvent{Status: v.Status})
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DeleteVisit(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteVisit(c.Request().Context(), id); err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetHistory returns the accumulated chart of the patient's finalized
// visits. ?exclude= leaves one visit out.
func (h *Handler) GetHistory(c echo.Context) error {
	pid, err := parseID(c)
	if err != nil {
		return err
	}
	exclude := uuid.Nil
	if raw := c.QueryParam("exclude"); raw != "" {
		if exclude, err = uuid.Parse(raw); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid exclude")
		}
	}
	return c.JSON(http.StatusOK, h.svc.History(c.Request().Context(), pid, exclude))
}

package visit

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/odonto/odonto/internal/domain/odontogram"
	"github.com/odonto/odonto/internal/platform/auth"
	"github.com/odonto/odonto/internal/platform/websocket"
)

// Chart layers a session can open.
const (
	LayerCurrent = "current"
	LayerHistory = "history"
)

// SessionHandler exposes chart editors over HTTP. Each session edits one
// visit's chart in memory until it is saved. Changes are published to events
// when it is set.
type SessionHandler struct {
	svc    *Service
	store  *odontogram.SessionStore
	events websocket.EventPublisher
}

func NewSessionHandler(svc *Service, store *odontogram.SessionStore, events websocket.EventPublisher) *SessionHandler {
	return &SessionHandler{svc: svc, store: store, events: events}
}

func (h *SessionHandler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleDentist, auth.RoleAssistant))
	g.POST("/visits/:id/sessions", h.OpenSession)
	g.GET("/sessions/:sid", h.GetSession)
	g.POST("/sessions/:sid/tool", h.ActivateTool)
	g.POST("/sessions/:sid/actions", h.ApplyAction)
	g.POST("/sessions/:sid/save", h.SaveSession)
	g.DELETE("/sessions/:sid", h.CloseSession)
}

type openSessionRequest struct {
	Layer    string           `json:"layer"`
	ReadOnly bool             `json:"read_only"`
	Color    odontogram.Color `json:"color"`
}

// OpenSession starts an editor on a visit. The history layer and finalized
// visits always open read-only.
func (h *SessionHandler) OpenSession(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req openSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Color != "" && !req.Color.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "color must be red or blue")
	}

	ctx := c.Request().Context()
	v, err := h.svc.GetVisit(ctx, id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}

	opts := odontogram.EditorOptions{Color: req.Color}
	switch req.Layer {
	case "", LayerCurrent:
		opts.InitialConditions = v.Odontogramas.Current
		opts.ReadOnly = req.ReadOnly || v.Finalized()
		if opts.Color == "" {
			opts.Color = odontogram.ColorRed
		}
	case LayerHistory:
		if v.Finalized() {
			opts.InitialConditions = v.Odontogramas.History
		} else {
			opts.InitialConditions = h.svc.History(ctx, v.PatientID, v.ID).Chart
		}
		opts.ReadOnly = true
		if opts.Color == "" {
			opts.Color = odontogram.ColorBlue
		}
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "layer must be current or history")
	}

	sess := h.store.Open(v.ID, opts)
	snap := sess.Snapshot()
	publish(ctx, h.events, h.svc, websocket.EventSessionOpened, v.ID, snap.ID, chartEvent{Tool: snap.Tool, Summary: &snap.Summary})
	return c.JSON(http.StatusCreated, snap)
}

func (h *SessionHandler) session(c echo.Context) (*odontogram.Session, error) {
	sid, err := uuid.Parse(c.Param("sid"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	sess, err := h.store.Get(sid)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return sess, nil
}

func (h *SessionHandler) GetSession(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.Snapshot())
}

func (h *SessionHandler) ActivateTool(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var body struct {
		Tool odontogram.Tool `json:"tool"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !body.Tool.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid tool")
	}
	return c.JSON(http.StatusOK, sess.Activate(body.Tool))
}

type actionResponse struct {
	Applied bool               `json:"applied"`
	Tool    odontogram.Tool    `json:"tool"`
	Chart   odontogram.Chart   `json:"chart"`
	Summary odontogram.Summary `json:"summary"`
}

// ApplyAction runs one edit. Rejected edits are not errors: the response
// reports applied=false with the unchanged chart.
func (h *SessionHandler) ApplyAction(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var a odontogram.Action
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	applied, snap := sess.Apply(a)
	if applied {
		publish(c.Request().Context(), h.events, h.svc, websocket.EventChartChanged, snap.VisitID, snap.ID,
			chartEvent{Tool: snap.Tool, Chart: snap.Chart, Summary: &snap.Summary})
	}
	return c.JSON(http.StatusOK, actionResponse{
		Applied: applied,
		Tool:    snap.Tool,
		Chart:   snap.Chart,
		Summary: snap.Summary,
	})
}

type saveResponse struct {
	Saved bool   `json:"saved"`
	Visit *Visit `json:"visit,omitempty"`
}

// SaveSession hands the session's latest chart to the visit. A session
// without pending edits saves nothing.
func (h *SessionHandler) SaveSession(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	if sess.Snapshot().ReadOnly {
		return echo.NewHTTPError(http.StatusConflict, "session is read-only")
	}
	pending := sess.Pending()
	if !pending.Dirty {
		return c.JSON(http.StatusOK, saveResponse{Saved: false})
	}
	v, err := h.svc.SaveCurrentChart(c.Request().Context(), sess.VisitID, pending.Chart)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	// Edits applied during the write keep the session dirty.
	sess.MarkSaved(pending.Version)
	publish(c.Request().Context(), h.events, h.svc, websocket.EventChartSaved, v.ID, sess.ID, chartEvent{Chart: pending.Chart, Status: v.Status})
	return c.JSON(http.StatusOK, saveResponse{Saved: true, Visit: v})
}

func (h *SessionHandler) CloseSession(c echo.Context) error {
	sid, err := uuid.Parse(c.Param("sid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	sess, err := h.store.Get(sid)
	if err != nil || !h.store.Close(sid) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	publish(c.Request().Context(), h.events, h.svc, websocket.EventSessionClosed, sess.VisitID, sid, nil)
	return c.NoContent(http.StatusNoContent)
}

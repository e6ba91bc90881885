package visit

import (
	"context"

	"github.com/google/uuid"

	"github.com/odonto/odonto/internal/domain/odontogram"
	"github.com/odonto/odonto/internal/platform/websocket"
)

// chartEvent is the payload of editor and save events.
type chartEvent struct {
	Tool    odontogram.Tool     `json:"tool,omitempty"`
	Chart   odontogram.Chart    `json:"chart,omitempty"`
	Summary *odontogram.Summary `json:"summary,omitempty"`
	Status  string              `json:"status,omitempty"`
}

// publish sends a live event for a visit. A nil publisher disables events
// and delivery failures never fail the request.
func publish(ctx context.Context, pub websocket.EventPublisher, svc *Service, typ string, visitID, sessionID uuid.UUID, payload any) {
	if pub == nil {
		return
	}
	ev, err := websocket.NewEvent(typ, visitID, sessionID, payload)
	if err == nil {
		err = pub.Publish(ctx, ev)
	}
	if err != nil {
		svc.logger.Warn().Err(err).Str("type", typ).Str("visit_id", visitID.String()).Msg("live event not delivered")
	}
}

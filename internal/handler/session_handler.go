package handler

import (
	"encoding/json"
	"errors"

	"helmet-compliance-be/internal/pkg/logger"
	"helmet-compliance-be/internal/service"
	internalWS "helmet-compliance-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// SessionHandler streams state snapshots of one form or detection session over a websocket.
type SessionHandler struct {
	forms      service.IFormService
	detections service.IDetectionService
	hub        *internalWS.Hub
	logger     logger.ILogger
}

func NewSessionHandler(forms service.IFormService, detections service.IDetectionService, hub *internalWS.Hub, log logger.ILogger) *SessionHandler {
	return &SessionHandler{
		forms:      forms,
		detections: detections,
		hub:        hub,
		logger:     log,
	}
}

func (h *SessionHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/ws/sessions/:id", h.ServeWs)
}

// ServeWs checks that the session exists, then upgrades and sends the current snapshot
// followed by every change.
func (h *SessionHandler) ServeWs(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	initial, err := h.snapshot(c, sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("SessionHandler", "Starting WebSocket session", map[string]interface{}{"session_id": sessionID})
			internalWS.ServeWs(h.hub, conn, sessionID, initial)
			h.logger.Info("SessionHandler", "WebSocket session ended", map[string]interface{}{"session_id": sessionID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

func (h *SessionHandler) snapshot(c *fiber.Ctx, id string) ([]byte, error) {
	var data interface{}
	if res, err := h.forms.Get(c.UserContext(), id); err == nil {
		data = res
	} else if res, err := h.detections.Get(c.UserContext(), id); err == nil {
		data = res
	} else {
		return nil, err
	}

	return json.Marshal(map[string]interface{}{
		"type": "SESSION_SNAPSHOT",
		"data": data,
	})
}

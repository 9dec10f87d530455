package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/manual-hunter/backend/internal/resolver"
	"github.com/manual-hunter/backend/pkg/logger"
)

// WebSocketHandler streams resolver state transitions to the client while a
// resolution runs, then sends the terminal result.
type WebSocketHandler struct {
	resolver *resolver.Resolver
}

func NewWebSocketHandler(r *resolver.Resolver) *WebSocketHandler {
	return &WebSocketHandler{resolver: r}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var req ResolveRequest
		if err := c.ReadJSON(&req); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if req.Manufacturer == "" || req.ModelNumber == "" {
			h.send(c, map[string]interface{}{
				"type":  "error",
				"error": "manufacturer and model_number are required",
			})
			continue
		}

		h.streamResolution(c, req)
	}
}

func (h *WebSocketHandler) streamResolution(c *websocket.Conn, req ResolveRequest) {
	progress := func(phase string, tier int) {
		h.send(c, map[string]interface{}{
			"type":  "progress",
			"phase": phase,
			"tier":  tier,
		})
	}

	result := h.resolver.ResolveWithProgress(context.Background(), req.toEquipment(), progress)

	payload := map[string]interface{}{"type": "result"}
	for k, v := range resultPayload(result) {
		payload[k] = v
	}
	h.send(c, payload)
}

func (h *WebSocketHandler) send(c *websocket.Conn, msg map[string]interface{}) {
	if err := c.WriteJSON(msg); err != nil {
		logger.Warn("Failed to write WebSocket message", zap.Error(err))
	}
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-cs/internal/ports"
)

// ConnectionHandler serves the admin view of which charge points currently
// hold a live OCPP WebSocket connection.
type ConnectionHandler struct {
	commands ports.OCPPCommandService
	log      *zap.Logger
}

func NewConnectionHandler(commands ports.OCPPCommandService, log *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{commands: commands, log: log}
}

// List handles GET /api/connections.
func (h *ConnectionHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"connected": h.commands.GetConnectedClients()})
}

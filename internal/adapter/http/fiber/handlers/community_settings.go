package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

// CommunitySettingsHandler serves the single shared-contract row driving
// the Smart Charging Coordinator's current-sharing policy.
type CommunitySettingsHandler struct {
	settings      ports.CommunitySettingsRepository
	smartCharging ports.SmartChargingCoordinator
	log           *zap.Logger
}

func NewCommunitySettingsHandler(settings ports.CommunitySettingsRepository, smartCharging ports.SmartChargingCoordinator, log *zap.Logger) *CommunitySettingsHandler {
	return &CommunitySettingsHandler{settings: settings, smartCharging: smartCharging, log: log}
}

// Get handles GET /api/community-settings.
func (h *CommunitySettingsHandler) Get(c *fiber.Ctx) error {
	settings, err := h.settings.Get(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	if settings == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": "community settings not configured"})
	}
	return c.JSON(settings)
}

type communitySettingsRequest struct {
	ContractKW            float64 `json:"contractKW"`
	VoltageV              float64 `json:"voltageV"`
	MinCurrentA           float64 `json:"minCurrentA"`
	MaxCurrentA           float64 `json:"maxCurrentA"`
	SmartChargingDisabled bool    `json:"smartChargingDisabled"`
}

// Update handles POST /api/community-settings; it upserts the singleton
// row and immediately rebalances every active session against the new
// policy rather than waiting for the next Start/Stop to trigger it.
func (h *CommunitySettingsHandler) Update(c *fiber.Ctx) error {
	var req communitySettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "invalid body"})
	}

	settings := &domain.CommunitySettings{
		ContractKW:            req.ContractKW,
		VoltageV:              req.VoltageV,
		MinCurrentA:           req.MinCurrentA,
		MaxCurrentA:           req.MaxCurrentA,
		SmartChargingDisabled: req.SmartChargingDisabled,
	}
	if err := h.settings.Save(c.Context(), settings); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}

	h.smartCharging.OnSettingsChanged(c.Context())
	go h.smartCharging.Rebalance(context.Background(), "community-settings-updated")

	return c.JSON(settings)
}

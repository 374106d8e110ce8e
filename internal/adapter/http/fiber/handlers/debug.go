package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

// DebugHandler exposes read-only diagnostics that retrace the transaction
// engine's admission logic without creating a transaction, so operators
// can explain a Blocked/Invalid decision without provoking one for real.
type DebugHandler struct {
	idTags       ports.IdTagRepository
	cards        ports.CardRepository
	whitelist    ports.WhitelistRepository
	transactions ports.TransactionRepository
	smartCharging ports.SmartChargingCoordinator
	log          *zap.Logger
}

func NewDebugHandler(
	idTags ports.IdTagRepository,
	cards ports.CardRepository,
	whitelist ports.WhitelistRepository,
	transactions ports.TransactionRepository,
	smartCharging ports.SmartChargingCoordinator,
	log *zap.Logger,
) *DebugHandler {
	return &DebugHandler{
		idTags:        idTags,
		cards:         cards,
		whitelist:     whitelist,
		transactions:  transactions,
		smartCharging: smartCharging,
		log:           log,
	}
}

// StartTransactionCheck handles GET /api/debug/start-transaction-check,
// dry-running the same admission order the transaction engine applies on
// StartTransaction: idTag lookup, card balance, whitelist, Smart Charging
// capacity.
func (h *DebugHandler) StartTransactionCheck(c *fiber.Ctx) error {
	chargePointID := c.Query("chargePointId")
	idTag := c.Query("idTag")
	if chargePointID == "" || idTag == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "chargePointId and idTag are required"})
	}

	result := fiber.Map{"chargePointId": chargePointID, "idTag": idTag}

	tag, err := h.idTags.FindByIdTag(c.Context(), idTag)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	if tag == nil {
		result["status"] = "Invalid"
		result["reason"] = "idTag not registered"
		return c.JSON(result)
	}
	result["cardId"] = tag.CardID

	if resolved := tag.Resolve(time.Now()); resolved != domain.IdTagStatusAccepted {
		result["status"] = string(resolved)
		result["reason"] = "id tag status/expiry is not Accepted"
		return c.JSON(result)
	}

	card, err := h.cards.FindByID(c.Context(), tag.CardID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	if card == nil || card.BalanceNT <= 0 {
		result["status"] = "Blocked"
		result["reason"] = "card absent or balance exhausted"
		return c.JSON(result)
	}
	result["balanceNT"] = card.BalanceNT

	allowed, err := h.whitelist.IsAllowed(c.Context(), tag.CardID, chargePointID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	if !allowed {
		result["status"] = "Blocked"
		result["reason"] = "card not whitelisted for this charge point"
		return c.JSON(result)
	}

	active, err := h.transactions.FindActive(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	_, admit, err := h.smartCharging.SharePolicy(len(active) + 1)
	if err != nil {
		h.log.Warn("smart charging share policy check failed during debug dry-run", zap.Error(err))
	} else if !admit {
		result["status"] = "Blocked"
		result["reason"] = "smart charging capacity would fall below the configured minimum"
		return c.JSON(result)
	}

	result["status"] = "Accepted"
	return c.JSON(result)
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-cs/internal/ports"
)

// CardHandler serves prepaid card queries and top-up credit.
type CardHandler struct {
	cards ports.CardRepository
	log   *zap.Logger
}

func NewCardHandler(cards ports.CardRepository, log *zap.Logger) *CardHandler {
	return &CardHandler{cards: cards, log: log}
}

// List handles GET /api/cards.
func (h *CardHandler) List(c *fiber.Ctx) error {
	cards, err := h.cards.FindAll(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	return c.JSON(cards)
}

// Balance handles GET /api/cards/:id/balance.
func (h *CardHandler) Balance(c *fiber.Ctx) error {
	id := c.Params("id")
	card, err := h.cards.FindByID(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	if card == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": "card not found"})
	}
	return c.JSON(fiber.Map{"id": card.ID, "balanceNT": card.BalanceNT})
}

// Topup handles POST /api/cards/:id/topup.
func (h *CardHandler) Topup(c *fiber.Ctx) error {
	id := c.Params("id")
	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil || req.Amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "amount must be positive"})
	}

	card, err := h.cards.FindByID(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	if card == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": "card not found"})
	}

	newBalance := card.BalanceNT + req.Amount
	if err := h.cards.UpdateBalance(c.Context(), id, newBalance); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	return c.JSON(fiber.Map{"id": id, "balanceNT": newBalance})
}

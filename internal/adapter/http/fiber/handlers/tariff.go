package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

// TariffHandler serves CRUD over the date-keyed pricing schedule. Every
// mutation replaces the full segment set and then refreshes the resolver
// in place so in-flight billing picks up the change without a restart.
type TariffHandler struct {
	tariff   ports.TariffRepository
	resolver ports.TariffResolver
	log      *zap.Logger
}

func NewTariffHandler(tariff ports.TariffRepository, resolver ports.TariffResolver, log *zap.Logger) *TariffHandler {
	return &TariffHandler{tariff: tariff, resolver: resolver, log: log}
}

// List handles GET /api/daily-pricing.
func (h *TariffHandler) List(c *fiber.Ctx) error {
	segments, err := h.tariff.FindAll(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	return c.JSON(segments)
}

type tariffSegmentRequest struct {
	Date    string  `json:"date"`
	Start   string  `json:"start"`
	End     string  `json:"end"`
	PriceNT float64 `json:"priceNT"`
}

// Create handles POST /api/daily-pricing.
func (h *TariffHandler) Create(c *fiber.Ctx) error {
	var req tariffSegmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "invalid body"})
	}

	segments, err := h.tariff.FindAll(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	segments = append(segments, domain.TariffSegment{
		Date:    req.Date,
		Start:   req.Start,
		End:     req.End,
		PriceNT: req.PriceNT,
	})
	if err := h.replaceAndRefresh(c, segments); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(segments)
}

// Update handles PUT /api/daily-pricing/:id.
func (h *TariffHandler) Update(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "invalid segment id"})
	}

	var req tariffSegmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "invalid body"})
	}

	segments, err := h.tariff.FindAll(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	found := false
	for i := range segments {
		if uint64(segments[i].ID) == id {
			segments[i].Date = req.Date
			segments[i].Start = req.Start
			segments[i].End = req.End
			segments[i].PriceNT = req.PriceNT
			found = true
			break
		}
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": "segment not found"})
	}
	if err := h.replaceAndRefresh(c, segments); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	return c.JSON(segments)
}

// Delete handles DELETE /api/daily-pricing/:id.
func (h *TariffHandler) Delete(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "invalid segment id"})
	}

	segments, err := h.tariff.FindAll(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	kept := make([]domain.TariffSegment, 0, len(segments))
	for _, s := range segments {
		if uint64(s.ID) != id {
			kept = append(kept, s)
		}
	}
	if err := h.replaceAndRefresh(c, kept); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// replaceAndRefresh persists the full segment set and reloads the
// resolver's in-memory schedule; it never writes to the response itself.
func (h *TariffHandler) replaceAndRefresh(c *fiber.Ctx, segments []domain.TariffSegment) error {
	if err := h.tariff.Replace(c.Context(), segments); err != nil {
		return err
	}
	if err := h.resolver.Refresh(c.Context()); err != nil {
		h.log.Warn("tariff resolver refresh failed after daily-pricing update", zap.Error(err))
	}
	return nil
}

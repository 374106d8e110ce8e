package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

// ChargePointHandler serves the whitelist CRUD surface plus the
// operator-facing control endpoints (start/stop/current-limit) and the
// read endpoints backed by the live status cache and transaction history.
type ChargePointHandler struct {
	chargePoints ports.ChargePointRepository
	engine       ports.TransactionEngine
	commands     ports.OCPPCommandService
	liveStatus   ports.LiveStatusCache
	log          *zap.Logger
}

func NewChargePointHandler(
	chargePoints ports.ChargePointRepository,
	engine ports.TransactionEngine,
	commands ports.OCPPCommandService,
	liveStatus ports.LiveStatusCache,
	log *zap.Logger,
) *ChargePointHandler {
	return &ChargePointHandler{
		chargePoints: chargePoints,
		engine:       engine,
		commands:     commands,
		liveStatus:   liveStatus,
		log:          log,
	}
}

// List handles GET /api/charge-points.
func (h *ChargePointHandler) List(c *fiber.Ctx) error {
	cps, err := h.chargePoints.FindAll(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	return c.JSON(cps)
}

type chargePointRequest struct {
	ID              string  `json:"id"`
	Vendor          string  `json:"vendor"`
	Model           string  `json:"model"`
	SerialNumber    string  `json:"serialNumber"`
	FirmwareVersion string  `json:"firmwareVersion"`
	MaxCurrentA     float64 `json:"maxCurrent"`
	MinCurrentA     float64 `json:"minCurrent"`
	VoltageV        float64 `json:"voltageV"`
}

// Create handles POST /api/charge-points.
func (h *ChargePointHandler) Create(c *fiber.Ctx) error {
	var req chargePointRequest
	if err := c.BodyParser(&req); err != nil || req.ID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "invalid or missing charge point id"})
	}

	cp := &domain.ChargePoint{
		ID:              req.ID,
		Vendor:          req.Vendor,
		Model:           req.Model,
		SerialNumber:    req.SerialNumber,
		FirmwareVersion: req.FirmwareVersion,
		Status:          domain.ChargePointStatusUnavailable,
		MaxCurrentA:     req.MaxCurrentA,
		MinCurrentA:     req.MinCurrentA,
		VoltageV:        req.VoltageV,
	}
	if err := h.chargePoints.Save(c.Context(), cp); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(cp)
}

// Update handles PUT /api/charge-points/:id.
func (h *ChargePointHandler) Update(c *fiber.Ctx) error {
	id := c.Params("id")
	existing, err := h.chargePoints.FindByID(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	if existing == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": "charge point not found"})
	}

	var req chargePointRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "invalid body"})
	}
	if req.Vendor != "" {
		existing.Vendor = req.Vendor
	}
	if req.Model != "" {
		existing.Model = req.Model
	}
	if req.SerialNumber != "" {
		existing.SerialNumber = req.SerialNumber
	}
	if req.FirmwareVersion != "" {
		existing.FirmwareVersion = req.FirmwareVersion
	}
	if req.MaxCurrentA > 0 {
		existing.MaxCurrentA = req.MaxCurrentA
	}
	if req.MinCurrentA > 0 {
		existing.MinCurrentA = req.MinCurrentA
	}
	if req.VoltageV > 0 {
		existing.VoltageV = req.VoltageV
	}

	if err := h.chargePoints.Save(c.Context(), existing); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	return c.JSON(existing)
}

// Delete handles DELETE /api/charge-points/:id.
func (h *ChargePointHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.chargePoints.Delete(c.Context(), id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Start handles POST /api/charge-points/:id/start, a server-initiated
// RemoteStartTransaction. The Transaction row itself is only created once
// the charge point's own StartTransaction.req arrives through the OCPP
// handler, so this endpoint only confirms the CALL was accepted by the CP.
func (h *ChargePointHandler) Start(c *fiber.Ctx) error {
	id := c.Params("id")
	var req struct {
		ConnectorID int    `json:"connectorId"`
		IdTag       string `json:"idTag"`
	}
	if err := c.BodyParser(&req); err != nil || req.IdTag == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "idTag is required"})
	}
	if req.ConnectorID == 0 {
		req.ConnectorID = 1
	}

	if !h.commands.IsConnected(id) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"detail": "charge point is not connected"})
	}
	if err := h.commands.RemoteStartTransaction(c.Context(), id, req.ConnectorID, req.IdTag); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"detail": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "Accepted"})
}

// Stop handles POST /api/charge-points/:id/stop, a synchronous
// server-initiated RemoteStopTransaction bounded by the 15s end-to-end
// timeout the transaction engine enforces.
func (h *ChargePointHandler) Stop(c *fiber.Ctx) error {
	id := c.Params("id")
	tx, err := h.engine.RemoteStop(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"detail": err.Error()})
	}
	return c.JSON(tx)
}

// CurrentLimit handles POST /api/charge-points/:id/current-limit. The new
// ceiling is persisted immediately; if a session is active the push is
// applied right away rather than waiting for the next rebalance tick.
func (h *ChargePointHandler) CurrentLimit(c *fiber.Ctx) error {
	id := c.Params("id")
	var req struct {
		LimitA float64 `json:"limitA"`
	}
	if err := c.BodyParser(&req); err != nil || req.LimitA <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "limitA must be positive"})
	}

	if err := h.chargePoints.UpdateMaxCurrent(c.Context(), id, req.LimitA); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}

	tx, err := h.engine.CurrentTransaction(c.Context(), id)
	if err == nil && tx != nil && h.commands.IsConnected(id) {
		if err := h.commands.SetChargingProfile(c.Context(), id, tx.ConnectorID, req.LimitA, int(tx.ID%100000)); err != nil {
			h.log.Warn("failed to apply current limit immediately", zap.String("charge_point_id", id), zap.Error(err))
		}
	}
	return c.JSON(fiber.Map{"limitA": req.LimitA})
}

// LiveStatus handles GET /api/charge-points/:id/live-status.
func (h *ChargePointHandler) LiveStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	snapshot, ok := h.liveStatus.Get(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": "no live status for this charge point"})
	}
	return c.JSON(snapshot)
}

type transactionSummary struct {
	ID            int64      `json:"id"`
	ChargePointID string     `json:"chargePointId"`
	ConnectorID   int        `json:"connectorId"`
	IdTag         string     `json:"idTag"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       *time.Time `json:"endTime,omitempty"`
	TotalEnergyWh int        `json:"totalEnergyWh"`
	Cost          float64    `json:"cost"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
}

func summarize(tx *domain.Transaction) transactionSummary {
	return transactionSummary{
		ID:            tx.ID,
		ChargePointID: tx.ChargePointID,
		ConnectorID:   tx.ConnectorID,
		IdTag:         tx.IdTag,
		StartTime:     tx.StartTime,
		EndTime:       tx.EndTime,
		TotalEnergyWh: tx.TotalEnergyWh,
		Cost:          tx.Cost,
		Currency:      tx.Currency,
		Status:        string(tx.Status),
	}
}

// CurrentTransaction handles GET /api/charge-points/:id/current-transaction.
func (h *ChargePointHandler) CurrentTransaction(c *fiber.Ctx) error {
	id := c.Params("id")
	tx, err := h.engine.CurrentTransaction(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	if tx == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": "no active transaction"})
	}
	return c.JSON(tx)
}

// CurrentTransactionSummary handles
// GET /api/charge-points/:id/current-transaction/summary.
func (h *ChargePointHandler) CurrentTransactionSummary(c *fiber.Ctx) error {
	id := c.Params("id")
	tx, err := h.engine.CurrentTransaction(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	if tx == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": "no active transaction"})
	}
	return c.JSON(summarize(tx))
}

// LastFinishedTransactionSummary handles
// GET /api/charge-points/:id/last-finished-transaction/summary.
func (h *ChargePointHandler) LastFinishedTransactionSummary(c *fiber.Ctx) error {
	id := c.Params("id")
	tx, err := h.engine.LastFinishedTransaction(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	if tx == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": "no finished transaction"})
	}
	return c.JSON(summarize(tx))
}

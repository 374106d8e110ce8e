package v16

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/observability/telemetry"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

// BootIntervalSeconds is the heartbeat interval this central system asks
// every charge point to use; BootNotification is always Accepted.
const BootIntervalSeconds = 10

// Handlers processes inbound OCPP 1.6J actions from charge points and
// delegates session-lifetime business logic to the transaction engine
// and billing streamer.
type Handlers struct {
	chargePoints ports.ChargePointRepository
	statusLogs   ports.StatusLogRepository
	idTags       ports.IdTagRepository
	engine       ports.TransactionEngine
	billing      ports.BillingStreamer
	log          *zap.Logger
}

func NewHandlers(
	chargePoints ports.ChargePointRepository,
	statusLogs ports.StatusLogRepository,
	idTags ports.IdTagRepository,
	engine ports.TransactionEngine,
	billing ports.BillingStreamer,
	log *zap.Logger,
) *Handlers {
	return &Handlers{
		chargePoints: chargePoints,
		statusLogs:   statusLogs,
		idTags:       idTags,
		engine:       engine,
		billing:      billing,
		log:          log,
	}
}

// HandleMessage routes a decoded CALL to its handler. The returned value
// is marshaled verbatim as the CALLRESULT payload.
func (h *Handlers) HandleMessage(chargePointID, action string, payload json.RawMessage) (interface{}, error) {
	ctx := context.Background()
	telemetry.RecordOCPPMessage(action, true)

	switch action {
	case "BootNotification":
		return h.handleBootNotification(ctx, chargePointID, payload)
	case "Heartbeat":
		return h.handleHeartbeat(ctx, chargePointID)
	case "StatusNotification":
		return h.handleStatusNotification(ctx, chargePointID, payload)
	case "Authorize":
		return h.handleAuthorize(ctx, chargePointID, payload)
	case "StartTransaction":
		return h.handleStartTransaction(ctx, chargePointID, payload)
	case "StopTransaction":
		return h.handleStopTransaction(ctx, chargePointID, payload)
	case "MeterValues":
		return h.handleMeterValues(ctx, chargePointID, payload)
	case "DataTransfer":
		return map[string]string{"status": "UnknownVendorId"}, nil
	default:
		h.log.Warn("unhandled OCPP action", zap.String("charge_point_id", chargePointID), zap.String("action", action))
		return map[string]interface{}{}, nil
	}
}

type bootNotificationReq struct {
	ChargePointVendor string `json:"chargePointVendor"`
	ChargePointModel  string `json:"chargePointModel"`
	ChargePointSerial string `json:"chargePointSerialNumber,omitempty"`
	FirmwareVersion   string `json:"firmwareVersion,omitempty"`
}

type bootNotificationResp struct {
	Status      string `json:"status"`
	CurrentTime string `json:"currentTime"`
	Interval    int    `json:"interval"`
}

func (h *Handlers) handleBootNotification(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
	var req bootNotificationReq
	if err := json.Unmarshal(normalizeFieldNames(payload), &req); err != nil {
		return nil, fmt.Errorf("invalid BootNotification: %w", err)
	}

	h.log.Info("BootNotification",
		zap.String("charge_point_id", chargePointID),
		zap.String("vendor", req.ChargePointVendor),
		zap.String("model", req.ChargePointModel),
	)

	cp, err := h.chargePoints.FindByID(ctx, chargePointID)
	if err != nil {
		h.log.Warn("failed to look up charge point on boot", zap.Error(err))
	}
	if cp == nil {
		cp = &domain.ChargePoint{ID: chargePointID}
	}
	cp.Vendor = req.ChargePointVendor
	cp.Model = req.ChargePointModel
	cp.SerialNumber = req.ChargePointSerial
	cp.FirmwareVersion = req.FirmwareVersion
	cp.Status = domain.ChargePointStatusAvailable
	cp.LastSeen = time.Now()
	if err := h.chargePoints.Save(ctx, cp); err != nil {
		h.log.Error("failed to persist charge point on boot", zap.Error(err))
	}
	telemetry.ChargePointLastSeen.WithLabelValues(chargePointID).Set(float64(cp.LastSeen.Unix()))

	return bootNotificationResp{
		Status:      "Accepted",
		CurrentTime: time.Now().UTC().Format(time.RFC3339),
		Interval:    BootIntervalSeconds,
	}, nil
}

func (h *Handlers) handleHeartbeat(ctx context.Context, chargePointID string) (interface{}, error) {
	now := time.Now()
	if err := h.chargePoints.Touch(ctx, chargePointID, now); err != nil {
		h.log.Debug("heartbeat touch failed", zap.String("charge_point_id", chargePointID), zap.Error(err))
	}
	telemetry.ChargePointLastSeen.WithLabelValues(chargePointID).Set(float64(now.Unix()))
	return map[string]string{"currentTime": now.UTC().Format(time.RFC3339)}, nil
}

type statusNotificationReq struct {
	ConnectorId     int    `json:"connectorId"`
	ErrorCode       string `json:"errorCode"`
	Status          string `json:"status"`
	Timestamp       string `json:"timestamp,omitempty"`
	VendorErrorCode string `json:"vendorErrorCode,omitempty"`
}

func (h *Handlers) handleStatusNotification(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
	var req statusNotificationReq
	if err := json.Unmarshal(normalizeFieldNames(payload), &req); err != nil {
		return nil, fmt.Errorf("invalid StatusNotification: %w", err)
	}

	h.log.Info("StatusNotification",
		zap.String("charge_point_id", chargePointID),
		zap.Int("connector_id", req.ConnectorId),
		zap.String("status", req.Status),
	)

	ts := time.Now()
	if req.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
			ts = parsed
		}
	}

	if err := h.statusLogs.Save(ctx, &domain.StatusLog{
		ChargePointID: chargePointID,
		ConnectorID:   req.ConnectorId,
		Status:        mapConnectorStatus(req.Status),
		ErrorCode:     req.ErrorCode,
		Timestamp:     ts,
	}); err != nil {
		h.log.Warn("failed to persist status log", zap.Error(err))
	}

	if req.ConnectorId == 0 {
		if err := h.chargePoints.UpdateStatus(ctx, chargePointID, mapConnectorStatus(req.Status)); err != nil {
			h.log.Warn("failed to update charge point status", zap.Error(err))
		}
	}

	return map[string]interface{}{}, nil
}

func mapConnectorStatus(status string) domain.ChargePointStatus {
	switch status {
	case "Available":
		return domain.ChargePointStatusAvailable
	case "Charging":
		return domain.ChargePointStatusCharging
	case "Occupied", "Preparing", "SuspendedEV", "SuspendedEVSE", "Finishing":
		return domain.ChargePointStatusOccupied
	case "Faulted":
		return domain.ChargePointStatusFaulted
	case "Unavailable", "Reserved":
		return domain.ChargePointStatusUnavailable
	default:
		return domain.ChargePointStatusAvailable
	}
}

type authorizeReq struct {
	IdTag string `json:"idTag"`
}

func (h *Handlers) handleAuthorize(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
	var req authorizeReq
	if err := json.Unmarshal(normalizeFieldNames(payload), &req); err != nil {
		return nil, fmt.Errorf("invalid Authorize: %w", err)
	}

	status := string(domain.IdTagStatusInvalid)
	tag, err := h.idTags.FindByIdTag(ctx, req.IdTag)
	if err != nil {
		h.log.Warn("authorize lookup failed", zap.Error(err))
	}
	if tag != nil {
		status = string(tag.Resolve(time.Now()))
	}

	h.log.Info("Authorize", zap.String("charge_point_id", chargePointID), zap.String("id_tag", req.IdTag), zap.String("status", status))
	return map[string]interface{}{"idTagInfo": map[string]string{"status": status}}, nil
}

type startTransactionReq struct {
	ConnectorId   int    `json:"connectorId"`
	IdTag         string `json:"idTag"`
	MeterStart    int    `json:"meterStart"`
	Timestamp     string `json:"timestamp"`
	ReservationId *int   `json:"reservationId,omitempty"`
}

func (h *Handlers) handleStartTransaction(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
	var req startTransactionReq
	if err := json.Unmarshal(normalizeFieldNames(payload), &req); err != nil {
		return nil, fmt.Errorf("invalid StartTransaction: %w", err)
	}

	startTime := time.Now()
	if req.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
			startTime = parsed
		}
	}

	tx, idTagStatus, err := h.engine.StartTransaction(ctx, chargePointID, req.ConnectorId, req.IdTag, req.MeterStart, startTime)
	if err != nil {
		h.log.Warn("StartTransaction rejected", zap.String("charge_point_id", chargePointID), zap.Error(err))
		return map[string]interface{}{
			"transactionId": 0,
			"idTagInfo":     map[string]string{"status": idTagStatus},
		}, nil
	}

	return map[string]interface{}{
		"transactionId": tx.ID,
		"idTagInfo":     map[string]string{"status": idTagStatus},
	}, nil
}

type stopTransactionReq struct {
	TransactionId int    `json:"transactionId"`
	MeterStop     int    `json:"meterStop"`
	Timestamp     string `json:"timestamp"`
	IdTag         string `json:"idTag,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

func (h *Handlers) handleStopTransaction(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
	var req stopTransactionReq
	if err := json.Unmarshal(normalizeFieldNames(payload), &req); err != nil {
		return nil, fmt.Errorf("invalid StopTransaction: %w", err)
	}

	stopTime := time.Now()
	if req.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
			stopTime = parsed
		}
	}

	reason := domain.StopReason(req.Reason)
	if reason == "" {
		reason = domain.StopReasonOther
	}

	if _, err := h.engine.StopTransaction(ctx, chargePointID, int64(req.TransactionId), req.MeterStop, stopTime, reason); err != nil {
		h.log.Warn("StopTransaction failed", zap.String("charge_point_id", chargePointID), zap.Error(err))
	}

	return map[string]interface{}{"idTagInfo": map[string]string{"status": string(domain.IdTagStatusAccepted)}}, nil
}

type meterValuesReq struct {
	ConnectorId   int   `json:"connectorId"`
	TransactionId *int  `json:"transactionId,omitempty"`
	MeterValue    []struct {
		Timestamp    string `json:"timestamp"`
		SampledValue []struct {
			Value     string `json:"value"`
			Measurand string `json:"measurand,omitempty"`
			Unit      string `json:"unit,omitempty"`
		} `json:"sampledValue"`
	} `json:"meterValue"`
}

func (h *Handlers) handleMeterValues(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
	var req meterValuesReq
	if err := json.Unmarshal(normalizeFieldNames(payload), &req); err != nil {
		return nil, fmt.Errorf("invalid MeterValues: %w", err)
	}

	if req.TransactionId == nil {
		return map[string]interface{}{}, nil
	}

	for _, mv := range req.MeterValue {
		sampledAt := time.Now()
		if mv.Timestamp != "" {
			if parsed, err := time.Parse(time.RFC3339, mv.Timestamp); err == nil {
				sampledAt = parsed
			}
		}

		var voltageV, currentA, energyWh float64
		var haveEnergy bool
		var explicitPowerW *float64
		for _, sv := range mv.SampledValue {
			var value float64
			if _, err := fmt.Sscanf(sv.Value, "%f", &value); err != nil {
				continue
			}
			// An absent measurand defaults to Energy.Active.Import.Register
			// per OCPP 1.6J, whose default unit is Wh.
			switch sv.Measurand {
			case "Voltage":
				voltageV = value
			case "Current.Import":
				currentA = value
			case "Power.Active.Import":
				if sv.Unit == "kW" {
					value *= 1000
				}
				p := value
				explicitPowerW = &p
			case "Energy.Active.Import.Register", "":
				if sv.Unit == "kWh" {
					value *= 1000
				}
				energyWh = value
				haveEnergy = true
			}
		}
		if !haveEnergy {
			continue
		}

		if err := h.billing.HandleMeterValues(ctx, chargePointID, int64(*req.TransactionId), req.ConnectorId, sampledAt, voltageV, currentA, energyWh, explicitPowerW); err != nil {
			h.log.Warn("meter values billing failed", zap.String("charge_point_id", chargePointID), zap.Error(err))
		}
	}

	return map[string]interface{}{}, nil
}

package domain

import (
	"time"
)

type ChargePointStatus string

const (
	ChargePointStatusAvailable   ChargePointStatus = "Available"
	ChargePointStatusOccupied    ChargePointStatus = "Occupied"
	ChargePointStatusFaulted     ChargePointStatus = "Faulted"
	ChargePointStatusUnavailable ChargePointStatus = "Unavailable"
	ChargePointStatusCharging    ChargePointStatus = "Charging"
)

// ChargePoint is a registered OCPP 1.6J charge point identified by its
// CP identity (the last path segment of the WebSocket upgrade URL).
type ChargePoint struct {
	ID                    string            `json:"id" gorm:"primaryKey"`
	Vendor                string            `json:"vendor"`
	Model                 string            `json:"model"`
	SerialNumber          string            `json:"serial_number"`
	FirmwareVersion       string            `json:"firmware_version"`
	Status                ChargePointStatus `json:"status"`
	MaxCurrentA           float64           `json:"max_current_a"`
	MinCurrentA           float64           `json:"min_current_a"`
	VoltageV              float64           `json:"voltage_v"`
	SupportsSmartCharging bool              `json:"supports_smart_charging"`
	LastSeen              time.Time         `json:"last_seen"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// CommunitySettings holds the single shared-contract configuration row
// that parameterizes the current-sharing policy across all charge points.
type CommunitySettings struct {
	ID                    uint    `json:"id" gorm:"primaryKey"`
	ContractKW            float64 `json:"contract_kw"`
	VoltageV              float64 `json:"voltage_v"`
	MinCurrentA           float64 `json:"min_current_a"`
	MaxCurrentA           float64 `json:"max_current_a"`
	SmartChargingDisabled bool    `json:"smart_charging_disabled"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// StatusLog records a StatusNotification received from a charge point,
// kept for diagnostics and the admin connections view.
type StatusLog struct {
	ID            uint              `json:"id" gorm:"primaryKey"`
	ChargePointID string            `json:"charge_point_id" gorm:"index"`
	ConnectorID   int               `json:"connector_id"`
	Status        ChargePointStatus `json:"status"`
	ErrorCode     string            `json:"error_code"`
	Timestamp     time.Time         `json:"timestamp"`
}

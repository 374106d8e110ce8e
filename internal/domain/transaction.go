package domain

import (
	"time"
)

type TransactionStatus string

const (
	TransactionStatusStarted TransactionStatus = "Started"
	TransactionStatusStopped TransactionStatus = "Stopped"
	TransactionStatusFaulted TransactionStatus = "Faulted"
)

// StopReason mirrors the OCPP 1.6J StopTransaction.req reason enum, trimmed
// to the values this central system actually emits or receives.
type StopReason string

const (
	StopReasonLocal         StopReason = "Local"
	StopReasonRemote        StopReason = "Remote"
	StopReasonEVDisconnected StopReason = "EVDisconnected"
	StopReasonOther         StopReason = "Other"
)

// Transaction is an OCPP charging session. IDs are allocated from
// UnixMilli() with a per-process tie-breaker so two sessions started in
// the same millisecond never collide (see service/transaction).
type Transaction struct {
	ID             int64             `json:"id" gorm:"primaryKey"`
	ChargePointID  string            `json:"charge_point_id" gorm:"index"`
	ConnectorID    int               `json:"connector_id"`
	IdTag          string            `json:"id_tag" gorm:"index"`
	CardID         string            `json:"card_id" gorm:"index"`
	StartTime      time.Time         `json:"start_time"`
	EndTime        *time.Time        `json:"end_time,omitempty"`
	MeterStartWh   int               `json:"meter_start_wh"`
	MeterStopWh    int               `json:"meter_stop_wh"`
	TotalEnergyWh  int               `json:"total_energy_wh"`
	Status         TransactionStatus `json:"status"`
	Cost           float64           `json:"cost"`
	Currency       string            `json:"currency"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// MeterSample is one MeterValues.req sampled value, normalized to a single
// row per (transaction, timestamp) holding voltage, current, power and
// energy together, for billing and live status.
type MeterSample struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	TransactionID int64     `json:"transaction_id" gorm:"index"`
	ChargePointID string    `json:"charge_point_id" gorm:"index"`
	ConnectorID   int       `json:"connector_id"`
	Timestamp     time.Time `json:"timestamp"`
	VoltageV      float64   `json:"voltage_v"`
	CurrentA      float64   `json:"current_a"`
	PowerW        float64   `json:"power_w"`
	EnergyWh      float64   `json:"energy_wh"`
}

// StopRecord captures the raw StopTransaction.req payload, independent of
// the Transaction row it settles. A row is written only for the stop that
// settles the transaction; a repeated stop for an already-settled
// transaction returns early and is not recorded.
type StopRecord struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	TransactionID int64      `json:"transaction_id" gorm:"index"`
	ChargePointID string     `json:"charge_point_id"`
	MeterStopWh   int        `json:"meter_stop_wh"`
	Timestamp     time.Time  `json:"timestamp"`
	Reason        StopReason `json:"reason"`
	CreatedAt     time.Time  `json:"created_at"`
}

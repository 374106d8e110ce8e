package ports

import (
	"context"
	"time"

	"github.com/seu-repo/ocpp-cs/internal/domain"
)

// Session is one live OCPP 1.6J WebSocket connection to a charge point,
// owned by the session registry and used by services to push server
// initiated calls (RemoteStopTransaction, SetChargingProfile, ...).
type Session interface {
	ChargePointID() string
	Call(ctx context.Context, action string, payload interface{}) (interface{}, error)
	Close(code int, reason string) error
}

// SessionRegistry tracks the live OCPP sessions, keyed by charge point
// identity. A charge point is connected to at most one session at a time.
type SessionRegistry interface {
	Register(session Session)
	Unregister(chargePointID string)
	Get(chargePointID string) (Session, bool)
	Connected() []string
}

// TariffResolver resolves the time-of-use price in effect for an instant
// and replays a transaction's meter samples into a priced breakdown for
// streaming/final billing.
type TariffResolver interface {
	PriceAt(t time.Time) (float64, error)
	SegmentedCost(ctx context.Context, transactionID int64) (float64, []SegmentCost, error)
	Refresh(ctx context.Context) error
}

// SegmentCost is one priced bucket of a SegmentedCost breakdown: the
// energy attributed to a tariff segment active on a given date and its
// cost contribution.
type SegmentCost struct {
	Date      string  `json:"date"`
	Start     string  `json:"start"`
	End       string  `json:"end"`
	PriceNT   float64 `json:"price_nt"`
	EnergyKWh float64 `json:"energy_kwh"`
	Cost      float64 `json:"cost"`
}

// LiveStatusSnapshot is the most recent known electrical/cost state of an
// active charging session, served to the admin API and dashboard feed.
type LiveStatusSnapshot struct {
	ChargePointID string    `json:"charge_point_id"`
	TransactionID int64     `json:"transaction_id"`
	VoltageV      float64   `json:"voltage_v"`
	CurrentA      float64   `json:"current_a"`
	PowerW        float64   `json:"power_w"`
	EnergyKWh     float64   `json:"energy_kwh"`
	CostSoFar     float64   `json:"cost_so_far"`
	UpdatedAt     time.Time `json:"updated_at"`
	Stale         bool      `json:"stale"`
}

// LiveStatusCache holds a short-TTL in-memory snapshot per charge point,
// optionally mirrored to Redis for multi-process dashboards.
type LiveStatusCache interface {
	Set(chargePointID string, snapshot LiveStatusSnapshot)
	Get(chargePointID string) (LiveStatusSnapshot, bool)
	Clear(chargePointID string)
}

// TransactionEngine drives the StartTransaction/StopTransaction lifecycle,
// including admission checks and server-initiated remote stop.
type TransactionEngine interface {
	StartTransaction(ctx context.Context, chargePointID string, connectorID int, idTag string, meterStartWh int, startTime time.Time) (*domain.Transaction, string, error)
	StopTransaction(ctx context.Context, chargePointID string, transactionID int64, meterStopWh int, stopTime time.Time, reason domain.StopReason) (*domain.Transaction, error)
	RemoteStop(ctx context.Context, chargePointID string) (*domain.Transaction, error)
	CurrentTransaction(ctx context.Context, chargePointID string) (*domain.Transaction, error)
	LastFinishedTransaction(ctx context.Context, chargePointID string) (*domain.Transaction, error)
}

// BillingStreamer consumes MeterValues.req samples, updates the live
// status cache, and debits the owning card incrementally. explicitPowerW
// is nil when the charge point did not report Power.Active.Import.
type BillingStreamer interface {
	HandleMeterValues(ctx context.Context, chargePointID string, transactionID int64, connectorID int, sampledAt time.Time, voltageV, currentA, energyWh float64, explicitPowerW *float64) error
}

// SmartChargingCoordinator enforces the community current-sharing policy
// across the charge points that are actively charging.
type SmartChargingCoordinator interface {
	SharePolicy(activeCount int) (perConnectorA float64, admit bool, err error)
	Rebalance(ctx context.Context, reason string)
	OnSettingsChanged(ctx context.Context)
}

// OCPPCommandService exposes the server-initiated OCPP 1.6J calls used by
// the HTTP admin surface, the transaction engine, the billing streamer and
// the smart charging coordinator.
type OCPPCommandService interface {
	RemoteStartTransaction(ctx context.Context, chargePointID string, connectorID int, idTag string) error
	RemoteStopTransaction(ctx context.Context, chargePointID string, transactionID int64) error
	SetChargingProfile(ctx context.Context, chargePointID string, connectorID int, limitA float64, profileID int) error
	IsConnected(chargePointID string) bool
	GetConnectedClients() []string
}

// MessageQueue publishes billing/telemetry events onto an optional
// message bus (NATS); nil when the broker is not configured.
type MessageQueue interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte) error) error
	Close() error
}

// Cache is a generic string key-value store. It backs the live status
// cache's optional cross-process mirror (Redis); when Redis is not
// configured or unreachable, the live status cache runs with no mirror.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping() error
	Close() error
}

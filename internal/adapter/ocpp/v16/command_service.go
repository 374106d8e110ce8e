package v16

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-cs/internal/observability/telemetry"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

// CommandService issues server-initiated OCPP 1.6J calls (RemoteStopTransaction,
// SetChargingProfile) through the session registry, with one circuit
// breaker per charge point so a single unresponsive CP never stalls
// pushes to the rest of the fleet.
type CommandService struct {
	registry *Registry
	log      *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewCommandService(registry *Registry, log *zap.Logger) *CommandService {
	return &CommandService{
		registry: registry,
		log:      log,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (s *CommandService) breakerFor(chargePointID string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.breakers[chargePointID]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ocpp-push-" + chargePointID,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.log.Warn("ocpp push circuit breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	s.breakers[chargePointID] = cb
	return cb
}

func (s *CommandService) call(ctx context.Context, chargePointID, action string, payload interface{}) (interface{}, error) {
	session, ok := s.registry.Get(chargePointID)
	if !ok {
		return nil, fmt.Errorf("charge point %s is not connected", chargePointID)
	}
	telemetry.RecordOCPPMessage(action, false)
	cb := s.breakerFor(chargePointID)
	return cb.Execute(func() (interface{}, error) {
		return session.Call(ctx, action, payload)
	})
}

type remoteStartTransactionReq struct {
	ConnectorId int    `json:"connectorId"`
	IdTag       string `json:"idTag"`
}

// RemoteStartTransaction asks the CP to begin charging on a connector; the
// actual Transaction row is only created once the CP's own StartTransaction
// arrives through the OCPP handler, same as a cable-initiated session.
func (s *CommandService) RemoteStartTransaction(ctx context.Context, chargePointID string, connectorID int, idTag string) error {
	_, err := s.call(ctx, chargePointID, "RemoteStartTransaction", remoteStartTransactionReq{ConnectorId: connectorID, IdTag: idTag})
	return err
}

type remoteStopTransactionReq struct {
	TransactionId int64 `json:"transactionId"`
}

func (s *CommandService) RemoteStopTransaction(ctx context.Context, chargePointID string, transactionID int64) error {
	_, err := s.call(ctx, chargePointID, "RemoteStopTransaction", remoteStopTransactionReq{TransactionId: transactionID})
	return err
}

type chargingSchedulePeriod struct {
	StartPeriod int     `json:"startPeriod"`
	Limit       float64 `json:"limit"`
	NumberPhases int    `json:"numberPhases"`
}

type chargingSchedule struct {
	ChargingRateUnit       string                   `json:"chargingRateUnit"`
	ChargingSchedulePeriod []chargingSchedulePeriod `json:"chargingSchedulePeriod"`
}

type chargingProfile struct {
	ChargingProfileId      int              `json:"chargingProfileId"`
	StackLevel             int              `json:"stackLevel"`
	ChargingProfilePurpose string           `json:"chargingProfilePurpose"`
	ChargingProfileKind    string           `json:"chargingProfileKind"`
	ChargingSchedule       chargingSchedule `json:"chargingSchedule"`
}

type setChargingProfileReq struct {
	ConnectorId     int             `json:"connectorId"`
	CsChargingProfiles chargingProfile `json:"csChargingProfiles"`
}

// SetChargingProfile pushes a single-period, absolute, TxDefaultProfile
// current limit in amps to a connector.
func (s *CommandService) SetChargingProfile(ctx context.Context, chargePointID string, connectorID int, limitA float64, profileID int) error {
	req := setChargingProfileReq{
		ConnectorId: connectorID,
		CsChargingProfiles: chargingProfile{
			ChargingProfileId:      profileID,
			StackLevel:             0,
			ChargingProfilePurpose: "TxDefaultProfile",
			ChargingProfileKind:    "Absolute",
			ChargingSchedule: chargingSchedule{
				ChargingRateUnit: "A",
				ChargingSchedulePeriod: []chargingSchedulePeriod{
					{StartPeriod: 0, Limit: limitA, NumberPhases: 1},
				},
			},
		},
	}
	_, err := s.call(ctx, chargePointID, "SetChargingProfile", req)
	return err
}

func (s *CommandService) IsConnected(chargePointID string) bool {
	_, ok := s.registry.Get(chargePointID)
	return ok
}

func (s *CommandService) GetConnectedClients() []string {
	return s.registry.Connected()
}

var _ ports.OCPPCommandService = (*CommandService)(nil)

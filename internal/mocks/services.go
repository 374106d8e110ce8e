package mocks

import (
	"context"
	"time"

	"github.com/seu-repo/ocpp-cs/internal/ports"
)

// MockSession is a mock implementation of ports.Session
type MockSession struct {
	ChargePointIDFunc string
	CallFunc          func(ctx context.Context, action string, payload interface{}) (interface{}, error)
	CloseFunc         func(code int, reason string) error
}

func (m *MockSession) ChargePointID() string {
	return m.ChargePointIDFunc
}

func (m *MockSession) Call(ctx context.Context, action string, payload interface{}) (interface{}, error) {
	if m.CallFunc != nil {
		return m.CallFunc(ctx, action, payload)
	}
	return nil, nil
}

func (m *MockSession) Close(code int, reason string) error {
	if m.CloseFunc != nil {
		return m.CloseFunc(code, reason)
	}
	return nil
}

// MockSessionRegistry is a mock implementation of ports.SessionRegistry
type MockSessionRegistry struct {
	RegisterFunc   func(session ports.Session)
	UnregisterFunc func(chargePointID string)
	GetFunc        func(chargePointID string) (ports.Session, bool)
	ConnectedFunc  func() []string
}

func (m *MockSessionRegistry) Register(session ports.Session) {
	if m.RegisterFunc != nil {
		m.RegisterFunc(session)
	}
}

func (m *MockSessionRegistry) Unregister(chargePointID string) {
	if m.UnregisterFunc != nil {
		m.UnregisterFunc(chargePointID)
	}
}

func (m *MockSessionRegistry) Get(chargePointID string) (ports.Session, bool) {
	if m.GetFunc != nil {
		return m.GetFunc(chargePointID)
	}
	return nil, false
}

func (m *MockSessionRegistry) Connected() []string {
	if m.ConnectedFunc != nil {
		return m.ConnectedFunc()
	}
	return nil
}

// MockTariffResolver is a mock implementation of ports.TariffResolver
type MockTariffResolver struct {
	PriceAtFunc       func(t time.Time) (float64, error)
	SegmentedCostFunc func(ctx context.Context, transactionID int64) (float64, []ports.SegmentCost, error)
	RefreshFunc       func(ctx context.Context) error
}

func (m *MockTariffResolver) Refresh(ctx context.Context) error {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx)
	}
	return nil
}

func (m *MockTariffResolver) PriceAt(t time.Time) (float64, error) {
	if m.PriceAtFunc != nil {
		return m.PriceAtFunc(t)
	}
	return 0, nil
}

func (m *MockTariffResolver) SegmentedCost(ctx context.Context, transactionID int64) (float64, []ports.SegmentCost, error) {
	if m.SegmentedCostFunc != nil {
		return m.SegmentedCostFunc(ctx, transactionID)
	}
	return 0, nil, nil
}

// MockLiveStatusCache is a mock implementation of ports.LiveStatusCache
type MockLiveStatusCache struct {
	Snapshots map[string]ports.LiveStatusSnapshot
	SetFunc   func(chargePointID string, snapshot ports.LiveStatusSnapshot)
	GetFunc   func(chargePointID string) (ports.LiveStatusSnapshot, bool)
	ClearFunc func(chargePointID string)
}

func (m *MockLiveStatusCache) Set(chargePointID string, snapshot ports.LiveStatusSnapshot) {
	if m.SetFunc != nil {
		m.SetFunc(chargePointID, snapshot)
		return
	}
	if m.Snapshots == nil {
		m.Snapshots = map[string]ports.LiveStatusSnapshot{}
	}
	m.Snapshots[chargePointID] = snapshot
}

func (m *MockLiveStatusCache) Get(chargePointID string) (ports.LiveStatusSnapshot, bool) {
	if m.GetFunc != nil {
		return m.GetFunc(chargePointID)
	}
	s, ok := m.Snapshots[chargePointID]
	return s, ok
}

func (m *MockLiveStatusCache) Clear(chargePointID string) {
	if m.ClearFunc != nil {
		m.ClearFunc(chargePointID)
		return
	}
	delete(m.Snapshots, chargePointID)
}

// MockOCPPCommandService is a mock implementation of ports.OCPPCommandService
type MockOCPPCommandService struct {
	RemoteStartTransactionFunc func(ctx context.Context, chargePointID string, connectorID int, idTag string) error
	RemoteStopTransactionFunc func(ctx context.Context, chargePointID string, transactionID int64) error
	SetChargingProfileFunc    func(ctx context.Context, chargePointID string, connectorID int, limitA float64, profileID int) error
	IsConnectedFunc           func(chargePointID string) bool
	GetConnectedClientsFunc   func() []string
}

func (m *MockOCPPCommandService) RemoteStartTransaction(ctx context.Context, chargePointID string, connectorID int, idTag string) error {
	if m.RemoteStartTransactionFunc != nil {
		return m.RemoteStartTransactionFunc(ctx, chargePointID, connectorID, idTag)
	}
	return nil
}

func (m *MockOCPPCommandService) RemoteStopTransaction(ctx context.Context, chargePointID string, transactionID int64) error {
	if m.RemoteStopTransactionFunc != nil {
		return m.RemoteStopTransactionFunc(ctx, chargePointID, transactionID)
	}
	return nil
}

func (m *MockOCPPCommandService) SetChargingProfile(ctx context.Context, chargePointID string, connectorID int, limitA float64, profileID int) error {
	if m.SetChargingProfileFunc != nil {
		return m.SetChargingProfileFunc(ctx, chargePointID, connectorID, limitA, profileID)
	}
	return nil
}

func (m *MockOCPPCommandService) IsConnected(chargePointID string) bool {
	if m.IsConnectedFunc != nil {
		return m.IsConnectedFunc(chargePointID)
	}
	return false
}

func (m *MockOCPPCommandService) GetConnectedClients() []string {
	if m.GetConnectedClientsFunc != nil {
		return m.GetConnectedClientsFunc()
	}
	return nil
}

// MockSmartChargingCoordinator is a mock implementation of ports.SmartChargingCoordinator
type MockSmartChargingCoordinator struct {
	SharePolicyFunc      func(activeCount int) (float64, bool, error)
	RebalanceFunc        func(ctx context.Context, reason string)
	OnSettingsChangedFunc func(ctx context.Context)
}

func (m *MockSmartChargingCoordinator) SharePolicy(activeCount int) (float64, bool, error) {
	if m.SharePolicyFunc != nil {
		return m.SharePolicyFunc(activeCount)
	}
	return 0, true, nil
}

func (m *MockSmartChargingCoordinator) Rebalance(ctx context.Context, reason string) {
	if m.RebalanceFunc != nil {
		m.RebalanceFunc(ctx, reason)
	}
}

func (m *MockSmartChargingCoordinator) OnSettingsChanged(ctx context.Context) {
	if m.OnSettingsChangedFunc != nil {
		m.OnSettingsChangedFunc(ctx)
	}
}

// MockBillingStreamer is a mock implementation of ports.BillingStreamer
type MockBillingStreamer struct {
	HandleMeterValuesFunc func(ctx context.Context, chargePointID string, transactionID int64, connectorID int, sampledAt time.Time, voltageV, currentA, energyWh float64, explicitPowerW *float64) error
}

func (m *MockBillingStreamer) HandleMeterValues(ctx context.Context, chargePointID string, transactionID int64, connectorID int, sampledAt time.Time, voltageV, currentA, energyWh float64, explicitPowerW *float64) error {
	if m.HandleMeterValuesFunc != nil {
		return m.HandleMeterValuesFunc(ctx, chargePointID, transactionID, connectorID, sampledAt, voltageV, currentA, energyWh, explicitPowerW)
	}
	return nil
}

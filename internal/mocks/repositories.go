package mocks

import (
	"context"
	"time"

	"github.com/seu-repo/ocpp-cs/internal/domain"
)

// MockChargePointRepository is a mock implementation of ports.ChargePointRepository
type MockChargePointRepository struct {
	SaveFunc                       func(ctx context.Context, cp *domain.ChargePoint) error
	FindByIDFunc                   func(ctx context.Context, id string) (*domain.ChargePoint, error)
	FindAllFunc                    func(ctx context.Context) ([]domain.ChargePoint, error)
	UpdateStatusFunc               func(ctx context.Context, id string, status domain.ChargePointStatus) error
	UpdateMaxCurrentFunc           func(ctx context.Context, id string, maxCurrentA float64) error
	UpdateSmartChargingSupportFunc func(ctx context.Context, id string, supported bool) error
	TouchFunc                      func(ctx context.Context, id string, lastSeen time.Time) error
	DeleteFunc                     func(ctx context.Context, id string) error
}

func (m *MockChargePointRepository) Save(ctx context.Context, cp *domain.ChargePoint) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, cp)
	}
	return nil
}

func (m *MockChargePointRepository) FindByID(ctx context.Context, id string) (*domain.ChargePoint, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockChargePointRepository) FindAll(ctx context.Context) ([]domain.ChargePoint, error) {
	if m.FindAllFunc != nil {
		return m.FindAllFunc(ctx)
	}
	return []domain.ChargePoint{}, nil
}

func (m *MockChargePointRepository) UpdateStatus(ctx context.Context, id string, status domain.ChargePointStatus) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *MockChargePointRepository) UpdateMaxCurrent(ctx context.Context, id string, maxCurrentA float64) error {
	if m.UpdateMaxCurrentFunc != nil {
		return m.UpdateMaxCurrentFunc(ctx, id, maxCurrentA)
	}
	return nil
}

func (m *MockChargePointRepository) UpdateSmartChargingSupport(ctx context.Context, id string, supported bool) error {
	if m.UpdateSmartChargingSupportFunc != nil {
		return m.UpdateSmartChargingSupportFunc(ctx, id, supported)
	}
	return nil
}

func (m *MockChargePointRepository) Touch(ctx context.Context, id string, lastSeen time.Time) error {
	if m.TouchFunc != nil {
		return m.TouchFunc(ctx, id, lastSeen)
	}
	return nil
}

func (m *MockChargePointRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockTransactionRepository is a mock implementation of ports.TransactionRepository
type MockTransactionRepository struct {
	SaveFunc                          func(ctx context.Context, tx *domain.Transaction) error
	FindByIDFunc                      func(ctx context.Context, id int64) (*domain.Transaction, error)
	FindActiveByChargePointFunc       func(ctx context.Context, chargePointID string) (*domain.Transaction, error)
	FindActiveFunc                    func(ctx context.Context) ([]domain.Transaction, error)
	FindLastFinishedByChargePointFunc func(ctx context.Context, chargePointID string) (*domain.Transaction, error)
	UpdateFunc                        func(ctx context.Context, tx *domain.Transaction) error
}

func (m *MockTransactionRepository) Save(ctx context.Context, tx *domain.Transaction) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx)
	}
	return nil
}

func (m *MockTransactionRepository) FindByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockTransactionRepository) FindActiveByChargePoint(ctx context.Context, chargePointID string) (*domain.Transaction, error) {
	if m.FindActiveByChargePointFunc != nil {
		return m.FindActiveByChargePointFunc(ctx, chargePointID)
	}
	return nil, nil
}

func (m *MockTransactionRepository) FindActive(ctx context.Context) ([]domain.Transaction, error) {
	if m.FindActiveFunc != nil {
		return m.FindActiveFunc(ctx)
	}
	return []domain.Transaction{}, nil
}

func (m *MockTransactionRepository) FindLastFinishedByChargePoint(ctx context.Context, chargePointID string) (*domain.Transaction, error) {
	if m.FindLastFinishedByChargePointFunc != nil {
		return m.FindLastFinishedByChargePointFunc(ctx, chargePointID)
	}
	return nil, nil
}

func (m *MockTransactionRepository) Update(ctx context.Context, tx *domain.Transaction) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx)
	}
	return nil
}

// MockMeterSampleRepository is a mock implementation of ports.MeterSampleRepository
type MockMeterSampleRepository struct {
	SaveFunc                 func(ctx context.Context, sample *domain.MeterSample) error
	FindByTransactionFunc    func(ctx context.Context, transactionID int64) ([]domain.MeterSample, error)
	FindLatestByTransactionFunc func(ctx context.Context, transactionID int64) (*domain.MeterSample, error)
}

func (m *MockMeterSampleRepository) Save(ctx context.Context, sample *domain.MeterSample) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, sample)
	}
	return nil
}

func (m *MockMeterSampleRepository) FindByTransaction(ctx context.Context, transactionID int64) ([]domain.MeterSample, error) {
	if m.FindByTransactionFunc != nil {
		return m.FindByTransactionFunc(ctx, transactionID)
	}
	return []domain.MeterSample{}, nil
}

func (m *MockMeterSampleRepository) FindLatestByTransaction(ctx context.Context, transactionID int64) (*domain.MeterSample, error) {
	if m.FindLatestByTransactionFunc != nil {
		return m.FindLatestByTransactionFunc(ctx, transactionID)
	}
	return nil, nil
}

// MockStopRecordRepository is a mock implementation of ports.StopRecordRepository
type MockStopRecordRepository struct {
	SaveFunc              func(ctx context.Context, rec *domain.StopRecord) error
	FindByTransactionFunc func(ctx context.Context, transactionID int64) ([]domain.StopRecord, error)
}

func (m *MockStopRecordRepository) Save(ctx context.Context, rec *domain.StopRecord) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, rec)
	}
	return nil
}

func (m *MockStopRecordRepository) FindByTransaction(ctx context.Context, transactionID int64) ([]domain.StopRecord, error) {
	if m.FindByTransactionFunc != nil {
		return m.FindByTransactionFunc(ctx, transactionID)
	}
	return []domain.StopRecord{}, nil
}

// MockCardRepository is a mock implementation of ports.CardRepository
type MockCardRepository struct {
	SaveFunc          func(ctx context.Context, card *domain.Card) error
	FindByIDFunc      func(ctx context.Context, id string) (*domain.Card, error)
	FindAllFunc       func(ctx context.Context) ([]domain.Card, error)
	UpdateBalanceFunc func(ctx context.Context, id string, balance float64) error
}

func (m *MockCardRepository) Save(ctx context.Context, card *domain.Card) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, card)
	}
	return nil
}

func (m *MockCardRepository) FindByID(ctx context.Context, id string) (*domain.Card, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockCardRepository) FindAll(ctx context.Context) ([]domain.Card, error) {
	if m.FindAllFunc != nil {
		return m.FindAllFunc(ctx)
	}
	return []domain.Card{}, nil
}

func (m *MockCardRepository) UpdateBalance(ctx context.Context, id string, balance float64) error {
	if m.UpdateBalanceFunc != nil {
		return m.UpdateBalanceFunc(ctx, id, balance)
	}
	return nil
}

// MockIdTagRepository is a mock implementation of ports.IdTagRepository
type MockIdTagRepository struct {
	FindByIdTagFunc func(ctx context.Context, idTag string) (*domain.IdTag, error)
	SaveFunc        func(ctx context.Context, tag *domain.IdTag) error
}

func (m *MockIdTagRepository) FindByIdTag(ctx context.Context, idTag string) (*domain.IdTag, error) {
	if m.FindByIdTagFunc != nil {
		return m.FindByIdTagFunc(ctx, idTag)
	}
	return nil, nil
}

func (m *MockIdTagRepository) Save(ctx context.Context, tag *domain.IdTag) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tag)
	}
	return nil
}

// MockWhitelistRepository is a mock implementation of ports.WhitelistRepository
type MockWhitelistRepository struct {
	IsAllowedFunc     func(ctx context.Context, cardID, chargePointID string) (bool, error)
	HasAnyEntriesFunc func(ctx context.Context) (bool, error)
}

func (m *MockWhitelistRepository) IsAllowed(ctx context.Context, cardID, chargePointID string) (bool, error) {
	if m.IsAllowedFunc != nil {
		return m.IsAllowedFunc(ctx, cardID, chargePointID)
	}
	return true, nil
}

func (m *MockWhitelistRepository) HasAnyEntries(ctx context.Context) (bool, error) {
	if m.HasAnyEntriesFunc != nil {
		return m.HasAnyEntriesFunc(ctx)
	}
	return false, nil
}

// MockPaymentRepository is a mock implementation of ports.PaymentRepository
type MockPaymentRepository struct {
	SaveFunc              func(ctx context.Context, payment *domain.Payment) error
	FindByTransactionFunc func(ctx context.Context, transactionID int64) ([]domain.Payment, error)
	FindByCardFunc        func(ctx context.Context, cardID string, limit int) ([]domain.Payment, error)
}

func (m *MockPaymentRepository) Save(ctx context.Context, payment *domain.Payment) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, payment)
	}
	return nil
}

func (m *MockPaymentRepository) FindByTransaction(ctx context.Context, transactionID int64) ([]domain.Payment, error) {
	if m.FindByTransactionFunc != nil {
		return m.FindByTransactionFunc(ctx, transactionID)
	}
	return []domain.Payment{}, nil
}

func (m *MockPaymentRepository) FindByCard(ctx context.Context, cardID string, limit int) ([]domain.Payment, error) {
	if m.FindByCardFunc != nil {
		return m.FindByCardFunc(ctx, cardID, limit)
	}
	return []domain.Payment{}, nil
}

// MockRealtimeDeductionRepository is a mock implementation of ports.RealtimeDeductionRepository
type MockRealtimeDeductionRepository struct {
	GetFunc    func(ctx context.Context, transactionID int64) (*domain.RealtimeDeduction, error)
	UpsertFunc func(ctx context.Context, rd *domain.RealtimeDeduction) error
	DeleteFunc func(ctx context.Context, transactionID int64) error
}

func (m *MockRealtimeDeductionRepository) Get(ctx context.Context, transactionID int64) (*domain.RealtimeDeduction, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, transactionID)
	}
	return nil, nil
}

func (m *MockRealtimeDeductionRepository) Upsert(ctx context.Context, rd *domain.RealtimeDeduction) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, rd)
	}
	return nil
}

func (m *MockRealtimeDeductionRepository) Delete(ctx context.Context, transactionID int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, transactionID)
	}
	return nil
}

// MockTariffRepository is a mock implementation of ports.TariffRepository
type MockTariffRepository struct {
	FindAllFunc func(ctx context.Context) ([]domain.TariffSegment, error)
	ReplaceFunc func(ctx context.Context, segments []domain.TariffSegment) error
}

func (m *MockTariffRepository) FindAll(ctx context.Context) ([]domain.TariffSegment, error) {
	if m.FindAllFunc != nil {
		return m.FindAllFunc(ctx)
	}
	return []domain.TariffSegment{}, nil
}

func (m *MockTariffRepository) Replace(ctx context.Context, segments []domain.TariffSegment) error {
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(ctx, segments)
	}
	return nil
}

// MockCommunitySettingsRepository is a mock implementation of ports.CommunitySettingsRepository
type MockCommunitySettingsRepository struct {
	GetFunc  func(ctx context.Context) (*domain.CommunitySettings, error)
	SaveFunc func(ctx context.Context, settings *domain.CommunitySettings) error
}

func (m *MockCommunitySettingsRepository) Get(ctx context.Context) (*domain.CommunitySettings, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx)
	}
	return nil, nil
}

func (m *MockCommunitySettingsRepository) Save(ctx context.Context, settings *domain.CommunitySettings) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, settings)
	}
	return nil
}

// MockStatusLogRepository is a mock implementation of ports.StatusLogRepository
type MockStatusLogRepository struct {
	SaveFunc                  func(ctx context.Context, log *domain.StatusLog) error
	FindLatestByChargePointFunc func(ctx context.Context, chargePointID string) (*domain.StatusLog, error)
}

func (m *MockStatusLogRepository) Save(ctx context.Context, log *domain.StatusLog) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, log)
	}
	return nil
}

func (m *MockStatusLogRepository) FindLatestByChargePoint(ctx context.Context, chargePointID string) (*domain.StatusLog, error) {
	if m.FindLatestByChargePointFunc != nil {
		return m.FindLatestByChargePointFunc(ctx, chargePointID)
	}
	return nil, nil
}

// MockTxManager is a mock implementation of ports.TxManager. By default it
// simply invokes fn with the context unchanged, which is enough for tests
// that don't care about transactional isolation but do exercise the
// settlement logic wrapped in Atomic.
type MockTxManager struct {
	AtomicFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *MockTxManager) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.AtomicFunc != nil {
		return m.AtomicFunc(ctx, fn)
	}
	return fn(ctx)
}

package transaction

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/mocks"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func newTestService(t *testing.T) (*Service, *mocks.MockTransactionRepository, *mocks.MockCardRepository) {
	t.Helper()

	txRepo := &mocks.MockTransactionRepository{}
	cardRepo := &mocks.MockCardRepository{
		FindByIDFunc: func(ctx context.Context, id string) (*domain.Card, error) {
			return &domain.Card{ID: "card-1", BalanceNT: 100}, nil
		},
	}
	idTagRepo := &mocks.MockIdTagRepository{
		FindByIdTagFunc: func(ctx context.Context, idTag string) (*domain.IdTag, error) {
			return &domain.IdTag{IdTag: idTag, CardID: "card-1", Status: domain.IdTagStatusAccepted}, nil
		},
	}
	whitelist := &mocks.MockWhitelistRepository{
		IsAllowedFunc: func(ctx context.Context, cardID, chargePointID string) (bool, error) { return true, nil },
	}
	stopRecords := &mocks.MockStopRecordRepository{}
	payments := &mocks.MockPaymentRepository{}
	rd := &mocks.MockRealtimeDeductionRepository{}
	tariff := &mocks.MockTariffResolver{
		SegmentedCostFunc: func(ctx context.Context, transactionID int64) (float64, []ports.SegmentCost, error) {
			return 0, nil, nil
		},
		PriceAtFunc: func(t time.Time) (float64, error) { return 6.0, nil },
	}
	cache := &mocks.MockLiveStatusCache{}
	smartCharging := &mocks.MockSmartChargingCoordinator{}
	commands := &mocks.MockOCPPCommandService{}
	txManager := &mocks.MockTxManager{}

	svc := NewService(txRepo, stopRecords, cardRepo, idTagRepo, whitelist, payments, rd, tariff, cache, smartCharging, commands, txManager, newTestLogger())
	return svc, txRepo, cardRepo
}

func TestStartTransaction_Accepted(t *testing.T) {
	svc, txRepo, _ := newTestService(t)

	var saved *domain.Transaction
	txRepo.SaveFunc = func(ctx context.Context, tx *domain.Transaction) error {
		saved = tx
		return nil
	}

	tx, status, err := svc.StartTransaction(context.Background(), "CP-1", 1, "TAG-1", 0, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != "Accepted" {
		t.Fatalf("expected Accepted, got %s", status)
	}
	if saved == nil || saved.ID != tx.ID {
		t.Fatalf("expected transaction to be persisted")
	}
}

func TestStartTransaction_RejectsUnknownIdTag(t *testing.T) {
	svc, _, _ := newTestService(t)

	// Override the id-tag mock to simulate an unregistered tag.
	svc.idTags = &mocks.MockIdTagRepository{
		FindByIdTagFunc: func(ctx context.Context, idTag string) (*domain.IdTag, error) { return nil, nil },
	}

	_, status, err := svc.StartTransaction(context.Background(), "CP-1", 1, "UNKNOWN", 0, time.Now())
	if err == nil {
		t.Fatalf("expected rejection for unknown id tag")
	}
	if status != "Invalid" {
		t.Fatalf("expected Invalid, got %s", status)
	}
}

func TestStartTransaction_RejectsZeroBalance(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.cards = &mocks.MockCardRepository{
		FindByIDFunc: func(ctx context.Context, id string) (*domain.Card, error) {
			return &domain.Card{ID: "card-1", BalanceNT: 0}, nil
		},
	}

	_, status, err := svc.StartTransaction(context.Background(), "CP-1", 1, "TAG-1", 0, time.Now())
	if err == nil {
		t.Fatalf("expected rejection for zero balance")
	}
	if status != "Blocked" {
		t.Fatalf("expected Blocked, got %s", status)
	}
}

// Happy path seed scenario: card balance 100, tariff 6.0/kWh, session meters
// 0 -> 5000 Wh, expecting a final cost of 30.00 and a balance of 70.00.
func TestStopTransaction_HappyPath(t *testing.T) {
	svc, txRepo, cardRepo := newTestService(t)
	svc.tariff = &mocks.MockTariffResolver{
		SegmentedCostFunc: func(ctx context.Context, transactionID int64) (float64, []ports.SegmentCost, error) {
			return 30.0, nil, nil
		},
		PriceAtFunc: func(t time.Time) (float64, error) { return 6.0, nil },
	}

	start := time.Now().Add(-time.Hour)
	tx := &domain.Transaction{
		ID:            1,
		ChargePointID: "CP-1",
		ConnectorID:   1,
		CardID:        "card-1",
		StartTime:     start,
		MeterStartWh:  0,
		Status:        domain.TransactionStatusStarted,
	}
	txRepo.FindByIDFunc = func(ctx context.Context, id int64) (*domain.Transaction, error) { return tx, nil }
	var updated *domain.Transaction
	txRepo.UpdateFunc = func(ctx context.Context, t *domain.Transaction) error {
		updated = t
		return nil
	}

	var newBalance float64
	cardRepo.UpdateBalanceFunc = func(ctx context.Context, id string, balance float64) error {
		newBalance = balance
		return nil
	}

	stopped, err := svc.StopTransaction(context.Background(), "CP-1", 1, 5000, time.Now(), domain.StopReasonLocal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stopped.Cost != 30.0 {
		t.Fatalf("expected cost 30.0, got %v", stopped.Cost)
	}
	if updated.TotalEnergyWh != 5000 {
		t.Fatalf("expected 5000 Wh total, got %d", updated.TotalEnergyWh)
	}
	if newBalance != 70.0 {
		t.Fatalf("expected balance 70.0, got %v", newBalance)
	}
}

func TestStopTransaction_Idempotent(t *testing.T) {
	svc, txRepo, _ := newTestService(t)

	stopTime := time.Now()
	tx := &domain.Transaction{ID: 2, ChargePointID: "CP-1", Status: domain.TransactionStatusStopped, EndTime: &stopTime, Cost: 12.5}
	txRepo.FindByIDFunc = func(ctx context.Context, id int64) (*domain.Transaction, error) { return tx, nil }

	updateCalled := false
	txRepo.UpdateFunc = func(ctx context.Context, t *domain.Transaction) error {
		updateCalled = true
		return nil
	}

	result, err := svc.StopTransaction(context.Background(), "CP-1", 2, 9999, time.Now(), domain.StopReasonLocal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Cost != 12.5 {
		t.Fatalf("expected the already-settled cost to be returned unchanged, got %v", result.Cost)
	}
	if updateCalled {
		t.Fatalf("expected no second debit/update for an already-stopped transaction")
	}
}

func TestRemoteStop_FulfilledByIncomingStop(t *testing.T) {
	svc, txRepo, _ := newTestService(t)

	active := &domain.Transaction{ID: 3, ChargePointID: "CP-1", Status: domain.TransactionStatusStarted, StartTime: time.Now()}
	txRepo.FindActiveByChargePointFunc = func(ctx context.Context, chargePointID string) (*domain.Transaction, error) {
		return active, nil
	}
	txRepo.FindByIDFunc = func(ctx context.Context, id int64) (*domain.Transaction, error) { return active, nil }
	txRepo.UpdateFunc = func(ctx context.Context, t *domain.Transaction) error { return nil }

	remoteStopCalled := false
	svc.commands = &mocks.MockOCPPCommandService{
		RemoteStopTransactionFunc: func(ctx context.Context, chargePointID string, transactionID int64) error {
			remoteStopCalled = true
			// Simulate the charge point replying with its own StopTransaction
			// shortly after accepting the remote stop request.
			go func() {
				time.Sleep(10 * time.Millisecond)
				_, _ = svc.StopTransaction(context.Background(), chargePointID, transactionID, 1000, time.Now(), domain.StopReasonRemote)
			}()
			return nil
		},
	}

	result, err := svc.RemoteStop(context.Background(), "CP-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !remoteStopCalled {
		t.Fatalf("expected RemoteStopTransaction to be issued")
	}
	if result.ID != 3 {
		t.Fatalf("expected the settled transaction to be returned")
	}
}

package billing

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

// Balance-exhaust auto-stop seed scenario: card balance 1.00, tariff 6.0,
// a single sample of 800 Wh drives cost_so_far to 4.80, well past the
// balance, so a RemoteStopTransaction must be issued exactly once.
func TestHandleMeterValues_AutoStopOnExhaustedBalance(t *testing.T) {
	tx := &domain.Transaction{ID: 10, ChargePointID: "CP-1", CardID: "card-1", Status: domain.TransactionStatusStarted, StartTime: time.Now().Add(-time.Minute)}

	transactions := &mocks.MockTransactionRepository{
		FindByIDFunc: func(ctx context.Context, id int64) (*domain.Transaction, error) { return tx, nil },
	}
	meterSamples := &mocks.MockMeterSampleRepository{}
	var balanceAfter float64
	cards := &mocks.MockCardRepository{
		FindByIDFunc: func(ctx context.Context, id string) (*domain.Card, error) {
			return &domain.Card{ID: "card-1", BalanceNT: 1.0}, nil
		},
		UpdateBalanceFunc: func(ctx context.Context, id string, balance float64) error {
			balanceAfter = balance
			return nil
		},
	}
	rd := &mocks.MockRealtimeDeductionRepository{}
	tariff := &mocks.MockTariffResolver{
		SegmentedCostFunc: func(ctx context.Context, transactionID int64) (float64, []ports.SegmentCost, error) { return 4.8, nil, nil },
		PriceAtFunc:       func(t time.Time) (float64, error) { return 6.0, nil },
	}
	liveStatus := &mocks.MockLiveStatusCache{}

	stopCh := make(chan int64, 1)
	commands := &mocks.MockOCPPCommandService{
		RemoteStopTransactionFunc: func(ctx context.Context, chargePointID string, transactionID int64) error {
			stopCh <- transactionID
			return nil
		},
	}

	svc := NewService(transactions, meterSamples, cards, rd, tariff, liveStatus, commands, nil, newTestLogger())

	if err := svc.HandleMeterValues(context.Background(), "CP-1", 10, 1, time.Now(), 220, 10, 800, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case id := <-stopCh:
		if id != 10 {
			t.Fatalf("expected stop for transaction 10, got %d", id)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected an auto-stop to be requested")
	}

	if balanceAfter != 0 {
		t.Fatalf("expected balance clamped to 0, got %v", balanceAfter)
	}
}

// Round-trip idempotence: sending the same cumulative sample twice must
// not double-debit, since the RealtimeDeduction cursor already reflects
// the cost for that reading.
func TestHandleMeterValues_NoDoubleDebitOnRepeatedSample(t *testing.T) {
	tx := &domain.Transaction{ID: 11, ChargePointID: "CP-1", CardID: "card-1", Status: domain.TransactionStatusStarted, StartTime: time.Now().Add(-time.Minute)}

	transactions := &mocks.MockTransactionRepository{
		FindByIDFunc: func(ctx context.Context, id int64) (*domain.Transaction, error) { return tx, nil },
	}
	meterSamples := &mocks.MockMeterSampleRepository{}

	cursor := &domain.RealtimeDeduction{}
	rd := &mocks.MockRealtimeDeductionRepository{
		GetFunc: func(ctx context.Context, transactionID int64) (*domain.RealtimeDeduction, error) {
			if cursor.DeductedSoFar == 0 {
				return nil, nil
			}
			return cursor, nil
		},
		UpsertFunc: func(ctx context.Context, v *domain.RealtimeDeduction) error {
			*cursor = *v
			return nil
		},
	}

	debitCount := 0
	cards := &mocks.MockCardRepository{
		FindByIDFunc: func(ctx context.Context, id string) (*domain.Card, error) {
			return &domain.Card{ID: "card-1", BalanceNT: 100}, nil
		},
		UpdateBalanceFunc: func(ctx context.Context, id string, balance float64) error {
			debitCount++
			return nil
		},
	}
	tariff := &mocks.MockTariffResolver{
		SegmentedCostFunc: func(ctx context.Context, transactionID int64) (float64, []ports.SegmentCost, error) { return 3.0, nil, nil },
		PriceAtFunc:       func(t time.Time) (float64, error) { return 6.0, nil },
	}
	liveStatus := &mocks.MockLiveStatusCache{}
	commands := &mocks.MockOCPPCommandService{}

	svc := NewService(transactions, meterSamples, cards, rd, tariff, liveStatus, commands, nil, newTestLogger())

	for i := 0; i < 2; i++ {
		if err := svc.HandleMeterValues(context.Background(), "CP-1", 11, 1, time.Now(), 220, 5, 500, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if debitCount != 1 {
		t.Fatalf("expected exactly one debit for the repeated cumulative sample, got %d", debitCount)
	}
}

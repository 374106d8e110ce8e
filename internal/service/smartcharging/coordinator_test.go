package smartcharging

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/mocks"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func newCoordinator(settings *domain.CommunitySettings) (*Coordinator, *mocks.MockTransactionRepository, *mocks.MockOCPPCommandService) {
	settingsRepo := &mocks.MockCommunitySettingsRepository{
		GetFunc: func(ctx context.Context) (*domain.CommunitySettings, error) { return settings, nil },
	}
	transactions := &mocks.MockTransactionRepository{}
	chargePoints := &mocks.MockChargePointRepository{
		FindByIDFunc: func(ctx context.Context, id string) (*domain.ChargePoint, error) {
			return &domain.ChargePoint{ID: id, SupportsSmartCharging: true}, nil
		},
	}
	commands := &mocks.MockOCPPCommandService{IsConnectedFunc: func(string) bool { return true }}
	return NewCoordinator(settingsRepo, transactions, chargePoints, commands, newTestLogger()), transactions, commands
}

// Smart Charging admission rejection seed scenario: contract 7kW at 220V
// gives total_a ~= 31.8; three sessions would average ~10.6A, below a
// min_current_a of 16, so the third session must be rejected.
func TestSharePolicy_RejectsBelowMinimum(t *testing.T) {
	coord, _, _ := newCoordinator(&domain.CommunitySettings{ContractKW: 7, VoltageV: 220, MinCurrentA: 16, MaxCurrentA: 32})

	_, admit, err := coord.SharePolicy(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if admit {
		t.Fatalf("expected the third session to be rejected for falling below the per-session minimum")
	}
}

// Rebalance-on-stop seed scenario: three 10A sessions (30A total) become
// two once one stops, so the remaining pair should receive a recomputed
// limit of 15A.
func TestSharePolicy_RebalancesToHigherShare(t *testing.T) {
	coord, _, _ := newCoordinator(&domain.CommunitySettings{ContractKW: 6.6, VoltageV: 220, MinCurrentA: 6, MaxCurrentA: 32})

	perA, admit, err := coord.SharePolicy(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !admit {
		t.Fatalf("expected admission for two sessions")
	}
	if perA != 15 {
		t.Fatalf("expected 15A per session, got %v", perA)
	}
}

func TestSharePolicy_DisabledMeansNoCoordination(t *testing.T) {
	coord, _, _ := newCoordinator(&domain.CommunitySettings{SmartChargingDisabled: true})

	perA, admit, err := coord.SharePolicy(5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !admit || perA != 0 {
		t.Fatalf("expected no-coordination result (0, true), got (%v, %v)", perA, admit)
	}
}

func TestRebalance_PushesProfileToActiveSessions(t *testing.T) {
	coord, transactions, commands := newCoordinator(&domain.CommunitySettings{ContractKW: 6.6, VoltageV: 220, MinCurrentA: 6, MaxCurrentA: 32})

	transactions.FindActiveFunc = func(ctx context.Context) ([]domain.Transaction, error) {
		return []domain.Transaction{
			{ID: 1, ChargePointID: "CP-1", ConnectorID: 1},
			{ID: 2, ChargePointID: "CP-2", ConnectorID: 1},
		}, nil
	}

	pushed := map[string]float64{}
	commands.SetChargingProfileFunc = func(ctx context.Context, chargePointID string, connectorID int, limitA float64, profileID int) error {
		pushed[chargePointID] = limitA
		return nil
	}

	coord.Rebalance(context.Background(), "test")

	if len(pushed) != 2 {
		t.Fatalf("expected a push to both active charge points, got %d", len(pushed))
	}
	for cp, limit := range pushed {
		if limit != 15 {
			t.Fatalf("expected 15A pushed to %s, got %v", cp, limit)
		}
	}
}

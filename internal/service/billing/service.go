// Package billing implements the streaming prepaid billing engine that
// consumes MeterValues samples and debits card balances incrementally.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-cs/internal/adapter/queue"
	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

// epsilon is the minimum cost delta worth posting a new incremental debit
// for; it absorbs floating point noise in SegmentedCost's per-sample-pair sum.
const epsilon = 0.0005

// anomalyThresholdKWh drops a single meter sample whose cumulative energy
// register jumps further than this since the previous sample, which
// defends against counter roll-over and malformed payloads.
const anomalyThresholdKWh = 10.0

// Service implements ports.BillingStreamer.
type Service struct {
	transactions       ports.TransactionRepository
	meterSamples       ports.MeterSampleRepository
	cards              ports.CardRepository
	realtimeDeductions ports.RealtimeDeductionRepository
	tariff             ports.TariffResolver
	liveStatus         ports.LiveStatusCache
	commands           ports.OCPPCommandService
	mq                 queue.MessageQueue
	log                *zap.Logger

	mu            sync.Mutex
	stopRequested map[int64]bool
}

func NewService(
	transactions ports.TransactionRepository,
	meterSamples ports.MeterSampleRepository,
	cards ports.CardRepository,
	realtimeDeductions ports.RealtimeDeductionRepository,
	tariff ports.TariffResolver,
	liveStatus ports.LiveStatusCache,
	commands ports.OCPPCommandService,
	mq queue.MessageQueue,
	log *zap.Logger,
) *Service {
	return &Service{
		transactions:       transactions,
		meterSamples:       meterSamples,
		cards:              cards,
		realtimeDeductions: realtimeDeductions,
		tariff:             tariff,
		liveStatus:         liveStatus,
		commands:           commands,
		mq:                 mq,
		log:                log,
		stopRequested:      make(map[int64]bool),
	}
}

// HandleMeterValues persists one sampled value, updates the live status
// cache, and advances the incremental debit cursor for the owning
// transaction. energyWh is the cumulative register reading already
// normalized to Wh by the OCPP handler. explicitPowerW is nil when the CP
// did not report Power.Active.Import, in which case power is derived as
// P = V·I, in Watts.
func (s *Service) HandleMeterValues(ctx context.Context, chargePointID string, transactionID int64, connectorID int, sampledAt time.Time, voltageV, currentA, energyWh float64, explicitPowerW *float64) error {
	tx, err := s.transactions.FindByID(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("find transaction: %w", err)
	}
	if tx == nil {
		return fmt.Errorf("transaction %d not found", transactionID)
	}
	if tx.Status != domain.TransactionStatusStarted {
		return nil
	}

	if prev, err := s.meterSamples.FindLatestByTransaction(ctx, transactionID); err == nil && prev != nil {
		if deltaKWh := (energyWh - prev.EnergyWh) / 1000.0; deltaKWh > anomalyThresholdKWh {
			s.log.Warn("dropping anomalous meter sample",
				zap.Int64("transaction_id", transactionID),
				zap.Float64("delta_kwh", deltaKWh),
			)
			return nil
		}
	}

	powerW := voltageV * currentA
	if explicitPowerW != nil {
		powerW = *explicitPowerW
	}

	if err := s.meterSamples.Save(ctx, &domain.MeterSample{
		TransactionID: transactionID,
		ChargePointID: chargePointID,
		ConnectorID:   connectorID,
		Timestamp:     sampledAt,
		VoltageV:      voltageV,
		CurrentA:      currentA,
		PowerW:        powerW,
		EnergyWh:      energyWh,
	}); err != nil {
		s.log.Warn("failed to persist meter sample", zap.Error(err))
	}

	sessionKWh := math.Max(0, energyWh/1000.0-float64(tx.MeterStartWh)/1000.0)

	costSoFar, _, err := s.tariff.SegmentedCost(ctx, transactionID)
	if err != nil {
		s.log.Warn("segmented cost failed", zap.Error(err))
		costSoFar = 0
	}
	pricePerKWh, _ := s.tariff.PriceAt(sampledAt)

	s.liveStatus.Set(chargePointID, ports.LiveStatusSnapshot{
		ChargePointID: chargePointID,
		TransactionID: transactionID,
		VoltageV:      voltageV,
		CurrentA:      currentA,
		PowerW:        powerW,
		EnergyKWh:     sessionKWh,
		CostSoFar:     costSoFar,
		UpdatedAt:     sampledAt,
	})
	_ = pricePerKWh

	return s.advanceDebit(ctx, chargePointID, tx, costSoFar)
}

// advanceDebit reads the RealtimeDeduction cursor and, if cost has moved
// forward by more than epsilon, debits the delta from the card and
// advances the cursor. It also evaluates the auto-stop trigger.
func (s *Service) advanceDebit(ctx context.Context, chargePointID string, tx *domain.Transaction, costSoFar float64) error {
	already := 0.0
	if rd, err := s.realtimeDeductions.Get(ctx, tx.ID); err == nil && rd != nil {
		already = rd.DeductedSoFar
	}

	card, err := s.cards.FindByID(ctx, tx.CardID)
	if err != nil || card == nil {
		return fmt.Errorf("card lookup for %q: %w", tx.CardID, err)
	}

	projectedExhausted := costSoFar >= card.BalanceNT
	newBalance := card.BalanceNT

	if costSoFar > already+epsilon {
		delta := costSoFar - already
		newBalance = card.BalanceNT - delta
		if newBalance < 0 {
			newBalance = 0
		}
		if err := s.cards.UpdateBalance(ctx, tx.CardID, newBalance); err != nil {
			return fmt.Errorf("debit card: %w", err)
		}
		if err := s.realtimeDeductions.Upsert(ctx, &domain.RealtimeDeduction{
			TransactionID: tx.ID,
			CardID:        tx.CardID,
			DeductedSoFar: costSoFar,
			UpdatedAt:     time.Now(),
		}); err != nil {
			s.log.Warn("failed to advance realtime deduction cursor", zap.Error(err))
		}
		s.publishDebit(tx, delta, newBalance)
	}

	if newBalance <= 0 || projectedExhausted {
		s.requestAutoStop(chargePointID, tx.ID)
	}
	return nil
}

func (s *Service) publishDebit(tx *domain.Transaction, amount, balanceAfter float64) {
	if s.mq == nil {
		return
	}
	event := map[string]interface{}{
		"transaction_id": tx.ID,
		"card_id":        tx.CardID,
		"amount":         amount,
		"balance_after":  balanceAfter,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.mq.Publish("billing.debit", data); err != nil {
		s.log.Warn("failed to publish billing debit event", zap.Error(err))
	}
}

// requestAutoStop issues a RemoteStopTransaction at most once per
// transaction; a send failure clears the dedup flag so the next sample
// can retry.
func (s *Service) requestAutoStop(chargePointID string, transactionID int64) {
	s.mu.Lock()
	if s.stopRequested[transactionID] {
		s.mu.Unlock()
		return
	}
	s.stopRequested[transactionID] = true
	s.mu.Unlock()

	go func() {
		if err := s.commands.RemoteStopTransaction(context.Background(), chargePointID, transactionID); err != nil {
			s.log.Warn("auto-stop remote stop failed, will retry on next sample",
				zap.Int64("transaction_id", transactionID), zap.Error(err))
			s.mu.Lock()
			delete(s.stopRequested, transactionID)
			s.mu.Unlock()
			return
		}
		if s.mq != nil {
			if data, err := json.Marshal(map[string]interface{}{"transaction_id": transactionID, "charge_point_id": chargePointID}); err == nil {
				_ = s.mq.Publish("billing.auto_stop", data)
			}
		}
	}()
}

var _ ports.BillingStreamer = (*Service)(nil)

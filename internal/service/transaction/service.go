// Package transaction implements the per-CP charging session state
// machine: admission, start, stop, and server-initiated remote stop.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"
	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/observability/telemetry"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

// RemoteStopTimeout bounds how long a server-initiated stop waits for the
// charge point's own StopTransaction to arrive and settle the session.
const RemoteStopTimeout = 15 * time.Second

const defaultCurrency = "NTD"

// Service implements ports.TransactionEngine against the repositories,
// tariff resolver and smart charging coordinator.
type Service struct {
	transactions       ports.TransactionRepository
	stopRecords        ports.StopRecordRepository
	cards              ports.CardRepository
	idTags             ports.IdTagRepository
	whitelist          ports.WhitelistRepository
	payments           ports.PaymentRepository
	realtimeDeductions ports.RealtimeDeductionRepository
	tariff             ports.TariffResolver
	liveStatus         ports.LiveStatusCache
	smartCharging      ports.SmartChargingCoordinator
	commands           ports.OCPPCommandService
	txManager          ports.TxManager
	log                *zap.Logger

	idMu       sync.Mutex
	lastMillis int64

	pendingMu    sync.Mutex
	pendingStops map[int64]chan *domain.Transaction
}

func NewService(
	transactions ports.TransactionRepository,
	stopRecords ports.StopRecordRepository,
	cards ports.CardRepository,
	idTags ports.IdTagRepository,
	whitelist ports.WhitelistRepository,
	payments ports.PaymentRepository,
	realtimeDeductions ports.RealtimeDeductionRepository,
	tariff ports.TariffResolver,
	liveStatus ports.LiveStatusCache,
	smartCharging ports.SmartChargingCoordinator,
	commands ports.OCPPCommandService,
	txManager ports.TxManager,
	log *zap.Logger,
) *Service {
	return &Service{
		transactions:       transactions,
		stopRecords:        stopRecords,
		cards:              cards,
		idTags:             idTags,
		whitelist:          whitelist,
		payments:           payments,
		realtimeDeductions: realtimeDeductions,
		tariff:             tariff,
		liveStatus:         liveStatus,
		smartCharging:      smartCharging,
		commands:           commands,
		txManager:          txManager,
		log:                log,
		pendingStops:       make(map[int64]chan *domain.Transaction),
	}
}

// nextTransactionID derives a monotone id from wall-clock epoch ms, with a
// per-process tiebreaker so two starts in the same millisecond never collide.
func (s *Service) nextTransactionID() int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	now := time.Now().UnixMilli()
	if now <= s.lastMillis {
		s.lastMillis++
	} else {
		s.lastMillis = now
	}
	return s.lastMillis
}

// StartTransaction runs the admission checks in order: idTag lookup, card
// balance, whitelist, then Smart Charging capacity. idTagStatus is always
// returned (Accepted/Invalid/Blocked/Expired), even on rejection, since the caller
// reports it verbatim in StartTransaction.conf.
func (s *Service) StartTransaction(ctx context.Context, chargePointID string, connectorID int, idTag string, meterStartWh int, startTime time.Time) (*domain.Transaction, string, error) {
	tag, err := s.idTags.FindByIdTag(ctx, idTag)
	if err != nil {
		return nil, string(domain.IdTagStatusInvalid), fmt.Errorf("id tag lookup: %w", err)
	}
	if tag == nil {
		return nil, string(domain.IdTagStatusInvalid), fmt.Errorf("id tag %q is not registered", idTag)
	}
	if resolved := tag.Resolve(time.Now()); resolved != domain.IdTagStatusAccepted {
		return nil, string(resolved), fmt.Errorf("id tag %q is not accepted: %s", idTag, resolved)
	}

	card, err := s.cards.FindByID(ctx, tag.CardID)
	if err != nil {
		return nil, string(domain.IdTagStatusBlocked), fmt.Errorf("card lookup: %w", err)
	}
	if card == nil || card.BalanceNT <= 0 {
		return nil, string(domain.IdTagStatusBlocked), fmt.Errorf("card %q has no usable balance", tag.CardID)
	}

	allowed, err := s.whitelist.IsAllowed(ctx, tag.CardID, chargePointID)
	if err != nil {
		return nil, string(domain.IdTagStatusBlocked), fmt.Errorf("whitelist check: %w", err)
	}
	if !allowed {
		return nil, string(domain.IdTagStatusBlocked), fmt.Errorf("card %q is not whitelisted for %s", tag.CardID, chargePointID)
	}

	active, err := s.transactions.FindActive(ctx)
	if err != nil {
		return nil, string(domain.IdTagStatusBlocked), fmt.Errorf("active transaction count: %w", err)
	}
	if _, admit, err := s.smartCharging.SharePolicy(len(active) + 1); err != nil {
		s.log.Warn("share policy lookup failed, admitting anyway", zap.Error(err))
	} else if !admit {
		return nil, string(domain.IdTagStatusBlocked), errors.New("smart charging capacity would fall below the per-session minimum")
	}

	if startTime.IsZero() {
		startTime = time.Now().UTC()
	}

	tx := &domain.Transaction{
		ID:            s.nextTransactionID(),
		ChargePointID: chargePointID,
		ConnectorID:   connectorID,
		IdTag:         idTag,
		CardID:        tag.CardID,
		StartTime:     startTime,
		MeterStartWh:  meterStartWh,
		Status:        domain.TransactionStatusStarted,
		Currency:      defaultCurrency,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := s.transactions.Save(ctx, tx); err != nil {
		return nil, string(domain.IdTagStatusBlocked), fmt.Errorf("save transaction: %w", err)
	}

	s.liveStatus.Clear(chargePointID)

	s.log.Info("transaction started",
		zap.Int64("transaction_id", tx.ID),
		zap.String("charge_point_id", chargePointID),
		zap.Int("connector_id", connectorID),
		zap.String("id_tag", idTag),
	)

	go s.smartCharging.Rebalance(context.Background(), "start")
	telemetry.RecordTransactionStarted()

	return tx, string(domain.IdTagStatusAccepted), nil
}

// StopTransaction settles a transaction. It is idempotent: a transaction
// that is already stopped is returned as-is without a second debit, which
// is what makes duplicate StopTransaction deliveries and the race between
// an in-flight RemoteStop and a CP-initiated stop both safe.
func (s *Service) StopTransaction(ctx context.Context, chargePointID string, transactionID int64, meterStopWh int, stopTime time.Time, reason domain.StopReason) (*domain.Transaction, error) {
	tx, err := s.transactions.FindByID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction %d not found", transactionID)
	}
	if tx.EndTime != nil {
		return tx, nil
	}

	if stopTime.IsZero() {
		stopTime = time.Now().UTC()
	}
	if stopTime.Before(tx.StartTime) {
		stopTime = tx.StartTime
	}

	if err := s.stopRecords.Save(ctx, &domain.StopRecord{
		TransactionID: transactionID,
		ChargePointID: chargePointID,
		MeterStopWh:   meterStopWh,
		Timestamp:     stopTime,
		Reason:        reason,
		CreatedAt:     time.Now(),
	}); err != nil {
		s.log.Warn("failed to persist stop record", zap.Error(err))
	}

	if meterStopWh < tx.MeterStartWh {
		meterStopWh = tx.MeterStartWh
	}
	tx.MeterStopWh = meterStopWh
	tx.TotalEnergyWh = meterStopWh - tx.MeterStartWh
	tx.EndTime = &stopTime
	tx.Status = domain.TransactionStatusStopped
	tx.UpdatedAt = time.Now()

	energyKWh := float64(tx.TotalEnergyWh) / 1000.0
	finalCost, _, err := s.tariff.SegmentedCost(ctx, transactionID)
	if err != nil {
		s.log.Warn("segmented cost failed, falling back to spot price", zap.Error(err))
		price, perr := s.tariff.PriceAt(stopTime)
		if perr != nil {
			price = 0
		}
		finalCost = price * energyKWh
	}
	tx.Cost = finalCost
	tx.Currency = defaultCurrency

	var balanceAfter float64
	cardID := tx.CardID
	err = s.txManager.Atomic(ctx, func(ctx context.Context) error {
		if err := s.transactions.Update(ctx, tx); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}

		already := 0.0
		if rd, err := s.realtimeDeductions.Get(ctx, transactionID); err == nil && rd != nil {
			already = rd.DeductedSoFar
			if rd.CardID != "" {
				cardID = rd.CardID
			}
		}

		if card, err := s.cards.FindByID(ctx, cardID); err == nil && card != nil {
			balanceAfter = card.BalanceNT
			if finalCost > already {
				residual := finalCost - already
				balanceAfter = card.BalanceNT - residual
				if balanceAfter < 0 {
					balanceAfter = 0
				}
				if err := s.cards.UpdateBalance(ctx, cardID, balanceAfter); err != nil {
					return fmt.Errorf("debit residual balance on stop: %w", err)
				}
			}
		} else if err != nil {
			s.log.Warn("card lookup failed while settling transaction", zap.Error(err))
		}

		if err := s.payments.Save(ctx, &domain.Payment{
			ID:            uuid.NewString(),
			CardID:        cardID,
			TransactionID: transactionID,
			Amount:        finalCost,
			BalanceAfter:  balanceAfter,
			Status:        domain.PaymentStatusCompleted,
			Description:   fmt.Sprintf("session %d on %s", transactionID, chargePointID),
			CreatedAt:     time.Now(),
		}); err != nil {
			return fmt.Errorf("record payment: %w", err)
		}

		if err := s.realtimeDeductions.Delete(ctx, transactionID); err != nil {
			return fmt.Errorf("clear realtime deduction cursor: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("settle stop transaction: %w", err)
	}

	s.fulfillPendingStop(transactionID, tx)
	s.liveStatus.Clear(chargePointID)

	s.log.Info("transaction stopped",
		zap.Int64("transaction_id", transactionID),
		zap.Int("total_energy_wh", tx.TotalEnergyWh),
		zap.Float64("cost", tx.Cost),
	)

	go s.smartCharging.Rebalance(context.Background(), "stop")
	telemetry.RecordTransactionCompleted(energyKWh, tx.Cost, tx.Currency, stopTime.Sub(tx.StartTime).Seconds())

	return tx, nil
}

// RemoteStop issues a server-initiated RemoteStopTransaction and waits for
// the charge point's own StopTransaction to settle the session, bounded by
// RemoteStopTimeout. On timeout the transaction is left open; the next
// MeterValues or StopTransaction reconciles it normally.
func (s *Service) RemoteStop(ctx context.Context, chargePointID string) (*domain.Transaction, error) {
	tx, err := s.transactions.FindActiveByChargePoint(ctx, chargePointID)
	if err != nil {
		return nil, fmt.Errorf("find active transaction: %w", err)
	}
	if tx == nil {
		return nil, fmt.Errorf("charge point %s has no active transaction", chargePointID)
	}

	done := make(chan *domain.Transaction, 1)
	s.pendingMu.Lock()
	s.pendingStops[tx.ID] = done
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pendingStops, tx.ID)
		s.pendingMu.Unlock()
	}()

	if err := s.commands.RemoteStopTransaction(ctx, chargePointID, tx.ID); err != nil {
		return nil, fmt.Errorf("remote stop transaction: %w", err)
	}

	timer := time.NewTimer(RemoteStopTimeout)
	defer timer.Stop()

	select {
	case finished := <-done:
		return finished, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("charge point %s did not acknowledge remote stop within %s", chargePointID, RemoteStopTimeout)
	}
}

func (s *Service) fulfillPendingStop(transactionID int64, tx *domain.Transaction) {
	s.pendingMu.Lock()
	ch, ok := s.pendingStops[transactionID]
	if ok {
		delete(s.pendingStops, transactionID)
	}
	s.pendingMu.Unlock()
	if ok {
		ch <- tx
	}
}

func (s *Service) CurrentTransaction(ctx context.Context, chargePointID string) (*domain.Transaction, error) {
	return s.transactions.FindActiveByChargePoint(ctx, chargePointID)
}

func (s *Service) LastFinishedTransaction(ctx context.Context, chargePointID string) (*domain.Transaction, error) {
	return s.transactions.FindLastFinishedByChargePoint(ctx, chargePointID)
}

var _ ports.TransactionEngine = (*Service)(nil)

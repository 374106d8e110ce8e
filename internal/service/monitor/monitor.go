// Package monitor runs the background safety-net sweep that catches
// sessions whose card balance has been exhausted but whose MeterValues
// stream has gone quiet before the streaming billing engine could react.
package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-cs/internal/observability/telemetry"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

// Interval is the sweep period; 5s matches the cadence at which an idle
// MeterValues stream would otherwise leave an exhausted card charging.
const Interval = 5 * time.Second

// Monitor periodically cross-checks card balances against active
// transactions and issues a remote stop for any that have slipped through,
// and republishes the fleet's charge-point-by-status gauge.
type Monitor struct {
	transactions ports.TransactionRepository
	cards        ports.CardRepository
	chargePoints ports.ChargePointRepository
	engine       ports.TransactionEngine
	log          *zap.Logger
}

func New(transactions ports.TransactionRepository, cards ports.CardRepository, chargePoints ports.ChargePointRepository, engine ports.TransactionEngine, log *zap.Logger) *Monitor {
	return &Monitor{transactions: transactions, cards: cards, chargePoints: chargePoints, engine: engine, log: log}
}

// Run blocks, sweeping every Interval until ctx is cancelled. Callers
// start it as its own goroutine.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
			m.reportFleetStatus(ctx)
		}
	}
}

// reportFleetStatus recomputes ChargePointsTotal from scratch each tick
// rather than tracking deltas, since charge point status changes arrive
// from several independent handlers (boot, status notification, admin
// create) with no single choke point to increment/decrement from.
func (m *Monitor) reportFleetStatus(ctx context.Context) {
	cps, err := m.chargePoints.FindAll(ctx)
	if err != nil {
		m.log.Warn("monitor: failed to list charge points for status gauge", zap.Error(err))
		return
	}

	counts := make(map[string]float64)
	for _, cp := range cps {
		counts[string(cp.Status)]++
	}
	telemetry.ChargePointsTotal.Reset()
	for status, count := range counts {
		telemetry.ChargePointsTotal.WithLabelValues(status).Set(count)
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	active, err := m.transactions.FindActive(ctx)
	if err != nil {
		m.log.Warn("monitor: failed to list active transactions", zap.Error(err))
		return
	}

	for _, tx := range active {
		card, err := m.cards.FindByID(ctx, tx.CardID)
		if err != nil {
			m.log.Warn("monitor: card lookup failed", zap.String("card_id", tx.CardID), zap.Error(err))
			continue
		}
		if card == nil || card.BalanceNT > 0 {
			continue
		}

		m.log.Info("monitor: exhausted balance detected on active session, requesting stop",
			zap.Int64("transaction_id", tx.ID), zap.String("charge_point_id", tx.ChargePointID))

		// RemoteStop is idempotent against the billing streamer's own
		// auto-stop dedup: if a stop is already in flight this simply
		// times out waiting for a StopTransaction that was already on
		// its way, which is harmless.
		go func(chargePointID string) {
			stopCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			if _, err := m.engine.RemoteStop(stopCtx, chargePointID); err != nil {
				m.log.Warn("monitor: remote stop failed or timed out", zap.String("charge_point_id", chargePointID), zap.Error(err))
			}
		}(tx.ChargePointID)
	}
}

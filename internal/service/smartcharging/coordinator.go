// Package smartcharging implements the community current-sharing policy:
// computing a per-session current limit from a contracted kW budget and
// pushing it to every active charge point on session-count change.
package smartcharging

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-cs/internal/ports"
)

// pushTimeout bounds each outbound SetChargingProfile call during a
// rebalance sweep so one unresponsive CP never stalls the others.
const pushTimeout = 10 * time.Second

// profileModulus keeps the pushed chargingProfileId within OCPP's
// practical range while staying derived from the transaction id.
const profileModulus = 100000

// Coordinator implements ports.SmartChargingCoordinator.
type Coordinator struct {
	settings     ports.CommunitySettingsRepository
	transactions ports.TransactionRepository
	chargePoints ports.ChargePointRepository
	commands     ports.OCPPCommandService
	log          *zap.Logger
}

func NewCoordinator(
	settings ports.CommunitySettingsRepository,
	transactions ports.TransactionRepository,
	chargePoints ports.ChargePointRepository,
	commands ports.OCPPCommandService,
	log *zap.Logger,
) *Coordinator {
	return &Coordinator{
		settings:     settings,
		transactions: transactions,
		chargePoints: chargePoints,
		commands:     commands,
		log:          log,
	}
}

// SharePolicy returns the per-session allowed current in amperes for
// activeCount simultaneously charging sessions. perConnectorA == 0 with
// admit == true means "no coordination": sessions run at each CP's own
// ceiling because Smart Charging is disabled or unconfigured.
func (c *Coordinator) SharePolicy(activeCount int) (float64, bool, error) {
	settings, err := c.settings.Get(context.Background())
	if err != nil {
		return 0, false, err
	}
	if settings == nil || settings.SmartChargingDisabled || settings.ContractKW <= 0 {
		return 0, true, nil
	}
	if activeCount < 1 {
		activeCount = 1
	}
	if settings.VoltageV <= 0 {
		return 0, true, nil
	}

	totalA := settings.ContractKW * 1000 / settings.VoltageV
	avg := totalA / float64(activeCount)

	if avg < settings.MinCurrentA {
		return 0, false, nil
	}
	if avg > settings.MaxCurrentA {
		return settings.MaxCurrentA, true, nil
	}
	return math.Round(avg*100) / 100, true, nil
}

// Rebalance recomputes the current share for the present set of active
// transactions and pushes a SetChargingProfile to every connected charge
// point among them; the first successful push latches the charge point's
// smart-charging support flag. Per-CP failures are logged and do not
// block the rest of the sweep.
func (c *Coordinator) Rebalance(ctx context.Context, reason string) {
	active, err := c.transactions.FindActive(ctx)
	if err != nil {
		c.log.Warn("rebalance: failed to list active transactions", zap.Error(err))
		return
	}
	if len(active) == 0 {
		return
	}

	perConnectorA, admit, err := c.SharePolicy(len(active))
	if err != nil {
		c.log.Warn("rebalance: share policy failed", zap.Error(err))
		return
	}
	if !admit || perConnectorA == 0 {
		return
	}

	for _, tx := range active {
		if !c.commands.IsConnected(tx.ChargePointID) {
			continue
		}
		cp, err := c.chargePoints.FindByID(ctx, tx.ChargePointID)
		if err != nil {
			c.log.Warn("rebalance: charge point lookup failed", zap.String("charge_point_id", tx.ChargePointID), zap.Error(err))
			continue
		}

		profileID := int(tx.ID % profileModulus)
		pctx, cancel := context.WithTimeout(ctx, pushTimeout)
		err = c.commands.SetChargingProfile(pctx, tx.ChargePointID, tx.ConnectorID, perConnectorA, profileID)
		cancel()
		if err != nil {
			c.log.Warn("rebalance: set charging profile failed",
				zap.String("charge_point_id", tx.ChargePointID), zap.String("reason", reason), zap.Error(err))
			continue
		}

		// First successful push latches smart-charging support, since
		// GetConfiguration is unreliable across firmware.
		if cp != nil && !cp.SupportsSmartCharging {
			if err := c.chargePoints.UpdateSmartChargingSupport(ctx, tx.ChargePointID, true); err != nil {
				c.log.Warn("rebalance: failed to latch smart charging support", zap.Error(err))
			}
		}
	}

	c.log.Info("smart charging rebalance complete",
		zap.String("reason", reason), zap.Int("active_sessions", len(active)), zap.Float64("per_connector_a", perConnectorA))
}

// OnSettingsChanged is invoked after an admin updates CommunitySettings;
// it triggers an immediate rebalance so in-progress sessions pick up the
// new contract budget without waiting for the next start/stop edge.
func (c *Coordinator) OnSettingsChanged(ctx context.Context) {
	c.Rebalance(ctx, "settings-changed")
}

var _ ports.SmartChargingCoordinator = (*Coordinator)(nil)

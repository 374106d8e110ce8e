package ports

import (
	"context"
	"time"

	"github.com/seu-repo/ocpp-cs/internal/domain"
)

type ChargePointRepository interface {
	Save(ctx context.Context, cp *domain.ChargePoint) error
	FindByID(ctx context.Context, id string) (*domain.ChargePoint, error)
	FindAll(ctx context.Context) ([]domain.ChargePoint, error)
	UpdateStatus(ctx context.Context, id string, status domain.ChargePointStatus) error
	UpdateMaxCurrent(ctx context.Context, id string, maxCurrentA float64) error
	UpdateSmartChargingSupport(ctx context.Context, id string, supported bool) error
	Touch(ctx context.Context, id string, lastSeen time.Time) error
	Delete(ctx context.Context, id string) error
}

type TransactionRepository interface {
	Save(ctx context.Context, tx *domain.Transaction) error
	FindByID(ctx context.Context, id int64) (*domain.Transaction, error)
	FindActiveByChargePoint(ctx context.Context, chargePointID string) (*domain.Transaction, error)
	FindActive(ctx context.Context) ([]domain.Transaction, error)
	FindLastFinishedByChargePoint(ctx context.Context, chargePointID string) (*domain.Transaction, error)
	Update(ctx context.Context, tx *domain.Transaction) error
}

type MeterSampleRepository interface {
	Save(ctx context.Context, sample *domain.MeterSample) error
	FindByTransaction(ctx context.Context, transactionID int64) ([]domain.MeterSample, error)
	FindLatestByTransaction(ctx context.Context, transactionID int64) (*domain.MeterSample, error)
}

type StopRecordRepository interface {
	Save(ctx context.Context, rec *domain.StopRecord) error
	FindByTransaction(ctx context.Context, transactionID int64) ([]domain.StopRecord, error)
}

type CardRepository interface {
	Save(ctx context.Context, card *domain.Card) error
	FindByID(ctx context.Context, id string) (*domain.Card, error)
	FindAll(ctx context.Context) ([]domain.Card, error)
	UpdateBalance(ctx context.Context, id string, balance float64) error
}

type IdTagRepository interface {
	FindByIdTag(ctx context.Context, idTag string) (*domain.IdTag, error)
	Save(ctx context.Context, tag *domain.IdTag) error
}

type WhitelistRepository interface {
	IsAllowed(ctx context.Context, cardID, chargePointID string) (bool, error)
	HasAnyEntries(ctx context.Context) (bool, error)
}

type PaymentRepository interface {
	Save(ctx context.Context, payment *domain.Payment) error
	FindByTransaction(ctx context.Context, transactionID int64) ([]domain.Payment, error)
	FindByCard(ctx context.Context, cardID string, limit int) ([]domain.Payment, error)
}

type RealtimeDeductionRepository interface {
	Get(ctx context.Context, transactionID int64) (*domain.RealtimeDeduction, error)
	Upsert(ctx context.Context, rd *domain.RealtimeDeduction) error
	Delete(ctx context.Context, transactionID int64) error
}

type TariffRepository interface {
	FindAll(ctx context.Context) ([]domain.TariffSegment, error)
	Replace(ctx context.Context, segments []domain.TariffSegment) error
}

type CommunitySettingsRepository interface {
	Get(ctx context.Context) (*domain.CommunitySettings, error)
	Save(ctx context.Context, settings *domain.CommunitySettings) error
}

type StatusLogRepository interface {
	Save(ctx context.Context, log *domain.StatusLog) error
	FindLatestByChargePoint(ctx context.Context, chargePointID string) (*domain.StatusLog, error)
}

// TxManager runs fn inside a single atomic database transaction,
// propagated to every repository call made with the context fn receives.
// It exists so a multi-repository settlement (e.g. the StopTransaction
// path's transaction update, residual debit, payment insert and
// realtime-deduction delete) commits or rolls back as one unit despite
// the repository-per-aggregate split.
type TxManager interface {
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
}

package sqlite

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

type PaymentRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewPaymentRepository(db *gorm.DB, log *zap.Logger) ports.PaymentRepository {
	return &PaymentRepository{db: db, log: log}
}

func (r *PaymentRepository) Save(ctx context.Context, payment *domain.Payment) error {
	return dbFor(ctx, r.db).Create(payment).Error
}

func (r *PaymentRepository) FindByTransaction(ctx context.Context, transactionID int64) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := dbFor(ctx, r.db).Where("transaction_id = ?", transactionID).Order("created_at").Find(&payments).Error
	return payments, err
}

func (r *PaymentRepository) FindByCard(ctx context.Context, cardID string, limit int) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := dbFor(ctx, r.db).Where("card_id = ?", cardID).Order("created_at desc").Limit(limit).Find(&payments).Error
	return payments, err
}

// RealtimeDeductionRepository implements the idempotence cursor for
// incremental billing: Upsert replaces the cursor wholesale because the
// caller always writes the full "deducted so far" total, never a delta.
type RealtimeDeductionRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewRealtimeDeductionRepository(db *gorm.DB, log *zap.Logger) ports.RealtimeDeductionRepository {
	return &RealtimeDeductionRepository{db: db, log: log}
}

func (r *RealtimeDeductionRepository) Get(ctx context.Context, transactionID int64) (*domain.RealtimeDeduction, error) {
	var rd domain.RealtimeDeduction
	err := dbFor(ctx, r.db).First(&rd, "transaction_id = ?", transactionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rd, nil
}

func (r *RealtimeDeductionRepository) Upsert(ctx context.Context, rd *domain.RealtimeDeduction) error {
	return dbFor(ctx, r.db).Save(rd).Error
}

func (r *RealtimeDeductionRepository) Delete(ctx context.Context, transactionID int64) error {
	return dbFor(ctx, r.db).Delete(&domain.RealtimeDeduction{}, "transaction_id = ?", transactionID).Error
}

package sqlite

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

type TransactionRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewTransactionRepository(db *gorm.DB, log *zap.Logger) ports.TransactionRepository {
	return &TransactionRepository{db: db, log: log}
}

func (r *TransactionRepository) Save(ctx context.Context, tx *domain.Transaction) error {
	return dbFor(ctx, r.db).Save(tx).Error
}

func (r *TransactionRepository) FindByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := dbFor(ctx, r.db).First(&tx, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

func (r *TransactionRepository) FindActiveByChargePoint(ctx context.Context, chargePointID string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := dbFor(ctx, r.db).
		Where("charge_point_id = ? AND status = ?", chargePointID, domain.TransactionStatusStarted).
		Order("start_time desc").First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

func (r *TransactionRepository) FindActive(ctx context.Context) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	err := dbFor(ctx, r.db).Where("status = ?", domain.TransactionStatusStarted).Find(&txs).Error
	return txs, err
}

func (r *TransactionRepository) FindLastFinishedByChargePoint(ctx context.Context, chargePointID string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := dbFor(ctx, r.db).
		Where("charge_point_id = ? AND status = ?", chargePointID, domain.TransactionStatusStopped).
		Order("end_time desc").First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

func (r *TransactionRepository) Update(ctx context.Context, tx *domain.Transaction) error {
	return dbFor(ctx, r.db).Save(tx).Error
}

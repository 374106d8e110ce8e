package sqlite

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

type StopRecordRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewStopRecordRepository(db *gorm.DB, log *zap.Logger) ports.StopRecordRepository {
	return &StopRecordRepository{db: db, log: log}
}

func (r *StopRecordRepository) Save(ctx context.Context, rec *domain.StopRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *StopRecordRepository) FindByTransaction(ctx context.Context, transactionID int64) ([]domain.StopRecord, error) {
	var recs []domain.StopRecord
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).Order("created_at").Find(&recs).Error
	return recs, err
}

package sqlite

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

type MeterSampleRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewMeterSampleRepository(db *gorm.DB, log *zap.Logger) ports.MeterSampleRepository {
	return &MeterSampleRepository{db: db, log: log}
}

func (r *MeterSampleRepository) Save(ctx context.Context, sample *domain.MeterSample) error {
	return r.db.WithContext(ctx).Create(sample).Error
}

func (r *MeterSampleRepository) FindByTransaction(ctx context.Context, transactionID int64) ([]domain.MeterSample, error) {
	var samples []domain.MeterSample
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).Order("timestamp").Find(&samples).Error
	return samples, err
}

func (r *MeterSampleRepository) FindLatestByTransaction(ctx context.Context, transactionID int64) (*domain.MeterSample, error) {
	var sample domain.MeterSample
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).Order("timestamp desc").First(&sample).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sample, nil
}

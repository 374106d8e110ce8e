package sqlite

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

type ChargePointRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewChargePointRepository(db *gorm.DB, log *zap.Logger) ports.ChargePointRepository {
	return &ChargePointRepository{db: db, log: log}
}

func (r *ChargePointRepository) Save(ctx context.Context, cp *domain.ChargePoint) error {
	if err := r.db.WithContext(ctx).Save(cp).Error; err != nil {
		r.log.Error("failed to save charge point", zap.Error(err))
		return err
	}
	return nil
}

func (r *ChargePointRepository) FindByID(ctx context.Context, id string) (*domain.ChargePoint, error) {
	var cp domain.ChargePoint
	err := r.db.WithContext(ctx).First(&cp, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cp, nil
}

func (r *ChargePointRepository) FindAll(ctx context.Context) ([]domain.ChargePoint, error) {
	var cps []domain.ChargePoint
	err := r.db.WithContext(ctx).Order("id").Find(&cps).Error
	return cps, err
}

func (r *ChargePointRepository) UpdateStatus(ctx context.Context, id string, status domain.ChargePointStatus) error {
	return r.db.WithContext(ctx).Model(&domain.ChargePoint{}).Where("id = ?", id).Update("status", status).Error
}

func (r *ChargePointRepository) UpdateMaxCurrent(ctx context.Context, id string, maxCurrentA float64) error {
	return r.db.WithContext(ctx).Model(&domain.ChargePoint{}).Where("id = ?", id).Update("max_current_a", maxCurrentA).Error
}

func (r *ChargePointRepository) UpdateSmartChargingSupport(ctx context.Context, id string, supported bool) error {
	return r.db.WithContext(ctx).Model(&domain.ChargePoint{}).Where("id = ?", id).Update("supports_smart_charging", supported).Error
}

func (r *ChargePointRepository) Touch(ctx context.Context, id string, lastSeen time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.ChargePoint{}).Where("id = ?", id).Update("last_seen", lastSeen).Error
}

func (r *ChargePointRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.ChargePoint{}).Error
}

package sqlite

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

type TariffRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewTariffRepository(db *gorm.DB, log *zap.Logger) ports.TariffRepository {
	return &TariffRepository{db: db, log: log}
}

func (r *TariffRepository) FindAll(ctx context.Context) ([]domain.TariffSegment, error) {
	var segs []domain.TariffSegment
	err := r.db.WithContext(ctx).Order("date, start").Find(&segs).Error
	return segs, err
}

// Replace swaps the entire daily-pricing schedule in one transaction so
// readers never observe a partially updated table.
func (r *TariffRepository) Replace(ctx context.Context, segments []domain.TariffSegment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&domain.TariffSegment{}).Error; err != nil {
			return err
		}
		if len(segments) == 0 {
			return nil
		}
		return tx.Create(&segments).Error
	})
}

type CommunitySettingsRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewCommunitySettingsRepository(db *gorm.DB, log *zap.Logger) ports.CommunitySettingsRepository {
	return &CommunitySettingsRepository{db: db, log: log}
}

func (r *CommunitySettingsRepository) Get(ctx context.Context) (*domain.CommunitySettings, error) {
	var settings domain.CommunitySettings
	err := r.db.WithContext(ctx).First(&settings, "id = ?", 1).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

func (r *CommunitySettingsRepository) Save(ctx context.Context, settings *domain.CommunitySettings) error {
	settings.ID = 1
	return r.db.WithContext(ctx).Save(settings).Error
}

type StatusLogRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewStatusLogRepository(db *gorm.DB, log *zap.Logger) ports.StatusLogRepository {
	return &StatusLogRepository{db: db, log: log}
}

func (r *StatusLogRepository) Save(ctx context.Context, log *domain.StatusLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *StatusLogRepository) FindLatestByChargePoint(ctx context.Context, chargePointID string) (*domain.StatusLog, error) {
	var entry domain.StatusLog
	err := r.db.WithContext(ctx).Where("charge_point_id = ?", chargePointID).Order("timestamp desc").First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

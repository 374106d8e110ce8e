package sqlite

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

type IdTagRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewIdTagRepository(db *gorm.DB, log *zap.Logger) ports.IdTagRepository {
	return &IdTagRepository{db: db, log: log}
}

func (r *IdTagRepository) FindByIdTag(ctx context.Context, idTag string) (*domain.IdTag, error) {
	var tag domain.IdTag
	err := r.db.WithContext(ctx).First(&tag, "id_tag = ?", idTag).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tag, nil
}

func (r *IdTagRepository) Save(ctx context.Context, tag *domain.IdTag) error {
	return r.db.WithContext(ctx).Save(tag).Error
}

// WhitelistRepository implements the "empty whitelist = allow anywhere"
// rule: IsAllowed only restricts a card once at least one entry exists
// for it, and HasAnyEntries tells the caller whether the table is in use
// at all (so an entirely unconfigured whitelist never blocks anyone).
type WhitelistRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewWhitelistRepository(db *gorm.DB, log *zap.Logger) ports.WhitelistRepository {
	return &WhitelistRepository{db: db, log: log}
}

func (r *WhitelistRepository) IsAllowed(ctx context.Context, cardID, chargePointID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.CardWhitelistEntry{}).Where("card_id = ?", cardID).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		// Card has no whitelist entries at all: unrestricted.
		return true, nil
	}
	var matched int64
	err := r.db.WithContext(ctx).Model(&domain.CardWhitelistEntry{}).
		Where("card_id = ? AND charge_point_id = ?", cardID, chargePointID).Count(&matched).Error
	return matched > 0, err
}

func (r *WhitelistRepository) HasAnyEntries(ctx context.Context) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.CardWhitelistEntry{}).Count(&count).Error
	return count > 0, err
}

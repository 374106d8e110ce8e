package sqlite

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

type CardRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewCardRepository(db *gorm.DB, log *zap.Logger) ports.CardRepository {
	return &CardRepository{db: db, log: log}
}

func (r *CardRepository) Save(ctx context.Context, card *domain.Card) error {
	return dbFor(ctx, r.db).Save(card).Error
}

func (r *CardRepository) FindByID(ctx context.Context, id string) (*domain.Card, error) {
	var card domain.Card
	err := dbFor(ctx, r.db).First(&card, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

func (r *CardRepository) FindAll(ctx context.Context) ([]domain.Card, error) {
	var cards []domain.Card
	err := dbFor(ctx, r.db).Order("id").Find(&cards).Error
	return cards, err
}

// UpdateBalance performs an unconditional clamp-free update; callers are
// expected to have already computed the new balance (including the
// never-go-negative clamp applied during settlement).
func (r *CardRepository) UpdateBalance(ctx context.Context, id string, balance float64) error {
	return dbFor(ctx, r.db).Model(&domain.Card{}).Where("id = ?", id).Update("balance_nt", balance).Error
}

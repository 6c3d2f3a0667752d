package coins

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aranyaherbals/storefront-backend/pkg/db/models"
)

// Repository exposes persistence helpers for the coin ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Balance(ctx context.Context, customerID uuid.UUID) (int64, error)
	Insert(ctx context.Context, entry *models.CoinTransaction) error
	History(ctx context.Context, customerID uuid.UUID, limit int) ([]models.CoinTransaction, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a coin ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Balance(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).
		Model(&models.CoinTransaction{}).
		Where("customer_id = ?", customerID).
		Select("COALESCE(SUM(coins), 0)").
		Scan(&balance).Error
	return balance, err
}

func (r *repositoryImpl) Insert(ctx context.Context, entry *models.CoinTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repositoryImpl) History(ctx context.Context, customerID uuid.UUID, limit int) ([]models.CoinTransaction, error) {
	var rows []models.CoinTransaction
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

package coupons

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/aranyaherbals/storefront-backend/pkg/db/models"
)

// Repository exposes persistence helpers for coupons.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	IncrementUsage(ctx context.Context, code string) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a coupons repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Where("UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// IncrementUsage bumps used_count only while the usage limit still has
// headroom, so concurrent checkouts cannot overspend a limited coupon.
func (r *repositoryImpl) IncrementUsage(ctx context.Context, code string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("UPPER(code) = ? AND active AND (usage_limit IS NULL OR used_count < usage_limit)",
			strings.ToUpper(strings.TrimSpace(code))).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

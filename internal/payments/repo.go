package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aranyaherbals/storefront-backend/pkg/db/models"
	"github.com/aranyaherbals/storefront-backend/pkg/enums"
)

// Repository exposes persistence helpers for gateway payment attempts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, attempt *models.PaymentAttempt) error
	FindPendingByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentAttempt, error)
	FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.PaymentAttempt, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentAttempt, error)
	UpdateStatusIf(ctx context.Context, attemptID uuid.UUID, from []enums.PaymentStatus, to enums.PaymentStatus, sets map[string]any) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a payment attempt repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, attempt *models.PaymentAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *repositoryImpl) FindPendingByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("gateway_order_id = ? AND status = ?", gatewayOrderID, enums.PaymentPending).
		Order("created_at DESC").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *repositoryImpl) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("gateway_payment_id = ?", gatewayPaymentID).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *repositoryImpl) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentAttempt, error) {
	var rows []models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// UpdateStatusIf is the same conditional write the order ledger uses, so
// a replayed verification can never flip an attempt twice.
func (r *repositoryImpl) UpdateStatusIf(ctx context.Context, attemptID uuid.UUID, from []enums.PaymentStatus, to enums.PaymentStatus, sets map[string]any) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range sets {
		updates[k] = v
	}
	result := r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("id = ? AND status IN ?", attemptID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aranyaherbals/storefront-backend/pkg/db/models"
	"github.com/aranyaherbals/storefront-backend/pkg/enums"
	"github.com/aranyaherbals/storefront-backend/pkg/pagination"
)

// Repository exposes persistence helpers for the order ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	List(ctx context.Context, params ListOrdersParams) ([]models.Order, *pagination.Cursor, error)
	NextSequence(ctx context.Context, day, channel string) (int64, error)
	UpdateStatusIf(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus, sets map[string]any) (bool, error)
	SetGatewayOrderID(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) error
	CreateCancellation(ctx context.Context, record *models.Cancellation) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an order ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// ListOrdersParams configures cursor pagination over a customer's orders.
// A nil CustomerID lists across all customers (admin surface).
type ListOrdersParams struct {
	CustomerID *uuid.UUID
	Status     *enums.OrderStatus
	Limit      int
	Cursor     *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Preload("Shipment").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repositoryImpl) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Preload("Shipment").
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repositoryImpl) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repositoryImpl) List(ctx context.Context, params ListOrdersParams) ([]models.Order, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Order{}).Preload("Items").Preload("Shipment")
	if params.CustomerID != nil {
		query = query.Where("customer_id = ?", *params.CustomerID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Order
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) > normalized {
		next := rows[normalized]
		rows = rows[:normalized]
		return rows, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return rows, nil, nil
}

// NextSequence hands out the next per-day order number suffix. The upsert
// keeps concurrent checkouts from ever sharing a number.
func (r *repositoryImpl) NextSequence(ctx context.Context, day, channel string) (int64, error) {
	var seq int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO order_counters (day, channel, seq)
		VALUES (?, ?, 1001)
		ON CONFLICT (day, channel) DO UPDATE SET seq = order_counters.seq + 1
		RETURNING seq`, day, channel).Scan(&seq).Error
	return seq, err
}

// UpdateStatusIf advances the ledger only when the current status is in
// the allowed set. A stale or duplicate caller moves nothing.
func (r *repositoryImpl) UpdateStatusIf(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus, sets map[string]any) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range sets {
		updates[k] = v
	}
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", orderID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetGatewayOrderID records the payment gateway order bound to the
// ledger row. A retried payment intent rebinds to the newest gateway order.
func (r *repositoryImpl) SetGatewayOrderID(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("gateway_order_id", gatewayOrderID).Error
}

func (r *repositoryImpl) CreateCancellation(ctx context.Context, record *models.Cancellation) error {
	return r.db.WithContext(ctx).Create(record).Error
}

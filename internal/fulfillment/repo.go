package fulfillment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aranyaherbals/storefront-backend/pkg/db/models"
)

// Repository exposes persistence helpers for carrier shipments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, shipment *models.Shipment) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
	GetByAWB(ctx context.Context, awbCode string) (*models.Shipment, error)
	UpdateFields(ctx context.Context, shipmentID uuid.UUID, sets map[string]any) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a shipment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Create(shipment).Error
}

func (r *repositoryImpl) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&shipment).Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repositoryImpl) GetByAWB(ctx context.Context, awbCode string) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).Where("awb_code = ?", awbCode).First(&shipment).Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repositoryImpl) UpdateFields(ctx context.Context, shipmentID uuid.UUID, sets map[string]any) error {
	updates := map[string]any{"updated_at": time.Now()}
	for k, v := range sets {
		updates[k] = v
	}
	return r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ?", shipmentID).
		Updates(updates).Error
}

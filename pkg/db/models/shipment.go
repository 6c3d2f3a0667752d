package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/aranyaherbals/storefront-backend/pkg/enums"
)

// Shipment mirrors the carrier-side record for an order. Carrier IDs
// arrive in stages: the order is registered first, then an AWB is
// assigned, then pickup is manifested.
type Shipment struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Status            enums.ShipmentStatus `gorm:"column:status;type:shipment_status;not null;default:'pending'"`
	CarrierOrderID    *int64               `gorm:"column:carrier_order_id;index"`
	CarrierShipmentID *int64               `gorm:"column:carrier_shipment_id;index"`
	AWBCode           *string              `gorm:"column:awb_code;index"`
	CourierID         *int                 `gorm:"column:courier_id"`
	CourierName       *string              `gorm:"column:courier_name"`
	FreightCharge     *float64             `gorm:"column:freight_charge"`
	LabelURL          *string              `gorm:"column:label_url"`
	ManifestURL       *string              `gorm:"column:manifest_url"`
	NDRReason         *string              `gorm:"column:ndr_reason"`
	PickupScheduledAt *time.Time           `gorm:"column:pickup_scheduled_at"`
	PickedUpAt        *time.Time           `gorm:"column:picked_up_at"`
	DeliveredAt       *time.Time           `gorm:"column:delivered_at"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

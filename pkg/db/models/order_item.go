package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem is a priced cart line frozen onto the order. UnitPrice is
// tax inclusive; TaxRatePercent records the GST rate used to extract tax.
type OrderItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	SKU            string          `gorm:"column:sku;not null"`
	Name           string          `gorm:"column:name;not null"`
	Category       string          `gorm:"column:category;not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	TaxRatePercent decimal.Decimal `gorm:"column:tax_rate_percent;type:numeric(5,2);not null"`
	LineTotal      decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	ImageURL       *string         `gorm:"column:image_url"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

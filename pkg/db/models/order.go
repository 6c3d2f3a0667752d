package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aranyaherbals/storefront-backend/pkg/enums"
	"github.com/aranyaherbals/storefront-backend/pkg/types"
)

// Order is the customer order ledger row. Pricing fields are frozen at
// checkout; later catalog or coupon edits never change them.
type Order struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber     string               `gorm:"column:order_number;uniqueIndex;not null"`
	CustomerID      uuid.UUID            `gorm:"column:customer_id;type:uuid;not null;index"`
	Status          enums.OrderStatus    `gorm:"column:status;type:order_status;not null;default:'created'"`
	PaymentMethod   enums.PaymentMethod  `gorm:"column:payment_method;type:payment_method;not null"`
	PaymentType     enums.PaymentType    `gorm:"column:payment_type;type:payment_type;not null"`
	ShippingAddress types.Address        `gorm:"column:shipping_address;type:jsonb"`
	Breakdown       types.PriceBreakdown `gorm:"column:breakdown;type:jsonb"`
	Subtotal        decimal.Decimal      `gorm:"column:subtotal;type:numeric(12,2);not null"`
	CouponCode      *string              `gorm:"column:coupon_code"`
	CouponDiscount  decimal.Decimal      `gorm:"column:coupon_discount;type:numeric(12,2);not null;default:0"`
	CoinsRedeemed   int64                `gorm:"column:coins_redeemed;not null;default:0"`
	CoinsDiscount   decimal.Decimal      `gorm:"column:coins_discount;type:numeric(12,2);not null;default:0"`
	ShippingFee     decimal.Decimal      `gorm:"column:shipping_fee;type:numeric(12,2);not null;default:0"`
	NetPayable      decimal.Decimal      `gorm:"column:net_payable;type:numeric(12,2);not null"`
	GatewayOrderID  *string              `gorm:"column:gateway_order_id;index"`
	CashbackCoins   int64                `gorm:"column:cashback_coins;not null;default:0"`
	CashbackAt      *time.Time           `gorm:"column:cashback_at"`
	Notes           *string              `gorm:"column:notes"`
	Items           []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments        []PaymentAttempt     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Shipment        *Shipment            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidAt          *time.Time           `gorm:"column:paid_at"`
	DeliveredAt     *time.Time           `gorm:"column:delivered_at"`
	CancelledAt     *time.Time           `gorm:"column:cancelled_at"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

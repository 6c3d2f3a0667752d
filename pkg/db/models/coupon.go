package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aranyaherbals/storefront-backend/pkg/enums"
)

// Coupon is a storefront discount code. Value is a percentage for
// percentage coupons and a rupee amount for fixed ones.
type Coupon struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code          string           `gorm:"column:code;uniqueIndex;not null"`
	Type          enums.CouponType `gorm:"column:type;type:coupon_type;not null"`
	Value         decimal.Decimal  `gorm:"column:value;type:numeric(12,2);not null"`
	MaxDiscount   *decimal.Decimal `gorm:"column:max_discount;type:numeric(12,2)"`
	MinOrderValue *decimal.Decimal `gorm:"column:min_order_value;type:numeric(12,2)"`
	UsageLimit    *int             `gorm:"column:usage_limit"`
	UsedCount     int              `gorm:"column:used_count;not null;default:0"`
	Active        bool             `gorm:"column:active;not null;default:true"`
	ExpiresAt     *time.Time       `gorm:"column:expires_at"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Cancellation records who cancelled an order and why. Post-delivery
// cancellations note the refund route chosen at the time.
type Cancellation struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	RequestedBy string    `gorm:"column:requested_by;not null"`
	Reason      string    `gorm:"column:reason;not null"`
	RefundMode  *string   `gorm:"column:refund_mode"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

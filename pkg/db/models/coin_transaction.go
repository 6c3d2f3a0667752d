package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/aranyaherbals/storefront-backend/pkg/enums"
)

// CoinTransaction is one entry in the append-only coin ledger. Credits
// are positive, debits negative; the balance is the sum per customer.
// RefKey deduplicates ledger writes such as the per-order cashback.
type CoinTransaction struct {
	ID         uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID uuid.UUID                 `gorm:"column:customer_id;type:uuid;not null;index"`
	OrderID    *uuid.UUID                `gorm:"column:order_id;type:uuid;index"`
	Type       enums.CoinTransactionType `gorm:"column:type;type:coin_transaction_type;not null"`
	Coins      int64                     `gorm:"column:coins;not null"`
	RefKey     *string                   `gorm:"column:ref_key;uniqueIndex"`
	Note       *string                   `gorm:"column:note"`
	CreatedAt  time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

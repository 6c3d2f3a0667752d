package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aranyaherbals/storefront-backend/pkg/db/models"
	"github.com/aranyaherbals/storefront-backend/pkg/enums"
	"github.com/aranyaherbals/storefront-backend/pkg/types"
)

// OrderSnapshot is the full current view of an order pushed to realtime
// subscribers. Consumers replace their copy wholesale; it is never a diff.
type OrderSnapshot struct {
	ID             uuid.UUID            `json:"id"`
	OrderNumber    string               `json:"order_number"`
	CustomerID     uuid.UUID            `json:"customer_id"`
	Status         enums.OrderStatus    `json:"status"`
	PaymentMethod  enums.PaymentMethod  `json:"payment_method"`
	PaymentType    enums.PaymentType    `json:"payment_type"`
	Breakdown      types.PriceBreakdown `json:"breakdown"`
	NetPayable     decimal.Decimal      `json:"net_payable"`
	Items          []ItemSnapshot       `json:"items"`
	PaidAt         *time.Time           `json:"paid_at,omitempty"`
	DeliveredAt    *time.Time           `json:"delivered_at,omitempty"`
	CancelledAt    *time.Time           `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

// ItemSnapshot is one frozen order line in the snapshot.
type ItemSnapshot struct {
	ProductID uuid.UUID       `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// NewOrderSnapshot freezes the order into its realtime payload form.
func NewOrderSnapshot(order *models.Order) OrderSnapshot {
	snapshot := OrderSnapshot{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerID:    order.CustomerID,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		PaymentType:   order.PaymentType,
		Breakdown:     order.Breakdown,
		NetPayable:    order.NetPayable,
		PaidAt:        order.PaidAt,
		DeliveredAt:   order.DeliveredAt,
		CancelledAt:   order.CancelledAt,
		CreatedAt:     order.CreatedAt,
	}
	for _, item := range order.Items {
		snapshot.Items = append(snapshot.Items, ItemSnapshot{
			ProductID: item.ProductID,
			SKU:       item.SKU,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}
	return snapshot
}

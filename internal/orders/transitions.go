package orders

import "github.com/aranyaherbals/storefront-backend/pkg/enums"

// allowedTransitions is the order lifecycle. Cancellation from delivered
// is additionally gated by the grace window in Cancel.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusCreated: {
		enums.OrderStatusPendingPayment,
		enums.OrderStatusPaid,
		enums.OrderStatusCODConfirmed,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPendingPayment: {
		enums.OrderStatusPaid,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPaid: {
		enums.OrderStatusProcessing,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusCODConfirmed: {
		enums.OrderStatusProcessing,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusProcessing: {
		enums.OrderStatusShipped,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusShipped: {
		enums.OrderStatusDelivered,
		enums.OrderStatusRTO,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusDelivered: {
		enums.OrderStatusCancelled,
	},
}

// CanTransition reports whether the ledger permits moving from one
// status to another. Terminal statuses allow nothing.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

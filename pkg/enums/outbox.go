package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder    OutboxAggregateType = "order"
	AggregateShipment OutboxAggregateType = "shipment"
	AggregatePayment  OutboxAggregateType = "payment"
	AggregateCoin     OutboxAggregateType = "coin"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateShipment,
	AggregatePayment,
	AggregateCoin,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated    OutboxEventType = "order_created"
	EventOrderUpdated    OutboxEventType = "order_updated"
	EventShipmentCreated OutboxEventType = "shipment_created"
	EventShipmentUpdated OutboxEventType = "shipment_updated"
	EventPaymentVerified OutboxEventType = "payment_verified"
	EventCoinsCredited   OutboxEventType = "coins_credited"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderUpdated,
	EventShipmentCreated,
	EventShipmentUpdated,
	EventPaymentVerified,
	EventCoinsCredited,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

package enums

import "fmt"

// ShipmentStatus tracks the courier-side lifecycle of a shipment.
type ShipmentStatus string

const (
	ShipmentStatusPending     ShipmentStatus = "pending"
	ShipmentStatusReadyToShip ShipmentStatus = "ready_to_ship"
	ShipmentStatusPickedUp    ShipmentStatus = "picked_up"
	ShipmentStatusInTransit   ShipmentStatus = "in_transit"
	ShipmentStatusDelivered   ShipmentStatus = "delivered"
	ShipmentStatusNDR         ShipmentStatus = "ndr"
	ShipmentStatusRTO         ShipmentStatus = "rto"
	ShipmentStatusCancelled   ShipmentStatus = "cancelled"
)

var validShipmentStatuses = []ShipmentStatus{
	ShipmentStatusPending,
	ShipmentStatusReadyToShip,
	ShipmentStatusPickedUp,
	ShipmentStatusInTransit,
	ShipmentStatusDelivered,
	ShipmentStatusNDR,
	ShipmentStatusRTO,
	ShipmentStatusCancelled,
}

// String implements fmt.Stringer.
func (s ShipmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShipmentStatus.
func (s ShipmentStatus) IsValid() bool {
	for _, candidate := range validShipmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseShipmentStatus converts raw input into a ShipmentStatus.
func ParseShipmentStatus(value string) (ShipmentStatus, error) {
	for _, candidate := range validShipmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipment status %q", value)
}

package enums

import "fmt"

// PaymentStatus maps to the payment_status enum in Postgres.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentVerified  PaymentStatus = "verified"
	PaymentFailed    PaymentStatus = "failed"
	PaymentDismissed PaymentStatus = "dismissed"
	PaymentRefunded  PaymentStatus = "refunded"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentPending,
	PaymentVerified,
	PaymentFailed,
	PaymentDismissed,
	PaymentRefunded,
}

// IsValid reports whether the value matches the canonical payment_status enum.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

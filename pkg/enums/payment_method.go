package enums

import "fmt"

// PaymentMethod is how the customer chose to settle the order.
type PaymentMethod string

const (
	PaymentMethodRazorpay      PaymentMethod = "razorpay"
	PaymentMethodCOD           PaymentMethod = "cod"
	PaymentMethodCoins         PaymentMethod = "coins"
	PaymentMethodCoinsRazorpay PaymentMethod = "coins+razorpay"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodRazorpay,
	PaymentMethodCOD,
	PaymentMethodCoins,
	PaymentMethodCoinsRazorpay,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// UsesGateway reports whether any portion of the order is collected through
// the payment gateway.
func (p PaymentMethod) UsesGateway() bool {
	return p == PaymentMethodRazorpay || p == PaymentMethodCoinsRazorpay
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

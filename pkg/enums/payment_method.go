package enums

import "fmt"

// PaymentMethod selects the hosted-checkout payment rail.
type PaymentMethod string

const (
	PaymentMethodCard    PaymentMethod = "card"
	PaymentMethodInterac PaymentMethod = "interac"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCard,
	PaymentMethodInterac,
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

// ParsePaymentMethod converts raw input into a PaymentMethod, defaulting to card.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	if value == "" {
		return PaymentMethodCard, nil
	}
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

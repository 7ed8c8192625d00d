package membership

import (
	"github.com/google/uuid"

	"github.com/sobacalgary/backoffice/pkg/enums"
)

// RegisterInput carries the registration form plus the chosen payment method.
type RegisterInput struct {
	FullName           string              `json:"full_name" validate:"required,min=2,max=200"`
	EmailAddress       string              `json:"email_address" validate:"required,email"`
	TelephoneNumber    string              `json:"telephone_number" validate:"required,min=7,max=30"`
	ResidentialAddress string              `json:"residential_address" validate:"required,min=5,max=500"`
	YearOfEntry        int                 `json:"year_of_entry" validate:"required,gte=1950,lte=2100"`
	PotentialMembers   *string             `json:"potential_members,omitempty" validate:"omitempty,max=1000"`
	Password           string              `json:"password" validate:"required,min=8,max=128"`
	PaymentMethod      enums.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=card interac"`
}

// CheckoutResponse returns the hosted session the frontend redirects to.
type CheckoutResponse struct {
	MemberID   uuid.UUID `json:"member_id"`
	SessionID  string    `json:"session_id"`
	SessionURL string    `json:"session_url"`
}

// VerifyInput identifies the session to verify.
type VerifyInput struct {
	SessionID string `json:"session_id" validate:"required,min=10,max=255"`
}

// VerifyResult reports the record's state after verification.
type VerifyResult struct {
	MemberID       uuid.UUID           `json:"member_id"`
	Status         enums.PaymentStatus `json:"status"`
	NewlyCompleted bool                `json:"newly_completed"`
}

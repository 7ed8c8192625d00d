package donations

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sobacalgary/backoffice/pkg/db/models"
	"github.com/sobacalgary/backoffice/pkg/enums"
	pkgerrors "github.com/sobacalgary/backoffice/pkg/errors"
)

// DonateInput is the public donation form. Donor identity is optional so
// anonymous gifts are possible; the amount arrives in dollars as entered.
type DonateInput struct {
	DonorName     *string             `json:"donor_name,omitempty" validate:"omitempty,min=2,max=200"`
	DonorEmail    *string             `json:"donor_email,omitempty" validate:"omitempty,email"`
	Amount        string              `json:"amount" validate:"required"`
	Category      string              `json:"category" validate:"required,min=2,max=100"`
	PaymentMethod enums.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=card interac"`
}

// AmountCents converts the dollar string to integer cents, rejecting
// sub-cent precision and non-numeric input.
func (d DonateInput) AmountCents() (int64, error) {
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "amount")
	}
	cents := amount.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount has sub-cent precision")
	}
	return cents.IntPart(), nil
}

// CheckoutResponse returns the hosted session the frontend redirects to.
type CheckoutResponse struct {
	DonationID uuid.UUID `json:"donation_id"`
	SessionID  string    `json:"session_id"`
	SessionURL string    `json:"session_url"`
}

// VerifyInput identifies the session to verify.
type VerifyInput struct {
	SessionID string `json:"session_id" validate:"required,min=10,max=255"`
}

// VerifyResult reports the donation's state after verification.
type VerifyResult struct {
	DonationID     uuid.UUID           `json:"donation_id"`
	Status         enums.PaymentStatus `json:"status"`
	NewlyCompleted bool                `json:"newly_completed"`
}

// DonationDTO is the transport shape for a donation record.
type DonationDTO struct {
	ID            uuid.UUID           `json:"id"`
	DonorName     *string             `json:"donor_name,omitempty"`
	DonorEmail    *string             `json:"donor_email,omitempty"`
	AmountCents   int64               `json:"amount_cents"`
	Category      string              `json:"category"`
	Status        enums.PaymentStatus `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// ToDTO maps the persistence model to its transport shape.
func ToDTO(d *models.Donation) DonationDTO {
	return DonationDTO{
		ID:            d.ID,
		DonorName:     d.DonorName,
		DonorEmail:    d.DonorEmail,
		AmountCents:   d.AmountCents,
		Category:      d.Category,
		Status:        d.Status,
		PaymentMethod: d.PaymentMethod,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// ToDTOs maps a slice of donations.
func ToDTOs(rows []models.Donation) []DonationDTO {
	out := make([]DonationDTO, 0, len(rows))
	for i := range rows {
		out = append(out, ToDTO(&rows[i]))
	}
	return out
}

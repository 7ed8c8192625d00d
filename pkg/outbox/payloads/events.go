package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/sobacalgary/backoffice/pkg/enums"
)

// MemberActivatedEvent is emitted once a registration fee settles and the
// member becomes active. Downstream consumers send the welcome email.
type MemberActivatedEvent struct {
	MemberID     uuid.UUID `json:"member_id"`
	EmailAddress string    `json:"email_address"`
	FullName     string    `json:"full_name"`
	AmountCents  int64     `json:"amount_cents"`
	ActivatedAt  time.Time `json:"activated_at"`
}

// DonationCompletedEvent signals a settled donation. Drives the receipt email.
type DonationCompletedEvent struct {
	DonationID  uuid.UUID `json:"donation_id"`
	DonorEmail  *string   `json:"donor_email,omitempty"`
	AmountCents int64     `json:"amount_cents"`
	Category    string    `json:"category"`
	CompletedAt time.Time `json:"completed_at"`
}

// OrderCompletedEvent signals a paid store order ready for fulfillment.
type OrderCompletedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	CustomerEmail string    `json:"customer_email"`
	TotalCents    int64     `json:"total_cents"`
	ItemCount     int       `json:"item_count"`
	CompletedAt   time.Time `json:"completed_at"`
}

// RecordExpiredEvent reports a pending record the sweeper aged out.
type RecordExpiredEvent struct {
	RecordID   uuid.UUID        `json:"record_id"`
	RecordType enums.RecordType `json:"record_type"`
	ExpiredAt  time.Time        `json:"expired_at"`
}

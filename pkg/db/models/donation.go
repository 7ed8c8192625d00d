package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sobacalgary/backoffice/pkg/enums"
)

// Donation is a pending or settled contribution. Donor fields are nullable
// because anonymous donations are allowed.
type Donation struct {
	ID            uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	DonorName     *string             `gorm:"column:donor_name"`
	DonorEmail    *string             `gorm:"column:donor_email"`
	AmountCents   int64               `gorm:"column:amount_cents;not null"`
	Category      string              `gorm:"column:category;not null"`
	Status        enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null;default:'card'"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sobacalgary/backoffice/pkg/enums"
)

// Member represents a registered (or registering) association member. A row
// with IsPaid=false is an incomplete registration awaiting payment
// confirmation.
type Member struct {
	ID                   uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	FullName             string           `gorm:"column:full_name;not null"`
	EmailAddress         string           `gorm:"column:email_address;type:text;not null;uniqueIndex:ux_members_email_address"`
	TelephoneNumber      string           `gorm:"column:telephone_number;not null"`
	ResidentialAddress   string           `gorm:"column:residential_address;not null"`
	YearOfEntry          int              `gorm:"column:year_of_entry;not null"`
	PotentialMembers     *string          `gorm:"column:potential_members"`
	PasswordHash         string           `gorm:"column:password_hash;not null"`
	Role                 enums.MemberRole `gorm:"column:role;type:text;not null;default:'member'"`
	IsPaid               bool             `gorm:"column:is_paid;not null;default:false"`
	IsActive             bool             `gorm:"column:is_active;not null;default:false"`
	ProfileImage         *string          `gorm:"column:profile_image"`
	RegistrationFeeCents int64            `gorm:"column:registration_fee_cents;not null;default:0"`
	LastLoginAt          *time.Time       `gorm:"column:last_login_at"`
	CreatedAt            time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

package members

import (
	"time"

	"github.com/google/uuid"

	"github.com/sobacalgary/backoffice/pkg/db/models"
	"github.com/sobacalgary/backoffice/pkg/enums"
)

// MemberDTO is the transport shape for a member record. The password hash
// never leaves the persistence layer.
type MemberDTO struct {
	ID                   uuid.UUID        `json:"id"`
	FullName             string           `json:"full_name"`
	EmailAddress         string           `json:"email_address"`
	TelephoneNumber      string           `json:"telephone_number"`
	ResidentialAddress   string           `json:"residential_address"`
	YearOfEntry          int              `json:"year_of_entry"`
	PotentialMembers     *string          `json:"potential_members,omitempty"`
	Role                 enums.MemberRole `json:"role"`
	IsPaid               bool             `json:"is_paid"`
	IsActive             bool             `json:"is_active"`
	ProfileImage         *string          `json:"profile_image,omitempty"`
	RegistrationFeeCents int64            `json:"registration_fee_cents"`
	LastLoginAt          *time.Time       `json:"last_login_at,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// ToDTO maps the persistence model to its transport shape.
func ToDTO(m *models.Member) MemberDTO {
	return MemberDTO{
		ID:                   m.ID,
		FullName:             m.FullName,
		EmailAddress:         m.EmailAddress,
		TelephoneNumber:      m.TelephoneNumber,
		ResidentialAddress:   m.ResidentialAddress,
		YearOfEntry:          m.YearOfEntry,
		PotentialMembers:     m.PotentialMembers,
		Role:                 m.Role,
		IsPaid:               m.IsPaid,
		IsActive:             m.IsActive,
		ProfileImage:         m.ProfileImage,
		RegistrationFeeCents: m.RegistrationFeeCents,
		LastLoginAt:          m.LastLoginAt,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

// ProfileUpdateInput carries the member-editable profile fields. Omitted
// fields keep their current values.
type ProfileUpdateInput struct {
	FullName           *string `json:"full_name,omitempty" validate:"omitempty,min=2,max=200"`
	TelephoneNumber    *string `json:"telephone_number,omitempty" validate:"omitempty,min=7,max=30"`
	ResidentialAddress *string `json:"residential_address,omitempty" validate:"omitempty,min=5,max=500"`
	PotentialMembers   *string `json:"potential_members,omitempty" validate:"omitempty,max=1000"`
	ProfileImage       *string `json:"profile_image,omitempty" validate:"omitempty,url"`
}

// Fields maps the provided inputs to their database columns.
func (p ProfileUpdateInput) Fields() map[string]any {
	fields := map[string]any{}
	if p.FullName != nil {
		fields["full_name"] = *p.FullName
	}
	if p.TelephoneNumber != nil {
		fields["telephone_number"] = *p.TelephoneNumber
	}
	if p.ResidentialAddress != nil {
		fields["residential_address"] = *p.ResidentialAddress
	}
	if p.PotentialMembers != nil {
		fields["potential_members"] = *p.PotentialMembers
	}
	if p.ProfileImage != nil {
		fields["profile_image"] = *p.ProfileImage
	}
	return fields
}

// ToDTOs maps a slice of members.
func ToDTOs(rows []models.Member) []MemberDTO {
	out := make([]MemberDTO, 0, len(rows))
	for i := range rows {
		out = append(out, ToDTO(&rows[i]))
	}
	return out
}

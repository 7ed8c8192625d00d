package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sobacalgary/backoffice/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	MemberID uuid.UUID
	Role     enums.MemberRole
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	MemberID uuid.UUID        `json:"member_id"`
	Role     enums.MemberRole `json:"role"`
	jwt.RegisteredClaims
}

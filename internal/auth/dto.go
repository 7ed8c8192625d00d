package auth

import (
	"github.com/sobacalgary/backoffice/internal/members"
)

// LoginRequest captures the credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the access token and member profile produced by a
// successful login.
type LoginResponse struct {
	AccessToken string            `json:"access_token"`
	Member      members.MemberDTO `json:"member"`
}

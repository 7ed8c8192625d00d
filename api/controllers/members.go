package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sobacalgary/backoffice/api/middleware"
	"github.com/sobacalgary/backoffice/api/responses"
	"github.com/sobacalgary/backoffice/api/validators"
	"github.com/sobacalgary/backoffice/internal/members"
	"github.com/sobacalgary/backoffice/pkg/db/models"
	"github.com/sobacalgary/backoffice/pkg/enums"
	pkgerrors "github.com/sobacalgary/backoffice/pkg/errors"
	"github.com/sobacalgary/backoffice/pkg/logger"
)

type memberRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

// canAccessMember allows members to read and edit their own record and
// admins to reach any record.
func canAccessMember(r *http.Request, memberID uuid.UUID) bool {
	if middleware.MemberIDFromContext(r.Context()) == memberID.String() {
		return true
	}
	role := middleware.RoleFromContext(r.Context())
	return role == string(enums.MemberRoleAdmin) || role == string(enums.MemberRoleSuperAdmin)
}

// MemberDetail returns a member profile for the member themselves or an admin.
func MemberDetail(repo memberRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "member repository unavailable"))
			return
		}

		memberID, err := validators.ParsePathUUID(strings.TrimSpace(chi.URLParam(r, "memberId")), "member id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !canAccessMember(r, memberID) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "cannot access this member"))
			return
		}

		member, err := repo.FindByID(r.Context(), memberID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "member not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member"))
			return
		}
		responses.WriteSuccess(w, members.ToDTO(member))
	}
}

// MemberUpdate applies the member-editable profile fields.
func MemberUpdate(repo memberRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "member repository unavailable"))
			return
		}

		memberID, err := validators.ParsePathUUID(strings.TrimSpace(chi.URLParam(r, "memberId")), "member id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !canAccessMember(r, memberID) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "cannot access this member"))
			return
		}

		var body members.ProfileUpdateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		fields := body.Fields()
		if len(fields) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "no profile fields provided"))
			return
		}
		fields["updated_at"] = time.Now().UTC()

		if err := repo.UpdateProfile(r.Context(), memberID, fields); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile"))
			return
		}

		member, err := repo.FindByID(r.Context(), memberID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "member not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member"))
			return
		}
		responses.WriteSuccess(w, members.ToDTO(member))
	}
}

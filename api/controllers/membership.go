package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sobacalgary/backoffice/api/responses"
	"github.com/sobacalgary/backoffice/api/validators"
	"github.com/sobacalgary/backoffice/internal/membership"
	"github.com/sobacalgary/backoffice/pkg/enums"
	pkgerrors "github.com/sobacalgary/backoffice/pkg/errors"
	"github.com/sobacalgary/backoffice/pkg/logger"
)

type membershipService interface {
	CreateCheckout(ctx context.Context, input membership.RegisterInput) (*membership.CheckoutResponse, error)
	VerifyPayment(ctx context.Context, sessionID string) (*membership.VerifyResult, error)
}

type membershipVerifyResponse struct {
	Success  bool                `json:"success"`
	MemberID uuid.UUID           `json:"member_id"`
	Status   enums.PaymentStatus `json:"status"`
	Message  string              `json:"message,omitempty"`
}

// MembershipCheckout registers an unpaid member and opens a hosted session
// for the registration fee.
func MembershipCheckout(svc membershipService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "membership service unavailable"))
			return
		}

		var body membership.RegisterInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateCheckout(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// MembershipVerify confirms a session after the frontend redirect.
func MembershipVerify(svc membershipService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "membership service unavailable"))
			return
		}

		var body membership.VerifyInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.VerifyPayment(r.Context(), body.SessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := membershipVerifyResponse{
			Success:  result.Status == enums.PaymentStatusCompleted,
			MemberID: result.MemberID,
			Status:   result.Status,
		}
		if !resp.Success {
			resp.Message = unpaidSessionMessage(result.Status)
		}
		responses.WriteSuccess(w, resp)
	}
}

func unpaidSessionMessage(status enums.PaymentStatus) string {
	switch status {
	case enums.PaymentStatusExpired:
		return "checkout session expired before payment"
	case enums.PaymentStatusFailed:
		return "payment was not completed"
	default:
		return "payment has not settled yet"
	}
}

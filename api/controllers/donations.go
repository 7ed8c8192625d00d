package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sobacalgary/backoffice/api/responses"
	"github.com/sobacalgary/backoffice/api/validators"
	"github.com/sobacalgary/backoffice/internal/donations"
	"github.com/sobacalgary/backoffice/pkg/enums"
	pkgerrors "github.com/sobacalgary/backoffice/pkg/errors"
	"github.com/sobacalgary/backoffice/pkg/logger"
)

type donationService interface {
	CreateCheckout(ctx context.Context, input donations.DonateInput) (*donations.CheckoutResponse, error)
	VerifyPayment(ctx context.Context, sessionID string) (*donations.VerifyResult, error)
}

type donationVerifyResponse struct {
	Success    bool                `json:"success"`
	DonationID uuid.UUID           `json:"donation_id"`
	Status     enums.PaymentStatus `json:"status"`
	Message    string              `json:"message,omitempty"`
}

// DonationCheckout records a pending donation and opens a hosted session.
func DonationCheckout(svc donationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "donation service unavailable"))
			return
		}

		var body donations.DonateInput
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

// DonationVerify confirms a session after the frontend redirect.
func DonationVerify(svc donationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "donation service unavailable"))
			return
		}

		var body donations.VerifyInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.VerifyPayment(r.Context(), body.SessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := donationVerifyResponse{
			Success:    result.Status == enums.PaymentStatusCompleted,
			DonationID: result.DonationID,
			Status:     result.Status,
		}
		if !resp.Success {
			resp.Message = unpaidSessionMessage(result.Status)
		}
		responses.WriteSuccess(w, resp)
	}
}

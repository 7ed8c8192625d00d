package controllers

import (
	"context"
	"net/http"

	"github.com/sobacalgary/backoffice/api/responses"
	"github.com/sobacalgary/backoffice/api/validators"
	"github.com/sobacalgary/backoffice/internal/auth"
	pkgerrors "github.com/sobacalgary/backoffice/pkg/errors"
	"github.com/sobacalgary/backoffice/pkg/logger"
)

type loginService interface {
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)
}

// AuthLogin wires the login endpoint into the HTTP layer.
func AuthLogin(svc loginService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

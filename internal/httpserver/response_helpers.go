package httpserver

import (
	"net/http"

	apierrors "github.com/addispay/wallet-server/internal/errors"
)

// codedError is satisfied by every domain service's CodedError type
// (gifts, withdrawals, topup, kyc, subscriptions).
type codedError interface {
	error
	ErrorCode() apierrors.ErrorCode
}

// writeServiceError maps a domain service error onto the standardized error
// response, using its carried ErrorCode when present.
func writeServiceError(w http.ResponseWriter, err error) {
	if ce, ok := err.(codedError); ok {
		apierrors.WriteSimpleError(w, ce.ErrorCode(), ce.Error())
		return
	}
	apierrors.WriteSimpleError(w, apierrors.ErrInternal, "internal error")
}

// unauthorized and forbidden are the auth.RequireUser/RequireAdmin denial
// callbacks, wired to the same error taxonomy as the domain services.
func unauthorized(w http.ResponseWriter, _ *http.Request) {
	apierrors.WriteSimpleError(w, apierrors.ErrUnauthorized, "missing or invalid bearer token")
}

func forbidden(w http.ResponseWriter, _ *http.Request) {
	apierrors.WriteSimpleError(w, apierrors.ErrForbidden, "admin privilege required")
}

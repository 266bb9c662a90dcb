package http

import (
	"errors"
	"fmt"
	"net/http"

	"boxoffice/entity"
	"boxoffice/token"

	"github.com/labstack/echo/v4"
)

type handler struct {
	purchases     PurchaseRepo
	payments      PaymentRepo
	allocations   AllocationRepo
	gateway       Gateway
	tokens        token.Issuer
	webhookSecret string
}

// httpError maps the domain error taxonomy onto status codes. The wrapped
// error stays internal; clients only see the public message.
func httpError(err error) *echo.HTTPError {
	var insufficient entity.InsufficientInventoryError
	var quota entity.QuotaExceededError

	switch {
	case errors.As(err, &insufficient):
		return &echo.HTTPError{
			Code:     http.StatusConflict,
			Message:  insufficient.Error(),
			Internal: err,
		}
	case errors.As(err, &quota):
		return &echo.HTTPError{
			Code:     http.StatusBadRequest,
			Message:  quota.Error(),
			Internal: err,
		}
	case errors.Is(err, entity.ErrEmptyItems),
		errors.Is(err, entity.ErrInvalidQuantity):
		return &echo.HTTPError{
			Code:     http.StatusBadRequest,
			Message:  err.Error(),
			Internal: err,
		}
	case errors.Is(err, entity.ErrSectionNotFound),
		errors.Is(err, entity.ErrPurchaseNotFound),
		errors.Is(err, entity.ErrAllocationNotFound),
		errors.Is(err, entity.ErrPaymentNotFound):
		return &echo.HTTPError{
			Code:     http.StatusNotFound,
			Message:  err.Error(),
			Internal: err,
		}
	case errors.Is(err, entity.ErrOwnershipMismatch):
		return &echo.HTTPError{
			Code:     http.StatusForbidden,
			Message:  entity.ErrOwnershipMismatch.Error(),
			Internal: err,
		}
	case errors.Is(err, entity.ErrAlreadyRedeemed),
		errors.Is(err, entity.ErrNotPaid),
		errors.Is(err, entity.ErrNotPending):
		return &echo.HTTPError{
			Code:     http.StatusConflict,
			Message:  err.Error(),
			Internal: err,
		}
	case errors.Is(err, entity.ErrTokenInvalid):
		return &echo.HTTPError{
			Code:     http.StatusUnauthorized,
			Message:  entity.ErrTokenInvalid.Error(),
			Internal: err,
		}
	case errors.Is(err, entity.ErrGatewayUnavailable):
		return &echo.HTTPError{
			Code:     http.StatusBadGateway,
			Message:  entity.ErrGatewayUnavailable.Error(),
			Internal: err,
		}
	default:
		return &echo.HTTPError{
			Code:     http.StatusInternalServerError,
			Message:  http.StatusText(http.StatusInternalServerError),
			Internal: err,
		}
	}
}

func bindError(err error) *echo.HTTPError {
	return &echo.HTTPError{
		Code:     http.StatusBadRequest,
		Message:  "failed to parse request",
		Internal: fmt.Errorf("failed to bind request: %w", err),
	}
}

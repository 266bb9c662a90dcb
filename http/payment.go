package http

import (
	"net/http"

	"boxoffice/clients"
	"boxoffice/entity"

	"github.com/labstack/echo/v4"
)

type createPaymentLinkRequest struct {
	TenantID      string `json:"tenant_id"`
	Method        string `json:"method"`
	CustomerEmail string `json:"customer_email"`
	SuccessURL    string `json:"success_url"`
	CancelURL     string `json:"cancel_url"`
}

type paymentLinkResponse struct {
	PaymentID   string `json:"payment_id"`
	PurchaseID  string `json:"purchase_id"`
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
	Status      string `json:"status"`
}

// CreatePaymentLink opens a checkout session for a pending purchase. The
// first request creates the purchase's payment; later requests reuse the row
// and point it at a fresh session, so an abandoned checkout can be retried.
func (h handler) CreatePaymentLink(c echo.Context) error {
	var request createPaymentLinkRequest
	if err := c.Bind(&request); err != nil {
		return bindError(err)
	}

	ctx := c.Request().Context()
	purchaseID := c.Param("purchaseId")

	purchase, err := h.purchases.Get(ctx, purchaseID, request.TenantID)
	if err != nil {
		return httpError(err)
	}
	if purchase.Status != entity.PurchaseStatusPending {
		return httpError(entity.ErrNotPending)
	}

	payment, err := h.payments.FindByPurchase(ctx, purchaseID)
	if err != nil {
		return httpError(err)
	}
	if payment != nil && payment.Status == entity.PaymentStatusCompleted {
		return &echo.HTTPError{
			Code:    http.StatusConflict,
			Message: "payment already completed",
		}
	}

	session, err := h.gateway.CreateCheckoutSession(ctx, clients.CheckoutSessionRequest{
		Amount:        purchase.Total,
		Currency:      "USD",
		CustomerEmail: request.CustomerEmail,
		SuccessURL:    request.SuccessURL,
		CancelURL:     request.CancelURL,
		Metadata: map[string]string{
			"purchase_id": purchaseID,
		},
	})
	if err != nil {
		return httpError(err)
	}

	if payment == nil {
		created, err := h.payments.Add(ctx, purchase, session.SessionID, request.Method)
		if err != nil {
			return httpError(err)
		}
		payment = &created
	} else {
		if err := h.payments.ResetSession(ctx, payment.ID, session.SessionID); err != nil {
			return httpError(err)
		}
		payment.SessionID = session.SessionID
		payment.Status = entity.PaymentStatusPending
	}

	return c.JSON(http.StatusCreated, paymentLinkResponse{
		PaymentID:   payment.ID,
		PurchaseID:  purchaseID,
		SessionID:   session.SessionID,
		RedirectURL: session.RedirectURL,
		Status:      string(payment.Status),
	})
}

type verifyPaymentResponse struct {
	PaymentID     string `json:"payment_id"`
	PurchaseID    string `json:"purchase_id"`
	PaymentStatus string `json:"payment_status"`
}

// VerifyPayment polls the gateway for the purchase's session and applies the
// result, covering the case where the webhook never arrived. Applying is
// idempotent, so racing with the webhook is harmless.
func (h handler) VerifyPayment(c echo.Context) error {
	ctx := c.Request().Context()

	payment, err := h.payments.FindByPurchase(ctx, c.Param("purchaseId"))
	if err != nil {
		return httpError(err)
	}
	if payment == nil {
		return httpError(entity.ErrPaymentNotFound)
	}

	if payment.Status == entity.PaymentStatusPending {
		status, err := h.gateway.GetCheckoutSession(ctx, payment.SessionID)
		if err != nil {
			return httpError(err)
		}

		if status.PaymentStatus == clients.PaymentStatusPaid {
			updated, _, err := h.payments.CompleteBySessionID(ctx, payment.SessionID, status.IntentID)
			if err != nil {
				return httpError(err)
			}
			payment = &updated
		}
	}

	return c.JSON(http.StatusOK, verifyPaymentResponse{
		PaymentID:     payment.ID,
		PurchaseID:    payment.PurchaseID,
		PaymentStatus: string(payment.Status),
	})
}

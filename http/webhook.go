package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"boxoffice/entity"

	"github.com/labstack/echo/v4"
)

const headerGatewaySignature = "Gateway-Signature"

const (
	webhookCheckoutCompleted      = "checkout_completed"
	webhookPaymentIntentSucceeded = "payment_intent_succeeded"
	webhookCheckoutExpired        = "checkout_expired"
)

type webhookEnvelope struct {
	Type string `json:"type"`
	Data struct {
		SessionID string `json:"session_id"`
		IntentID  string `json:"payment_intent_id"`
	} `json:"data"`
}

// PaymentWebhook ingests gateway notifications. The signature covers the raw
// body; a notification naming an unknown session is acknowledged and dropped
// so the gateway stops retrying it.
func (h handler) PaymentWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return &echo.HTTPError{
			Code:     http.StatusBadRequest,
			Message:  "failed to read request body",
			Internal: err,
		}
	}

	if !verifySignature(body, c.Request().Header.Get(headerGatewaySignature), h.webhookSecret) {
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "invalid signature",
		}
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return bindError(err)
	}

	ctx := c.Request().Context()

	switch envelope.Type {
	case webhookCheckoutCompleted:
		_, _, err = h.payments.CompleteBySessionID(ctx, envelope.Data.SessionID, envelope.Data.IntentID)
	case webhookPaymentIntentSucceeded:
		_, _, err = h.payments.CompleteByIntentID(ctx, envelope.Data.IntentID)
	case webhookCheckoutExpired:
		_, _, err = h.payments.FailBySessionID(ctx, envelope.Data.SessionID)
	default:
		c.Logger().Infof("ignoring webhook type %q", envelope.Type)
	}

	if errors.Is(err, entity.ErrPaymentNotFound) {
		c.Logger().Warnf("webhook %q names no known payment", envelope.Type)
		err = nil
	}
	if err != nil {
		return httpError(fmt.Errorf("applying webhook %q: %w", envelope.Type, err))
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}

func verifySignature(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

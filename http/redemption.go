package http

import (
	"net/http"
	"time"

	"boxoffice/db"
	"boxoffice/entity"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type issueTokenRequest struct {
	UserID string `json:"user_id"`
}

type issueTokenResponse struct {
	AllocationID string `json:"allocation_id"`
	Token        string `json:"token"`
}

func (h handler) IssueRedemptionToken(c echo.Context) error {
	var request issueTokenRequest
	if err := c.Bind(&request); err != nil {
		return bindError(err)
	}

	allocation, sectionName, err := h.allocations.GetForIssue(c.Request().Context(),
		c.Param("allocationId"), request.UserID)
	if err != nil {
		return httpError(err)
	}

	signed, err := h.tokens.Issue(allocation, sectionName, time.Now().UTC())
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, issueTokenResponse{
		AllocationID: allocation.ID,
		Token:        signed,
	})
}

type redeemRequest struct {
	Token        string `json:"token"`
	PurchaseID   string `json:"purchase_id"`
	AllocationID string `json:"allocation_id"`
	ValidatorID  string `json:"validator_id"`
	TenantID     string `json:"tenant_id"`
}

type redeemResponse struct {
	AllocationID string    `json:"allocation_id"`
	PurchaseID   string    `json:"purchase_id"`
	TicketID     string    `json:"ticket_id"`
	ValidatorID  string    `json:"validator_id"`
	ValidatedAt  time.Time `json:"validated_at"`
}

// RedeemTicket validates a presented token and redeems the allocation it
// names. The ids in the request must match the ids inside the token, so a
// token cannot be replayed against a different allocation.
func (h handler) RedeemTicket(c echo.Context) error {
	var request redeemRequest
	if err := c.Bind(&request); err != nil {
		return bindError(err)
	}

	claims, err := h.tokens.Verify(request.Token)
	if err != nil {
		return httpError(err)
	}
	if claims.AllocationID != request.AllocationID || claims.PurchaseID != request.PurchaseID {
		return httpError(entity.ErrTokenInvalid)
	}

	expectedSubtotal, err := decimal.NewFromString(claims.Price)
	if err != nil {
		return httpError(entity.ErrTokenInvalid)
	}

	receipt, err := h.allocations.Redeem(c.Request().Context(), db.RedeemInput{
		PurchaseID:        request.PurchaseID,
		AllocationID:      request.AllocationID,
		ValidatorID:       request.ValidatorID,
		ValidatorTenantID: request.TenantID,
		ExpectedSubtotal:  expectedSubtotal,
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, redeemResponse{
		AllocationID: receipt.AllocationID,
		PurchaseID:   receipt.PurchaseID,
		TicketID:     receipt.TicketID,
		ValidatorID:  receipt.ValidatorID,
		ValidatedAt:  receipt.ValidatedAt,
	})
}

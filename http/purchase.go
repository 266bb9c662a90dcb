package http

import (
	"net/http"
	"time"

	"boxoffice/db"
	"boxoffice/entity"

	"github.com/labstack/echo/v4"
)

type createPurchaseRequest struct {
	UserID   string            `json:"user_id"`
	TenantID string            `json:"tenant_id"`
	Items    []db.PurchaseItem `json:"items"`
	Note     string            `json:"note"`
}

type purchaseResponse struct {
	PurchaseID  string               `json:"purchase_id"`
	UserID      string               `json:"user_id"`
	Status      string               `json:"status"`
	Total       string               `json:"total"`
	Note        string               `json:"note,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	Allocations []allocationResponse `json:"allocations"`
}

type allocationResponse struct {
	AllocationID string     `json:"allocation_id"`
	TicketID     string     `json:"ticket_id"`
	Quantity     int        `json:"quantity"`
	Subtotal     string     `json:"subtotal"`
	SystemFee    string     `json:"system_fee"`
	Unused       bool       `json:"unused"`
	ValidatedAt  *time.Time `json:"validated_at,omitempty"`
}

func newPurchaseResponse(p entity.Purchase) purchaseResponse {
	res := purchaseResponse{
		PurchaseID: p.ID,
		UserID:     p.UserID,
		Status:     string(p.Status),
		Total:      p.Total.StringFixed(2),
		Note:       p.Note,
		CreatedAt:  p.CreatedAt,
	}
	for _, a := range p.Allocations {
		res.Allocations = append(res.Allocations, allocationResponse{
			AllocationID: a.ID,
			TicketID:     a.TicketID,
			Quantity:     a.Quantity,
			Subtotal:     a.Subtotal.StringFixed(2),
			SystemFee:    a.SystemFee.StringFixed(2),
			Unused:       a.Unused,
			ValidatedAt:  a.ValidatedAt,
		})
	}

	return res
}

func (h handler) CreatePurchase(c echo.Context) error {
	var request createPurchaseRequest
	if err := c.Bind(&request); err != nil {
		return bindError(err)
	}
	if request.UserID == "" || request.TenantID == "" {
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "user_id and tenant_id are required",
		}
	}

	purchase, err := h.purchases.Create(c.Request().Context(), db.CreatePurchaseInput{
		UserID:   request.UserID,
		TenantID: request.TenantID,
		Items:    request.Items,
		Note:     request.Note,
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, newPurchaseResponse(purchase))
}

func (h handler) GetPurchase(c echo.Context) error {
	purchase, err := h.purchases.Get(c.Request().Context(), c.Param("purchaseId"), c.QueryParam("tenant_id"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, newPurchaseResponse(purchase))
}

type refundRequest struct {
	TenantID string `json:"tenant_id"`
}

func (h handler) RefundPurchase(c echo.Context) error {
	var request refundRequest
	if err := c.Bind(&request); err != nil {
		return bindError(err)
	}

	if err := h.payments.Refund(c.Request().Context(), c.Param("purchaseId"), request.TenantID); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"purchase_id": c.Param("purchaseId"),
		"status":      string(entity.PurchaseStatusRefunded),
	})
}

type quotaResponse struct {
	UserID    string `json:"user_id"`
	EventID   string `json:"event_id"`
	Held      int    `json:"held"`
	Max       int    `json:"max"`
	Remaining int    `json:"remaining"`
}

// GetQuota reports how many tickets the user may still buy for an event. The
// answer is advisory: the purchase transaction re-checks the quota under its
// own locks.
func (h handler) GetQuota(c echo.Context) error {
	userID := c.QueryParam("user_id")
	eventID := c.QueryParam("event_id")
	if userID == "" || eventID == "" {
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "user_id and event_id are required",
		}
	}

	held, err := h.purchases.CountUserAllocations(c.Request().Context(), userID, eventID)
	if err != nil {
		return httpError(err)
	}

	remaining := h.purchases.MaxQuota() - held
	if remaining < 0 {
		remaining = 0
	}

	return c.JSON(http.StatusOK, quotaResponse{
		UserID:    userID,
		EventID:   eventID,
		Held:      held,
		Max:       h.purchases.MaxQuota(),
		Remaining: remaining,
	})
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"boxoffice/db"
	"boxoffice/entity"
	"boxoffice/token"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAllocationRepo struct {
	AllocationRepo

	redeemed []db.RedeemInput
	receipt  entity.RedemptionReceipt
	err      error
}

func (s *stubAllocationRepo) Redeem(_ context.Context, in db.RedeemInput) (entity.RedemptionReceipt, error) {
	s.redeemed = append(s.redeemed, in)
	return s.receipt, s.err
}

func postRedeem(t *testing.T, h handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/tickets/redeem", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	server := echo.New()
	err := h.RedeemTicket(server.NewContext(req, rec))
	if err != nil {
		server.HTTPErrorHandler(err, server.NewContext(req, rec))
	}

	return rec
}

func TestRedeemTicketVerifiesToken(t *testing.T) {
	issuer := token.NewIssuer("redemption-secret")
	allocation := entity.TicketAllocation{
		ID:         "1e9c3c9e-46f8-4f9c-9a5e-1c8f8d33a001",
		PurchaseID: "1e9c3c9e-46f8-4f9c-9a5e-1c8f8d33a002",
		Quantity:   1,
		Subtotal:   decimal.RequireFromString("20.00"),
	}
	signed, err := issuer.Issue(allocation, "Stalls", time.Now().UTC())
	require.NoError(t, err)

	allocations := &stubAllocationRepo{
		receipt: entity.RedemptionReceipt{
			AllocationID: allocation.ID,
			PurchaseID:   allocation.PurchaseID,
			TicketID:     "1e9c3c9e-46f8-4f9c-9a5e-1c8f8d33a003",
			ValidatorID:  "gate-7",
			ValidatedAt:  time.Now().UTC(),
		},
	}
	h := handler{allocations: allocations, tokens: issuer}

	body, err := json.Marshal(map[string]string{
		"token":         signed,
		"purchase_id":   allocation.PurchaseID,
		"allocation_id": allocation.ID,
		"validator_id":  "gate-7",
		"tenant_id":     "1e9c3c9e-46f8-4f9c-9a5e-1c8f8d33a004",
	})
	require.NoError(t, err)

	rec := postRedeem(t, h, string(body))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, allocations.redeemed, 1)
	in := allocations.redeemed[0]
	assert.Equal(t, allocation.ID, in.AllocationID)
	assert.Equal(t, allocation.PurchaseID, in.PurchaseID)
	assert.True(t, in.ExpectedSubtotal.Equal(allocation.Subtotal))
}

func TestRedeemTicketRejectsForgedOrMismatchedToken(t *testing.T) {
	issuer := token.NewIssuer("redemption-secret")
	allocation := entity.TicketAllocation{
		ID:         "1e9c3c9e-46f8-4f9c-9a5e-1c8f8d33a001",
		PurchaseID: "1e9c3c9e-46f8-4f9c-9a5e-1c8f8d33a002",
		Quantity:   1,
		Subtotal:   decimal.RequireFromString("20.00"),
	}
	signed, err := issuer.Issue(allocation, "Stalls", time.Now().UTC())
	require.NoError(t, err)

	forged, err := token.NewIssuer("other-secret").Issue(allocation, "Stalls", time.Now().UTC())
	require.NoError(t, err)

	allocations := &stubAllocationRepo{}
	h := handler{allocations: allocations, tokens: issuer}

	cases := map[string]map[string]string{
		"wrong signing key": {
			"token":         forged,
			"purchase_id":   allocation.PurchaseID,
			"allocation_id": allocation.ID,
		},
		"token names a different allocation": {
			"token":         signed,
			"purchase_id":   allocation.PurchaseID,
			"allocation_id": "1e9c3c9e-46f8-4f9c-9a5e-1c8f8d33a999",
		},
		"token names a different purchase": {
			"token":         signed,
			"purchase_id":   "1e9c3c9e-46f8-4f9c-9a5e-1c8f8d33a998",
			"allocation_id": allocation.ID,
		},
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			body, err := json.Marshal(payload)
			require.NoError(t, err)

			rec := postRedeem(t, h, string(body))

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, allocations.redeemed)
		})
	}
}

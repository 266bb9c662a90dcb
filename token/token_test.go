package token_test

import (
	"strings"
	"testing"
	"time"

	"boxoffice/entity"
	"boxoffice/token"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAllocation() entity.TicketAllocation {
	return entity.TicketAllocation{
		ID:         uuid.NewString(),
		PurchaseID: uuid.NewString(),
		TicketID:   uuid.NewString(),
		TenantID:   uuid.NewString(),
		Quantity:   1,
		Subtotal:   decimal.RequireFromString("100.00"),
		SystemFee:  decimal.RequireFromString("5.00"),
		Unused:     true,
	}
}

func TestIssueAndVerify(t *testing.T) {
	issuer := token.NewIssuer("test-secret")
	allocation := newAllocation()
	issuedAt := time.Now()

	signed, err := issuer.Issue(allocation, "Golden Circle", issuedAt)
	require.NoError(t, err)

	claims, err := issuer.Verify(signed)
	require.NoError(t, err)

	assert.Equal(t, allocation.ID, claims.AllocationID)
	assert.Equal(t, allocation.PurchaseID, claims.PurchaseID)
	assert.Equal(t, "Golden Circle", claims.Section)
	assert.Equal(t, 1, claims.Quantity)
	assert.Equal(t, "100.00", claims.Price)
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	issuer := token.NewIssuer("test-secret")

	signed, err := issuer.Issue(newAllocation(), "Floor", time.Now())
	require.NoError(t, err)

	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)
	// Flip the payload; the signature no longer matches.
	tampered := parts[0] + ".eyJwdXJjaGFzZV9pZCI6ImZvcmdlZCJ9." + parts[2]

	_, err = issuer.Verify(tampered)
	assert.ErrorIs(t, err, entity.ErrTokenInvalid)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signed, err := token.NewIssuer("secret-a").Issue(newAllocation(), "Floor", time.Now())
	require.NoError(t, err)

	_, err = token.NewIssuer("secret-b").Verify(signed)
	assert.ErrorIs(t, err, entity.ErrTokenInvalid)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := token.NewIssuer("test-secret").Verify("not-a-token")
	assert.ErrorIs(t, err, entity.ErrTokenInvalid)
}

// Package token issues and verifies the QR payload presented at redemption.
// The payload is an HS256 JWT over the allocation's identifying fields, so
// the signature doubles as the content hash that must validate against the
// allocation before redemption is accepted.
package token

import (
	"errors"
	"fmt"
	"time"

	"boxoffice/entity"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	jwt.RegisteredClaims
	PurchaseID   string `json:"purchase_id"`
	AllocationID string `json:"allocation_id"`
	Section      string `json:"section"`
	Quantity     int    `json:"quantity"`
	Price        string `json:"price"`
}

type Issuer struct {
	secret []byte
}

func NewIssuer(secret string) Issuer {
	return Issuer{secret: []byte(secret)}
}

// Issue produces the redemption token for one allocation. The caller is
// responsible for checking that the owning purchase is paid and that the
// requester owns it.
func (i Issuer) Issue(allocation entity.TicketAllocation, sectionName string, issuedAt time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(issuedAt),
			Subject:  allocation.ID,
		},
		PurchaseID:   allocation.PurchaseID,
		AllocationID: allocation.ID,
		Section:      sectionName,
		Quantity:     allocation.Quantity,
		Price:        allocation.Subtotal.StringFixed(2),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing redemption token: %w", err)
	}

	return signed, nil
}

// Verify checks the token's signature and returns its claims. Any tampering
// with the payload surfaces as entity.ErrTokenInvalid.
func (i Issuer) Verify(tokenString string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.secret, nil
	})
	if err != nil {
		return Claims{}, errors.Join(entity.ErrTokenInvalid, err)
	}

	if claims.AllocationID == "" || claims.PurchaseID == "" {
		return Claims{}, entity.ErrTokenInvalid
	}

	return claims, nil
}

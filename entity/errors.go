package entity

import (
	"errors"
	"fmt"
)

var (
	ErrSectionNotFound    = errors.New("section not found")
	ErrPurchaseNotFound   = errors.New("purchase not found")
	ErrAllocationNotFound = errors.New("allocation not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrEmptyItems         = errors.New("purchase requires at least one item")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrNotPaid            = errors.New("purchase is not paid")
	ErrNotPending         = errors.New("purchase is not pending")
	ErrAlreadyRedeemed    = errors.New("allocation already redeemed")
	ErrOwnershipMismatch  = errors.New("allocation does not belong to caller")
	ErrTokenInvalid       = errors.New("redemption token invalid")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// InsufficientInventoryError reports a shortfall for one section. The whole
// allocation fails, nothing is claimed.
type InsufficientInventoryError struct {
	SectionID string
	Requested int
	Available int
}

func (e InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory in section %s: requested %d, available %d",
		e.SectionID, e.Requested, e.Available)
}

type QuotaExceededError struct {
	EventID   string
	Current   int
	Requested int
	Max       int
}

func (e QuotaExceededError) Error() string {
	return fmt.Sprintf("purchase quota exceeded for event %s: holding %d, requested %d, max %d",
		e.EventID, e.Current, e.Requested, e.Max)
}

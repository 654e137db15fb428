package errors

import (
	"errors"
	"fmt"
)

// Categories. Every specific error below wraps exactly one of them so callers
// can branch with errors.Is on either level.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrPersistence = errors.New("persistence failure")
)

var (
	ErrInvalidAmount      = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrBelowMinimum       = fmt.Errorf("%w: amount below minimum", ErrValidation)
	ErrInvalidAddress     = fmt.Errorf("%w: invalid wallet address", ErrValidation)
	ErrInvalidEmail       = fmt.Errorf("%w: invalid email", ErrValidation)
	ErrWeakPassword       = fmt.Errorf("%w: password too short", ErrValidation)
	ErrInvalidStatus      = fmt.Errorf("%w: invalid order status", ErrValidation)
	ErrInvalidTransition  = fmt.Errorf("%w: illegal status transition", ErrValidation)
	ErrInvalidInput       = fmt.Errorf("%w: invalid input", ErrValidation)
	ErrInsufficientFunds  = fmt.Errorf("%w: insufficient funds", ErrValidation)
	ErrOutOfStock         = fmt.Errorf("%w: product out of stock", ErrValidation)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrValidation)

	ErrUserNotFound    = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrOrderNotFound   = fmt.Errorf("%w: order not found", ErrNotFound)
	ErrProductNotFound = fmt.Errorf("%w: product not found", ErrNotFound)
	ErrCodeNotFound    = fmt.Errorf("%w: discount code not found", ErrNotFound)

	ErrEmailExists           = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrDuplicateTrackingCode = fmt.Errorf("%w: tracking code already exists", ErrConflict)
	ErrDuplicatePaymentRef   = fmt.Errorf("%w: payment reference already submitted", ErrConflict)
	ErrDuplicateReferral     = fmt.Errorf("%w: referral already recorded", ErrConflict)
	ErrOrderNotPending       = fmt.Errorf("%w: order is not pending", ErrConflict)
	ErrAlreadyProcessed      = fmt.Errorf("%w: request already processed", ErrConflict)
)

// Persistence wraps a store failure so that it matches ErrPersistence while
// keeping the driver error in the chain.
func Persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

package settlement

import "errors"

var (
	ErrExpired              = errors.New("payment has expired")
	ErrZeroAmount           = errors.New("payment amounts must be positive")
	ErrOrderAlreadyConsumed = errors.New("order has already been settled")
	ErrAccountMismatch      = errors.New("account does not match payment")
	ErrSlippageExceeded     = errors.New("realized swap output below minimum")
	ErrInvalidSplit         = errors.New("invalid split")
)

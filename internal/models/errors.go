package models

import "errors"

// Transfer failures, in validation order.
var (
	ErrInvalidAmount     = errors.New("amount must be a positive number with at most two decimal places")
	ErrSenderNotFound    = errors.New("sender account not found")
	ErrRecipientNotFound = errors.New("recipient account not found")
	ErrSelfTransfer      = errors.New("cannot send money to yourself")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

var (
	// ErrNotFound is returned for missing transactions and for transactions the
	// principal may not see.
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("operation not permitted")
	ErrAggregationFailure = errors.New("couldn't aggregate transactions")

	ErrAccountNotFound    = errors.New("account not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrUnauthorized       = errors.New("could not validate credentials")
	ErrInvalidPeriod      = errors.New("end date must not be before start date")
	ErrInvalidDate        = errors.New("dates must be formatted YYYY-MM-DD")
	ErrInvalidCategory    = errors.New("category name must be 1 to 50 characters")
	ErrInvalidPagination  = errors.New("skip must be >= 0 and limit between 1 and 100")
	ErrConflict           = errors.New("resource is referenced by other records")
)

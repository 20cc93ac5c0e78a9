package domain

import "errors"

var (
	ErrInvalidGrossAmount = errors.New("invalid_gross_amount")
	ErrBillNotFound       = errors.New("bill_not_found")
	ErrInvalidBillID      = errors.New("invalid_bill_id")
)

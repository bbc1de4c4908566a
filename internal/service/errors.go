package service

import "errors"

var (
	ErrCartEmpty        = errors.New("cart is empty")
	ErrSpendCapExceeded = errors.New("purchase would exceed the monthly spend cap")
	ErrItemNotFound     = errors.New("inventory item not found")
	ErrReceiptNotFound  = errors.New("receipt not found")
	ErrInvalidInput     = errors.New("invalid input")
)

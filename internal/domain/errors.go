package domain

import (
	"fmt"

	apperrors "github.com/Ivanjochie0/luxuryproducts-cart/pkg/errors"
)

// Error codes returned by cart and checkout operations.
const (
	CodeInvalidPromoCode = "INVALID_PROMO_CODE"
	CodeEmptyCart        = "EMPTY_CART"
	CodeInvalidIndex     = "INVALID_INDEX"
	CodeInvalidQuantity  = "INVALID_QUANTITY"
	CodePromoSuperseded  = "PROMO_SUPERSEDED"
	CodeCartFull         = "CART_FULL"
)

// ErrInvalidPromoCode is returned when a code is unknown, exhausted, out of
// range or could not be validated in time.
func ErrInvalidPromoCode() *apperrors.AppError {
	return apperrors.Unprocessable(CodeInvalidPromoCode, "invalid promo code")
}

// ErrEmptyCart is returned when checkout is attempted with a total of zero
// or less.
func ErrEmptyCart() *apperrors.AppError {
	return apperrors.Unprocessable(CodeEmptyCart, "add products to your cart first")
}

func ErrInvalidIndex(index, length int) *apperrors.AppError {
	return apperrors.InvalidInputCode(CodeInvalidIndex,
		fmt.Sprintf("item index %d out of range [0, %d)", index, length))
}

func ErrInvalidQuantity(quantity int) *apperrors.AppError {
	return apperrors.InvalidInputCode(CodeInvalidQuantity,
		fmt.Sprintf("quantity %d must be between 0 and %d", quantity, MaxQuantityPerItem))
}

// ErrPromoSuperseded is returned to a promo request whose result arrived
// after a newer apply, a clear or a checkout.
func ErrPromoSuperseded() *apperrors.AppError {
	return apperrors.Conflict(CodePromoSuperseded, "promo code request was superseded")
}

func ErrCartFull() *apperrors.AppError {
	return apperrors.Unprocessable(CodeCartFull,
		fmt.Sprintf("cart cannot hold more than %d different products", MaxItemsPerCart))
}

package units

import "errors"

var (
	// ErrOverflow indicates a result does not fit in 256 bits.
	ErrOverflow = errors.New("units: arithmetic overflow")

	// ErrDivisionByZero indicates a zero divisor.
	ErrDivisionByZero = errors.New("units: division by zero")

	// ErrInvalidAmount indicates a decimal string could not be converted to an amount.
	ErrInvalidAmount = errors.New("units: invalid amount")
)

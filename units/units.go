// Package units implements the fixed-point arithmetic shared by the vault:
// 256-bit amounts, floor-rounded mul-div, and decimal string conversion.
package units

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const (
	// ValueDecimals is the number of fractional digits of the common value unit.
	ValueDecimals = 18

	// PriceDecimals is the number of fractional digits of oracle prices.
	PriceDecimals = 8

	// MaxDecimals bounds asset precision so 10^(decimals+PriceDecimals) fits in 256 bits.
	MaxDecimals = 36
)

var pow10 [MaxDecimals + ValueDecimals + PriceDecimals + 1]*uint256.Int

func init() {
	ten := uint256.NewInt(10)
	pow10[0] = uint256.NewInt(1)
	for i := 1; i < len(pow10); i++ {
		pow10[i] = new(uint256.Int).Mul(pow10[i-1], ten)
	}
}

// WAD returns 10^18, the scale of common-unit values and fractions.
func WAD() *uint256.Int { return Pow10(ValueDecimals) }

// Pow10 returns a fresh copy of 10^n. n must not exceed 62.
func Pow10(n uint8) *uint256.Int {
	if int(n) >= len(pow10) {
		panic(fmt.Sprintf("units: 10^%d out of range", n))
	}
	return pow10[n].Clone()
}

// Zero returns a new zero value.
func Zero() *uint256.Int { return new(uint256.Int) }

// OrZero returns v, or a new zero value if v is nil.
func OrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

// MulDiv computes floor(x*y/d) with a 512-bit intermediate product.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, fmt.Errorf("%w: %s * %s / %s", ErrOverflow, x.Dec(), y.Dec(), d.Dec())
	}
	return z, nil
}

// MulDivUp computes ceil(x*y/d).
func MulDivUp(x, y, d *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(x, y, d)
	if err != nil {
		return nil, err
	}
	// The remainder is below d, so it is zero iff z*d and x*y agree mod 2^256.
	back := new(uint256.Int).Mul(z, d)
	prod := new(uint256.Int).Mul(x, y)
	if back.Cmp(prod) != 0 {
		one := uint256.NewInt(1)
		if _, carry := z.AddOverflow(z, one); carry {
			return nil, ErrOverflow
		}
	}
	return z, nil
}

// Add returns a+b, failing on overflow.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// SubFloor returns a-b, or zero when b > a.
func SubFloor(a, b *uint256.Int) *uint256.Int {
	if b.Cmp(a) >= 0 {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}

// Min returns a copy of the smaller of a and b.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Cmp(b) <= 0 {
		return a.Clone()
	}
	return b.Clone()
}

// ParseUnits converts a human decimal string ("12.5") into an integer amount
// with the given number of fractional digits. Excess precision is rejected.
func ParseUnits(s string, decimals uint8) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidAmount, s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %q has more than %d fractional digits", ErrInvalidAmount, s, decimals)
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("%w: %q", ErrOverflow, s)
	}
	return v, nil
}

// FormatUnits renders an integer amount with the given number of fractional digits.
func FormatUnits(v *uint256.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), -int32(decimals)).String()
}

// FormatValue renders a common-unit value.
func FormatValue(v *uint256.Int) string { return FormatUnits(v, ValueDecimals) }

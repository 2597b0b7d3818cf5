package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrParse is returned for amounts that cannot be represented exactly in base units.
var ErrParse = errors.New("invalid amount")

// maxBits is the width of a uint256 contract argument.
const maxBits = 256

// ToBaseUnits converts a decimal string such as "1.5" into the integer amount of
// base units for a token with the given decimals. It never rounds: fractional
// digits beyond decimals are rejected unless they are zeros.
func ToBaseUnits(amount string, decimals uint8) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, fmt.Errorf("%w: amount is empty", ErrParse)
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("%w: %q is negative", ErrParse, amount)
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if hasDot && strings.Contains(frac, ".") {
		return nil, fmt.Errorf("%w: %q has more than one decimal point", ErrParse, amount)
	}
	if whole == "" && frac == "" {
		return nil, fmt.Errorf("%w: %q has no digits", ErrParse, amount)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return nil, fmt.Errorf("%w: %q is not a decimal number", ErrParse, amount)
	}

	frac = strings.TrimRight(frac, "0")
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("%w: %q has more than %d fractional digits", ErrParse, amount, decimals)
	}

	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	value, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a decimal number", ErrParse, amount)
	}
	if value.BitLen() > maxBits {
		return nil, fmt.Errorf("%w: %q does not fit in 256 bits", ErrParse, amount)
	}

	return value, nil
}

// FromBaseUnits formats an integer base-unit amount as the shortest exact decimal string.
func FromBaseUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}

	sign := ""
	if value.Sign() < 0 {
		sign = "-"
	}
	digits := new(big.Int).Abs(value).String()

	d := int(decimals)
	if d == 0 {
		return sign + digits
	}
	if len(digits) <= d {
		digits = strings.Repeat("0", d-len(digits)+1) + digits
	}

	whole := digits[:len(digits)-d]
	frac := strings.TrimRight(digits[len(digits)-d:], "0")
	if frac == "" {
		return sign + whole
	}
	return sign + whole + "." + frac
}

// IsZero reports whether v is nil or zero, the "no amount" state.
func IsZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

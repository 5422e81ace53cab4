// Package decimal implements the fixed-point arithmetic used for every
// monetary quantity tracked by the client. Values carry 18 fractional digits
// to match the ledger's native wei scale, so conversions to and from the wire
// representation are exact in both directions.
package decimal

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Digits is the number of fractional digits carried by every Decimal. It
// matches the ledger's native integer scale so that wire conversions are
// lossless.
const Digits = 18

var (
	scale   = mustBigInt("1000000000000000000") // 10^Digits
	bigZero = big.NewInt(0)
)

// ErrDivideByZero is returned by Div and MulDiv when the divisor is zero.
var ErrDivideByZero = fmt.Errorf("decimal: division by zero")

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// Decimal is an immutable fixed-point number. The zero value is 0. All
// operations return new values and never mutate their receivers, so a Decimal
// may be shared freely between goroutines.
type Decimal struct {
	value *big.Int
}

func (d Decimal) raw() *big.Int {
	if d.value == nil {
		return bigZero
	}
	return d.value
}

func wrap(v *big.Int) Decimal {
	return Decimal{value: v}
}

// Zero returns the zero Decimal.
func Zero() Decimal { return Decimal{} }

// One returns the Decimal representation of 1.
func One() Decimal { return wrap(new(big.Int).Set(scale)) }

// Infinity returns the largest wire-representable value. It stands in for
// "no limit" in places that compare against an upper bound.
func Infinity() Decimal {
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	return wrap(max.Sub(max, big.NewInt(1)))
}

// FromUint64 converts a whole-unit count into a Decimal.
func FromUint64(n uint64) Decimal {
	return wrap(new(big.Int).Mul(new(big.Int).SetUint64(n), scale))
}

// FromInt64 converts a signed whole-unit count into a Decimal.
func FromInt64(n int64) Decimal {
	return wrap(new(big.Int).Mul(big.NewInt(n), scale))
}

// FromWire interprets a ledger-native integer (already scaled by 10^18) as a
// Decimal. A nil quantity maps to zero.
func FromWire(q *uint256.Int) Decimal {
	if q == nil {
		return Decimal{}
	}
	return wrap(q.ToBig())
}

// FromBigInt interprets a raw scaled integer as a Decimal without rescaling.
// The input is copied.
func FromBigInt(v *big.Int) Decimal {
	if v == nil {
		return Decimal{}
	}
	return wrap(new(big.Int).Set(v))
}

// Wire converts the Decimal back to the ledger-native unsigned representation.
// Negative values and values beyond 256 bits cannot be represented on the
// wire and produce an error.
func (d Decimal) Wire() (*uint256.Int, error) {
	v := d.raw()
	if v.Sign() < 0 {
		return nil, fmt.Errorf("decimal: negative value %s not representable on the wire", d)
	}
	q, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("decimal: value %s overflows 256 bits", d)
	}
	return q, nil
}

// BigInt returns a copy of the raw scaled integer backing the Decimal.
func (d Decimal) BigInt() *big.Int {
	return new(big.Int).Set(d.raw())
}

// Parse reads a base-10 decimal string. At most 18 fractional digits are
// accepted so that String and Parse round-trip exactly.
func Parse(s string) (Decimal, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Decimal{}, fmt.Errorf("decimal: empty string")
	}
	negative := false
	switch trimmed[0] {
	case '+':
		trimmed = trimmed[1:]
	case '-':
		negative = true
		trimmed = trimmed[1:]
	}
	intPart, fracPart, hasFrac := strings.Cut(trimmed, ".")
	if intPart == "" && fracPart == "" {
		return Decimal{}, fmt.Errorf("decimal: invalid value %q", s)
	}
	if intPart == "" {
		intPart = "0"
	}
	if hasFrac && len(fracPart) > Digits {
		return Decimal{}, fmt.Errorf("decimal: %q exceeds %d fractional digits", s, Digits)
	}
	whole, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return Decimal{}, fmt.Errorf("decimal: invalid value %q", s)
	}
	value := new(big.Int).Mul(whole, scale)
	if fracPart != "" {
		padded := fracPart + strings.Repeat("0", Digits-len(fracPart))
		frac, ok := new(big.Int).SetString(padded, 10)
		if !ok {
			return Decimal{}, fmt.Errorf("decimal: invalid value %q", s)
		}
		value.Add(value, frac)
	}
	if negative {
		value.Neg(value)
	}
	return wrap(value), nil
}

// MustParse is Parse for trusted literal constants; it panics on failure.
func MustParse(s string) Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String renders the Decimal exactly, trimming trailing fractional zeroes.
func (d Decimal) String() string {
	v := d.raw()
	sign := ""
	abs := new(big.Int).Abs(v)
	if v.Sign() < 0 {
		sign = "-"
	}
	whole := new(big.Int)
	frac := new(big.Int)
	whole.QuoRem(abs, scale, frac)
	if frac.Sign() == 0 {
		return sign + whole.String()
	}
	fracDigits := fmt.Sprintf("%018s", frac.String())
	fracDigits = strings.TrimRight(fracDigits, "0")
	return sign + whole.String() + "." + fracDigits
}

// Float64 returns an approximate floating point rendering. Display only;
// never feed the result back into accounting.
func (d Decimal) Float64() float64 {
	f, _ := new(big.Rat).SetFrac(d.raw(), scale).Float64()
	return f
}

// Add returns d + other.
func (d Decimal) Add(other Decimal) Decimal {
	return wrap(new(big.Int).Add(d.raw(), other.raw()))
}

// Sub returns d - other. The result may be negative; callers enforcing
// non-negativity should check Sign.
func (d Decimal) Sub(other Decimal) Decimal {
	return wrap(new(big.Int).Sub(d.raw(), other.raw()))
}

// Mul returns d * other truncated toward zero, matching the ledger's integer
// division semantics.
func (d Decimal) Mul(other Decimal) Decimal {
	product := new(big.Int).Mul(d.raw(), other.raw())
	return wrap(product.Quo(product, scale))
}

// Div returns d / other truncated toward zero.
func (d Decimal) Div(other Decimal) (Decimal, error) {
	if other.raw().Sign() == 0 {
		return Decimal{}, ErrDivideByZero
	}
	numerator := new(big.Int).Mul(d.raw(), scale)
	return wrap(numerator.Quo(numerator, other.raw())), nil
}

// MulDiv returns d * mul / div in a single widened step so the intermediate
// product loses no precision.
func (d Decimal) MulDiv(mul, div Decimal) (Decimal, error) {
	if div.raw().Sign() == 0 {
		return Decimal{}, ErrDivideByZero
	}
	product := new(big.Int).Mul(d.raw(), mul.raw())
	return wrap(product.Quo(product, div.raw())), nil
}

// Pow raises d to the given whole exponent by squaring. Each intermediate
// multiplication truncates like Mul, matching the ledger's own decay
// computation step for step.
func (d Decimal) Pow(n uint64) Decimal {
	result := One()
	base := d
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(base)
		}
		n >>= 1
		if n > 0 {
			base = base.Mul(base)
		}
	}
	return result
}

// Cmp compares d with other: -1 if d < other, 0 if equal, +1 if d > other.
func (d Decimal) Cmp(other Decimal) int { return d.raw().Cmp(other.raw()) }

// Equal reports d == other.
func (d Decimal) Equal(other Decimal) bool { return d.Cmp(other) == 0 }

// LT reports d < other.
func (d Decimal) LT(other Decimal) bool { return d.Cmp(other) < 0 }

// LTE reports d <= other.
func (d Decimal) LTE(other Decimal) bool { return d.Cmp(other) <= 0 }

// GT reports d > other.
func (d Decimal) GT(other Decimal) bool { return d.Cmp(other) > 0 }

// GTE reports d >= other.
func (d Decimal) GTE(other Decimal) bool { return d.Cmp(other) >= 0 }

// IsZero reports whether d is exactly zero.
func (d Decimal) IsZero() bool { return d.raw().Sign() == 0 }

// Sign returns -1, 0 or +1 depending on the sign of d.
func (d Decimal) Sign() int { return d.raw().Sign() }

// Neg returns -d.
func (d Decimal) Neg() Decimal { return wrap(new(big.Int).Neg(d.raw())) }

// Abs returns |d|.
func (d Decimal) Abs() Decimal { return wrap(new(big.Int).Abs(d.raw())) }

// AbsDiff returns |d - other|.
func (d Decimal) AbsDiff(other Decimal) Decimal { return d.Sub(other).Abs() }

// Min returns the smaller of a and b.
func Min(a, b Decimal) Decimal {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Decimal) Decimal {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// MarshalText implements encoding.TextMarshaler using the exact String form.
func (d Decimal) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decimal) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

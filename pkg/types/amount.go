package types

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Amount is a value in the coin's minor unit (satoshis for Bitcoin).
type Amount int64

// ErrAmountOverflow is returned when a decimal value does not fit an Amount.
var ErrAmountOverflow = errors.New("amount overflows int64 minor units")

// Precision is the fixed-point scale of a coin: PerUnit minor units make one
// coin and Places is log10(PerUnit).
type Precision struct {
	PerUnit int64
	Places  int
}

// DefaultPrecision is the 8-place scale used by Bitcoin and its forks.
var DefaultPrecision = Precision{PerUnit: 100_000_000, Places: 8}

// NewPrecision derives a Precision from the minor-unit-per-coin ratio, which
// must be a positive power of ten.
func NewPrecision(perUnit int64) (Precision, error) {
	if perUnit <= 0 {
		return Precision{}, fmt.Errorf("minor units per coin must be positive, got %d", perUnit)
	}
	places := 0
	for v := perUnit; v > 1; v /= 10 {
		if v%10 != 0 {
			return Precision{}, fmt.Errorf("minor units per coin must be a power of ten, got %d", perUnit)
		}
		places++
	}
	return Precision{PerUnit: perUnit, Places: places}, nil
}

// Parse converts a decimal coin value (as printed by the daemon, e.g.
// "0.00010000" or "1e-05") to minor units. The conversion is exact; digits
// beyond Places are rounded half to even.
func (p Precision) Parse(s string) (Amount, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok {
		return 0, fmt.Errorf("invalid decimal amount %q", s)
	}
	r.Mul(r, new(big.Rat).SetInt64(p.PerUnit))

	num, den := r.Num(), r.Denom()
	q, m := new(big.Int).QuoRem(num, den, new(big.Int))
	twice := new(big.Int).Abs(m)
	twice.Lsh(twice, 1)
	away := false
	switch twice.Cmp(den) {
	case 1:
		away = true
	case 0:
		away = q.Bit(0) == 1
	}
	if away {
		if num.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	if !q.IsInt64() {
		return 0, fmt.Errorf("%w: %q", ErrAmountOverflow, s)
	}
	return Amount(q.Int64()), nil
}

// Format renders a with exactly Places fractional digits.
func (p Precision) Format(a Amount) string {
	v := new(big.Int).SetInt64(int64(a))
	neg := v.Sign() < 0
	v.Abs(v)

	digits := v.String()
	if p.Places > 0 {
		if len(digits) <= p.Places {
			digits = strings.Repeat("0", p.Places-len(digits)+1) + digits
		}
		cut := len(digits) - p.Places
		digits = digits[:cut] + "." + digits[cut:]
	}
	if neg {
		return "-" + digits
	}
	return digits
}

// Decimal pairs an amount with the precision it should be rendered at.
func (p Precision) Decimal(a Amount) Decimal {
	return Decimal{Amount: a, Places: p.Places}
}

// Decimal is a fixed-point coin value that encodes to JSON as a number
// literal with exactly Places fractional digits.
type Decimal struct {
	Amount Amount
	Places int
}

func (d Decimal) precision() Precision {
	per := int64(1)
	for i := 0; i < d.Places; i++ {
		per *= 10
	}
	return Precision{PerUnit: per, Places: d.Places}
}

// String returns the fixed-point text.
func (d Decimal) String() string {
	return d.precision().Format(d.Amount)
}

// MarshalJSON emits the value as a JSON number without float rounding.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalJSON accepts a JSON number or numeric string and keeps every
// fractional digit it carries.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	places := 0
	if i := strings.IndexByte(s, '.'); i >= 0 {
		places = len(s) - i - 1
	}
	if strings.ContainsAny(s, "eE") {
		return fmt.Errorf("decimal %q: exponent notation not supported", s)
	}
	per, err := strconv.ParseInt("1"+strings.Repeat("0", places), 10, 64)
	if err != nil {
		return fmt.Errorf("decimal %q: too many fractional digits", s)
	}
	a, err := Precision{PerUnit: per, Places: places}.Parse(s)
	if err != nil {
		return err
	}
	*d = Decimal{Amount: a, Places: places}
	return nil
}

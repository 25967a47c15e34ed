package money

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrNegativeAmount   = errors.New("amount must not be negative")
	ErrInvalidAmount    = errors.New("invalid amount")
)

// currencyDecimals maps ISO 4217 codes to their minor-unit exponent.
// Codes not listed default to 2.
var currencyDecimals = map[string]int32{
	"USD": 2, "EUR": 2, "GBP": 2, "INR": 2, "CAD": 2, "AUD": 2,
	"CHF": 2, "CNY": 2, "SGD": 2, "MXN": 2, "BRL": 2, "SEK": 2,
	"JPY": 0, "KRW": 0, "VND": 0, "CLP": 0, "ISK": 0,
	"BHD": 3, "KWD": 3, "OMR": 3, "JOD": 3, "TND": 3,
}

// Decimals returns the number of fractional digits for a currency code.
func Decimals(currency string) int32 {
	if d, ok := currencyDecimals[strings.ToUpper(currency)]; ok {
		return d
	}
	return 2
}

// Parse converts a decimal amount string into minor units for the given
// currency. Amounts with more fractional digits than the currency allows are
// rejected rather than rounded, per the wire contract.
func Parse(amount, currency string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	decimals := Decimals(currency)
	if -d.Exponent() > decimals {
		scaled := d.Shift(decimals)
		if !scaled.IsInteger() {
			return 0, fmt.Errorf("%w: %q has more than %d decimal places for %s", ErrInvalidAmount, amount, decimals, currency)
		}
	}
	return d.Shift(decimals).IntPart(), nil
}

// Format renders minor units as a decimal string with exactly the currency's
// fractional digits.
func Format(minor int64, currency string) string {
	decimals := Decimals(currency)
	return decimal.New(minor, -decimals).StringFixed(decimals)
}

// Round rounds a decimal value half-to-even to the currency's minor-unit
// precision and returns minor units.
func Round(d decimal.Decimal, currency string) int64 {
	decimals := Decimals(currency)
	return d.RoundBank(decimals).Shift(decimals).IntPart()
}

// SplitEven distributes total minor units across n parties so the shares sum
// to total exactly. The first total mod n parties (by index) receive one
// extra minor unit, so callers must pass parties in canonical member order.
func SplitEven(total int64, n int) ([]int64, error) {
	if total < 0 {
		return nil, ErrNegativeAmount
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: cannot split among %d parties", ErrInvalidAmount, n)
	}
	base := total / int64(n)
	rem := total % int64(n)
	shares := make([]int64, n)
	for i := range shares {
		shares[i] = base
		if int64(i) < rem {
			shares[i]++
		}
	}
	return shares, nil
}

// SplitWeighted distributes total minor units proportionally to weights using
// integer arithmetic. Provisional shares are floor(total*w/sumW); the residual
// is handed out by largest remainder, ties broken by index.
func SplitWeighted(total int64, weights []int64) ([]int64, error) {
	if total < 0 {
		return nil, ErrNegativeAmount
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: no weights", ErrInvalidAmount)
	}
	var sumW int64
	for _, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("%w: weight must be positive, got %d", ErrInvalidAmount, w)
		}
		sumW += w
	}

	shares := make([]int64, len(weights))
	remainders := make([]struct {
		idx int
		rem int64
	}, len(weights))
	var distributed int64
	for i, w := range weights {
		num := total * w
		shares[i] = num / sumW
		remainders[i].idx = i
		remainders[i].rem = num % sumW
		distributed += shares[i]
	}

	sort.SliceStable(remainders, func(a, b int) bool {
		if remainders[a].rem != remainders[b].rem {
			return remainders[a].rem > remainders[b].rem
		}
		return remainders[a].idx < remainders[b].idx
	})

	for i := int64(0); i < total-distributed; i++ {
		shares[remainders[i].idx]++
	}
	return shares, nil
}

// SplitExactPlusRemainder splits total where some parties have fixed exact
// amounts and the remainder is distributed by weight among the others. Fails
// if the exact amounts exceed the total.
func SplitExactPlusRemainder(total int64, exact []int64, otherWeights []int64) (exactOut []int64, others []int64, err error) {
	if total < 0 {
		return nil, nil, ErrNegativeAmount
	}
	var exactSum int64
	for _, e := range exact {
		if e < 0 {
			return nil, nil, ErrNegativeAmount
		}
		exactSum += e
	}
	if exactSum > total {
		return nil, nil, fmt.Errorf("%w: exact amounts (%d) exceed total (%d)", ErrInvalidAmount, exactSum, total)
	}
	remainder := total - exactSum
	if len(otherWeights) == 0 {
		if remainder != 0 {
			return nil, nil, fmt.Errorf("%w: %d minor units unassigned and no weighted parties", ErrInvalidAmount, remainder)
		}
		return exact, nil, nil
	}
	others, err = SplitWeighted(remainder, otherWeights)
	if err != nil {
		return nil, nil, err
	}
	return exact, others, nil
}

// SameCurrency reports whether all codes refer to one currency; comparison is
// case-insensitive.
func SameCurrency(codes ...string) bool {
	if len(codes) == 0 {
		return true
	}
	first := strings.ToUpper(codes[0])
	for _, c := range codes[1:] {
		if strings.ToUpper(c) != first {
			return false
		}
	}
	return true
}

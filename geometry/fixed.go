package geometry

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Fixed5 formats v with exactly 5 decimals.
func Fixed5(v float64) string {
	return Fixed(v, 5)
}

// Fixed formats v with exactly digits decimals, rounding the exact binary
// value half away from zero. strconv rounds exact ties to even, which puts
// values like 0.015625 on the lower side.
func Fixed(v float64, digits int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) || digits < 0 {
		return strconv.FormatFloat(v, 'f', digits, 64)
	}

	r := new(big.Rat).SetFloat64(math.Abs(v))
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	num := new(big.Int).Mul(r.Num(), scale)

	// floor((2*num + den) / (2*den)) is |v|*10^digits rounded half up
	den := new(big.Int).Lsh(r.Denom(), 1)
	num.Lsh(num, 1).Add(num, r.Denom())
	q := num.Quo(num, den).String()

	if len(q) <= digits {
		q = strings.Repeat("0", digits-len(q)+1) + q
	}

	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
	}
	b.WriteString(q[:len(q)-digits])
	if digits > 0 {
		b.WriteByte('.')
		b.WriteString(q[len(q)-digits:])
	}
	return b.String()
}

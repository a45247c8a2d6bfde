package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AmountScale is the number of Amount units per whole coin.
const AmountScale = 10000

// Amount is a coin quantity with exactly four fraction digits, stored in
// ten-thousandths so that equality is exact.
type Amount int64

// String renders the amount with four fraction digits, e.g. "1.2345".
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%04d", sign, v/AmountScale, v%AmountScale)
}

// ParseAmount parses a decimal string with exactly four fraction digits.
func ParseAmount(s string) (Amount, error) {
	whole, frac, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || len(frac) != 4 || whole == "" {
		return 0, fmt.Errorf("amount %q: want four fraction digits", s)
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 {
		return 0, fmt.Errorf("amount %q: invalid whole part", s)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("amount %q: invalid fraction part", s)
	}
	if w > (math.MaxInt64-f)/AmountScale {
		return 0, fmt.Errorf("amount %q: out of range", s)
	}
	return Amount(w*AmountScale + f), nil
}

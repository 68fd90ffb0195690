package importer

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount reads a human-formatted amount and returns its magnitude.
//
// Currency symbols and spaces are dropped. Parentheses or minus signs mark a
// negative-looking value, but only the absolute value is returned; the row's
// type decides the direction. When both '.' and ',' appear, whichever occurs
// last is the decimal separator. A lone comma is decimal only when it has at
// most two digits after it. Values that need more than two decimal places are
// rejected.
//
//	ParseAmount("1.234,56")  -> 1234.56
//	ParseAmount("1,234.56")  -> 1234.56
//	ParseAmount("(200.00)")  -> 200.00
//	ParseAmount("R$ 1.500")  -> 1.50
//	ParseAmount("1,500")     -> 1500
//	ParseAmount("1.234")     -> error
func ParseAmount(raw string) (decimal.Decimal, error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsDigit(r), r == '.', r == ',':
			b.WriteRune(r)
		case r == '-', r == '(', r == ')', r == '+':
			// sign markers carry no information once the magnitude is taken
		}
	}
	s := b.String()
	if s == "" || strings.Trim(s, ".,") == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if len(s)-lastComma-1 <= 2 {
			s = strings.ReplaceAll(s[:lastComma], ",", "") + "." + s[lastComma+1:]
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0 && strings.Count(s, ".") > 1:
		if len(s)-lastDot-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		} else {
			s = strings.ReplaceAll(s[:lastDot], ".", "") + s[lastDot:]
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	// Rounding would change the booked value; trailing zeros are fine.
	if !d.Equal(d.Truncate(core.AmountPlaces)) {
		return decimal.Zero, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, raw, core.AmountPlaces)
	}
	d, err = core.NormalizeAmount(d.Abs())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return d, nil
}

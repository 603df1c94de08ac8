package parser

import (
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"2006/01/02",
}

// parseDate tries the accepted statement date layouts and returns the value
// pinned to UTC.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// minorExponent returns the number of minor-unit digits for a currency.
// Unknown codes fall back to 2.
func minorExponent(code string) int {
	if c := money.GetCurrency(strings.ToUpper(strings.TrimSpace(code))); c != nil {
		return c.Fraction
	}
	return 2
}

// parseAmountMinor normalizes a statement amount string into signed minor
// units. Policy: spaces are stripped; when both '.' and ',' appear the
// rightmost one is the decimal separator and the other is a thousands
// separator; a lone ',' or '.' is always the decimal separator.
func parseAmountMinor(s, currency string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" {
		return 0, false
	}

	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.Shift(int32(minorExponent(currency))).Round(0).IntPart(), true
}

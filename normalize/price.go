// Package normalize turns raw feed cells into display-ready listing values.
// Every function here is pure and degrades to a default instead of failing.
package normalize

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PriceOnRequest is shown when a listing has no usable price.
const PriceOnRequest = "Consultar"

// Formatter renders grouped integers for a locale.
type Formatter struct {
	printer *message.Printer
}

func NewFormatter(tag language.Tag) *Formatter {
	return &Formatter{printer: message.NewPrinter(tag)}
}

// NewFormatterFor parses a BCP 47 tag such as "es-AR", falling back to English.
func NewFormatterFor(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return NewFormatter(tag)
}

// Default groups thousands with commas ("1,500").
var Default = NewFormatter(language.English)

func (f *Formatter) group(n int64) string {
	return f.printer.Sprintf("%d", n)
}

// Price formats a price cell, prefixing the currency resolved from isDollarCell.
func (f *Formatter) Price(priceCell, isDollarCell string) string {
	p := strings.TrimSpace(priceCell)
	if p == "" || p == "0" || strings.Contains(strings.ToLower(p), "consultar") {
		return PriceOnRequest
	}

	n, ok := parseDigits(p)
	if !ok {
		return PriceOnRequest
	}
	if ParseBooleanish(isDollarCell) {
		return "USD " + f.group(n)
	}
	return "$ " + f.group(n)
}

// Expenses formats the monthly expenses cell as "$ N", nil when unparseable.
func (f *Formatter) Expenses(cell string) *string {
	n, ok := parseDigits(cell)
	if !ok {
		return nil
	}
	s := "$ " + f.group(n)
	return &s
}

func FormatPrice(priceCell, isDollarCell string) string {
	return Default.Price(priceCell, isDollarCell)
}

func FormatExpenses(cell string) *string {
	return Default.Expenses(cell)
}

// parseDigits drops every non-digit and parses what remains.
func parseDigits(s string) (int64, bool) {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

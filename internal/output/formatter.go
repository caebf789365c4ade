// Package output renders Monte Carlo results for human and machine
// consumers.
package output

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rpsim/retirement-simulator/internal/calculation"
)

// ErrUnsupportedFormat is returned when no formatter matches the requested
// name.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Formatter defines a pluggable output formatter that returns a byte slice.
// Implementations should be pure (no side effects besides deterministic
// formatting).
type Formatter interface {
	Format(result *calculation.MonteCarloResult) ([]byte, error)
	// Name returns a short identifier for logging / debugging.
	Name() string
}

var builtInFormatters = []Formatter{
	ConsoleFormatter{},
	JSONFormatter{},
	CSVFormatter{},
}

// GetFormatterByName returns the formatter registered under name, nil if
// none.
func GetFormatterByName(name string) Formatter {
	for _, f := range builtInFormatters {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// AvailableFormatterNames lists the registered formatter names.
func AvailableFormatterNames() []string {
	names := make([]string, len(builtInFormatters))
	for i, f := range builtInFormatters {
		names[i] = f.Name()
	}
	return names
}

// Render formats a result with the named formatter.
func Render(name string, result *calculation.MonteCarloResult) ([]byte, error) {
	f := GetFormatterByName(name)
	if f == nil {
		return nil, fmt.Errorf("%w: %q. Try one of: %s", ErrUnsupportedFormat, name, strings.Join(AvailableFormatterNames(), ", "))
	}
	return f.Format(result)
}

// FormatCurrency formats a decimal as USD currency rounded to whole dollars.
func FormatCurrency(amount decimal.Decimal) string {
	return "$" + amount.Round(0).String()
}

// FormatPercentage formats a fractional rate as a percentage with 1 decimal.
func FormatPercentage(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}

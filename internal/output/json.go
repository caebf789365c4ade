package output

import (
	"encoding/json"

	"github.com/rpsim/retirement-simulator/internal/calculation"
)

// JSONFormatter marshals the aggregate result surface as indented JSON.
type JSONFormatter struct{}

// Name implements Formatter.
func (JSONFormatter) Name() string { return "json" }

// Format implements Formatter.
func (JSONFormatter) Format(result *calculation.MonteCarloResult) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}

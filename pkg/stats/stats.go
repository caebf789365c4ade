// Package stats provides the small set of statistics helpers the simulator
// needs: percentile and moment calculations over decimal dollar values, and
// float-side wrappers over gonum for historical series work.
package stats

import (
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// SortValues sorts a slice of decimals ascending, in place.
func SortValues(values []decimal.Decimal) {
	sort.Slice(values, func(i, j int) bool {
		return values[i].LessThan(values[j])
	})
}

// Percentile returns the p-th percentile (0 <= p <= 100) of a sorted slice
// using linear interpolation between closest ranks. The slice must be
// non-empty and sorted ascending.
func Percentile(sorted []decimal.Decimal, p float64) decimal.Decimal {
	n := len(sorted)
	if n == 0 {
		return decimal.Zero
	}
	if n == 1 {
		return sorted[0]
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}

	rank := p / 100 * float64(n-1)
	lo := int(rank)
	frac := rank - float64(lo)
	if frac == 0 || lo+1 >= n {
		return sorted[lo]
	}

	delta := sorted[lo+1].Sub(sorted[lo])
	return sorted[lo].Add(delta.Mul(decimal.NewFromFloat(frac)))
}

// Median returns the 50th percentile of a sorted slice.
func Median(sorted []decimal.Decimal) decimal.Decimal {
	return Percentile(sorted, 50)
}

// Mean returns the arithmetic mean of a slice, zero for an empty slice.
func Mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

// Min returns the smallest value in a non-empty slice.
func Min(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	min := values[0]
	for _, v := range values[1:] {
		if v.LessThan(min) {
			min = v
		}
	}
	return min
}

// Max returns the largest value in a non-empty slice.
func Max(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	max := values[0]
	for _, v := range values[1:] {
		if v.GreaterThan(max) {
			max = v
		}
	}
	return max
}

// MeanStd returns the mean and population-weighted standard deviation of a
// float series.
func MeanStd(data []float64) (mean, std float64) {
	if len(data) == 0 {
		return 0, 0
	}
	mean = stat.Mean(data, nil)
	std = stat.StdDev(data, nil)
	return mean, std
}

// Correlation returns the Pearson correlation of two equal-length series.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}
	return stat.Correlation(x, y, nil)
}

// FloatMedian returns the median of a float series without mutating it.
func FloatMedian(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

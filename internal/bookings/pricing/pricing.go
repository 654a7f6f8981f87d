// Package pricing derives a booking total from its selection and add-on slots.
package pricing

import (
	"errors"
	"math"
	"strconv"

	"travelbook/pkg/model"
)

// MaxTotal bounds a booking total so its minor-unit amount fits an int64.
const MaxTotal = 1e12

var ErrTotalOutOfRange = errors.New("booking total is out of range")

// ComputeTotal returns round(selection.price + sum of numeric add-on values, 2).
// Missing and non-numeric values count as zero. Add-ons nested under an
// "addons" mapping are summed together with the numeric top-level entries.
// A total that is not finite or exceeds MaxTotal in magnitude is rejected.
func ComputeTotal(b *model.Booking) (float64, error) {
	total := b.Selection.Selection().Price
	for _, v := range b.Addons.AddonSet() {
		total += v
	}
	if math.IsNaN(total) || math.IsInf(total, 0) || math.Abs(total) > MaxTotal {
		return 0, ErrTotalOutOfRange
	}
	return Round2(total), nil
}

// Round2 rounds the exact binary value of v to two decimals, ties to even.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	if err != nil {
		return v
	}
	return rounded
}

// ToMinorUnits converts a major-unit amount to cents.
func ToMinorUnits(total float64) int64 {
	return int64(math.Round(total * 100))
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64) float64 {
	return float64(minor) / 100
}

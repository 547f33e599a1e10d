// Package units provides shared constants and validation for distance units.
// The odometer works in inches, the unit of the configured wheel diameter.
package units

import "strings"

// Unit constants
const (
	IN = "in"
	FT = "ft"
	CM = "cm"
	M  = "m"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{IN, FT, CM, M}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertDistance converts a distance in inches to the target units.
func ConvertDistance(inches float64, targetUnits string) float64 {
	switch targetUnits {
	case FT:
		return inches / 12
	case CM:
		return inches * 2.54
	case M:
		return inches * 0.0254
	case IN:
		return inches
	default:
		return inches // default to inches if unknown unit
	}
}

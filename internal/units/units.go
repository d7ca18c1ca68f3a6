// Package units provides shared constants and validation for length units
// used when presenting relative tag positions.
package units

import "strings"

// Unit constants. Positions are computed in the unit the tag size is given
// in; the defaults assume metres.
const (
	M  = "m"
	CM = "cm"
	MM = "mm"
	IN = "in"
	FT = "ft"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{M, CM, MM, IN, FT}

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

// ConvertLength converts a length in metres to the target units.
// Unknown units leave the value in metres.
func ConvertLength(metres float64, targetUnits string) float64 {
	switch targetUnits {
	case CM:
		return metres * 100
	case MM:
		return metres * 1000
	case IN:
		return metres / 0.0254
	case FT:
		return metres / 0.3048
	default:
		return metres
	}
}

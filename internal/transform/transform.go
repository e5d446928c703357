// Package transform holds the pure value conversions between the Hue
// bridge's wire representation and the store's standardized units.
//
// Inbound (bridge -> store): raw hue becomes degrees, mired becomes
// Kelvin, brightness 0-254 becomes a percentage level. Outbound applies
// the inverse, clamped to the ranges the bridge accepts.
package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// HueToDegrees converts raw bridge hue (0-65535) to degrees (0-360).
func HueToDegrees(raw float64) int {
	return clampInt(int(math.Round(raw/65535*360)), 0, 360)
}

// DegreesToHue converts degrees (0-360) to raw bridge hue (0-65535).
func DegreesToHue(degrees float64) int {
	return clampInt(int(math.Round(degrees/360*65535)), 0, 65535)
}

// MiredToKelvin converts a reciprocal-mired color temperature to Kelvin,
// clamped to the range supported by connected lights.
func MiredToKelvin(mired float64) int {
	if mired == 0 {
		return 6500
	}
	return clampInt(int(math.Round(1/mired*1000000)), 2000, 6500)
}

// KelvinToMired converts Kelvin back to the mired value the bridge expects.
func KelvinToMired(kelvin float64) int {
	if kelvin == 0 {
		return 500
	}
	return clampInt(int(math.Round(1/kelvin*1000000)), 153, 500)
}

// BrightnessToLevel converts bridge brightness (0-254) to a percentage.
func BrightnessToLevel(bri float64) int {
	if bri <= 0 {
		return 0
	}
	return clampInt(int(math.Round(bri/2.54)), 0, 100)
}

// LevelToBrightness converts a percentage level to bridge brightness.
func LevelToBrightness(level float64) int {
	return clampInt(int(math.Round(level*2.54)), 0, 254)
}

// SaturationToPercent converts bridge saturation (0-254) to a percentage.
func SaturationToPercent(sat float64) int {
	if sat <= 0 {
		return 0
	}
	return clampInt(int(math.Round(sat/2.54)), 0, 100)
}

// PercentToSaturation converts a percentage to bridge saturation (0-254).
func PercentToSaturation(percent float64) int {
	return clampInt(int(math.Round(percent*2.54)), 0, 254)
}

// SensorTemperature converts the raw centi-degree sensor reading.
func SensorTemperature(raw float64) float64 {
	return raw / 100
}

// JoinArray serializes an array leaf to a comma-joined string.
func JoinArray(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		switch t := v.(type) {
		case string:
			parts[i] = t
		case float64:
			parts[i] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			parts[i] = strconv.FormatBool(t)
		default:
			parts[i] = fmt.Sprintf("%v", t)
		}
	}
	return strings.Join(parts, ",")
}

// ParseXYPair parses a stored "x,y" string back to the numeric pair the
// bridge expects on the wire.
func ParseXYPair(s string) ([2]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return [2]float64{}, fmt.Errorf("%w: xy pair %q", ErrInvalidColorValue, s)
	}
	var pair [2]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return [2]float64{}, fmt.Errorf("%w: xy pair %q", ErrInvalidColorValue, s)
		}
		pair[i] = v
	}
	return pair, nil
}

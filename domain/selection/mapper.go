package selection

import "math"

// MapPosition converts a pointer offset on a timeline track into seconds.
// The offset is clamped to [0, trackWidth]; a non-positive width maps to 0
func MapPosition(pixelOffset, trackWidth, totalDuration float64) float64 {
	if !positive(trackWidth) || math.IsNaN(pixelOffset) {
		return 0
	}
	offset := clamp(pixelOffset, 0, trackWidth)
	return MapFraction(offset/trackWidth, totalDuration)
}

// MapFraction converts a normalized position in [0, 1] into seconds.
// The result is always within [0, totalDuration]
func MapFraction(fraction, totalDuration float64) float64 {
	if !positive(totalDuration) || math.IsNaN(fraction) {
		return 0
	}
	return clamp(fraction, 0, 1) * totalDuration
}

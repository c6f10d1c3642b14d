package selection

import "math"

// ResolveBoundary picks the boundary nearest to t.
// An equidistant t resolves to BoundaryEnd
func ResolveBoundary(t float64, sel Selection) Boundary {
	if math.Abs(t-sel.Start) < math.Abs(t-sel.End) {
		return BoundaryStart
	}
	return BoundaryEnd
}

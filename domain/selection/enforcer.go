package selection

import "math"

// ApplyBoundaryUpdate moves one boundary of sel toward proposed and returns
// the resulting selection. It never fails: the moved boundary is clamped to
// the media and to the minimum gap, and when the span would exceed the
// maximum the opposite boundary is pulled along to keep the span at the cap.
//
// On return 0 <= Start < End <= totalDuration and Span() <= MaxSpan.
// The minimum span is not enforced here; see Session.Proceed
func ApplyBoundaryUpdate(b Boundary, proposed float64, sel Selection, c Constraints, totalDuration float64) Selection {
	if !positive(totalDuration) || math.IsNaN(proposed) {
		return sel
	}

	maxSpan := c.effectiveMaxSpan(totalDuration)
	gap := c.effectiveGap(totalDuration)
	sel = normalize(sel, gap, maxSpan, totalDuration)

	switch b {
	case BoundaryStart:
		start := clamp(proposed, 0, sel.End-gap)
		end := sel.End
		if end-start > maxSpan {
			end = clamp(start+maxSpan, start+gap, totalDuration)
		}
		return settle(Selection{Start: start, End: end}, b, gap, maxSpan, totalDuration)

	case BoundaryEnd:
		end := clamp(proposed, sel.Start+gap, totalDuration)
		start := sel.Start
		if end-start > maxSpan {
			start = clamp(end-maxSpan, 0, end-gap)
		}
		return settle(Selection{Start: start, End: end}, b, gap, maxSpan, totalDuration)
	}

	return sel
}

// settle removes the rounding error left by start+maxSpan, end-gap and
// friends so that gap <= End-Start <= maxSpan holds exactly as computed by
// Span. The moved boundary is nudged outward to reach the gap; the opposite
// boundary is nudged inward to respect the cap. Each step is one ulp
func settle(sel Selection, moved Boundary, gap, maxSpan, totalDuration float64) Selection {
	down, up := math.Inf(-1), math.Inf(1)

	for sel.Span() < gap {
		switch {
		case moved == BoundaryStart && sel.Start > 0:
			sel.Start = math.Max(0, math.Nextafter(sel.Start, down))
		case moved == BoundaryEnd && sel.End < totalDuration:
			sel.End = math.Min(totalDuration, math.Nextafter(sel.End, up))
		case sel.End < totalDuration:
			sel.End = math.Min(totalDuration, math.Nextafter(sel.End, up))
		case sel.Start > 0:
			sel.Start = math.Max(0, math.Nextafter(sel.Start, down))
		default:
			return sel
		}
	}

	for sel.Span() > maxSpan {
		if moved == BoundaryStart {
			sel.End = math.Nextafter(sel.End, down)
		} else {
			sel.Start = math.Nextafter(sel.Start, up)
		}
	}

	return sel
}

// normalize brings an arbitrary selection inside the media bounds, the gap
// and the span cap. Selections produced by ApplyBoundaryUpdate pass through
// unchanged unless the constraints have since shrunk
func normalize(sel Selection, gap, maxSpan, totalDuration float64) Selection {
	if math.IsNaN(sel.Start) || math.IsNaN(sel.End) {
		return Selection{Start: 0, End: maxSpan}
	}
	end := clamp(sel.End, gap, totalDuration)
	start := clamp(sel.Start, 0, end-gap)
	if end-start > maxSpan {
		start = end - maxSpan
	}
	return Selection{Start: start, End: end}
}

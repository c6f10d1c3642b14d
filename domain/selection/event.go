package selection

import (
	"fmt"
	"math"
)

// EventKind identifies a user interaction with the timeline
type EventKind string

const (
	// EventClick is a click on the shared track, addressed by position fraction
	EventClick EventKind = "click"

	// EventMove is a handle drag or slider change addressed to one boundary
	EventMove EventKind = "move"

	// EventReset restores the initial selection
	EventReset EventKind = "reset"
)

// Event is one discrete input processed by a session
type Event struct {
	Kind     EventKind `json:"kind"`
	Fraction float64   `json:"positionFraction,omitempty"`
	Boundary Boundary  `json:"boundary,omitempty"`
	Time     float64   `json:"time,omitempty"`
}

// Validate checks that the event carries the fields its kind needs
func (e Event) Validate() error {
	switch e.Kind {
	case EventClick:
		if math.IsNaN(e.Fraction) {
			return fmt.Errorf("%w: position fraction is not a number", ErrInvalidEvent)
		}
	case EventMove:
		if e.Boundary != BoundaryStart && e.Boundary != BoundaryEnd {
			return fmt.Errorf("%w: unknown boundary %q", ErrInvalidEvent, e.Boundary)
		}
		if math.IsNaN(e.Time) {
			return fmt.Errorf("%w: time is not a number", ErrInvalidEvent)
		}
	case EventReset:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	return nil
}

// Reduce applies one event to a selection: (selection, event) -> selection.
// Invalid events leave the selection unchanged
func Reduce(sel Selection, e Event, c Constraints, totalDuration float64) Selection {
	switch e.Kind {
	case EventClick:
		t := MapFraction(e.Fraction, totalDuration)
		return ApplyBoundaryUpdate(ResolveBoundary(t, sel), t, sel, c, totalDuration)
	case EventMove:
		return ApplyBoundaryUpdate(e.Boundary, e.Time, sel, c, totalDuration)
	case EventReset:
		return InitialSelection(c, totalDuration)
	}
	return sel
}

// TargetBoundary reports which boundary e moves when applied to sel.
// Reset and invalid events move no single boundary
func TargetBoundary(sel Selection, e Event, totalDuration float64) (Boundary, bool) {
	switch e.Kind {
	case EventClick:
		return ResolveBoundary(MapFraction(e.Fraction, totalDuration), sel), true
	case EventMove:
		if e.Boundary == BoundaryStart || e.Boundary == BoundaryEnd {
			return e.Boundary, true
		}
	}
	return "", false
}

package selection

import (
	"fmt"
	"math"
	"strings"
)

// DefaultMinGap is the smallest distance, in seconds, kept between start and
// end while a boundary is being moved
const DefaultMinGap = 5.0

// Boundary identifies one edge of a selection
type Boundary string

const (
	// BoundaryStart is the left edge of the selection
	BoundaryStart Boundary = "start"

	// BoundaryEnd is the right edge of the selection
	BoundaryEnd Boundary = "end"
)

// ParseBoundary parses "start" or "end" (case-insensitive)
func ParseBoundary(s string) (Boundary, error) {
	switch Boundary(strings.ToLower(strings.TrimSpace(s))) {
	case BoundaryStart:
		return BoundaryStart, nil
	case BoundaryEnd:
		return BoundaryEnd, nil
	}
	return "", fmt.Errorf("%w: unknown boundary %q", ErrInvalidEvent, s)
}

// Selection is a contiguous time range inside a media source, in seconds
type Selection struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Span returns the selected duration in seconds
func (s Selection) Span() float64 {
	return s.End - s.Start
}

func (s Selection) String() string {
	return fmt.Sprintf("%.3f-%.3f", s.Start, s.End)
}

// Constraints bound the span a selection may cover.
// MaxSpan normally comes from the caller's plan tier
type Constraints struct {
	MinSpan float64 `json:"minSpan"`
	MaxSpan float64 `json:"maxSpan"`

	// MinGap is the live-drag floor between start and end; zero means DefaultMinGap
	MinGap float64 `json:"minGap,omitempty"`
}

// Validate checks that both spans are positive finite numbers
func (c Constraints) Validate() error {
	if !positive(c.MinSpan) {
		return fmt.Errorf("%w: minimum span must be positive, got %v", ErrInvalidConstraints, c.MinSpan)
	}
	if !positive(c.MaxSpan) {
		return fmt.Errorf("%w: maximum span must be positive, got %v", ErrInvalidConstraints, c.MaxSpan)
	}
	if c.MinGap < 0 || math.IsNaN(c.MinGap) || math.IsInf(c.MinGap, 0) {
		return fmt.Errorf("%w: minimum gap must not be negative, got %v", ErrInvalidConstraints, c.MinGap)
	}
	return nil
}

// Gap returns the configured minimum gap, falling back to DefaultMinGap
func (c Constraints) Gap() float64 {
	if c.MinGap > 0 {
		return c.MinGap
	}
	return DefaultMinGap
}

// effectiveMaxSpan never exceeds the media duration
func (c Constraints) effectiveMaxSpan(totalDuration float64) float64 {
	if !positive(c.MaxSpan) || c.MaxSpan > totalDuration {
		return totalDuration
	}
	return c.MaxSpan
}

// effectiveGap shrinks the gap so that a selection honoring it always fits
// inside both the media and the span cap
func (c Constraints) effectiveGap(totalDuration float64) float64 {
	return math.Min(c.Gap(), c.effectiveMaxSpan(totalDuration))
}

// MediaReference identifies the source video and its length.
// It is immutable once loaded
type MediaReference struct {
	Source        string  `json:"source"`
	Title         string  `json:"title,omitempty"`
	TotalDuration float64 `json:"totalDuration"`
}

// NewMediaReference creates a MediaReference, validating the duration
func NewMediaReference(source string, totalDuration float64) (MediaReference, error) {
	if strings.TrimSpace(source) == "" {
		return MediaReference{}, fmt.Errorf("%w: source is required", ErrInvalidMedia)
	}
	if !positive(totalDuration) {
		return MediaReference{}, fmt.Errorf("%w: duration must be positive, got %v", ErrInvalidMedia, totalDuration)
	}
	return MediaReference{Source: source, TotalDuration: totalDuration}, nil
}

// InitialSelection returns the default selection for freshly loaded media
func InitialSelection(c Constraints, totalDuration float64) Selection {
	if !positive(totalDuration) {
		return Selection{}
	}
	return Selection{Start: 0, End: c.effectiveMaxSpan(totalDuration)}
}

// Submission is the validated range handed to the downstream processing step
type Submission struct {
	Source   string  `json:"source"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package selection

import (
	"context"
	"fmt"
)

// State is the position of a session in the submission gate
type State string

const (
	// StateIdle means media metadata has not been loaded
	StateIdle State = "idle"

	// StateSelecting means the user is adjusting the selection
	StateSelecting State = "selecting"

	// StateValidated means the selection passed the gate and is being handed off
	StateValidated State = "validated"

	// StateSubmitted is terminal
	StateSubmitted State = "submitted"
)

// Session owns the selection for one user interaction with one media source.
// It is not safe for concurrent use; callers serialize events
type Session struct {
	state       State
	constraints Constraints
	media       MediaReference
	initial     Selection
	current     Selection
}

// NewSession creates an idle session
func NewSession(c Constraints) (*Session, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		state:       StateIdle,
		constraints: c,
	}, nil
}

// State returns the current gate state
func (s *Session) State() State {
	return s.state
}

// Constraints returns the constraints in effect
func (s *Session) Constraints() Constraints {
	return s.constraints
}

// Media returns the loaded media reference, if any
func (s *Session) Media() (MediaReference, bool) {
	return s.media, s.state != StateIdle
}

// Selection returns a copy of the current selection, if media is loaded
func (s *Session) Selection() (Selection, bool) {
	return s.current, s.state != StateIdle
}

// Load attaches media metadata and moves the session to Selecting
func (s *Session) Load(media MediaReference) (Selection, error) {
	if s.state != StateIdle {
		return s.current, ErrAlreadyLoaded
	}
	if _, err := NewMediaReference(media.Source, media.TotalDuration); err != nil {
		return Selection{}, err
	}

	s.media = media
	s.initial = InitialSelection(s.constraints, media.TotalDuration)
	s.current = s.initial
	s.state = StateSelecting
	return s.current, nil
}

// Dispatch applies one event and returns the resulting selection
func (s *Session) Dispatch(e Event) (Selection, error) {
	if err := s.checkOpen(); err != nil {
		return s.current, err
	}
	if err := e.Validate(); err != nil {
		return s.current, err
	}

	s.current = Reduce(s.current, e, s.constraints, s.media.TotalDuration)
	return s.current, nil
}

// Click handles a click on the shared track at a normalized position
func (s *Session) Click(fraction float64) (Selection, error) {
	return s.Dispatch(Event{Kind: EventClick, Fraction: fraction})
}

// ClickAt handles a click at a pixel offset on a track of the given width
func (s *Session) ClickAt(pixelOffset, trackWidth float64) (Selection, error) {
	if err := s.checkOpen(); err != nil {
		return s.current, err
	}
	if !positive(trackWidth) {
		return s.current, fmt.Errorf("%w: track width must be positive, got %v", ErrInvalidEvent, trackWidth)
	}

	t := MapPosition(pixelOffset, trackWidth, s.media.TotalDuration)
	return s.Move(ResolveBoundary(t, s.current), t)
}

// Move sets one boundary directly, as a drag handle or slider does
func (s *Session) Move(b Boundary, t float64) (Selection, error) {
	return s.Dispatch(Event{Kind: EventMove, Boundary: b, Time: t})
}

// Reset restores the initial selection
func (s *Session) Reset() (Selection, error) {
	return s.Dispatch(Event{Kind: EventReset})
}

// UpdateConstraints replaces the constraints, e.g. after a plan change.
// The current selection is left as is; a shrunk maximum is caught by the
// next boundary update or by Proceed
func (s *Session) UpdateConstraints(c Constraints) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.constraints = c
	if s.state != StateIdle {
		s.initial = InitialSelection(c, s.media.TotalDuration)
	}
	return nil
}

// Validate checks the current selection against the span limits without
// changing state
func (s *Session) Validate() (Submission, error) {
	if err := s.checkOpen(); err != nil {
		return Submission{}, err
	}

	span := s.current.Span()
	if span < s.constraints.MinSpan {
		return Submission{}, &SpanError{Kind: ErrSelectionTooShort, Span: span, Limit: s.constraints.MinSpan}
	}
	if span > s.constraints.MaxSpan {
		return Submission{}, &SpanError{Kind: ErrSelectionTooLong, Span: span, Limit: s.constraints.MaxSpan}
	}

	return Submission{
		Source:   s.media.Source,
		Start:    s.current.Start,
		End:      s.current.End,
		Duration: span,
	}, nil
}

// Proceed validates the selection and hands it to consumer.
// A rejected or failed submission leaves the session in Selecting with the
// selection untouched
func (s *Session) Proceed(ctx context.Context, consumer Consumer) (Submission, error) {
	sub, err := s.Validate()
	if err != nil {
		return Submission{}, err
	}

	s.state = StateValidated
	if consumer != nil {
		if err := consumer.Submit(ctx, sub); err != nil {
			s.state = StateSelecting
			return Submission{}, fmt.Errorf("%w: %w", ErrConsumerFailed, err)
		}
	}

	s.state = StateSubmitted
	return sub, nil
}

func (s *Session) checkOpen() error {
	switch s.state {
	case StateIdle:
		return ErrMediaNotReady
	case StateSubmitted:
		return ErrSessionClosed
	}
	return nil
}

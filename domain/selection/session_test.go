package selection

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
)

// recordingConsumer captures submissions handed downstream
type recordingConsumer struct {
	submissions []Submission
	err         error
}

func (r *recordingConsumer) Submit(ctx context.Context, sub Submission) error {
	if r.err != nil {
		return r.err
	}
	r.submissions = append(r.submissions, sub)
	return nil
}

func loadedSession(t *testing.T, c Constraints, duration float64) *Session {
	t.Helper()
	s, err := NewSession(c)
	if err != nil {
		t.Fatalf("NewSession() unexpected error: %v", err)
	}
	if _, err := s.Load(MediaReference{Source: "https://example.com/watch?v=abc", TotalDuration: duration}); err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return s
}

func TestNewSession_RejectsInvalidConstraints(t *testing.T) {
	tests := []struct {
		name string
		c    Constraints
	}{
		{name: "zero min span", c: Constraints{MinSpan: 0, MaxSpan: 300}},
		{name: "zero max span", c: Constraints{MinSpan: 5, MaxSpan: 0}},
		{name: "negative gap", c: Constraints{MinSpan: 5, MaxSpan: 300, MinGap: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSession(tt.c)
			if !errors.Is(err, ErrInvalidConstraints) {
				t.Errorf("NewSession(%+v) error = %v, want ErrInvalidConstraints", tt.c, err)
			}
		})
	}
}

func TestSession_InitialSelection(t *testing.T) {
	s := loadedSession(t, planFree, 600)

	if s.State() != StateSelecting {
		t.Errorf("expected state %s, got %s", StateSelecting, s.State())
	}
	sel, ok := s.Selection()
	if !ok {
		t.Fatal("expected a selection after load")
	}
	if want := (Selection{0, 300}); sel != want {
		t.Errorf("initial selection = %v, want %v", sel, want)
	}
}

func TestSession_InitialSelectionShortMedia(t *testing.T) {
	s := loadedSession(t, planFree, 120)
	sel, _ := s.Selection()
	if want := (Selection{0, 120}); sel != want {
		t.Errorf("initial selection = %v, want %v", sel, want)
	}
}

func TestSession_Idle(t *testing.T) {
	s, err := NewSession(planFree)
	if err != nil {
		t.Fatalf("NewSession() unexpected error: %v", err)
	}

	if _, ok := s.Selection(); ok {
		t.Error("expected no selection while idle")
	}
	if _, err := s.Click(0.5); !errors.Is(err, ErrMediaNotReady) {
		t.Errorf("Click() while idle error = %v, want ErrMediaNotReady", err)
	}
	if _, err := s.Reset(); !errors.Is(err, ErrMediaNotReady) {
		t.Errorf("Reset() while idle error = %v, want ErrMediaNotReady", err)
	}

	consumer := &recordingConsumer{}
	if _, err := s.Proceed(context.Background(), consumer); !errors.Is(err, ErrMediaNotReady) {
		t.Errorf("Proceed() while idle error = %v, want ErrMediaNotReady", err)
	}
	if len(consumer.submissions) != 0 {
		t.Error("expected nothing submitted while idle")
	}
	if s.State() != StateIdle {
		t.Errorf("expected state to remain idle, got %s", s.State())
	}
}

func TestSession_LoadTwice(t *testing.T) {
	s := loadedSession(t, planFree, 600)
	if _, err := s.Load(MediaReference{Source: "other", TotalDuration: 60}); !errors.Is(err, ErrAlreadyLoaded) {
		t.Errorf("second Load() error = %v, want ErrAlreadyLoaded", err)
	}
	if m, _ := s.Media(); m.TotalDuration != 600 {
		t.Errorf("expected media to be unchanged, got duration %v", m.TotalDuration)
	}
}

func TestSession_LoadInvalidMedia(t *testing.T) {
	s, _ := NewSession(planFree)
	if _, err := s.Load(MediaReference{Source: "x", TotalDuration: 0}); !errors.Is(err, ErrInvalidMedia) {
		t.Errorf("Load() error = %v, want ErrInvalidMedia", err)
	}
	if s.State() != StateIdle {
		t.Errorf("expected state idle after failed load, got %s", s.State())
	}
}

func TestSession_ClickResolvesTieToEnd(t *testing.T) {
	s := loadedSession(t, planFree, 600)

	sel, err := s.Click(0.25)
	if err != nil {
		t.Fatalf("Click() unexpected error: %v", err)
	}
	if want := (Selection{0, 150}); sel != want {
		t.Errorf("Click(0.25) = %v, want %v", sel, want)
	}
}

func TestSession_ClickAt(t *testing.T) {
	s := loadedSession(t, planFree, 600)

	sel, err := s.ClickAt(100, 800)
	if err != nil {
		t.Fatalf("ClickAt() unexpected error: %v", err)
	}
	if want := (Selection{75, 300}); sel != want {
		t.Errorf("ClickAt(100, 800) = %v, want %v", sel, want)
	}

	if _, err := s.ClickAt(40, 0); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("ClickAt with zero width error = %v, want ErrInvalidEvent", err)
	}
}

func TestSession_DispatchInvalidEvent(t *testing.T) {
	s := loadedSession(t, planFree, 600)

	tests := []Event{
		{Kind: "drag"},
		{Kind: EventMove, Boundary: "middle", Time: 10},
	}
	for _, e := range tests {
		sel, err := s.Dispatch(e)
		if !errors.Is(err, ErrInvalidEvent) {
			t.Errorf("Dispatch(%+v) error = %v, want ErrInvalidEvent", e, err)
		}
		if want := (Selection{0, 300}); sel != want {
			t.Errorf("Dispatch(%+v) changed selection to %v", e, sel)
		}
	}
}

func TestSession_Reset(t *testing.T) {
	s := loadedSession(t, planFree, 600)
	if _, err := s.Move(BoundaryEnd, 700); err != nil {
		t.Fatalf("Move() unexpected error: %v", err)
	}

	sel, err := s.Reset()
	if err != nil {
		t.Fatalf("Reset() unexpected error: %v", err)
	}
	if want := (Selection{0, 300}); sel != want {
		t.Errorf("Reset() = %v, want %v", sel, want)
	}
}

func TestSession_ProceedTooShort(t *testing.T) {
	s := loadedSession(t, Constraints{MinSpan: 5, MaxSpan: 300, MinGap: 1}, 600)
	s.Move(BoundaryStart, 100)
	s.Move(BoundaryEnd, 103)

	consumer := &recordingConsumer{}
	_, err := s.Proceed(context.Background(), consumer)
	if !errors.Is(err, ErrSelectionTooShort) {
		t.Fatalf("Proceed() error = %v, want ErrSelectionTooShort", err)
	}

	var spanErr *SpanError
	if !errors.As(err, &spanErr) {
		t.Fatalf("expected a *SpanError, got %T", err)
	}
	if spanErr.Span != 3 || spanErr.Limit != 5 {
		t.Errorf("SpanError = %+v, want span 3 limit 5", spanErr)
	}

	if s.State() != StateSelecting {
		t.Errorf("expected state %s after rejection, got %s", StateSelecting, s.State())
	}
	if sel, _ := s.Selection(); sel != (Selection{100, 103}) {
		t.Errorf("expected selection preserved, got %v", sel)
	}
	if len(consumer.submissions) != 0 {
		t.Error("expected nothing submitted")
	}
}

func TestSession_ProceedTooLongAfterDowngrade(t *testing.T) {
	s := loadedSession(t, Constraints{MinSpan: 5, MaxSpan: 3600}, 600)
	if sel, _ := s.Selection(); sel != (Selection{0, 600}) {
		t.Fatalf("unexpected initial selection %v", sel)
	}

	if err := s.UpdateConstraints(planFree); err != nil {
		t.Fatalf("UpdateConstraints() unexpected error: %v", err)
	}

	_, err := s.Proceed(context.Background(), &recordingConsumer{})
	if !errors.Is(err, ErrSelectionTooLong) {
		t.Fatalf("Proceed() error = %v, want ErrSelectionTooLong", err)
	}
	if sel, _ := s.Selection(); sel != (Selection{0, 600}) {
		t.Errorf("expected selection preserved, got %v", sel)
	}

	// reset now uses the downgraded cap
	if sel, _ := s.Reset(); sel != (Selection{0, 300}) {
		t.Errorf("Reset() after downgrade = %v, want {0 300}", sel)
	}
}

func TestSession_ProceedSubmits(t *testing.T) {
	s := loadedSession(t, planFree, 600)
	s.Move(BoundaryEnd, 700)

	consumer := &recordingConsumer{}
	sub, err := s.Proceed(context.Background(), consumer)
	if err != nil {
		t.Fatalf("Proceed() unexpected error: %v", err)
	}

	want := Submission{Source: "https://example.com/watch?v=abc", Start: 300, End: 600, Duration: 300}
	if sub != want {
		t.Errorf("Proceed() = %+v, want %+v", sub, want)
	}
	if len(consumer.submissions) != 1 || consumer.submissions[0] != want {
		t.Errorf("consumer received %+v, want one %+v", consumer.submissions, want)
	}
	if s.State() != StateSubmitted {
		t.Errorf("expected state %s, got %s", StateSubmitted, s.State())
	}

	if _, err := s.Click(0.1); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Click() after submit error = %v, want ErrSessionClosed", err)
	}
	if _, err := s.Reset(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Reset() after submit error = %v, want ErrSessionClosed", err)
	}
	if _, err := s.Proceed(context.Background(), consumer); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("second Proceed() error = %v, want ErrSessionClosed", err)
	}
}

func TestSession_ProceedAfterFractionalGapPull(t *testing.T) {
	s := loadedSession(t, planFree, 1000)
	s.Move(BoundaryStart, 3.2)
	s.Move(BoundaryEnd, 0)

	sub, err := s.Proceed(context.Background(), &recordingConsumer{})
	if err != nil {
		t.Fatalf("Proceed() unexpected error: %v", err)
	}
	if sub.Start != 3.2 || sub.Duration < planFree.MinSpan {
		t.Errorf("Proceed() = %+v, want start 3.2 and duration >= %v", sub, planFree.MinSpan)
	}
}

func TestSession_ProceedAfterRandomMoves(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 2000; i++ {
		duration := 10 + rng.Float64()*3000
		s := loadedSession(t, planFree, duration)

		var moves []string
		for j := 0; j < 3; j++ {
			b := randomBoundary(rng)
			p := rng.Float64() * duration * 1.1
			s.Move(b, p)
			moves = append(moves, fmt.Sprintf("%s@%v", b, p))
		}

		sel, _ := s.Selection()
		if sel.Span() < planFree.MinSpan {
			continue
		}
		if _, err := s.Proceed(context.Background(), &recordingConsumer{}); err != nil {
			t.Fatalf("d=%v moves=%v selection %v: Proceed() unexpected error: %v", duration, moves, sel, err)
		}
	}
}

func TestSession_ProceedConsumerFailure(t *testing.T) {
	s := loadedSession(t, planFree, 600)
	downstream := errors.New("queue unavailable")

	_, err := s.Proceed(context.Background(), &recordingConsumer{err: downstream})
	if !errors.Is(err, downstream) {
		t.Fatalf("Proceed() error = %v, want wrapped downstream error", err)
	}
	if !errors.Is(err, ErrConsumerFailed) {
		t.Errorf("Proceed() error = %v, want ErrConsumerFailed", err)
	}
	if s.State() != StateSelecting {
		t.Errorf("expected state %s after failed hand-off, got %s", StateSelecting, s.State())
	}

	// retry succeeds
	consumer := &recordingConsumer{}
	if _, err := s.Proceed(context.Background(), consumer); err != nil {
		t.Fatalf("retry Proceed() unexpected error: %v", err)
	}
	if len(consumer.submissions) != 1 {
		t.Errorf("expected one submission on retry, got %d", len(consumer.submissions))
	}
}

func TestSession_ProceedWithoutConsumer(t *testing.T) {
	s := loadedSession(t, planFree, 600)
	if _, err := s.Proceed(context.Background(), nil); err != nil {
		t.Fatalf("Proceed(nil) unexpected error: %v", err)
	}
	if s.State() != StateSubmitted {
		t.Errorf("expected state %s, got %s", StateSubmitted, s.State())
	}
}

func TestSession_ConsumerFunc(t *testing.T) {
	s := loadedSession(t, planFree, 600)

	var got Submission
	consumer := ConsumerFunc(func(ctx context.Context, sub Submission) error {
		got = sub
		return nil
	})
	if _, err := s.Proceed(context.Background(), consumer); err != nil {
		t.Fatalf("Proceed() unexpected error: %v", err)
	}
	if got.Duration != 300 {
		t.Errorf("expected consumer to receive duration 300, got %v", got.Duration)
	}
}

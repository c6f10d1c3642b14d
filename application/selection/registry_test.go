package selection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"segment-selector/domain/selection"
	"segment-selector/infrastructure/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockProber struct {
	media map[string]selection.MediaReference
	err   error
}

func (m *mockProber) Probe(ctx context.Context, source string) (selection.MediaReference, error) {
	if m.err != nil {
		return selection.MediaReference{}, m.err
	}
	media, ok := m.media[source]
	if !ok {
		return selection.MediaReference{}, fmt.Errorf("%w: %s", selection.ErrInvalidMedia, source)
	}
	return media, nil
}

// planTable resolves plans from a fixed map; "" means "free"
type planTable map[string]float64

func (p planTable) ResolvePlan(plan string) (string, selection.Constraints, error) {
	if plan == "" {
		plan = "free"
	}
	maxSpan, ok := p[plan]
	if !ok {
		return "", selection.Constraints{}, fmt.Errorf("plan not found: %q", plan)
	}
	return plan, selection.Constraints{MinSpan: 5, MaxSpan: maxSpan}, nil
}

type recordingConsumer struct {
	mu          sync.Mutex
	submissions []selection.Submission
	err         error
}

func (r *recordingConsumer) Submit(ctx context.Context, sub selection.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.submissions = append(r.submissions, sub)
	return nil
}

var defaultPlans = planTable{"free": 300, "professional": 3600}

func newTestRegistry(consumer selection.Consumer) *Registry {
	prober := &mockProber{media: map[string]selection.MediaReference{
		"talk.mp4":  {Source: "talk.mp4", TotalDuration: 600},
		"short.mp4": {Source: "short.mp4", TotalDuration: 120},
	}}
	var n atomic.Int64
	return NewRegistry(prober, defaultPlans,
		WithConsumer(consumer),
		WithIDGenerator(func() string {
			return fmt.Sprintf("s%d", n.Add(1))
		}),
	)
}

func TestRegistry_Open(t *testing.T) {
	r := newTestRegistry(nil)

	snap, err := r.Open(context.Background(), "talk.mp4", "")
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}

	if snap.ID != "s1" || snap.Plan != "free" {
		t.Errorf("Open() id/plan = %q/%q, want s1/free", snap.ID, snap.Plan)
	}
	if snap.State != selection.StateSelecting {
		t.Errorf("State = %s, want %s", snap.State, selection.StateSelecting)
	}
	if snap.Selection != (selection.Selection{Start: 0, End: 300}) {
		t.Errorf("Selection = %v, want {0 300}", snap.Selection)
	}
	if snap.StartClock != "00:00" || snap.EndClock != "05:00" {
		t.Errorf("clock = %s-%s, want 00:00-05:00", snap.StartClock, snap.EndClock)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_OpenErrors(t *testing.T) {
	r := newTestRegistry(nil)

	if _, err := r.Open(context.Background(), "talk.mp4", "gold"); err == nil {
		t.Error("Open() with unknown plan expected error, got nil")
	}
	if _, err := r.Open(context.Background(), "missing.mp4", "free"); !errors.Is(err, selection.ErrInvalidMedia) {
		t.Errorf("Open() of unknown media error = %v, want ErrInvalidMedia", err)
	}
	if r.Len() != 0 {
		t.Errorf("expected no sessions registered after failures, got %d", r.Len())
	}
}

func TestRegistry_DispatchAndReset(t *testing.T) {
	r := newTestRegistry(nil)
	snap, _ := r.Open(context.Background(), "talk.mp4", "free")

	snap, err := r.Dispatch(snap.ID, selection.Event{Kind: selection.EventMove, Boundary: selection.BoundaryEnd, Time: 700})
	if err != nil {
		t.Fatalf("Dispatch() unexpected error: %v", err)
	}
	if snap.Selection != (selection.Selection{Start: 300, End: 600}) {
		t.Errorf("after move end = %v, want {300 600}", snap.Selection)
	}

	snap, err = r.Dispatch(snap.ID, selection.Event{Kind: selection.EventClick, Fraction: 0.125})
	if err != nil {
		t.Fatalf("Dispatch() unexpected error: %v", err)
	}
	if snap.Selection != (selection.Selection{Start: 75, End: 375}) {
		t.Errorf("after click = %v, want {75 375}", snap.Selection)
	}

	if _, err := r.Dispatch(snap.ID, selection.Event{Kind: "zoom"}); !errors.Is(err, selection.ErrInvalidEvent) {
		t.Errorf("Dispatch(zoom) error = %v, want ErrInvalidEvent", err)
	}

	snap, err = r.Reset(snap.ID)
	if err != nil {
		t.Fatalf("Reset() unexpected error: %v", err)
	}
	if snap.Selection != (selection.Selection{Start: 0, End: 300}) {
		t.Errorf("after reset = %v, want {0 300}", snap.Selection)
	}

	if _, err := r.Dispatch("nope", selection.Event{Kind: selection.EventReset}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Dispatch(unknown) error = %v, want ErrSessionNotFound", err)
	}
}

func TestRegistry_Proceed(t *testing.T) {
	consumer := &recordingConsumer{}
	r := newTestRegistry(consumer)
	openBefore := testutil.ToFloat64(metrics.OpenSessions)
	snap, _ := r.Open(context.Background(), "talk.mp4", "free")

	updates, cancel, err := r.Subscribe(snap.ID)
	if err != nil {
		t.Fatalf("Subscribe() unexpected error: %v", err)
	}
	defer cancel()
	<-updates

	sub, snap, err := r.Proceed(context.Background(), snap.ID)
	if err != nil {
		t.Fatalf("Proceed() unexpected error: %v", err)
	}
	want := selection.Submission{Source: "talk.mp4", Start: 0, End: 300, Duration: 300}
	if sub != want {
		t.Errorf("Proceed() = %+v, want %+v", sub, want)
	}
	if snap.State != selection.StateSubmitted {
		t.Errorf("State = %s, want submitted", snap.State)
	}
	if len(consumer.submissions) != 1 {
		t.Errorf("consumer received %d submissions, want 1", len(consumer.submissions))
	}

	final, ok := <-updates
	if !ok || final.State != selection.StateSubmitted {
		t.Errorf("final streamed snapshot = %+v (open %v), want submitted", final, ok)
	}
	if _, ok := <-updates; ok {
		t.Error("expected subscription channel to be closed after submit")
	}

	if r.Len() != 0 {
		t.Errorf("Len() after submit = %d, want 0", r.Len())
	}
	if got := testutil.ToFloat64(metrics.OpenSessions) - openBefore; got != 0 {
		t.Errorf("open sessions gauge delta = %v, want 0", got)
	}
	if _, err := r.Dispatch(snap.ID, selection.Event{Kind: selection.EventReset}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Dispatch after submit error = %v, want ErrSessionNotFound", err)
	}
	if err := r.Close(snap.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Close() after submit error = %v, want ErrSessionNotFound", err)
	}
}

func TestRegistry_ProceedRejected(t *testing.T) {
	consumer := &recordingConsumer{}
	r := newTestRegistry(consumer)
	snap, _ := r.Open(context.Background(), "talk.mp4", "professional")

	// professional allows the whole 600s; downgrade to free while selecting
	if snap.Selection != (selection.Selection{Start: 0, End: 600}) {
		t.Fatalf("unexpected initial selection %v", snap.Selection)
	}
	n, err := r.ApplyPlanLimits("professional", selection.Constraints{MinSpan: 5, MaxSpan: 300})
	if err != nil || n != 1 {
		t.Fatalf("ApplyPlanLimits() = %d, %v; want 1, nil", n, err)
	}

	_, snap, err = r.Proceed(context.Background(), snap.ID)
	if !errors.Is(err, selection.ErrSelectionTooLong) {
		t.Fatalf("Proceed() error = %v, want ErrSelectionTooLong", err)
	}
	if snap.State != selection.StateSelecting || snap.Selection.End != 600 {
		t.Errorf("expected session to stay selecting with selection intact, got %+v", snap)
	}
	if len(consumer.submissions) != 0 {
		t.Error("expected nothing submitted")
	}
}

func TestRegistry_ProceedConsumerFailure(t *testing.T) {
	down := errors.New("queue unavailable")
	r := newTestRegistry(&recordingConsumer{err: down})
	snap, _ := r.Open(context.Background(), "talk.mp4", "free")

	_, snap, err := r.Proceed(context.Background(), snap.ID)
	if !errors.Is(err, down) {
		t.Fatalf("Proceed() error = %v, want %v", err, down)
	}
	if snap.State != selection.StateSelecting {
		t.Errorf("State = %s, want selecting after failed hand-off", snap.State)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want the session kept open for a retry", r.Len())
	}
}

func TestRegistry_SubscribeAndClose(t *testing.T) {
	r := newTestRegistry(nil)
	snap, _ := r.Open(context.Background(), "talk.mp4", "free")

	updates, cancel, err := r.Subscribe(snap.ID)
	if err != nil {
		t.Fatalf("Subscribe() unexpected error: %v", err)
	}
	defer cancel()

	first := <-updates
	if first.Selection != snap.Selection {
		t.Errorf("first snapshot = %v, want current selection %v", first.Selection, snap.Selection)
	}

	if _, err := r.Dispatch(snap.ID, selection.Event{Kind: selection.EventMove, Boundary: selection.BoundaryEnd, Time: 150}); err != nil {
		t.Fatalf("Dispatch() unexpected error: %v", err)
	}
	next := <-updates
	if next.Selection != (selection.Selection{Start: 0, End: 150}) {
		t.Errorf("streamed snapshot = %v, want {0 150}", next.Selection)
	}

	if err := r.Close(snap.ID); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}
	if _, ok := <-updates; ok {
		t.Error("expected subscription channel to be closed with the session")
	}
	cancel()

	if _, err := r.Get(snap.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() after close error = %v, want ErrSessionNotFound", err)
	}
	if err := r.Close(snap.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Close() error = %v, want ErrSessionNotFound", err)
	}
	if _, _, err := r.Subscribe(snap.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Subscribe() after close error = %v, want ErrSessionNotFound", err)
	}
}

func TestRegistry_UsePlans(t *testing.T) {
	r := newTestRegistry(nil)
	free, _ := r.Open(context.Background(), "talk.mp4", "free")
	pro, _ := r.Open(context.Background(), "talk.mp4", "professional")

	r.UsePlans(planTable{"free": 120, "professional": 3600})

	got, _ := r.Get(free.ID)
	if got.Constraints.MaxSpan != 120 {
		t.Errorf("free session cap = %v, want 120", got.Constraints.MaxSpan)
	}
	got, _ = r.Get(pro.ID)
	if got.Constraints.MaxSpan != 3600 {
		t.Errorf("professional session cap = %v, want 3600", got.Constraints.MaxSpan)
	}

	// the next boundary update heals the free session under the new cap
	snap, err := r.Dispatch(free.ID, selection.Event{Kind: selection.EventMove, Boundary: selection.BoundaryEnd, Time: 300})
	if err != nil {
		t.Fatalf("Dispatch() unexpected error: %v", err)
	}
	if snap.Selection != (selection.Selection{Start: 180, End: 300}) {
		t.Errorf("after downgrade move = %v, want {180 300}", snap.Selection)
	}

	// a plan that disappears keeps the old limits
	r.UsePlans(planTable{"free": 120})
	got, _ = r.Get(pro.ID)
	if got.Constraints.MaxSpan != 3600 {
		t.Errorf("professional session cap = %v, want it kept at 3600", got.Constraints.MaxSpan)
	}
}

func TestRegistry_ApplyPlanLimitsInvalid(t *testing.T) {
	r := newTestRegistry(nil)
	if _, err := r.ApplyPlanLimits("free", selection.Constraints{MinSpan: 5}); !errors.Is(err, selection.ErrInvalidConstraints) {
		t.Errorf("ApplyPlanLimits() error = %v, want ErrInvalidConstraints", err)
	}
}

func TestRegistry_ConcurrentSessions(t *testing.T) {
	r := newTestRegistry(nil)
	var mu sync.Mutex
	ids := make([]string, 0, 8)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := r.Open(context.Background(), "short.mp4", "free")
			if err != nil {
				t.Errorf("Open() unexpected error: %v", err)
				return
			}
			mu.Lock()
			ids = append(ids, snap.ID)
			mu.Unlock()
			for j := 0; j < 50; j++ {
				r.Dispatch(snap.ID, selection.Event{Kind: selection.EventClick, Fraction: float64(j%10) / 10})
			}
		}()
	}
	wg.Wait()

	if r.Len() != 8 {
		t.Errorf("Len() = %d, want 8", r.Len())
	}
	for _, id := range ids {
		snap, err := r.Get(id)
		if err != nil {
			t.Fatalf("Get(%s) unexpected error: %v", id, err)
		}
		if snap.Selection.Start < 0 || snap.Selection.End > 120 || snap.Selection.Start >= snap.Selection.End {
			t.Errorf("session %s selection %v out of bounds", id, snap.Selection)
		}
	}
}

package selection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"segment-selector/domain/selection"
	"segment-selector/domain/video"
	"segment-selector/infrastructure/metrics"
)

// ErrSessionNotFound is returned for unknown or closed session ids
var ErrSessionNotFound = errors.New("session not found")

// subscriberBuffer is how many snapshots a slow subscriber may fall behind
// before updates are dropped for it
const subscriberBuffer = 16

// PlanResolver turns a plan key into its canonical key and constraints
type PlanResolver interface {
	ResolvePlan(plan string) (string, selection.Constraints, error)
}

// Snapshot is a point-in-time view of a session
type Snapshot struct {
	ID          string                   `json:"id"`
	Plan        string                   `json:"plan"`
	State       selection.State          `json:"state"`
	Media       selection.MediaReference `json:"media"`
	Constraints selection.Constraints    `json:"constraints"`
	Selection   selection.Selection      `json:"selection"`
	StartClock  string                   `json:"startClock"`
	EndClock    string                   `json:"endClock"`
	OpenedAt    time.Time                `json:"openedAt"`
}

type entry struct {
	mu          sync.Mutex
	id          string
	plan        string
	opened      time.Time
	session     *selection.Session
	subscribers map[chan Snapshot]struct{}
	closed      bool
}

// snapshot must be called with e.mu held
func (e *entry) snapshot() Snapshot {
	media, _ := e.session.Media()
	sel, _ := e.session.Selection()
	return Snapshot{
		ID:          e.id,
		Plan:        e.plan,
		State:       e.session.State(),
		Media:       media,
		Constraints: e.session.Constraints(),
		Selection:   sel,
		StartClock:  video.FormatClock(sel.Start),
		EndClock:    video.FormatClock(sel.End),
		OpenedAt:    e.opened,
	}
}

// publish must be called with e.mu held
func (e *entry) publish(snap Snapshot) {
	for ch := range e.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Registry holds live selection sessions keyed by id.
// Each session is guarded by its own mutex so that events for different
// sessions never contend
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	plans    PlanResolver

	prober   selection.MetadataProvider
	consumer selection.Consumer
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// Option is a functional option for configuring Registry
type Option func(*Registry)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithConsumer sets where proceeded selections are handed off
func WithConsumer(consumer selection.Consumer) Option {
	return func(r *Registry) {
		r.consumer = consumer
	}
}

// WithIDGenerator replaces uuid-based session ids (for testing)
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) {
		r.newID = fn
	}
}

// NewRegistry creates an empty registry
func NewRegistry(prober selection.MetadataProvider, plans PlanResolver, opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*entry),
		plans:    plans,
		prober:   prober,
		logger:   zap.NewNop(),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open probes source, loads it into a new session under plan and registers it
func (r *Registry) Open(ctx context.Context, source, plan string) (Snapshot, error) {
	r.mu.RLock()
	plans := r.plans
	r.mu.RUnlock()

	plan, constraints, err := plans.ResolvePlan(plan)
	if err != nil {
		return Snapshot{}, err
	}

	session, err := selection.NewSession(constraints)
	if err != nil {
		return Snapshot{}, err
	}

	media, err := r.prober.Probe(ctx, source)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load media: %w", err)
	}
	if _, err := session.Load(media); err != nil {
		return Snapshot{}, err
	}

	e := &entry{
		id:          r.newID(),
		plan:        plan,
		opened:      r.now().UTC(),
		session:     session,
		subscribers: make(map[chan Snapshot]struct{}),
	}

	r.mu.Lock()
	r.sessions[e.id] = e
	r.mu.Unlock()

	metrics.SessionsOpenedTotal.Inc()
	metrics.OpenSessions.Inc()

	e.mu.Lock()
	snap := e.snapshot()
	e.mu.Unlock()

	r.logger.Info("session opened",
		zap.String("session", e.id),
		zap.String("source", media.Source),
		zap.String("plan", plan),
		zap.Float64("duration", media.TotalDuration),
		zap.Float64("max_span", constraints.MaxSpan),
	)
	return snap, nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e, nil
}

// with runs fn with the session locked
func (r *Registry) with(id string, fn func(e *entry) error) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return fn(e)
}

// Get returns the current snapshot of a session
func (r *Registry) Get(id string) (Snapshot, error) {
	var snap Snapshot
	err := r.with(id, func(e *entry) error {
		snap = e.snapshot()
		return nil
	})
	return snap, err
}

// Dispatch applies one event to a session
func (r *Registry) Dispatch(id string, ev selection.Event) (Snapshot, error) {
	var snap Snapshot
	err := r.with(id, func(e *entry) error {
		before, _ := e.session.Selection()
		media, _ := e.session.Media()

		after, err := e.session.Dispatch(ev)
		snap = e.snapshot()
		if err != nil {
			return err
		}

		if b, ok := selection.TargetBoundary(before, ev, media.TotalDuration); ok {
			metrics.RecordBoundaryUpdate(b, before, after)
		}
		r.logger.Debug("selection updated",
			zap.String("session", id),
			zap.String("event", string(ev.Kind)),
			zap.Stringer("before", before),
			zap.Stringer("after", after),
		)
		e.publish(snap)
		return nil
	})
	return snap, err
}

// Reset restores the initial selection of a session
func (r *Registry) Reset(id string) (Snapshot, error) {
	return r.Dispatch(id, selection.Event{Kind: selection.EventReset})
}

// Proceed validates the session's selection and hands it to the consumer.
// A rejected or failed submission leaves the session open. A submitted
// session publishes its final snapshot and is then removed like Close
func (r *Registry) Proceed(ctx context.Context, id string) (selection.Submission, Snapshot, error) {
	var sub selection.Submission
	var snap Snapshot
	err := r.with(id, func(e *entry) error {
		var err error
		sub, err = e.session.Proceed(ctx, r.consumer)
		metrics.RecordSubmission(err)
		snap = e.snapshot()
		if err != nil {
			r.logger.Warn("selection not submitted", zap.String("session", id), zap.Error(err))
			return err
		}

		r.logger.Info("selection submitted",
			zap.String("session", id),
			zap.String("source", sub.Source),
			zap.Float64("start", sub.Start),
			zap.Float64("end", sub.End),
		)
		e.publish(snap)
		return nil
	})
	if err != nil {
		return sub, snap, err
	}

	// a concurrent Close may already have removed it
	if err := r.remove(id, "session submitted"); err != nil {
		r.logger.Debug("submitted session already closed", zap.String("session", id))
	}
	return sub, snap, nil
}

// Close removes a session and ends its subscriptions
func (r *Registry) Close(id string) error {
	return r.remove(id, "session closed")
}

func (r *Registry) remove(id, reason string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	e.mu.Lock()
	e.closed = true
	for ch := range e.subscribers {
		close(ch)
		delete(e.subscribers, ch)
	}
	e.mu.Unlock()

	metrics.OpenSessions.Dec()
	r.logger.Info(reason, zap.String("session", id))
	return nil
}

// Subscribe streams snapshots of a session after every change.
// The channel is closed when the session is closed or cancel is called
func (r *Registry) Subscribe(id string) (<-chan Snapshot, func(), error) {
	ch := make(chan Snapshot, subscriberBuffer)
	var e *entry
	err := r.with(id, func(found *entry) error {
		e = found
		e.subscribers[ch] = struct{}{}
		ch <- e.snapshot()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if _, ok := e.subscribers[ch]; ok {
				delete(e.subscribers, ch)
				close(ch)
			}
		})
	}
	return ch, cancel, nil
}

// ApplyPlanLimits replaces the constraints of every open session on plan.
// It returns how many sessions were updated
func (r *Registry) ApplyPlanLimits(plan string, c selection.Constraints) (int, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	entries := make([]*entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	updated := 0
	for _, e := range entries {
		e.mu.Lock()
		if !e.closed && e.plan == plan && e.session.Constraints() != c {
			if err := e.session.UpdateConstraints(c); err == nil {
				updated++
				e.publish(e.snapshot())
			}
		}
		e.mu.Unlock()
	}

	if updated > 0 {
		r.logger.Info("plan limits applied",
			zap.String("plan", plan),
			zap.Float64("max_span", c.MaxSpan),
			zap.Int("sessions", updated),
		)
	}
	return updated, nil
}

// UsePlans swaps the plan resolver and re-applies limits to open sessions.
// Sessions whose plan no longer resolves keep their current limits
func (r *Registry) UsePlans(plans PlanResolver) {
	r.mu.Lock()
	r.plans = plans
	seen := make(map[string]struct{})
	for _, e := range r.sessions {
		seen[e.plan] = struct{}{}
	}
	r.mu.Unlock()

	for plan := range seen {
		_, c, err := plans.ResolvePlan(plan)
		if err != nil {
			r.logger.Warn("plan no longer configured, keeping limits", zap.String("plan", plan), zap.Error(err))
			continue
		}
		if _, err := r.ApplyPlanLimits(plan, c); err != nil {
			r.logger.Warn("invalid plan limits", zap.String("plan", plan), zap.Error(err))
		}
	}
}

// Len returns the number of open sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

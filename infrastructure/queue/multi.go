package queue

import (
	"context"

	"segment-selector/domain/selection"
)

// MultiConsumer hands each submission to every consumer in order and stops
// at the first error. Delivery is at-least-once: a retry after a later
// consumer failed repeats the earlier ones, so put the cheap, duplicate
// tolerant consumers (the queue) ahead of expensive side effects (clipping)
type MultiConsumer []selection.Consumer

// Submit implements selection.Consumer
func (m MultiConsumer) Submit(ctx context.Context, sub selection.Submission) error {
	for _, c := range m {
		if c == nil {
			continue
		}
		if err := c.Submit(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}

var _ selection.Consumer = MultiConsumer(nil)

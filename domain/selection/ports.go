package selection

import "context"

// MetadataProvider resolves a source into its media metadata.
// This is the only asynchronous dependency of a session; retries and
// timeouts belong to the implementation
type MetadataProvider interface {
	// Probe returns the media reference for source
	Probe(ctx context.Context, source string) (MediaReference, error)
}

// Consumer receives validated selections for processing
type Consumer interface {
	// Submit hands a copy of the validated selection downstream
	Submit(ctx context.Context, sub Submission) error
}

// ConsumerFunc adapts a function to the Consumer interface
type ConsumerFunc func(ctx context.Context, sub Submission) error

// Submit calls f(ctx, sub)
func (f ConsumerFunc) Submit(ctx context.Context, sub Submission) error {
	return f(ctx, sub)
}

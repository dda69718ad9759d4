package form

import (
	"context"
	"errors"
	"time"
)

// Submitter performs the remote half of a submit. Implementations must honour ctx.
type Submitter interface {
	Submit(ctx context.Context, variant Variant, values map[string]string) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, variant Variant, values map[string]string) error

func (f SubmitterFunc) Submit(ctx context.Context, variant Variant, values map[string]string) error {
	return f(ctx, variant, values)
}

var errSimulatedOutage = errors.New("simulated backend outage")

// SimulatedSubmitter stands in for the absent account backend: it waits Latency and succeeds,
// unless Fail reports true for the submitted values.
type SimulatedSubmitter struct {
	Latency time.Duration
	Fail    func(variant Variant, values map[string]string) bool
}

func (s SimulatedSubmitter) Submit(ctx context.Context, variant Variant, values map[string]string) error {
	timer := time.NewTimer(s.Latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	if s.Fail != nil && s.Fail(variant, values) {
		return errSimulatedOutage
	}
	return nil
}

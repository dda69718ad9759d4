package media

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// Detector stands in for the inference backend. One call is one detection run.
type Detector interface {
	Detect(ctx context.Context, m Media) ([]Detection, error)
}

type DetectorFunc func(ctx context.Context, m Media) ([]Detection, error)

func (f DetectorFunc) Detect(ctx context.Context, m Media) ([]Detection, error) {
	return f(ctx, m)
}

// Fixed payloads returned by MockDetector.
var (
	LiveDetections = []Detection{
		{Label: "helmet", Confidence: 0.95, Present: true},
		{Label: "seatbelt", Confidence: 0.88, Present: false},
	}
	UploadDetections = []Detection{
		{Label: "helmet", Confidence: 0.98, Present: true},
		{Label: "seatbelt", Confidence: 0.91, Present: false},
	}
)

var errMockFailure = errors.New("mock detector failure")

// MockDetector waits a per-kind latency and returns the fixed payload for the media kind.
type MockDetector struct {
	LiveLatency   time.Duration
	UploadLatency time.Duration

	mu       sync.Mutex
	failNext int
}

// FailNext makes the next n runs fail.
func (d *MockDetector) FailNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = n
}

func (d *MockDetector) Detect(ctx context.Context, m Media) ([]Detection, error) {
	kind := m.Descriptor().Kind
	latency, payload := d.LiveLatency, LiveDetections
	if kind == KindUpload {
		latency, payload = d.UploadLatency, UploadDetections
	}

	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failNext > 0 {
		d.failNext--
		return nil, errMockFailure
	}
	return slices.Clone(payload), nil
}

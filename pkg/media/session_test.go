package media

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gateDetector blocks each run until a result is pushed on release.
type gateDetector struct {
	started chan struct{}
	release chan error
}

func newGateDetector() *gateDetector {
	return &gateDetector{started: make(chan struct{}, 8), release: make(chan error, 1)}
}

func (g *gateDetector) Detect(ctx context.Context, m Media) ([]Detection, error) {
	g.started <- struct{}{}
	select {
	case err := <-g.release:
		if err != nil {
			return nil, err
		}
		if m.Descriptor().Kind == KindUpload {
			return UploadDetections, nil
		}
		return LiveDetections, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func liveSource(cam *SimulatedCamera, reg *DeviceRegistry) CameraSource {
	return CameraSource{Provider: cam, Registry: reg, Constraints: DefaultConstraints()}
}

func TestLiveReleaseDuringDetection(t *testing.T) {
	cam := NewSimulatedCamera()
	det := newGateDetector()
	s := NewSession(KindLive, WithDetector(det))
	defer s.Close()

	require.NoError(t, s.Acquire(context.Background(), liveSource(cam, NewDeviceRegistry())))
	require.NoError(t, s.Run())
	<-det.started
	assert.Equal(t, DetectionRunning, s.State().Detection)

	require.NoError(t, s.Release())
	waitDone(t, s)

	st := s.State()
	assert.Equal(t, SourceIdle, st.Source)
	assert.Equal(t, DetectionNotStarted, st.Detection)
	assert.Empty(t, st.Results)
	assert.Nil(t, st.Media)
	assert.Zero(t, cam.ActiveStreams())
}

func TestReleaseWinsOverLateCompletion(t *testing.T) {
	det := newGateDetector()
	s := NewSession(KindLive, WithDetector(det))
	defer s.Close()

	require.NoError(t, s.Acquire(context.Background(), liveSource(NewSimulatedCamera(), nil)))
	require.NoError(t, s.Run())
	<-det.started

	// the result is ready at the same instant the source is released
	det.release <- nil
	require.NoError(t, s.Release())
	waitDone(t, s)

	st := s.State()
	assert.Equal(t, DetectionNotStarted, st.Detection)
	assert.Empty(t, st.Results)
}

func TestLiveDetectionCompletes(t *testing.T) {
	det := newGateDetector()
	s := NewSession(KindLive, WithDetector(det))
	defer s.Close()

	require.NoError(t, s.Acquire(context.Background(), liveSource(NewSimulatedCamera(), nil)))
	require.NoError(t, s.Run())
	<-det.started
	det.release <- nil
	waitDone(t, s)

	st := s.State()
	assert.Equal(t, DetectionComplete, st.Detection)
	if diff := cmp.Diff(LiveDetections, st.Results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, st.Report)
}

func TestRunRejectedWhileRunning(t *testing.T) {
	det := newGateDetector()
	s := NewSession(KindLive, WithDetector(det))
	defer s.Close()

	require.NoError(t, s.Acquire(context.Background(), liveSource(NewSimulatedCamera(), nil)))
	require.NoError(t, s.Run())
	<-det.started

	assert.ErrorIs(t, s.Run(), ErrDetectionInProgress)
	assert.Equal(t, DetectionRunning, s.State().Detection)

	det.release <- nil
	waitDone(t, s)
	assert.Len(t, det.started, 0, "second run must not reach the detector")
}

func TestRunRequiresAcquiredSource(t *testing.T) {
	s := NewSession(KindLive)
	defer s.Close()

	assert.ErrorIs(t, s.Run(), ErrNotAcquired)
	assert.Equal(t, DetectionNotStarted, s.State().Detection)
}

func TestDetectionFailureResetsToNotStarted(t *testing.T) {
	det := newGateDetector()
	s := NewSession(KindLive, WithDetector(det))
	defer s.Close()

	require.NoError(t, s.Acquire(context.Background(), liveSource(NewSimulatedCamera(), nil)))
	require.NoError(t, s.Run())
	<-det.started
	det.release <- errors.New("model crashed")
	waitDone(t, s)

	st := s.State()
	assert.Equal(t, DetectionNotStarted, st.Detection)
	assert.Equal(t, SourceAcquired, st.Source)
	assert.NotEmpty(t, st.DetectionError)
	assert.ErrorIs(t, s.DetectionErr(), ErrProcessing)

	// a new run is allowed after a failure
	require.NoError(t, s.Run())
	<-det.started
	det.release <- nil
	waitDone(t, s)
	assert.Equal(t, DetectionComplete, s.State().Detection)
	assert.NoError(t, s.DetectionErr())
}

func TestPermissionDeniedThenRetry(t *testing.T) {
	cam := NewSimulatedCamera()
	cam.SetPermission(false)
	reg := NewDeviceRegistry()
	s := NewSession(KindLive)
	defer s.Close()

	err := s.Acquire(context.Background(), liveSource(cam, reg))
	assert.ErrorIs(t, err, ErrPermissionDenied)
	st := s.State()
	assert.Equal(t, SourceError, st.Source)
	assert.Equal(t, "Camera access denied or unavailable.", st.SourceError)
	_, held := reg.Owner(DefaultDevice)
	assert.False(t, held, "failed request must free the device")

	cam.SetPermission(true)
	require.NoError(t, s.Acquire(context.Background(), liveSource(cam, reg)))
	assert.Equal(t, SourceAcquired, s.State().Source)
	assert.Empty(t, s.State().SourceError)
}

func TestMissingDeviceUnavailable(t *testing.T) {
	s := NewSession(KindLive)
	defer s.Close()

	src := CameraSource{Provider: NewSimulatedCamera("front"), Constraints: Constraints{DeviceID: "rear"}}
	assert.ErrorIs(t, s.Acquire(context.Background(), src), ErrDeviceUnavailable)
	assert.Equal(t, SourceError, s.State().Source)
}

func TestDeviceIsExclusive(t *testing.T) {
	cam := NewSimulatedCamera()
	reg := NewDeviceRegistry()
	first := NewSession(KindLive)
	second := NewSession(KindLive)
	defer first.Close()
	defer second.Close()

	require.NoError(t, first.Acquire(context.Background(), liveSource(cam, reg)))
	assert.ErrorIs(t, second.Acquire(context.Background(), liveSource(cam, reg)), ErrDeviceUnavailable)
	assert.Equal(t, 1, cam.ActiveStreams())

	require.NoError(t, first.Release())
	require.NoError(t, second.Acquire(context.Background(), liveSource(cam, reg)))
	assert.Equal(t, 1, cam.ActiveStreams())
}

func TestReleaseStopsTracks(t *testing.T) {
	cam := NewSimulatedCamera()
	var stream *Stream
	provider := recordingProvider{SimulatedCamera: cam, got: &stream}
	s := NewSession(KindLive)
	defer s.Close()

	src := CameraSource{Provider: provider, Constraints: DefaultConstraints()}
	require.NoError(t, s.Acquire(context.Background(), src))
	require.NotNil(t, stream)
	assert.Equal(t, 1280, stream.Constraints.Width)
	assert.False(t, stream.Tracks[0].Stopped)

	require.NoError(t, s.Release())
	for _, tr := range stream.Tracks {
		assert.True(t, tr.Stopped)
	}
}

type recordingProvider struct {
	*SimulatedCamera
	got **Stream
}

func (p recordingProvider) RequestStream(ctx context.Context, c Constraints) (*Stream, error) {
	s, err := p.SimulatedCamera.RequestStream(ctx, c)
	*p.got = s
	return s, err
}

func TestAcquireWhileAcquiredIsBusy(t *testing.T) {
	s := NewSession(KindLive)
	defer s.Close()

	require.NoError(t, s.Acquire(context.Background(), liveSource(NewSimulatedCamera(), nil)))
	assert.ErrorIs(t, s.Acquire(context.Background(), liveSource(NewSimulatedCamera(), nil)), ErrSourceBusy)
}

// blockingSource holds Open until unblocked, to release mid-acquisition.
type blockingSource struct {
	entered chan struct{}
	unblock chan struct{}
	closed  chan struct{}
}

func (blockingSource) Kind() Kind { return KindLive }

func (b blockingSource) Open(ctx context.Context) (Media, error) {
	close(b.entered)
	<-b.unblock
	return closeSpy{closed: b.closed}, nil
}

type closeSpy struct{ closed chan struct{} }

func (closeSpy) Descriptor() Descriptor { return Descriptor{ID: "spy", Kind: KindLive} }

func (c closeSpy) Close() error {
	close(c.closed)
	return nil
}

func TestReleaseDuringAcquisitionDiscardsMedia(t *testing.T) {
	src := blockingSource{entered: make(chan struct{}), unblock: make(chan struct{}), closed: make(chan struct{})}
	s := NewSession(KindLive)
	defer s.Close()

	errc := make(chan error, 1)
	go func() { errc <- s.Acquire(context.Background(), src) }()
	<-src.entered
	assert.Equal(t, SourceAcquiring, s.State().Source)

	require.NoError(t, s.Release())
	close(src.unblock)

	assert.ErrorIs(t, <-errc, ErrAborted)
	<-src.closed
	assert.Equal(t, SourceIdle, s.State().Source)
}

func TestWrongSourceKind(t *testing.T) {
	s := NewSession(KindUpload)
	defer s.Close()

	err := s.Acquire(context.Background(), liveSource(NewSimulatedCamera(), nil))
	assert.ErrorIs(t, err, ErrWrongSource)
	assert.Equal(t, SourceIdle, s.State().Source)
}

func TestClosedSessionRejectsCalls(t *testing.T) {
	s := NewSession(KindUpload)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Acquire(context.Background(), FileSource{File: &FileSelection{Name: "a.png"}}), ErrSessionClosed)
	assert.ErrorIs(t, s.Run(), ErrSessionClosed)
}

func TestObserverReceivesSnapshots(t *testing.T) {
	var seen []SourceState
	s := NewSession(KindUpload, WithObserver(func(st State) { seen = append(seen, st.Source) }))
	defer s.Close()

	require.NoError(t, s.Acquire(context.Background(), FileSource{File: &FileSelection{Name: "a.png"}}))
	require.NoError(t, s.Release())

	assert.Equal(t, []SourceState{SourceAcquiring, SourceAcquired, SourceIdle}, seen)
}

// Running implies Acquired after any sequence of operations.
func TestRunningImpliesAcquired(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cam := NewSimulatedCamera()
	reg := NewDeviceRegistry()
	var calls atomic.Int32
	det := DetectorFunc(func(ctx context.Context, _ Media) ([]Detection, error) {
		if calls.Add(1)%4 == 0 {
			return nil, errors.New("flaky")
		}
		return LiveDetections, nil
	})
	s := NewSession(KindLive, WithDetector(det))
	defer s.Close()

	check := func(op string) {
		st := s.State()
		if st.Detection == DetectionRunning && st.Source != SourceAcquired {
			t.Fatalf("after %s: detection running with source %s", op, st.Source)
		}
		if st.Source != SourceAcquired && len(st.Results) > 0 {
			t.Fatalf("after %s: results kept without a source", op)
		}
	}

	for i := 0; i < 300; i++ {
		switch rng.Intn(3) {
		case 0:
			_ = s.Acquire(context.Background(), liveSource(cam, reg))
			check("acquire")
		case 1:
			_ = s.Release()
			check("release")
		case 2:
			_ = s.Run()
			check("run")
		}
	}
	waitDone(t, s)
	check("settle")
}

func TestSlowObserverEndsOnLatestState(t *testing.T) {
	instant := DetectorFunc(func(context.Context, Media) ([]Detection, error) {
		return LiveDetections, nil
	})
	for i := 0; i < 20; i++ {
		var mu sync.Mutex
		var seen []State
		s := NewSession(KindLive, WithDetector(instant), WithObserver(func(st State) {
			time.Sleep(time.Millisecond)
			mu.Lock()
			seen = append(seen, st)
			mu.Unlock()
		}))

		require.NoError(t, s.Acquire(context.Background(), liveSource(NewSimulatedCamera(), nil)))
		require.NoError(t, s.Run())
		waitDone(t, s)

		mu.Lock()
		for j, st := range seen {
			assert.Equal(t, uint64(j+1), st.Seq)
		}
		last := seen[len(seen)-1]
		mu.Unlock()

		assert.Equal(t, DetectionComplete, last.Detection)
		assert.Equal(t, s.State().Seq, last.Seq)
		require.NoError(t, s.Close())
	}
}

package media

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Option func(*Session)

func WithDetector(d Detector) Option {
	return func(s *Session) { s.detector = d }
}

// WithObserver registers a callback receiving a snapshot after every state change.
// Snapshots are delivered one at a time in Seq order, outside the session lock. The
// callback must not call back into the session.
func WithObserver(fn func(State)) Option {
	return func(s *Session) { s.onChange = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// Session owns at most one media handle and runs at most one detection at a time.
type Session struct {
	mu sync.Mutex

	id       string
	kind     Kind
	detector Detector
	onChange func(State)
	logger   *zap.Logger

	source         SourceState
	sourceErr      string
	detection      DetectionState
	detectionErr   error
	media          Media
	results        []Detection
	report         *Report
	cancelDetector context.CancelFunc

	// seq numbers snapshots under mu; delivered is the last one handed to onChange.
	seq        uint64
	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	delivered  uint64

	// gen is bumped by Run, Release and Close; async completions carrying an older
	// value are dropped.
	gen    uint64
	closed bool
	wg     sync.WaitGroup
}

func NewSession(kind Kind, opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		kind:      kind,
		detector:  &MockDetector{LiveLatency: 2 * time.Second, UploadLatency: 3 * time.Second},
		logger:    zap.NewNop(),
		source:    SourceIdle,
		detection: DetectionNotStarted,
	}
	s.notifyCond = sync.NewCond(&s.notifyMu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Kind() Kind { return s.kind }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// DetectionErr returns the error of the last failed run, if any.
func (s *Session) DetectionErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detectionErr
}

// Acquire opens src and takes ownership of the resulting media. It blocks for as long as
// the source does (e.g. while a permission prompt is pending).
func (s *Session) Acquire(ctx context.Context, src Source) error {
	if src.Kind() != s.kind {
		return fmt.Errorf("%w: %s source for %s session", ErrWrongSource, src.Kind(), s.kind)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.source == SourceAcquiring || s.source == SourceAcquired {
		s.mu.Unlock()
		return ErrSourceBusy
	}
	s.source = SourceAcquiring
	s.sourceErr = ""
	gen := s.gen
	snap := s.changed()
	s.mu.Unlock()
	s.notify(snap)

	m, err := src.Open(ctx)

	s.mu.Lock()
	if s.closed || gen != s.gen || s.source != SourceAcquiring {
		s.mu.Unlock()
		if m != nil {
			_ = m.Close()
		}
		s.logger.Debug("acquisition dropped after release", zap.String("session", s.id))
		return ErrAborted
	}

	if err != nil {
		if errors.Is(err, ErrUnsupportedMediaType) || errors.Is(err, ErrNoSelection) {
			s.source = SourceIdle
			s.sourceErr = err.Error()
		} else {
			s.source = SourceError
			s.sourceErr = describeAcquireError(err)
		}
		snap = s.changed()
		s.mu.Unlock()

		s.logger.Warn("media acquisition failed", zap.String("session", s.id), zap.Error(err))
		s.notify(snap)
		return err
	}

	s.media = m
	s.source = SourceAcquired
	s.results = nil
	s.report = nil
	s.detection = DetectionNotStarted
	snap = s.changed()
	s.mu.Unlock()

	s.logger.Info("media acquired", zap.String("session", s.id), zap.String("media", m.Descriptor().ID))
	s.notify(snap)
	return nil
}

// Run starts a detection on the acquired media. Completion is reported through the
// observer and State.
func (s *Session) Run() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.source != SourceAcquired {
		s.mu.Unlock()
		return ErrNotAcquired
	}
	if s.detection == DetectionRunning {
		s.mu.Unlock()
		return ErrDetectionInProgress
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelDetector = cancel
	s.detection = DetectionRunning
	s.detectionErr = nil
	s.results = nil
	s.report = nil
	s.gen++
	gen := s.gen
	m := s.media
	s.wg.Add(1)
	go s.runDetection(ctx, cancel, gen, m)

	snap := s.changed()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

func (s *Session) runDetection(ctx context.Context, cancel context.CancelFunc, gen uint64, m Media) {
	defer s.wg.Done()
	defer cancel()

	start := time.Now()
	results, err := s.detector.Detect(ctx, m)
	elapsed := time.Since(start)

	s.mu.Lock()
	if s.closed || gen != s.gen || s.detection != DetectionRunning {
		s.mu.Unlock()
		s.logger.Debug("stale detection completion dropped", zap.String("session", s.id))
		return
	}
	s.cancelDetector = nil

	if err != nil {
		s.detection = DetectionNotStarted
		s.detectionErr = fmt.Errorf("%w: %v", ErrProcessing, err)
		snap := s.changed()
		s.mu.Unlock()

		s.logger.Warn("detection failed", zap.String("session", s.id), zap.Error(err))
		s.notify(snap)
		return
	}

	s.detection = DetectionComplete
	s.results = slices.Clone(results)
	if d := m.Descriptor(); d.Kind == KindUpload {
		s.report = &Report{
			Filename:       d.Name,
			Category:       Category(d.MediaType),
			ProcessingTime: fmt.Sprintf("%.1f seconds", elapsed.Seconds()),
		}
	}
	snap := s.changed()
	s.mu.Unlock()

	s.logger.Info("detection complete", zap.String("session", s.id), zap.Int("results", len(results)), zap.Duration("elapsed", elapsed))
	s.notify(snap)
}

// Release frees the owned media, cancels an in-flight detection and clears results.
// It is a no-op on an idle session.
func (s *Session) Release() error {
	s.mu.Lock()
	if s.source == SourceIdle && s.media == nil && s.detection == DetectionNotStarted {
		s.mu.Unlock()
		return nil
	}

	m := s.media
	s.media = nil
	if s.cancelDetector != nil {
		s.cancelDetector()
		s.cancelDetector = nil
	}
	s.gen++
	s.source = SourceIdle
	s.sourceErr = ""
	s.detection = DetectionNotStarted
	s.detectionErr = nil
	s.results = nil
	s.report = nil
	snap := s.changed()
	s.mu.Unlock()

	var err error
	if m != nil {
		err = m.Close()
	}
	s.logger.Info("media released", zap.String("session", s.id))
	s.notify(snap)
	return err
}

// Close releases the session for good; later calls fail with ErrSessionClosed.
func (s *Session) Close() error {
	err := s.Release()

	s.mu.Lock()
	s.closed = true
	s.gen++
	s.mu.Unlock()
	return err
}

// Wait blocks until no detection is in flight or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// changed numbers a new snapshot. Callers hold mu and must pass the result to notify.
func (s *Session) changed() State {
	s.seq++
	return s.snapshot()
}

// notify waits for every earlier snapshot to be delivered, so a late completion can never
// overtake the change that preceded it.
func (s *Session) notify(st State) {
	if s.onChange == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	for s.delivered+1 != st.Seq {
		s.notifyCond.Wait()
	}
	s.onChange(st)
	s.delivered = st.Seq
	s.notifyCond.Broadcast()
}

func (s *Session) snapshot() State {
	st := State{
		Seq:         s.seq,
		ID:          s.id,
		Kind:        s.kind,
		Source:      s.source,
		SourceError: s.sourceErr,
		Detection:   s.detection,
		Results:     []Detection{},
	}
	if s.detectionErr != nil {
		st.DetectionError = s.detectionErr.Error()
	}
	if s.media != nil {
		d := s.media.Descriptor()
		st.Media = &d
	}
	if len(s.results) > 0 {
		st.Results = slices.Clone(s.results)
	}
	if s.report != nil {
		r := *s.report
		st.Report = &r
	}
	return st
}

func describeAcquireError(err error) string {
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrDeviceUnavailable) {
		return "Camera access denied or unavailable."
	}
	return err.Error()
}

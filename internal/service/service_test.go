package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"helmet-compliance-be/internal/config"
	"helmet-compliance-be/internal/dto"
	"helmet-compliance-be/internal/entity"
	"helmet-compliance-be/internal/pkg/logger"
	"helmet-compliance-be/internal/repository/memory"
	"helmet-compliance-be/pkg/events"
	"helmet-compliance-be/pkg/form"
	"helmet-compliance-be/pkg/media"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newFormService(t *testing.T, submitter form.Submitter) (IFormService, *recordingPublisher) {
	t.Helper()
	repo := memory.NewFormSessionRepository(time.Minute, 0, logger.NewNopLogger())
	t.Cleanup(repo.Flush)
	pub := &recordingPublisher{}
	return NewFormService(repo, submitter, pub, time.Minute, logger.NewNopLogger()), pub
}

var instantSubmitter = form.SubmitterFunc(func(context.Context, form.Variant, map[string]string) error { return nil })

func TestFormServiceSubmitPublishesCompletion(t *testing.T) {
	svc, pub := newFormService(t, instantSubmitter)
	ctx := context.Background()

	res, err := svc.Open(ctx, &dto.OpenFormRequest{Variant: "login", Prefill: map[string]string{"email": "rider@example.com"}})
	require.NoError(t, err)
	assert.Equal(t, "rider@example.com", res.Fields[form.FieldEmail])

	_, err = svc.SetField(ctx, res.Id, form.FieldPassword, "pw")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, res.Id)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(pub.ofType(events.TypeFormSubmitted)) == 1 }, time.Second, 5*time.Millisecond)
	submitted := pub.ofType(events.TypeFormSubmitted)[0]
	assert.Equal(t, res.Id, submitted.Payload()["session_id"])
	assert.Equal(t, form.Navigation{Target: form.RouteDashboard, Email: "rider@example.com"}, submitted.Payload()["navigation"])

	got, err := svc.Get(ctx, res.Id)
	require.NoError(t, err)
	assert.Equal(t, form.StatusSucceeded, got.Status)
	require.NotNil(t, got.Navigation)
}

func TestFormServiceStateEventsOmitSecrets(t *testing.T) {
	svc, pub := newFormService(t, instantSubmitter)
	ctx := context.Background()

	res, err := svc.Open(ctx, &dto.OpenFormRequest{Variant: "signup"})
	require.NoError(t, err)
	_, err = svc.SetField(ctx, res.Id, form.FieldPassword, "hunter2")
	require.NoError(t, err)

	states := pub.ofType(events.TypeSessionState)
	require.Len(t, states, 1)
	fields := states[0].Payload()["fields"].(map[string]string)
	assert.NotContains(t, fields, form.FieldPassword)
	assert.NotContains(t, fields, form.FieldConfirmPassword)
	assert.Contains(t, fields, form.FieldEmail)
}

func TestFormServiceRemoteFailureEventFiresOnce(t *testing.T) {
	outage := form.SubmitterFunc(func(context.Context, form.Variant, map[string]string) error {
		return errors.New("backend down")
	})
	svc, pub := newFormService(t, outage)
	ctx := context.Background()

	res, err := svc.Open(ctx, &dto.OpenFormRequest{Variant: "login"})
	require.NoError(t, err)
	_, err = svc.SetField(ctx, res.Id, form.FieldEmail, "a@b.co")
	require.NoError(t, err)
	_, err = svc.SetField(ctx, res.Id, form.FieldPassword, "pw")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, res.Id)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(pub.ofType(events.TypeFormSubmitFailed)) == 1 }, time.Second, 5*time.Millisecond)

	// Blurring keeps the form Failed; it must not report the failure again.
	_, err = svc.BlurField(ctx, res.Id, form.FieldEmail)
	require.NoError(t, err)
	assert.Len(t, pub.ofType(events.TypeFormSubmitFailed), 1)
}

func TestFormServiceOpenFromSession(t *testing.T) {
	svc, _ := newFormService(t, instantSubmitter)
	ctx := context.Background()

	_, err := svc.Open(ctx, &dto.OpenFormRequest{Variant: "login", FromSession: "missing"})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	signup, err := svc.Open(ctx, &dto.OpenFormRequest{Variant: "signup"})
	require.NoError(t, err)

	_, err = svc.Open(ctx, &dto.OpenFormRequest{Variant: "signup", FromSession: signup.Id})
	assert.ErrorIs(t, err, ErrInvalidPrefillSource)

	_, err = svc.Open(ctx, &dto.OpenFormRequest{Variant: "login", FromSession: signup.Id})
	assert.ErrorIs(t, err, ErrNoNavigation)

	_, err = svc.Open(ctx, &dto.OpenFormRequest{Variant: "reset"})
	assert.ErrorIs(t, err, ErrInvalidVariant)
}

func TestFormServiceOpenFromCompletedLoginRejected(t *testing.T) {
	svc, pub := newFormService(t, instantSubmitter)
	ctx := context.Background()

	login, err := svc.Open(ctx, &dto.OpenFormRequest{Variant: "login"})
	require.NoError(t, err)
	_, err = svc.SetField(ctx, login.Id, form.FieldEmail, "rider@example.com")
	require.NoError(t, err)
	_, err = svc.SetField(ctx, login.Id, form.FieldPassword, "pw")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, login.Id)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(pub.ofType(events.TypeFormSubmitted)) == 1 }, time.Second, 5*time.Millisecond)

	_, err = svc.Open(ctx, &dto.OpenFormRequest{Variant: "login", FromSession: login.Id})
	assert.ErrorIs(t, err, ErrInvalidPrefillSource)
}

func TestFormServiceClose(t *testing.T) {
	svc, _ := newFormService(t, instantSubmitter)
	ctx := context.Background()

	res, err := svc.Open(ctx, &dto.OpenFormRequest{Variant: "login"})
	require.NoError(t, err)
	require.NoError(t, svc.Close(ctx, res.Id))

	_, err = svc.Get(ctx, res.Id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.Close(ctx, res.Id), ErrSessionNotFound)
}

func newDetectionService(t *testing.T) (IDetectionService, *recordingPublisher, *media.SimulatedCamera) {
	t.Helper()
	repo := memory.NewDetectionSessionRepository(time.Minute, 0, logger.NewNopLogger())
	t.Cleanup(repo.Flush)
	pub := &recordingPublisher{}
	camera := media.NewSimulatedCamera()
	detector := &media.MockDetector{LiveLatency: 5 * time.Millisecond, UploadLatency: 5 * time.Millisecond}
	return NewDetectionService(repo, camera, media.NewDeviceRegistry(), detector, pub, logger.NewNopLogger()), pub, camera
}

func TestDetectionServiceLifecycleEvents(t *testing.T) {
	svc, pub, camera := newDetectionService(t)
	ctx := context.Background()

	res, err := svc.Open(ctx, &dto.OpenDetectionRequest{Kind: "live"})
	require.NoError(t, err)

	acquired, err := svc.AcquireCamera(ctx, res.Id, &dto.CameraRequest{})
	require.NoError(t, err)
	assert.Equal(t, media.DefaultDevice, acquired.State.Media.DeviceID)
	assert.Equal(t, 1, camera.ActiveStreams())

	_, err = svc.Run(ctx, res.Id)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(pub.ofType(events.TypeDetectionCompleted)) == 1 }, time.Second, 5*time.Millisecond)

	_, err = svc.Release(ctx, res.Id)
	require.NoError(t, err)
	assert.Equal(t, 0, camera.ActiveStreams())

	released := pub.ofType(events.TypeMediaReleased)
	require.Len(t, released, 1)
	assert.Equal(t, acquired.State.Media.ID, released[0].Payload()["media_id"])
}

// slowPublisher delays every publish, like a subscriber acking late.
type slowPublisher struct {
	recordingPublisher
	delay time.Duration
}

func (p *slowPublisher) Publish(ctx context.Context, e events.Event) error {
	time.Sleep(p.delay)
	return p.recordingPublisher.Publish(ctx, e)
}

func TestDetectionServiceStateEventsFollowCallOrder(t *testing.T) {
	repo := memory.NewDetectionSessionRepository(time.Minute, 0, logger.NewNopLogger())
	t.Cleanup(repo.Flush)
	pub := &slowPublisher{delay: 2 * time.Millisecond}
	instant := media.DetectorFunc(func(context.Context, media.Media) ([]media.Detection, error) {
		return media.LiveDetections, nil
	})
	svc := NewDetectionService(repo, media.NewSimulatedCamera(), media.NewDeviceRegistry(), instant, pub, logger.NewNopLogger())
	ctx := context.Background()

	res, err := svc.Open(ctx, &dto.OpenDetectionRequest{Kind: "live"})
	require.NoError(t, err)
	_, err = svc.AcquireCamera(ctx, res.Id, nil)
	require.NoError(t, err)
	_, err = svc.Run(ctx, res.Id)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(pub.ofType(events.TypeDetectionCompleted)) == 1 }, time.Second, 5*time.Millisecond)

	states := pub.ofType(events.TypeSessionState)
	require.NotEmpty(t, states)
	var prev uint64
	for _, st := range states {
		seq := st.Payload()["seq"].(uint64)
		assert.Greater(t, seq, prev)
		prev = seq
	}
	assert.Equal(t, media.DetectionComplete, states[len(states)-1].Payload()["detection"])
}

func TestDetectionServiceErrors(t *testing.T) {
	svc, _, camera := newDetectionService(t)
	ctx := context.Background()

	_, err := svc.Open(ctx, &dto.OpenDetectionRequest{Kind: "thermal"})
	assert.ErrorIs(t, err, ErrInvalidKind)

	_, err = svc.Run(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	upload, err := svc.Open(ctx, &dto.OpenDetectionRequest{Kind: "upload"})
	require.NoError(t, err)
	res, err := svc.AcquireCamera(ctx, upload.Id, nil)
	assert.ErrorIs(t, err, media.ErrWrongSource)
	assert.Equal(t, media.SourceIdle, res.State.Source)

	res, err = svc.AcquireUpload(ctx, upload.Id, &media.FileSelection{Name: "notes.txt", ContentType: "text/plain"})
	assert.ErrorIs(t, err, media.ErrUnsupportedMediaType)
	assert.Equal(t, media.SourceIdle, res.State.Source)

	live, err := svc.Open(ctx, &dto.OpenDetectionRequest{Kind: "live"})
	require.NoError(t, err)
	camera.SetPermission(false)
	res, err = svc.AcquireCamera(ctx, live.Id, nil)
	assert.ErrorIs(t, err, media.ErrPermissionDenied)
	assert.Equal(t, media.SourceError, res.State.Source)

	res, err = svc.AcquireCamera(ctx, live.Id, &dto.CameraRequest{DeviceId: "rear"})
	assert.ErrorIs(t, err, media.ErrPermissionDenied)
	assert.Equal(t, media.SourceError, res.State.Source)
}

func TestDashboardService(t *testing.T) {
	theme := config.ThemeConfig{DarkMode: true}
	svc := NewDashboardService(time.Millisecond, theme)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1247, stats.TotalDetections)
	assert.Equal(t, 89, stats.Violations)
	assert.InDelta(t, 92.8, stats.ComplianceRate, 1e-9)
	assert.Equal(t, theme, svc.GetTheme(context.Background()))

	slow := NewDashboardService(time.Hour, theme)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = slow.GetStats(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type deliveryRecorder struct {
	mu   sync.Mutex
	sent map[string][][]byte
}

func (d *deliveryRecorder) Send(sessionID string, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sent == nil {
		d.sent = make(map[string][][]byte)
	}
	d.sent[sessionID] = append(d.sent[sessionID], data)
}

func (d *deliveryRecorder) count(sessionID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent[sessionID])
}

type failingSink struct{ calls int }

func (s *failingSink) Publish(context.Context, events.Event) error {
	s.calls++
	return errors.New("no broker")
}

func TestEventBusDeliversToSessionWatchers(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{BlockPublishUntilSubscriberAck: true}, watermill.NopLogger{})
	defer pubSub.Close()

	delivery := &deliveryRecorder{}
	consumer := NewConsumerService(pubSub, "test.events", delivery, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, consumer.Consume(ctx))

	sink := &failingSink{}
	publisher := NewPublisherService("test.events", pubSub, sink, logger.NewNopLogger())

	require.NoError(t, publisher.Publish(ctx, events.New(events.TypeSessionState, map[string]interface{}{"session_id": "s1"})))
	require.NoError(t, publisher.Publish(ctx, events.New(events.TypeDetectionCompleted, map[string]interface{}{"session_id": "s1"})))
	require.NoError(t, publisher.Publish(ctx, events.New(events.TypeFormSubmitted, map[string]interface{}{})))

	assert.Eventually(t, func() bool { return delivery.count("s1") == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, sink.calls, "state snapshots stay in-process")

	delivery.mu.Lock()
	var msg struct {
		Type string           `json:"type"`
		Data dto.EventMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(delivery.sent["s1"][0], &msg))
	delivery.mu.Unlock()
	assert.Equal(t, events.TypeSessionState, msg.Type)
	assert.Equal(t, "s1", msg.Data.SessionId)
}

func TestRepositoryEvictionClosesDetectionSession(t *testing.T) {
	repo := memory.NewDetectionSessionRepository(time.Minute, 0, logger.NewNopLogger())
	session := media.NewSession(media.KindLive)
	repo.Save(session.ID(), &entity.DetectionSession{Id: session.ID(), Session: session})
	repo.Delete(session.ID())

	assert.ErrorIs(t, session.Run(), media.ErrSessionClosed)
}

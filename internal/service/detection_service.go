// FILE: internal/service/detection_service.go
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"helmet-compliance-be/internal/dto"
	"helmet-compliance-be/internal/entity"
	"helmet-compliance-be/internal/mapper"
	"helmet-compliance-be/internal/pkg/logger"
	"helmet-compliance-be/internal/repository/memory"
	"helmet-compliance-be/pkg/events"
	"helmet-compliance-be/pkg/media"

	"github.com/google/uuid"
)

type IDetectionService interface {
	Open(ctx context.Context, req *dto.OpenDetectionRequest) (*dto.DetectionSessionResponse, error)
	Get(ctx context.Context, id string) (*dto.DetectionSessionResponse, error)
	AcquireCamera(ctx context.Context, id string, req *dto.CameraRequest) (*dto.DetectionSessionResponse, error)
	AcquireUpload(ctx context.Context, id string, file *media.FileSelection) (*dto.DetectionSessionResponse, error)
	Run(ctx context.Context, id string) (*dto.DetectionSessionResponse, error)
	Release(ctx context.Context, id string) (*dto.DetectionSessionResponse, error)
	Close(ctx context.Context, id string) error
}

type detectionService struct {
	repo      *memory.SessionRepository[*entity.DetectionSession]
	camera    media.CameraProvider
	registry  *media.DeviceRegistry
	detector  media.Detector
	publisher IPublisherService
	mapper    *mapper.SessionMapper
	logger    logger.ILogger
}

func NewDetectionService(
	repo *memory.SessionRepository[*entity.DetectionSession],
	camera media.CameraProvider,
	registry *media.DeviceRegistry,
	detector media.Detector,
	publisher IPublisherService,
	log logger.ILogger,
) IDetectionService {
	return &detectionService{
		repo:      repo,
		camera:    camera,
		registry:  registry,
		detector:  detector,
		publisher: publisher,
		mapper:    mapper.NewSessionMapper(),
		logger:    log,
	}
}

func (s *detectionService) Open(ctx context.Context, req *dto.OpenDetectionRequest) (*dto.DetectionSessionResponse, error) {
	kind := media.Kind(req.Kind)
	if kind != media.KindLive && kind != media.KindUpload {
		return nil, ErrInvalidKind
	}

	id := uuid.NewString()
	session := media.NewSession(kind,
		media.WithID(id),
		media.WithDetector(s.detector),
		media.WithLogger(s.logger.Named("MEDIA")),
		media.WithObserver(s.observe(id)),
	)

	sess := &entity.DetectionSession{Id: session.ID(), Session: session, CreatedAt: time.Now()}
	s.repo.Save(sess.Id, sess)

	s.logger.Info("DetectionService", "Detection session opened", map[string]interface{}{
		"session_id": sess.Id,
		"kind":       kind,
	})
	return s.mapper.ToDetectionResponse(sess, session.State()), nil
}

func (s *detectionService) Get(ctx context.Context, id string) (*dto.DetectionSessionResponse, error) {
	sess, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return s.mapper.ToDetectionResponse(sess, sess.Session.State()), nil
}

func (s *detectionService) AcquireCamera(ctx context.Context, id string, req *dto.CameraRequest) (*dto.DetectionSessionResponse, error) {
	sess, err := s.find(id)
	if err != nil {
		return nil, err
	}

	constraints := media.DefaultConstraints()
	if req != nil && req.DeviceId != "" {
		constraints.DeviceID = req.DeviceId
	}
	src := media.CameraSource{Provider: s.camera, Registry: s.registry, Constraints: constraints}

	err = sess.Session.Acquire(ctx, src)
	if err != nil {
		s.logger.Warn("DetectionService", "Camera acquisition failed", map[string]interface{}{
			"session_id": id,
			"device_id":  constraints.DeviceID,
			"error":      err.Error(),
		})
	}
	return s.mapper.ToDetectionResponse(sess, sess.Session.State()), err
}

func (s *detectionService) AcquireUpload(ctx context.Context, id string, file *media.FileSelection) (*dto.DetectionSessionResponse, error) {
	sess, err := s.find(id)
	if err != nil {
		return nil, err
	}

	err = sess.Session.Acquire(ctx, media.FileSource{File: file})
	if err != nil && !errors.Is(err, media.ErrUnsupportedMediaType) {
		s.logger.Warn("DetectionService", "Upload acquisition failed", map[string]interface{}{
			"session_id": id,
			"error":      err.Error(),
		})
	}
	return s.mapper.ToDetectionResponse(sess, sess.Session.State()), err
}

func (s *detectionService) Run(ctx context.Context, id string) (*dto.DetectionSessionResponse, error) {
	sess, err := s.find(id)
	if err != nil {
		return nil, err
	}
	err = sess.Session.Run()
	return s.mapper.ToDetectionResponse(sess, sess.Session.State()), err
}

func (s *detectionService) Release(ctx context.Context, id string) (*dto.DetectionSessionResponse, error) {
	sess, err := s.find(id)
	if err != nil {
		return nil, err
	}
	err = sess.Session.Release()
	return s.mapper.ToDetectionResponse(sess, sess.Session.State()), err
}

func (s *detectionService) Close(ctx context.Context, id string) error {
	if _, err := s.find(id); err != nil {
		return err
	}
	s.repo.Delete(id)
	return nil
}

func (s *detectionService) find(id string) (*entity.DetectionSession, error) {
	sess, ok := s.repo.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.repo.Touch(id)
	return sess, nil
}

// observe streams every snapshot and derives lifecycle events from detection and source
// transitions.
func (s *detectionService) observe(id string) func(media.State) {
	var mu sync.Mutex
	last := media.State{Source: media.SourceIdle, Detection: media.DetectionNotStarted}

	return func(st media.State) {
		mu.Lock()
		prev := last
		last = st
		mu.Unlock()

		data := s.mapper.ToDetectionEventData(st)
		data["session_id"] = id
		s.publish(events.New(events.TypeSessionState, data))

		switch {
		case prev.Detection == media.DetectionRunning && st.Detection == media.DetectionComplete:
			s.publish(events.New(events.TypeDetectionCompleted, map[string]interface{}{
				"session_id": id,
				"kind":       st.Kind,
				"results":    st.Results,
				"report":     st.Report,
			}))
		case prev.Detection == media.DetectionRunning && st.Detection == media.DetectionNotStarted && st.DetectionError != "":
			s.publish(events.New(events.TypeDetectionFailed, map[string]interface{}{
				"session_id": id,
				"kind":       st.Kind,
				"error":      st.DetectionError,
			}))
		}

		if prev.Media != nil && st.Media == nil {
			s.publish(events.New(events.TypeMediaReleased, map[string]interface{}{
				"session_id": id,
				"kind":       st.Kind,
				"media_id":   prev.Media.ID,
			}))
		}
	}
}

func (s *detectionService) publish(evt events.BaseEvent) {
	if err := s.publisher.Publish(context.Background(), evt); err != nil {
		s.logger.Warn("DetectionService", "Failed to publish event", map[string]interface{}{
			"type":  evt.EventType(),
			"error": err.Error(),
		})
	}
}

// FILE: internal/service/form_service.go
package service

import (
	"context"
	"sync"
	"time"

	"helmet-compliance-be/internal/dto"
	"helmet-compliance-be/internal/entity"
	"helmet-compliance-be/internal/mapper"
	"helmet-compliance-be/internal/pkg/logger"
	"helmet-compliance-be/internal/repository/memory"
	"helmet-compliance-be/pkg/events"
	"helmet-compliance-be/pkg/form"

	"github.com/google/uuid"
)

type IFormService interface {
	Open(ctx context.Context, req *dto.OpenFormRequest) (*dto.FormSessionResponse, error)
	Get(ctx context.Context, id string) (*dto.FormSessionResponse, error)
	SetField(ctx context.Context, id, name, value string) (*dto.FormSessionResponse, error)
	BlurField(ctx context.Context, id, name string) (*dto.FormSessionResponse, error)
	Submit(ctx context.Context, id string) (*dto.FormSessionResponse, error)
	Close(ctx context.Context, id string) error
}

type formService struct {
	repo      *memory.SessionRepository[*entity.FormSession]
	submitter form.Submitter
	publisher IPublisherService
	mapper    *mapper.SessionMapper
	noticeTTL time.Duration
	logger    logger.ILogger
}

func NewFormService(
	repo *memory.SessionRepository[*entity.FormSession],
	submitter form.Submitter,
	publisher IPublisherService,
	noticeTTL time.Duration,
	log logger.ILogger,
) IFormService {
	return &formService{
		repo:      repo,
		submitter: submitter,
		publisher: publisher,
		mapper:    mapper.NewSessionMapper(),
		noticeTTL: noticeTTL,
		logger:    log,
	}
}

func (s *formService) Open(ctx context.Context, req *dto.OpenFormRequest) (*dto.FormSessionResponse, error) {
	variant := form.Variant(req.Variant)
	if _, err := form.SchemaFor(variant); err != nil {
		return nil, ErrInvalidVariant
	}

	sess := &entity.FormSession{Id: uuid.NewString(), CreatedAt: time.Now()}
	opts := []form.Option{
		form.WithSubmitter(s.submitter),
		form.WithLogger(s.logger.Named("FORM")),
		form.WithObserver(s.observe(sess.Id)),
		form.WithCompletion(func(c form.Completion) {
			s.publish(events.New(events.TypeFormSubmitted, map[string]interface{}{
				"session_id": sess.Id,
				"variant":    c.Variant,
				"navigation": c.Navigation,
			}))
		}),
	}
	if len(req.Prefill) > 0 {
		opts = append(opts, form.WithPrefill(req.Prefill))
	}

	if req.FromSession != "" {
		if variant != form.VariantLogin {
			return nil, ErrInvalidPrefillSource
		}
		source, ok := s.repo.Get(req.FromSession)
		if !ok {
			return nil, ErrSessionNotFound
		}
		nav, ok := source.Navigation()
		if !ok {
			return nil, ErrNoNavigation
		}
		if !nav.FromSignup {
			return nil, ErrInvalidPrefillSource
		}
		opts = append(opts, form.AfterSignup(nav, s.noticeTTL)...)
	}

	ctrl, err := form.NewController(variant, opts...)
	if err != nil {
		return nil, err
	}
	sess.Controller = ctrl
	s.repo.Save(sess.Id, sess)

	s.logger.Info("FormService", "Form session opened", map[string]interface{}{
		"session_id": sess.Id,
		"variant":    variant,
		"prefilled":  req.FromSession != "" || len(req.Prefill) > 0,
	})
	return s.mapper.ToFormResponse(sess, ctrl.State()), nil
}

func (s *formService) Get(ctx context.Context, id string) (*dto.FormSessionResponse, error) {
	sess, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return s.mapper.ToFormResponse(sess, sess.Controller.State()), nil
}

// SetField returns the current state alongside any rejection so callers can render both.
func (s *formService) SetField(ctx context.Context, id, name, value string) (*dto.FormSessionResponse, error) {
	sess, err := s.find(id)
	if err != nil {
		return nil, err
	}
	err = sess.Controller.SetField(name, value)
	return s.mapper.ToFormResponse(sess, sess.Controller.State()), err
}

func (s *formService) BlurField(ctx context.Context, id, name string) (*dto.FormSessionResponse, error) {
	sess, err := s.find(id)
	if err != nil {
		return nil, err
	}
	err = sess.Controller.BlurField(name)
	return s.mapper.ToFormResponse(sess, sess.Controller.State()), err
}

func (s *formService) Submit(ctx context.Context, id string) (*dto.FormSessionResponse, error) {
	sess, err := s.find(id)
	if err != nil {
		return nil, err
	}
	status := sess.Controller.Submit()
	s.logger.Debug("FormService", "Submit requested", map[string]interface{}{"session_id": id, "status": status})
	return s.mapper.ToFormResponse(sess, sess.Controller.State()), nil
}

func (s *formService) Close(ctx context.Context, id string) error {
	if _, err := s.find(id); err != nil {
		return err
	}
	s.repo.Delete(id)
	return nil
}

func (s *formService) find(id string) (*entity.FormSession, error) {
	sess, ok := s.repo.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.repo.Touch(id)
	return sess, nil
}

// observe streams every snapshot and reports Submitting -> Failed(remote) transitions once.
func (s *formService) observe(id string) func(form.State) {
	var mu sync.Mutex
	last := form.StatusIdle

	return func(st form.State) {
		mu.Lock()
		prev := last
		last = st.Status
		mu.Unlock()

		data := s.mapper.ToEventData(st)
		data["session_id"] = id
		s.publish(events.New(events.TypeSessionState, data))

		if prev == form.StatusSubmitting && st.Status == form.StatusFailed && st.Failure == form.FailureRemote {
			s.publish(events.New(events.TypeFormSubmitFailed, map[string]interface{}{
				"session_id": id,
				"variant":    st.Variant,
				"form_error": st.FormError,
			}))
		}
	}
}

func (s *formService) publish(evt events.BaseEvent) {
	if err := s.publisher.Publish(context.Background(), evt); err != nil {
		s.logger.Warn("FormService", "Failed to publish event", map[string]interface{}{
			"type":  evt.EventType(),
			"error": err.Error(),
		})
	}
}

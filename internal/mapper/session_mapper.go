package mapper

import (
	"helmet-compliance-be/internal/dto"
	"helmet-compliance-be/internal/entity"
	"helmet-compliance-be/pkg/form"
	"helmet-compliance-be/pkg/media"
)

type SessionMapper struct{}

func NewSessionMapper() *SessionMapper {
	return &SessionMapper{}
}

func (m *SessionMapper) ToFormResponse(s *entity.FormSession, state form.State) *dto.FormSessionResponse {
	if s == nil {
		return nil
	}

	res := &dto.FormSessionResponse{
		Id:            s.Id,
		Seq:           state.Seq,
		Variant:       state.Variant,
		Status:        state.Status,
		Failure:       state.Failure,
		Fields:        state.Fields,
		Touched:       state.Touched,
		Errors:        toFieldErrors(state.Errors),
		VisibleErrors: toFieldErrors(state.VisibleErrors()),
		FormError:     state.FormError,
		Notice:        state.Notice,
		Navigation:    state.Navigation,
	}
	return res
}

func (m *SessionMapper) ToDetectionResponse(s *entity.DetectionSession, state media.State) *dto.DetectionSessionResponse {
	if s == nil {
		return nil
	}
	return &dto.DetectionSessionResponse{Id: s.Id, State: state}
}

// ToEventData flattens a form snapshot for the event bus. Secret fields are left out.
func (m *SessionMapper) ToEventData(state form.State) map[string]interface{} {
	fields := make(map[string]string, len(state.Fields))
	for name, v := range state.Fields {
		if name == form.FieldPassword || name == form.FieldConfirmPassword {
			continue
		}
		fields[name] = v
	}
	return map[string]interface{}{
		"kind":           entity.SessionKindForm,
		"seq":            state.Seq,
		"variant":        state.Variant,
		"status":         state.Status,
		"failure":        state.Failure,
		"fields":         fields,
		"visible_errors": toFieldErrors(state.VisibleErrors()),
		"form_error":     state.FormError,
		"notice":         state.Notice,
	}
}

func (m *SessionMapper) ToDetectionEventData(state media.State) map[string]interface{} {
	return map[string]interface{}{
		"kind":            entity.SessionKindDetection,
		"seq":             state.Seq,
		"media_kind":      state.Kind,
		"source":          state.Source,
		"source_error":    state.SourceError,
		"detection":       state.Detection,
		"detection_error": state.DetectionError,
		"media":           state.Media,
		"results":         state.Results,
		"report":          state.Report,
	}
}

func toFieldErrors(in map[string]*form.FieldError) map[string]dto.FieldErrorResponse {
	out := make(map[string]dto.FieldErrorResponse, len(in))
	for name, fe := range in {
		out[name] = dto.FieldErrorResponse{Message: fe.Message, Code: fe.Code()}
	}
	return out
}

package dto

import (
	"time"

	"helmet-compliance-be/pkg/form"
	"helmet-compliance-be/pkg/media"
)

type OpenFormRequest struct {
	Variant string            `json:"variant" validate:"required,oneof=signup login"`
	Prefill map[string]string `json:"prefill"`
	// FromSession names a finished signup form whose navigation payload pre-fills a login form.
	FromSession string `json:"from_session"`
}

type SetFieldRequest struct {
	Value string `json:"value" validate:"max=1024"`
}

type FieldErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type FormSessionResponse struct {
	Id            string                        `json:"id"`
	Seq           uint64                        `json:"seq"`
	Variant       form.Variant                  `json:"variant"`
	Status        form.Status                   `json:"status"`
	Failure       form.Failure                  `json:"failure,omitempty"`
	Fields        map[string]string             `json:"fields"`
	Touched       map[string]bool               `json:"touched"`
	Errors        map[string]FieldErrorResponse `json:"errors"`
	VisibleErrors map[string]FieldErrorResponse `json:"visible_errors"`
	FormError     string                        `json:"form_error,omitempty"`
	Notice        string                        `json:"notice,omitempty"`
	Navigation    *form.Navigation              `json:"navigation,omitempty"`
}

type OpenDetectionRequest struct {
	Kind string `json:"kind" validate:"required,oneof=live upload"`
}

type CameraRequest struct {
	DeviceId string `json:"device_id"`
}

type DetectionSessionResponse struct {
	Id    string      `json:"id"`
	State media.State `json:"state"`
}

type DashboardStatsResponse struct {
	TotalDetections int       `json:"totalDetections"`
	Violations      int       `json:"violations"`
	ComplianceRate  float64   `json:"complianceRate"`
	LastDetection   time.Time `json:"lastDetection"`
}

// EventMessage is the payload carried on the in-process event bus.
type EventMessage struct {
	Type       string                 `json:"type"`
	SessionId  string                 `json:"session_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

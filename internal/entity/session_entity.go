// FILE: internal/entity/session_entity.go
package entity

import (
	"time"

	"helmet-compliance-be/pkg/form"
	"helmet-compliance-be/pkg/media"
)

type SessionKind string

const (
	SessionKindForm      SessionKind = "form"
	SessionKindDetection SessionKind = "detection"
)

// FormSession binds a form controller to its server-side id.
type FormSession struct {
	Id         string
	Controller *form.Controller
	CreatedAt  time.Time
}

// Navigation returns the payload of the last successful submit, if any.
func (s *FormSession) Navigation() (form.Navigation, bool) {
	nav := s.Controller.State().Navigation
	if nav == nil {
		return form.Navigation{}, false
	}
	return *nav, true
}

func (s *FormSession) Close() error {
	s.Controller.Close()
	return nil
}

// DetectionSession binds a media session to its server-side id.
type DetectionSession struct {
	Id        string
	Session   *media.Session
	CreatedAt time.Time
}

func (s *DetectionSession) Close() error {
	return s.Session.Close()
}

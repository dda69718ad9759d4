package media

import "errors"

// Acquisition failures. The session stays retryable after each of them.
var (
	ErrPermissionDenied     = errors.New("camera permission denied")
	ErrDeviceUnavailable    = errors.New("capture device unavailable")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrNoSelection          = errors.New("no file selected")
	ErrWrongSource          = errors.New("source does not match session kind")
	ErrAborted              = errors.New("acquisition aborted by release")
)

// ErrProcessing is wrapped by every detector failure surfaced on the session.
var ErrProcessing = errors.New("detection processing failed")

// State machine guards.
var (
	ErrSourceBusy          = errors.New("source already acquired or acquiring")
	ErrNotAcquired         = errors.New("source not acquired")
	ErrDetectionInProgress = errors.New("detection already running")
	ErrSessionClosed       = errors.New("session closed")
)

package media

// Kind is the detection workflow a session serves.
type Kind string

const (
	KindLive   Kind = "live"
	KindUpload Kind = "upload"
)

type SourceState string

const (
	SourceIdle      SourceState = "idle"
	SourceAcquiring SourceState = "acquiring"
	SourceAcquired  SourceState = "acquired"
	SourceError     SourceState = "error"
)

type DetectionState string

const (
	DetectionNotStarted DetectionState = "not_started"
	DetectionRunning    DetectionState = "running"
	DetectionComplete   DetectionState = "complete"
)

// Detection is one compliance check in a result set.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Present    bool    `json:"present"`
}

// Descriptor identifies the media owned by a session without exposing the handle.
type Descriptor struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"kind"`
	Name      string `json:"name,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	DeviceID  string `json:"device_id,omitempty"`
}

// Report summarizes an upload detection.
type Report struct {
	Filename       string `json:"filename"`
	Category       string `json:"category"`
	ProcessingTime string `json:"processing_time"`
}

// State is a point-in-time copy of a Session. Seq increases by one with every change.
type State struct {
	Seq            uint64         `json:"seq"`
	ID             string         `json:"id"`
	Kind           Kind           `json:"kind"`
	Source         SourceState    `json:"source"`
	SourceError    string         `json:"source_error,omitempty"`
	Detection      DetectionState `json:"detection"`
	DetectionError string         `json:"detection_error,omitempty"`
	Media          *Descriptor    `json:"media,omitempty"`
	Results        []Detection    `json:"results"`
	Report         *Report        `json:"report,omitempty"`
}

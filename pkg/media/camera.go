package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

const DefaultDevice = "default"

// Constraints mirror what a capture request asks of the device.
type Constraints struct {
	DeviceID   string `json:"device_id"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FacingMode string `json:"facing_mode"`
	Audio      bool   `json:"audio"`
}

// DefaultConstraints is the 720p front-facing, video-only request used by live detection.
func DefaultConstraints() Constraints {
	return Constraints{
		DeviceID:   DefaultDevice,
		Width:      1280,
		Height:     720,
		FacingMode: "user",
	}
}

type Track struct {
	Kind    string
	Stopped bool
}

// Stream is a granted capture stream.
type Stream struct {
	ID          string
	DeviceID    string
	Constraints Constraints
	Tracks      []*Track
}

// CameraProvider is the capture-device boundary. RequestStream fails with
// ErrPermissionDenied or ErrDeviceUnavailable.
type CameraProvider interface {
	RequestStream(ctx context.Context, c Constraints) (*Stream, error)
	ReleaseStream(s *Stream) error
}

// DeviceRegistry enforces that a capture device is held by at most one session.
type DeviceRegistry struct {
	mu     sync.Mutex
	owners map[string]string
}

func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{owners: make(map[string]string)}
}

func (r *DeviceRegistry) Reserve(deviceID, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.owners[deviceID]; ok && cur != owner {
		return fmt.Errorf("%w: %s is in use", ErrDeviceUnavailable, deviceID)
	}
	r.owners[deviceID] = owner
	return nil
}

func (r *DeviceRegistry) Free(deviceID, owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owners[deviceID] == owner {
		delete(r.owners, deviceID)
	}
}

func (r *DeviceRegistry) Owner(deviceID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[deviceID]
	return owner, ok
}

// CameraSource acquires a live capture stream.
type CameraSource struct {
	Provider    CameraProvider
	Registry    *DeviceRegistry
	Constraints Constraints
}

func (CameraSource) Kind() Kind { return KindLive }

func (c CameraSource) Open(ctx context.Context) (Media, error) {
	constraints := c.Constraints
	if constraints.DeviceID == "" {
		constraints.DeviceID = DefaultDevice
	}
	id := uuid.NewString()

	if c.Registry != nil {
		if err := c.Registry.Reserve(constraints.DeviceID, id); err != nil {
			return nil, err
		}
	}

	stream, err := c.Provider.RequestStream(ctx, constraints)
	if err != nil {
		if c.Registry != nil {
			c.Registry.Free(constraints.DeviceID, id)
		}
		return nil, err
	}

	return &cameraMedia{id: id, stream: stream, provider: c.Provider, registry: c.Registry}, nil
}

type cameraMedia struct {
	id       string
	stream   *Stream
	provider CameraProvider
	registry *DeviceRegistry
	once     sync.Once
	err      error
}

func (m *cameraMedia) Descriptor() Descriptor {
	return Descriptor{ID: m.id, Kind: KindLive, DeviceID: m.stream.DeviceID, MediaType: "video/raw"}
}

func (m *cameraMedia) Close() error {
	m.once.Do(func() {
		m.err = m.provider.ReleaseStream(m.stream)
		if m.registry != nil {
			m.registry.Free(m.stream.DeviceID, m.id)
		}
	})
	return m.err
}

// SimulatedCamera is an in-process CameraProvider with a fixed device list.
type SimulatedCamera struct {
	mu      sync.Mutex
	devices map[string]bool
	denied  bool
	active  map[string]*Stream
}

func NewSimulatedCamera(devices ...string) *SimulatedCamera {
	if len(devices) == 0 {
		devices = []string{DefaultDevice}
	}
	cam := &SimulatedCamera{
		devices: make(map[string]bool, len(devices)),
		active:  make(map[string]*Stream),
	}
	for _, d := range devices {
		cam.devices[d] = true
	}
	return cam
}

// SetPermission toggles whether the simulated user grants camera access.
func (c *SimulatedCamera) SetPermission(granted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.denied = !granted
}

func (c *SimulatedCamera) RequestStream(ctx context.Context, constraints Constraints) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.denied {
		return nil, ErrPermissionDenied
	}
	if !c.devices[constraints.DeviceID] {
		return nil, fmt.Errorf("%w: no device %q", ErrDeviceUnavailable, constraints.DeviceID)
	}

	tracks := []*Track{{Kind: "video"}}
	if constraints.Audio {
		tracks = append(tracks, &Track{Kind: "audio"})
	}
	s := &Stream{
		ID:          uuid.NewString(),
		DeviceID:    constraints.DeviceID,
		Constraints: constraints,
		Tracks:      tracks,
	}
	c.active[s.ID] = s
	return s, nil
}

func (c *SimulatedCamera) ReleaseStream(s *Stream) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range s.Tracks {
		t.Stopped = true
	}
	delete(c.active, s.ID)
	return nil
}

// ActiveStreams reports how many streams are still open.
func (c *SimulatedCamera) ActiveStreams() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

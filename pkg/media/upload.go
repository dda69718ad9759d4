package media

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// AcceptedPrefixes are the media-type families the upload workflow accepts.
var AcceptedPrefixes = []string{"image/", "video/"}

// FileSelection is a file chosen through a picker or dropped onto the page.
type FileSelection struct {
	Name        string
	ContentType string
	Data        []byte
}

// Picker is the file-choosing boundary. A nil selection with a nil error means the user
// dismissed the picker.
type Picker interface {
	Pick(ctx context.Context, acceptedPrefixes []string) (*FileSelection, error)
}

// ResolveMediaType picks the declared type first, then the extension, then sniffs content.
// The result is lower case with parameters stripped.
func ResolveMediaType(f *FileSelection) string {
	if t := normalizeMediaType(f.ContentType); t != "" {
		return t
	}
	if t := normalizeMediaType(mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Name)))); t != "" {
		return t
	}
	if len(f.Data) > 0 {
		return normalizeMediaType(mimetype.Detect(f.Data).String())
	}
	return "application/octet-stream"
}

func normalizeMediaType(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(t); err == nil {
		return mediaType
	}
	base, _, _ := strings.Cut(t, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

func accepted(mediaType string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(mediaType, p) {
			return true
		}
	}
	return false
}

// Category is the coarse label shown next to upload results.
func Category(mediaType string) string {
	if strings.HasPrefix(mediaType, "image/") {
		return "Image"
	}
	return "Video"
}

// FileSource acquires an already chosen file.
type FileSource struct {
	File   *FileSelection
	Accept []string
}

func (FileSource) Kind() Kind { return KindUpload }

func (s FileSource) Open(_ context.Context) (Media, error) {
	if s.File == nil {
		return nil, ErrNoSelection
	}
	prefixes := s.Accept
	if len(prefixes) == 0 {
		prefixes = AcceptedPrefixes
	}

	mediaType := ResolveMediaType(s.File)
	if !accepted(mediaType, prefixes) {
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedMediaType, s.File.Name, mediaType)
	}
	return &fileMedia{
		id:        uuid.NewString(),
		name:      s.File.Name,
		mediaType: mediaType,
		data:      s.File.Data,
	}, nil
}

// PickerSource asks a Picker for the file at acquisition time.
type PickerSource struct {
	Picker Picker
	Accept []string
}

func (PickerSource) Kind() Kind { return KindUpload }

func (s PickerSource) Open(ctx context.Context) (Media, error) {
	prefixes := s.Accept
	if len(prefixes) == 0 {
		prefixes = AcceptedPrefixes
	}
	sel, err := s.Picker.Pick(ctx, prefixes)
	if err != nil {
		return nil, err
	}
	return FileSource{File: sel, Accept: prefixes}.Open(ctx)
}

type fileMedia struct {
	id        string
	name      string
	mediaType string

	mu   sync.Mutex
	data []byte
}

func (m *fileMedia) Descriptor() Descriptor {
	return Descriptor{ID: m.id, Kind: KindUpload, Name: m.name, MediaType: m.mediaType}
}

// Bytes returns the file contents, or nil once the media has been closed.
func (m *fileMedia) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// Close drops the reference to the file contents.
func (m *fileMedia) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

package media

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestUploadRejectsPDF(t *testing.T) {
	s := NewSession(KindUpload)
	defer s.Close()

	err := s.Acquire(context.Background(), FileSource{File: &FileSelection{
		Name:        "report.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.4\n"),
	}})

	assert.ErrorIs(t, err, ErrUnsupportedMediaType)
	st := s.State()
	assert.Equal(t, SourceIdle, st.Source)
	assert.Nil(t, st.Media)
	assert.True(t, strings.Contains(st.SourceError, "report.pdf"))
}

func TestResolveMediaType(t *testing.T) {
	tests := []struct {
		name string
		file FileSelection
		want string
	}{
		{"explicit type wins", FileSelection{Name: "a.png", ContentType: "video/mp4"}, "video/mp4"},
		{"declared type is lower cased", FileSelection{Name: "a.png", ContentType: "IMAGE/PNG"}, "image/png"},
		{"declared parameters dropped", FileSelection{Name: "a.png", ContentType: " Image/Png; charset=binary"}, "image/png"},
		{"malformed parameters dropped", FileSelection{Name: "clip", ContentType: "Video/MP4; ="}, "video/mp4"},
		{"extension", FileSelection{Name: "photo.JPG"}, "image/jpeg"},
		{"sniffed png", FileSelection{Name: "capture", Data: pngHeader}, "image/png"},
		{"sniffed pdf", FileSelection{Name: "scan", Data: []byte("%PDF-1.7\n%")}, "application/pdf"},
		{"nothing known", FileSelection{Name: "blob"}, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveMediaType(&tt.file))
		})
	}
}

func TestUploadAcceptsDeclaredTypeInAnyCase(t *testing.T) {
	s := NewSession(KindUpload)
	defer s.Close()

	file := &FileSelection{Name: "rider.png", ContentType: "IMAGE/PNG; charset=binary", Data: pngHeader}
	require.NoError(t, s.Acquire(context.Background(), FileSource{File: file}))

	st := s.State()
	assert.Equal(t, SourceAcquired, st.Source)
	require.NotNil(t, st.Media)
	assert.Equal(t, "image/png", st.Media.MediaType)
}

func TestUploadDetectionProducesReport(t *testing.T) {
	det := newGateDetector()
	s := NewSession(KindUpload, WithDetector(det))
	defer s.Close()

	require.NoError(t, s.Acquire(context.Background(), FileSource{File: &FileSelection{Name: "rider.png", Data: pngHeader}}))
	st := s.State()
	require.NotNil(t, st.Media)
	assert.Equal(t, "image/png", st.Media.MediaType)

	require.NoError(t, s.Run())
	<-det.started
	det.release <- nil
	waitDone(t, s)

	st = s.State()
	assert.Equal(t, DetectionComplete, st.Detection)
	assert.Equal(t, UploadDetections, st.Results)
	require.NotNil(t, st.Report)
	assert.Equal(t, "rider.png", st.Report.Filename)
	assert.Equal(t, "Image", st.Report.Category)
	assert.True(t, strings.HasSuffix(st.Report.ProcessingTime, " seconds"))
}

func TestReleaseDropsFileContents(t *testing.T) {
	src := FileSource{File: &FileSelection{Name: "dash.mp4", ContentType: "video/mp4", Data: []byte{1, 2, 3}}}
	m, err := src.Open(context.Background())
	require.NoError(t, err)

	fm := m.(*fileMedia)
	assert.Equal(t, []byte{1, 2, 3}, fm.Bytes())
	require.NoError(t, m.Close())
	assert.Nil(t, fm.Bytes())
	assert.Equal(t, "dash.mp4", m.Descriptor().Name)
}

type stubPicker struct {
	sel *FileSelection
	err error
	got []string
}

func (p *stubPicker) Pick(_ context.Context, accepted []string) (*FileSelection, error) {
	p.got = accepted
	return p.sel, p.err
}

func TestPickerDismissedKeepsIdle(t *testing.T) {
	s := NewSession(KindUpload)
	defer s.Close()

	picker := &stubPicker{}
	err := s.Acquire(context.Background(), PickerSource{Picker: picker})
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.Equal(t, SourceIdle, s.State().Source)
	assert.Equal(t, AcceptedPrefixes, picker.got)
}

func TestPickerFailureEntersError(t *testing.T) {
	s := NewSession(KindUpload)
	defer s.Close()

	err := s.Acquire(context.Background(), PickerSource{Picker: &stubPicker{err: errors.New("picker crashed")}})
	assert.Error(t, err)
	assert.Equal(t, SourceError, s.State().Source)

	require.NoError(t, s.Acquire(context.Background(), PickerSource{Picker: &stubPicker{sel: &FileSelection{Name: "a.jpg"}}}))
	assert.Equal(t, SourceAcquired, s.State().Source)
}

func TestMockDetectorPayloads(t *testing.T) {
	d := &MockDetector{}
	live, err := d.Detect(context.Background(), closeSpy{})
	require.NoError(t, err)
	assert.Equal(t, LiveDetections, live)

	m, err := FileSource{File: &FileSelection{Name: "a.png"}}.Open(context.Background())
	require.NoError(t, err)
	up, err := d.Detect(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, UploadDetections, up)

	d.FailNext(1)
	_, err = d.Detect(context.Background(), m)
	assert.Error(t, err)
	_, err = d.Detect(context.Background(), m)
	assert.NoError(t, err)
}

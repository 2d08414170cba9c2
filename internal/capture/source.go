// Package capture reads frames from the screen, a video device or a file
// through OpenCV's video capture backends.
package capture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// Defaults for a screen capture source.
const (
	DefaultFPS    = 60
	DefaultWidth  = 1920
	DefaultHeight = 1080
)

// ScreenSource is the source name that selects an X11 screen grab.
const ScreenSource = "screen"

var (
	// ErrSourceNotOpen is returned when reading from a source that is not open.
	ErrSourceNotOpen = errors.New("capture source is not open")
	// ErrEmptyFrame is returned when the backend hands back no pixels.
	ErrEmptyFrame = errors.New("captured frame is empty")
)

// Source produces BGR frames. ReadFrame's caller owns the returned Mat.
type Source interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// Kind is how a source name is opened.
type Kind int

const (
	KindDevice Kind = iota
	KindScreen
	KindPipeline
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindDevice:
		return "device"
	case KindScreen:
		return "screen"
	case KindPipeline:
		return "pipeline"
	default:
		return "file"
	}
}

// ParseKind classifies a source name: "screen", a numeric device index, a
// GStreamer pipeline (contains "!"), or anything else as a file or URL.
func ParseKind(name string) Kind {
	name = strings.TrimSpace(name)
	switch {
	case name == ScreenSource:
		return KindScreen
	case strings.Contains(name, "!"):
		return KindPipeline
	}
	if _, err := strconv.Atoi(name); err == nil {
		return KindDevice
	}
	return KindFile
}

// ScreenPipeline returns the GStreamer pipeline used to grab the X11 screen
// at the given size and rate.
func ScreenPipeline(width, height, fps int) string {
	return fmt.Sprintf(
		"ximagesrc use-damage=0 ! video/x-raw,framerate=%d/1 ! videoscale ! videoconvert ! "+
			"video/x-raw,format=BGR,width=%d,height=%d ! appsink drop=true max-buffers=1 sync=false",
		fps, width, height)
}

// videoSource manages a gocv.VideoCapture.
type videoSource struct {
	name    string
	kind    Kind
	width   int
	height  int
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	fps     int
}

// NewSource creates a Source for name. width and height are requested from
// the backend and are exact for screen capture.
func NewSource(name string, width, height int) Source {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &videoSource{
		name:   strings.TrimSpace(name),
		kind:   ParseKind(name),
		width:  width,
		height: height,
		fps:    DefaultFPS,
	}
}

// Open starts the capture backend.
func (s *videoSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	var (
		capture *gocv.VideoCapture
		err     error
	)
	switch s.kind {
	case KindDevice:
		id, _ := strconv.Atoi(s.name)
		capture, err = gocv.OpenVideoCapture(id)
	case KindScreen:
		capture, err = gocv.OpenVideoCaptureWithAPI(ScreenPipeline(s.width, s.height, s.fps), gocv.VideoCaptureGstreamer)
	case KindPipeline:
		capture, err = gocv.OpenVideoCaptureWithAPI(s.name, gocv.VideoCaptureGstreamer)
	default:
		capture, err = gocv.OpenVideoCapture(s.name)
	}
	if err != nil {
		return fmt.Errorf("open %s source %q: %w", s.kind, s.name, err)
	}

	if s.kind == KindDevice {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(s.width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(s.height))
		capture.Set(gocv.VideoCaptureFPS, float64(s.fps))
	}

	s.capture = capture
	s.running = true

	log.Info().Str("source", s.name).Stringer("kind", s.kind).Int("fps", s.fps).Msg("capture opened")
	return nil
}

// Close releases the backend.
func (s *videoSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		s.running = false
		return nil
	}

	err := s.capture.Close()
	s.capture = nil
	s.running = false

	return err
}

// ReadFrame grabs the next frame.
func (s *videoSource) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		return nil, ErrSourceNotOpen
	}

	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok {
		mat.Close()
		return nil, fmt.Errorf("read frame from %s source", s.kind)
	}

	if mat.Empty() {
		mat.Close()
		return nil, ErrEmptyFrame
	}

	return &mat, nil
}

// SetFPS changes the requested frame rate. Values <= 0 are ignored.
// Screen and pipeline sources pick the new rate up on the next Open.
func (s *videoSource) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.fps = fps

	if s.capture != nil && s.kind == KindDevice {
		s.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (s *videoSource) FPS() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fps
}

func (s *videoSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

package detector

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/ayusman/reticle/internal/detection"
)

// YOLODetector runs a YOLO ONNX model through OpenCV's DNN module.
type YOLODetector struct {
	config Config
	net    gocv.Net
	mu     sync.Mutex
	closed bool
}

// NewYOLODetector loads the model at config.ModelPath.
func NewYOLODetector(config Config) (*YOLODetector, error) {
	if config.InputSize <= 0 {
		config.InputSize = DefaultConfig().InputSize
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	net := gocv.ReadNetFromONNX(config.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model %s", config.ModelPath)
	}
	if err := net.SetPreferableBackend(config.Backend); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(config.Target); err != nil {
		net.Close()
		return nil, fmt.Errorf("set target: %w", err)
	}

	log.Info().Str("model", config.ModelPath).Int("input", config.InputSize).Msg("detection model loaded")

	return &YOLODetector{config: config, net: net}, nil
}

// Detect resizes frame to the network input, runs one forward pass and
// decodes the output.
func (d *YOLODetector) Detect(frame *gocv.Mat) ([]detection.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("detector is closed")
	}
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	size := d.config.InputSize
	blob := gocv.BlobFromImage(*frame, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	shape := out.Size()
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("%w: %v", ErrOutputShape, shape)
	}

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read model output: %w", err)
	}

	return ParseOutput(data, shape[1], shape[2], float32(size), d.config.ConfThreshold)
}

// Close releases the network.
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.net.Close()
}

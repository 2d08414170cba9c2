// Package detector runs an object detection model over captured frames.
package detector

import (
	"gocv.io/x/gocv"

	"github.com/ayusman/reticle/internal/detection"
)

// Detector defines the interface for object detection implementations.
type Detector interface {
	// Detect analyzes a frame and returns boxes in normalized [0,1]
	// center format whose confidence exceeds the configured threshold.
	// Returns an empty slice if nothing is found.
	Detect(frame *gocv.Mat) ([]detection.Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for detection.
type Config struct {
	// ModelPath is the ONNX model file.
	ModelPath string

	// InputSize is the square network input edge in pixels (default: 640).
	InputSize int

	// ConfThreshold drops boxes at or below this score (0.0-1.0).
	ConfThreshold float32

	// Backend and Target select the OpenCV DNN execution provider.
	Backend gocv.NetBackendType
	Target  gocv.NetTargetType
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		InputSize:     640,
		ConfThreshold: 0.5,
		Backend:       gocv.NetBackendDefault,
		Target:        gocv.NetTargetCPU,
	}
}

package detector

import (
	"errors"
	"fmt"

	"github.com/ayusman/reticle/internal/detection"
)

// ErrOutputShape is returned when the model output is not [1, C, N] with C >= 5.
var ErrOutputShape = errors.New("unexpected model output shape")

// ParseOutput decodes a YOLO-style output tensor.
//
// data is the row-major [1, channels, anchors] tensor: rows 0-3 hold
// cx, cy, w, h in input pixels and rows 4.. hold per-class scores. A box's
// confidence is its best class score. Boxes scoring at or below threshold are
// dropped; the rest are divided by inputSize into normalized coordinates.
func ParseOutput(data []float32, channels, anchors int, inputSize, threshold float32) ([]detection.Detection, error) {
	if channels < 5 || anchors < 0 {
		return nil, fmt.Errorf("%w: channels=%d anchors=%d", ErrOutputShape, channels, anchors)
	}
	if len(data) < channels*anchors {
		return nil, fmt.Errorf("%w: have %d values, need %d", ErrOutputShape, len(data), channels*anchors)
	}
	if inputSize <= 0 {
		return nil, fmt.Errorf("%w: input size %v", ErrOutputShape, inputSize)
	}

	at := func(row, col int) float32 { return data[row*anchors+col] }

	dets := make([]detection.Detection, 0, 16)
	for i := 0; i < anchors; i++ {
		conf := at(4, i)
		for c := 5; c < channels; c++ {
			conf = max(conf, at(c, i))
		}
		if conf <= threshold {
			continue
		}

		dets = append(dets, detection.Detection{
			CX:         at(0, i) / inputSize,
			CY:         at(1, i) / inputSize,
			W:          at(2, i) / inputSize,
			H:          at(3, i) / inputSize,
			Confidence: conf,
		})
	}

	return dets, nil
}

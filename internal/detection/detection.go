// Package detection defines detector bounding boxes and the suppression step
// that collapses overlapping boxes into one representative each.
package detection

// Detection is a center-format bounding box with a confidence score.
//
// Coordinates are either normalized to [0,1] (model space) or in pixels
// (screen space) depending on pipeline stage. A single computation must never
// mix the two.
type Detection struct {
	CX         float32 `json:"x"`
	CY         float32 `json:"y"`
	W          float32 `json:"w"`
	H          float32 `json:"h"`
	Confidence float32 `json:"confidence"`
}

// Corners is an axis-aligned box in corner form.
type Corners struct {
	X1, Y1, X2, Y2 float32
}

// Corners converts the detection to corner form.
func (d Detection) Corners() Corners {
	halfW := d.W * 0.5
	halfH := d.H * 0.5
	return Corners{
		X1: d.CX - halfW,
		Y1: d.CY - halfH,
		X2: d.CX + halfW,
		Y2: d.CY + halfH,
	}
}

// Area returns the box area.
func (d Detection) Area() float32 {
	return d.W * d.H
}

// Area returns the area of the corner box.
func (c Corners) Area() float32 {
	return (c.X2 - c.X1) * (c.Y2 - c.Y1)
}

// FilterByConfidence returns the detections whose confidence is strictly
// above threshold. The input slice is not modified.
func FilterByConfidence(dets []Detection, threshold float32) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence > threshold {
			out = append(out, d)
		}
	}
	return out
}

// Scale maps normalized detections into pixel space of a width x height screen.
// Confidence is carried over unchanged.
func Scale(dets []Detection, width, height float32) []Detection {
	out := make([]Detection, len(dets))
	for i, d := range dets {
		out[i] = Detection{
			CX:         d.CX * width,
			CY:         d.CY * height,
			W:          d.W * width,
			H:          d.H * height,
			Confidence: d.Confidence,
		}
	}
	return out
}

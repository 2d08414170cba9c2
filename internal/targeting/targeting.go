// Package targeting picks an aim point among screen-space boxes and tests
// whether the screen center sits inside a trigger zone.
package targeting

import "github.com/ayusman/reticle/internal/detection"

// AnchorBias is the fraction of box height the aim anchor sits above the box center.
const AnchorBias = 0.1

// Point is a screen-space position in pixels.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Offset is a vector from the screen center to a target anchor, in pixels.
type Offset struct {
	DX float32 `json:"dx"`
	DY float32 `json:"dy"`
}

// IsZero reports whether both components are zero.
func (o Offset) IsZero() bool {
	return o.DX == 0 && o.DY == 0
}

// Anchor returns the aim point of a box: horizontally centered, shifted up
// from the center by AnchorBias of the box height.
func Anchor(box detection.Detection) Point {
	return Point{X: box.CX, Y: box.CY - AnchorBias*box.H}
}

// Select returns the offset from center to the anchor of the nearest box.
//
// maxRange is a hard gate: a box whose anchor is not strictly closer than
// maxRange is never chosen. When two anchors are equally close the earlier
// box wins. The second return value is false when nothing qualifies.
func Select(boxes []detection.Detection, center Point, maxRange float32) (Offset, bool) {
	best := maxRange * maxRange
	var (
		found  bool
		result Offset
	)

	for _, box := range boxes {
		a := Anchor(box)
		dx := a.X - center.X
		dy := a.Y - center.Y
		dist := dx*dx + dy*dy

		if dist < best {
			best = dist
			result = Offset{DX: dx, DY: dy}
			found = true
		}
	}

	return result, found
}

// ShouldTrigger reports whether center lies strictly inside at least one box
// after the box has been shrunk by padding on every side. Padding that
// inverts a box simply makes it fail the test.
func ShouldTrigger(boxes []detection.Detection, center Point, padding float32) bool {
	for _, box := range boxes {
		left := box.CX - box.W/2 + padding
		right := box.CX + box.W/2 - padding
		top := box.CY - box.H/2 + padding
		bottom := box.CY + box.H/2 - padding

		if left < center.X && right > center.X && top < center.Y && bottom > center.Y {
			return true
		}
	}
	return false
}

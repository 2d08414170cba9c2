package monitor

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	boxColor     = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	triggerColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	anchorColor  = color.RGBA{R: 255, G: 255, B: 0, A: 0}
)

// Render draws snap's boxes and anchor over frame and returns it as JPEG.
// Boxes are in snap.Width x snap.Height screen space and are scaled to the
// frame's own size. frame is modified.
func Render(frame *gocv.Mat, snap Snapshot) ([]byte, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	sx, sy := float32(1), float32(1)
	if snap.Width > 0 && snap.Height > 0 {
		sx = float32(frame.Cols()) / float32(snap.Width)
		sy = float32(frame.Rows()) / float32(snap.Height)
	}

	c := boxColor
	if snap.Triggered {
		c = triggerColor
	}
	for _, b := range snap.Boxes {
		r := b.Corners()
		rect := image.Rect(int(r.X1*sx), int(r.Y1*sy), int(r.X2*sx), int(r.Y2*sy))
		gocv.Rectangle(frame, rect, c, 2)
	}

	if snap.Anchor != nil {
		p := image.Pt(int(snap.Anchor.X*sx), int(snap.Anchor.Y*sy))
		gocv.Circle(frame, p, 4, anchorColor, -1)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

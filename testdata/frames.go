// Package testdata builds synthetic frames for tests that need real Mats.
package testdata

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Frame returns a black BGR frame of the given size.
func Frame(width, height int) *gocv.Mat {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), height, width, gocv.MatTypeCV8UC3)
	return &m
}

// FrameWithBox returns a black frame with a filled white rectangle.
func FrameWithBox(width, height int, box image.Rectangle) *gocv.Mat {
	m := Frame(width, height)
	gocv.Rectangle(m, box, color.RGBA{R: 255, G: 255, B: 255, A: 0}, -1)
	return m
}

// Static returns n identical black frames.
func Static(n, width, height int) []*gocv.Mat {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		frames[i] = Frame(width, height)
	}
	return frames
}

// Moving returns n frames with a square sliding right by step pixels per
// frame, so consecutive frames always differ.
func Moving(n, width, height, size, step int) []*gocv.Mat {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		x := (i * step) % max(1, width-size)
		frames[i] = FrameWithBox(width, height, image.Rect(x, height/2-size/2, x+size, height/2+size/2))
	}
	return frames
}

// Close releases every frame.
func Close(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}

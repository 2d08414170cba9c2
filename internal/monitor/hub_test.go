package monitor

import (
	"bytes"
	"sync"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/reticle/internal/detection"
	"github.com/ayusman/reticle/internal/targeting"
)

func TestHub_Stats(t *testing.T) {
	h := NewHub()

	h.PublishStats(Stats{Mode: "track", FPS: 59.5, Frames: 100})

	got := h.Stats()
	if got.Mode != "track" || got.FPS != 59.5 || got.Frames != 100 {
		t.Errorf("Stats() = %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be filled in")
	}
}

func TestHub_SnapshotSequence(t *testing.T) {
	h := NewHub()

	if h.Snapshot().Seq != 0 {
		t.Fatal("empty hub should have seq 0")
	}

	first := h.PublishSnapshot(Snapshot{Width: 1920, Height: 1080})
	second := h.PublishSnapshot(Snapshot{
		Boxes:  []detection.Detection{{CX: 960, CY: 540, W: 100, H: 100, Confidence: 0.9}},
		Anchor: &targeting.Point{X: 960, Y: 530},
	})

	if second != first+1 {
		t.Errorf("sequence not increasing: %d then %d", first, second)
	}

	snap := h.Snapshot()
	if snap.Seq != second || len(snap.Boxes) != 1 || snap.Anchor == nil {
		t.Errorf("Snapshot() = %+v", snap)
	}
	if snap.Timestamp == 0 {
		t.Error("Timestamp should be filled in")
	}
}

func TestHub_EmptyBoxesNotNil(t *testing.T) {
	h := NewHub()
	h.PublishSnapshot(Snapshot{})
	if h.Snapshot().Boxes == nil {
		t.Error("Boxes should encode as [] not null")
	}
}

func TestHub_Frame(t *testing.T) {
	h := NewHub()

	if data, seq := h.Frame(); data != nil || seq != 0 {
		t.Fatal("expected no frame yet")
	}

	h.PublishFrame([]byte{0xff, 0xd8})
	data, seq := h.Frame()
	if seq != 1 || !bytes.Equal(data, []byte{0xff, 0xd8}) {
		t.Errorf("Frame() = %v, %d", data, seq)
	}
}

func TestHub_Watch(t *testing.T) {
	h := NewHub()
	if h.Watching() {
		t.Fatal("no watchers yet")
	}

	var wg sync.WaitGroup
	releases := make([]func(), 5)
	for i := range releases {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			releases[i] = h.Watch()
		}(i)
	}
	wg.Wait()

	if !h.Watching() {
		t.Error("expected watchers")
	}

	for _, release := range releases {
		release()
		release() // second call is a no-op
	}
	if h.Watching() {
		t.Error("all watchers released")
	}
}

func TestRender(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := gocv.NewMatWithSize(540, 960, gocv.MatTypeCV8UC3)
	defer frame.Close()

	snap := Snapshot{
		Width:     1920,
		Height:    1080,
		Boxes:     []detection.Detection{{CX: 960, CY: 540, W: 200, H: 300, Confidence: 0.8}},
		Anchor:    &targeting.Point{X: 960, Y: 510},
		Triggered: true,
	}

	jpeg, err := Render(&frame, snap)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(jpeg) < 2 || jpeg[0] != 0xff || jpeg[1] != 0xd8 {
		t.Error("output is not a JPEG")
	}
}

func TestRender_EmptyFrame(t *testing.T) {
	if _, err := Render(nil, Snapshot{}); err == nil {
		t.Error("expected error for nil frame")
	}
}

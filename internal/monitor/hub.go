// Package monitor publishes what the control loop sees so the HTTP layer can
// show it without touching the loop.
package monitor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/reticle/internal/actuator"
	"github.com/ayusman/reticle/internal/detection"
	"github.com/ayusman/reticle/internal/targeting"
)

// Stats is the loop's diagnostic summary.
type Stats struct {
	Mode        string          `json:"mode"`
	Profile     string          `json:"profile,omitempty"`
	Armed       bool            `json:"armed"`
	FPS         float32         `json:"fps"`
	MaxFrameMs  float32         `json:"max_frame_ms"`
	InferenceMs float32         `json:"inference_ms"`
	Frames      uint64          `json:"frames"`
	Inferences  uint64          `json:"inferences"`
	Reused      uint64          `json:"reused"`
	Errors      uint64          `json:"errors"`
	Actuator    actuator.Stats  `json:"actuator"`
	Buttons     map[string]bool `json:"buttons"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Snapshot is one frame's screen-space result.
type Snapshot struct {
	Seq       uint64                `json:"seq"`
	Timestamp int64                 `json:"timestamp"`
	Width     int                   `json:"width"`
	Height    int                   `json:"height"`
	Boxes     []detection.Detection `json:"boxes"`
	Anchor    *targeting.Point      `json:"anchor,omitempty"`
	Offset    *targeting.Offset     `json:"offset,omitempty"`
	Triggered bool                  `json:"triggered"`
}

// Hub holds the latest stats, snapshot and rendered frame. Writers are the
// control loop; readers are HTTP handlers.
type Hub struct {
	mu       sync.RWMutex
	stats    Stats
	snap     Snapshot
	jpeg     []byte
	frameSeq uint64

	seq      atomic.Uint64
	watchers atomic.Int32
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{}
}

// PublishStats replaces the current stats.
func (h *Hub) PublishStats(s Stats) {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	h.mu.Lock()
	h.stats = s
	h.mu.Unlock()
}

// Stats returns the latest stats.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}

// PublishSnapshot stores s with the next sequence number and returns it.
func (h *Hub) PublishSnapshot(s Snapshot) uint64 {
	s.Seq = h.seq.Add(1)
	if s.Timestamp == 0 {
		s.Timestamp = time.Now().UnixMilli()
	}
	if s.Boxes == nil {
		s.Boxes = []detection.Detection{}
	}
	h.mu.Lock()
	h.snap = s
	h.mu.Unlock()
	return s.Seq
}

// Snapshot returns the latest snapshot. Seq is 0 before the first publish.
func (h *Hub) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap
}

// PublishFrame stores an encoded JPEG of the latest annotated frame.
func (h *Hub) PublishFrame(jpeg []byte) {
	h.mu.Lock()
	h.jpeg = jpeg
	h.frameSeq++
	h.mu.Unlock()
}

// Frame returns the latest JPEG and its sequence number.
func (h *Hub) Frame() ([]byte, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.jpeg, h.frameSeq
}

// Watch registers a stream viewer. The loop only renders frames while at
// least one viewer is registered. Call the returned func to unregister.
func (h *Hub) Watch() func() {
	h.watchers.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { h.watchers.Add(-1) })
	}
}

// Watching reports whether any stream viewer is registered.
func (h *Hub) Watching() bool {
	return h.watchers.Load() > 0
}

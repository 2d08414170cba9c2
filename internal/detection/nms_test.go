package detection

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetection_Corners(t *testing.T) {
	d := Detection{CX: 960, CY: 540, W: 100, H: 50}
	c := d.Corners()

	assert.Equal(t, Corners{X1: 910, Y1: 515, X2: 1010, Y2: 565}, c)
	assert.InDelta(t, d.Area(), c.Area(), 1e-3)
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b Detection
		want float32
	}{
		{
			name: "identical",
			a:    Detection{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2},
			b:    Detection{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2},
			want: 1,
		},
		{
			name: "disjoint",
			a:    Detection{CX: 0.1, CY: 0.1, W: 0.1, H: 0.1},
			b:    Detection{CX: 0.9, CY: 0.9, W: 0.1, H: 0.1},
			want: 0,
		},
		{
			name: "touching edges",
			a:    Detection{CX: 1, CY: 1, W: 2, H: 2},
			b:    Detection{CX: 3, CY: 1, W: 2, H: 2},
			want: 0,
		},
		{
			name: "half overlap",
			a:    Detection{CX: 1, CY: 1, W: 2, H: 2},
			b:    Detection{CX: 2, CY: 1, W: 2, H: 2},
			want: 2.0 / 6.0,
		},
		{
			name: "contained",
			a:    Detection{CX: 0, CY: 0, W: 4, H: 4},
			b:    Detection{CX: 0, CY: 0, W: 2, H: 2},
			want: 4.0 / 16.0,
		},
		{
			name: "zero area boxes",
			a:    Detection{CX: 1, CY: 1},
			b:    Detection{CX: 1, CY: 1},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, IoU(tt.a, tt.b), 1e-6)
			assert.InDelta(t, tt.want, IoU(tt.b, tt.a), 1e-6, "IoU must be symmetric")
		})
	}
}

func TestSuppress_Empty(t *testing.T) {
	got := Suppress(nil, 0.5)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSuppress_Single(t *testing.T) {
	d := Detection{CX: 0.4, CY: 0.6, W: 0.1, H: 0.3, Confidence: 0.7}
	assert.Equal(t, []Detection{d}, Suppress([]Detection{d}, 0.5))
}

func TestSuppress_IdenticalKeepsHighest(t *testing.T) {
	low := Detection{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2, Confidence: 0.5}
	high := Detection{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2, Confidence: 0.9}

	got := Suppress([]Detection{low, high}, 0.5)

	assert.Equal(t, []Detection{high}, got)
}

func TestSuppress_NoOverlapKeepsAll(t *testing.T) {
	dets := []Detection{
		{CX: 0.1, CY: 0.1, W: 0.1, H: 0.1, Confidence: 0.6},
		{CX: 0.5, CY: 0.5, W: 0.1, H: 0.1, Confidence: 0.9},
		{CX: 0.9, CY: 0.9, W: 0.1, H: 0.1, Confidence: 0.7},
	}

	got := Suppress(dets, 0.5)

	require.Len(t, got, 3)
	assert.Equal(t, float32(0.9), got[0].Confidence)
	assert.Equal(t, float32(0.7), got[1].Confidence)
	assert.Equal(t, float32(0.6), got[2].Confidence)
}

func TestSuppress_OverlapAtThresholdIsKept(t *testing.T) {
	// IoU exactly 1/3; suppression requires strictly greater.
	a := Detection{CX: 1, CY: 1, W: 2, H: 2, Confidence: 0.9}
	b := Detection{CX: 2, CY: 1, W: 2, H: 2, Confidence: 0.8}

	assert.Len(t, Suppress([]Detection{a, b}, IoU(a, b)), 2)
	assert.Len(t, Suppress([]Detection{a, b}, IoU(a, b)-0.01), 1)
}

func TestSuppress_SuppressedBoxDoesNotSuppressOthers(t *testing.T) {
	// b overlaps both a and c, but b is suppressed by a first, so c survives.
	a := Detection{CX: 0, CY: 0, W: 2, H: 2, Confidence: 0.9}
	b := Detection{CX: 1, CY: 0, W: 2, H: 2, Confidence: 0.8}
	c := Detection{CX: 2, CY: 0, W: 2, H: 2, Confidence: 0.7}

	got := Suppress([]Detection{c, b, a}, 0.3)

	assert.Equal(t, []Detection{a, c}, got)
}

func TestSuppress_DoesNotMutateInput(t *testing.T) {
	dets := []Detection{
		{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2, Confidence: 0.5},
		{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2, Confidence: 0.9},
	}
	before := append([]Detection(nil), dets...)

	Suppress(dets, 0.5)

	assert.Equal(t, before, dets)
}

func TestSuppress_RandomSetsAreSubsetWithoutOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const threshold = 0.45

	for round := 0; round < 200; round++ {
		n := rng.Intn(40)
		dets := make([]Detection, n)
		for i := range dets {
			dets[i] = Detection{
				CX:         rng.Float32(),
				CY:         rng.Float32(),
				W:          0.02 + rng.Float32()*0.3,
				H:          0.02 + rng.Float32()*0.3,
				Confidence: rng.Float32(),
			}
		}

		got := Suppress(dets, threshold)

		assert.Subset(t, dets, got)
		for i := range got {
			assert.GreaterOrEqual(t, got[i].Confidence, float32(0))
			for j := i + 1; j < len(got); j++ {
				assert.LessOrEqual(t, IoU(got[i], got[j]), float32(threshold))
			}
		}
	}
}

func TestFilterByConfidence(t *testing.T) {
	dets := []Detection{
		{Confidence: 0.2},
		{Confidence: 0.5},
		{Confidence: 0.51},
		{Confidence: 0.9},
	}

	got := FilterByConfidence(dets, 0.5)

	require.Len(t, got, 2)
	assert.Equal(t, float32(0.51), got[0].Confidence)
	assert.Equal(t, float32(0.9), got[1].Confidence)
	assert.Len(t, dets, 4)
}

func TestScale(t *testing.T) {
	dets := []Detection{{CX: 0.5, CY: 0.5, W: 0.1, H: 0.2, Confidence: 0.8}}

	got := Scale(dets, 1920, 1080)

	require.Len(t, got, 1)
	assert.InDelta(t, 960, got[0].CX, 1e-3)
	assert.InDelta(t, 540, got[0].CY, 1e-3)
	assert.InDelta(t, 192, got[0].W, 1e-3)
	assert.InDelta(t, 216, got[0].H, 1e-3)
	assert.Equal(t, float32(0.8), got[0].Confidence)
}

package detection

import "sort"

// candidate is a detection with its precomputed corners and area plus its
// suppression state. Suppression lives here, never in Confidence.
type candidate struct {
	det        Detection
	box        Corners
	area       float32
	suppressed bool
}

// IoU returns the intersection-over-union of two center-format boxes.
// Disjoint or touching boxes yield 0, as does a non-positive union.
func IoU(a, b Detection) float32 {
	ca, cb := a.Corners(), b.Corners()
	return iou(ca, ca.Area(), cb, cb.Area())
}

func iou(a Corners, areaA float32, b Corners, areaB float32) float32 {
	interX1 := max(a.X1, b.X1)
	interY1 := max(a.Y1, b.Y1)
	interX2 := min(a.X2, b.X2)
	interY2 := min(a.Y2, b.Y2)

	var inter float32
	if interX2 > interX1 && interY2 > interY1 {
		inter = (interX2 - interX1) * (interY2 - interY1)
	}

	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Suppress runs greedy non-maximum suppression.
//
// Detections are visited in descending confidence order (stable for ties).
// Each one still active is kept, and every later active detection whose IoU
// with it exceeds iouThreshold is suppressed. The result is in descending
// confidence order. Runs in O(n²).
func Suppress(dets []Detection, iouThreshold float32) []Detection {
	if len(dets) == 0 {
		return []Detection{}
	}

	cands := make([]candidate, len(dets))
	for i, d := range dets {
		box := d.Corners()
		cands[i] = candidate{det: d, box: box, area: box.Area()}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].det.Confidence > cands[j].det.Confidence
	})

	kept := make([]Detection, 0, len(cands))
	for i := range cands {
		if cands[i].suppressed {
			continue
		}
		cur := &cands[i]
		kept = append(kept, cur.det)

		for j := i + 1; j < len(cands); j++ {
			other := &cands[j]
			if other.suppressed {
				continue
			}
			if iou(cur.box, cur.area, other.box, other.area) > iouThreshold {
				other.suppressed = true
			}
		}
	}

	return kept
}

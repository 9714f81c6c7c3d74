// Package layout computes timeline view geometry: where sentence blocks sit,
// how the ruler is labeled, and what a drag gesture means. It holds no state
// of its own; the sentence model stays authoritative.
package layout

import (
	"math"

	"github.com/nipun-das/ai-dubbing-tool/internal/model"
)

// DefaultMinVisibleFraction keeps even very short sentences wide enough to
// click.
const DefaultMinVisibleFraction = 0.02

// Box is one sentence block in fractional track coordinates [0, 1].
type Box struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Width float64 `json:"width"`
}

// Geometry produces view boxes from the sentence model.
type Geometry struct {
	MinVisibleFraction float64
}

// NewGeometry returns a Geometry with the default width floor.
func NewGeometry() Geometry {
	return Geometry{MinVisibleFraction: DefaultMinVisibleFraction}
}

// Boxes positions every sentence along the track. Width is floored at
// MinVisibleFraction so segments shorter than the floor remain clickable.
func (g Geometry) Boxes(sentences []model.Sentence, totalDuration float64) []Box {
	boxes := make([]Box, len(sentences))
	for i, s := range sentences {
		boxes[i] = Box{ID: s.ID, X: 0, Width: g.MinVisibleFraction}
		if totalDuration <= 0 {
			continue
		}
		boxes[i].X = s.StartTime / totalDuration
		boxes[i].Width = math.Max(s.Duration/totalDuration, g.MinVisibleFraction)
	}
	return boxes
}

// TimeAt maps a click position on the ruler to a time. frac is clamped to
// [0, 1].
func TimeAt(frac, totalDuration float64) float64 {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return frac * totalDuration
}

// TickInterval returns the spacing between ruler labels in seconds. Zooming
// in scales marker density up without changing underlying time values; the
// result snaps to a 1-2-5 progression.
func TickInterval(totalDuration, zoom float64) float64 {
	if totalDuration <= 0 {
		return 1
	}
	if zoom <= 0 {
		zoom = 1
	}
	const targetLabels = 10
	raw := totalDuration / (targetLabels * zoom)
	return niceStep(raw)
}

// niceStep rounds raw up to the nearest 1, 2, or 5 times a power of ten.
func niceStep(raw float64) float64 {
	if raw <= 0 {
		return 1
	}
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	switch norm := raw / mag; {
	case norm <= 1:
		return mag
	case norm <= 2:
		return 2 * mag
	case norm <= 5:
		return 5 * mag
	default:
		return 10 * mag
	}
}

// DropIndex interprets a horizontal drag as a reorder intent: the dragged
// box's displaced center is compared against the other boxes' centers to
// find the target position. Positions are only recalculated on drop, never
// during the drag.
func DropIndex(boxes []Box, dragged int, dx float64) int {
	if dragged < 0 || dragged >= len(boxes) {
		return dragged
	}
	center := boxes[dragged].X + boxes[dragged].Width/2 + dx

	// Count the boxes whose center the dragged one has passed; that count is
	// the final position in the reordered list.
	target := 0
	for i, b := range boxes {
		if i == dragged {
			continue
		}
		if center > b.X+b.Width/2 {
			target++
		}
	}
	if target >= len(boxes) {
		target = len(boxes) - 1
	}
	return target
}

// Reordered emits the full id list with the element at from moved to to.
// This is what the view hands to the sentence model on drop.
func Reordered(ids []string, from, to int) []string {
	out := make([]string, 0, len(ids))
	out = append(out, ids...)
	if from < 0 || from >= len(out) || to < 0 || to >= len(out) || from == to {
		return out
	}
	id := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]string{id}, out[to:]...)...)
	return out
}

package postprocess

import (
	"fmt"
	"sort"
)

// boxChannels is the number of leading geometry channels (cx, cy, w, h).
const boxChannels = 4

const (
	DefaultThreshold    float32 = 0.5
	DefaultIoUThreshold float32 = 0.5
	DefaultMaxResults           = 3
)

// Decode reads a channel-major detection grid: the value of channel j for
// candidate c sits at c + elements*j. Channels 0..3 hold the normalized
// center-form box, the rest hold one score per category (label index j-4).
//
// A candidate is kept when its best score exceeds threshold and all four
// corners fall inside [0,1]; out-of-range boxes are dropped, not clamped.
// The category list is only built for candidates that pass both checks.
func Decode(output []float32, channels, elements int, labels []string, threshold float32) ([]Detection, error) {
	if channels <= boxChannels || elements <= 0 {
		return nil, fmt.Errorf("%w: %d channels x %d elements", ErrOutputSize, channels, elements)
	}
	if len(output) < channels*elements {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrOutputSize, len(output), channels*elements)
	}

	var detections []Detection
	for c := 0; c < elements; c++ {
		best := output[c+elements*boxChannels]
		for j := boxChannels + 1; j < channels; j++ {
			if v := output[c+elements*j]; v > best {
				best = v
			}
		}
		if !(best > threshold) {
			continue
		}

		cx := output[c]
		cy := output[c+elements]
		w := output[c+elements*2]
		h := output[c+elements*3]
		box := Rect{
			X1: cx - w/2,
			Y1: cy - h/2,
			X2: cx + w/2,
			Y2: cy + h/2,
		}
		if !box.Valid() {
			continue
		}

		categories := make([]Category, 0, channels-boxChannels)
		for j := boxChannels; j < channels; j++ {
			categories = append(categories, Category{
				Index: j - boxChannels,
				Label: label(labels, j-boxChannels),
				Score: output[c+elements*j],
			})
		}
		sort.SliceStable(categories, func(a, b int) bool {
			return categories[a].Score > categories[b].Score
		})
		// NaN scores do not order, so the sorted head decides
		if !(categories[0].Score > threshold) {
			continue
		}

		detections = append(detections, Detection{
			Box:        box,
			Categories: categories,
		})
	}
	return detections, nil
}

// IoU is the intersection over union of two boxes. Non-overlapping boxes
// give 0, identical boxes give 1.
func IoU(a, b Rect) float32 {
	left := max(a.X1, b.X1)
	top := max(a.Y1, b.Y1)
	right := min(a.X2, b.X2)
	bottom := min(a.Y2, b.Y2)

	intersection := max(0, right-left) * max(0, bottom-top)
	union := a.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// Suppress runs greedy non-max suppression: the best remaining box is kept and
// every other box overlapping it with IoU >= iouThreshold is discarded. The
// result is ordered by score, ties keep their input order. The input slice is
// not modified.
func Suppress(boxes []Detection, iouThreshold float32) []Detection {
	sorted := make([]Detection, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Top().Score > sorted[j].Top().Score
	})

	selected := make([]Detection, 0, len(sorted))
	removed := make([]bool, len(sorted))
	for i := range sorted {
		if removed[i] {
			continue
		}
		selected = append(selected, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if removed[j] {
				continue
			}
			if IoU(sorted[i].Box, sorted[j].Box) >= iouThreshold {
				removed[j] = true
			}
		}
	}
	return selected
}

// Detector bundles the decode parameters of one detection model.
type Detector struct {
	Labels       []string
	Threshold    float32
	IoUThreshold float32
	MaxResults   int
}

func NewDetector(labels []string) Detector {
	return Detector{
		Labels:       labels,
		Threshold:    DefaultThreshold,
		IoUThreshold: DefaultIoUThreshold,
		MaxResults:   DefaultMaxResults,
	}
}

// Process decodes the grid, suppresses duplicates and keeps at most
// MaxResults boxes, best first. A non-positive MaxResults keeps all of them.
func (d Detector) Process(output []float32, channels, elements int) ([]Detection, error) {
	candidates, err := Decode(output, channels, elements, d.Labels, d.Threshold)
	if err != nil {
		return nil, err
	}

	boxes := Suppress(candidates, d.IoUThreshold)
	if d.MaxResults > 0 && len(boxes) > d.MaxResults {
		boxes = boxes[:d.MaxResults]
	}
	return boxes, nil
}

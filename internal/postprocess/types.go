// Package postprocess decodes raw model outputs into labeled results.
package postprocess

import "errors"

var ErrOutputSize = errors.New("output tensor size mismatch")

// Category pairs a label index with its score. Label is empty when the label
// set has no entry for Index.
type Category struct {
	Index int     `json:"index"`
	Label string  `json:"label"`
	Score float32 `json:"score"`
}

// Rect is a corner-form box normalized to [0,1].
type Rect struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

func (r Rect) Width() float32 {
	return r.X2 - r.X1
}

func (r Rect) Height() float32 {
	return r.Y2 - r.Y1
}

func (r Rect) Area() float32 {
	return r.Width() * r.Height()
}

// Valid reports whether the box is ordered and fully inside the unit square.
func (r Rect) Valid() bool {
	return inUnit(r.X1) && inUnit(r.Y1) && inUnit(r.X2) && inUnit(r.Y2) &&
		r.X1 <= r.X2 && r.Y1 <= r.Y2
}

func inUnit(v float32) bool {
	return v >= 0 && v <= 1
}

// Detection is one decoded box with every category score, highest first.
type Detection struct {
	Box        Rect       `json:"box"`
	Categories []Category `json:"categories"`
}

// Top returns the best category.
func (d Detection) Top() Category {
	if len(d.Categories) == 0 {
		return Category{Index: -1}
	}
	return d.Categories[0]
}

func label(labels []string, i int) string {
	if i >= 0 && i < len(labels) {
		return labels[i]
	}
	return ""
}

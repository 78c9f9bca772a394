package postprocess

// Classify returns the best scoring category, the first one on ties. Indices
// without a label are reported with an empty Label. ok is false only for an
// empty score vector.
func Classify(scores []float32, labels []string) (best Category, ok bool) {
	if len(scores) == 0 {
		return Category{Index: -1}, false
	}

	best = Category{Index: 0, Label: label(labels, 0), Score: scores[0]}
	for i, score := range scores[1:] {
		if score > best.Score {
			best = Category{Index: i + 1, Label: label(labels, i+1), Score: score}
		}
	}
	return best, true
}

package model

// SelectBest returns the label with the highest probability. The running best
// starts at zero, so the first index wins ties and a vector without a positive
// entry yields UnknownLabel.
func SelectBest(probs []float32, labels LabelSet) Prediction {
	best := Prediction{Label: UnknownLabel}
	for i, p := range probs {
		if i >= len(labels) {
			break
		}
		if p > best.Probability {
			best = Prediction{Label: labels[i], Probability: p}
		}
	}
	return best
}

// Response builds the HTTP prediction response for a probability vector.
func Response(probs []float32, labels LabelSet) *PredictionResponse {
	best := SelectBest(probs, labels)
	predictions := make(map[string]float32, len(labels))
	for i, val := range probs {
		if i < len(labels) {
			predictions[labels[i]] = val
		}
	}
	return &PredictionResponse{
		Class:       best.Label,
		Confidence:  best.Confidence(),
		Probability: best.Probability,
		Predictions: predictions,
	}
}

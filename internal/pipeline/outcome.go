package pipeline

import "github.com/Brownie44l1/leafcheck/internal/model"

type OutcomeKind int

const (
	OutcomeSkipped OutcomeKind = iota
	OutcomePredicted
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSkipped:
		return "skipped"
	case OutcomePredicted:
		return "predicted"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one event's pipeline. Err is set only for
// OutcomeFailed and Prediction only for OutcomePredicted.
type Outcome struct {
	Kind       OutcomeKind
	Prediction model.Prediction
	Err        error
}

func Skipped() Outcome {
	return Outcome{Kind: OutcomeSkipped}
}

func Predicted(p model.Prediction) Outcome {
	return Outcome{Kind: OutcomePredicted, Prediction: p}
}

func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}
}

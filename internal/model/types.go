package model

import "math"

const (
	// ImageSize is the fixed edge length the classifier expects.
	ImageSize = 224
	// Channels is the number of colour channels fed to the classifier.
	Channels = 3
	// UnknownLabel is reported when no class has a positive probability.
	UnknownLabel = "unknown"
)

// InputShape is the NHWC shape of every tensor handed to Predict.
var InputShape = []int64{1, ImageSize, ImageSize, Channels}

// Metadata describes a model file. Every field is optional.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
}

// LabelSet maps output vector positions to class names.
type LabelSet []string

// Tensor is a dense float32 array with an explicit shape.
type Tensor struct {
	Shape []int64
	Data  []float32
}

type Prediction struct {
	Label       string  `json:"label"`
	Probability float32 `json:"probability"`
}

// Confidence is the probability as a whole percentage, rounded half away from zero.
func (p Prediction) Confidence() int {
	return int(math.Round(float64(p.Probability) * 100))
}

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type PredictionResponse struct {
	Class       string             `json:"class"`
	Confidence  int                `json:"confidence"`
	Probability float32            `json:"probability"`
	Predictions map[string]float32 `json:"predictions"`
}

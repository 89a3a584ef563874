package model

import "errors"

var (
	// ErrDecode indicates the image bytes are malformed or of an unsupported format.
	ErrDecode = errors.New("image decode failed")
	// ErrInference indicates the classifier could not produce a probability vector.
	ErrInference = errors.New("inference failed")
	// ErrModelLoad indicates the model could not be loaded at startup.
	ErrModelLoad = errors.New("model load failed")
)

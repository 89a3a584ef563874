package pipeline

import "errors"

var (
	// ErrRetrieval indicates the attached content could not be fetched in full.
	ErrRetrieval = errors.New("content retrieval failed")
	// ErrDelivery indicates the platform rejected or never received a reply.
	ErrDelivery = errors.New("reply delivery failed")
)

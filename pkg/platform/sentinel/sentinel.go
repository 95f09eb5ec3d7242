package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into
// domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrAlreadyFinished: batch summary was already computed for this id
// - ErrUnknownBatch: batch id was never begun or has been discarded
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrAlreadyFinished = errors.New("already finished")
	ErrUnknownBatch    = errors.New("unknown batch")
)

// Package services defines the business logic for submission ingestion and
// status aggregation. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownForm indicates that the requested form type is not one of
	// the canonical types the gateway accepts.
	ErrUnknownForm = errors.New("unknown form type")

	// ErrStoreUnavailable is returned when the local durable store cannot
	// accept a write. This is the one failure the gateway does not absorb:
	// without local durability there is nothing to degrade to.
	ErrStoreUnavailable = errors.New("local store unavailable")
)

// DuplicateError reports that the idempotency guard rejected a submission
// because a prior record with the same dedup key exists. PriorID identifies
// the authoritative first record so the caller can correlate.
type DuplicateError struct {
	PriorID  string
	FormType string
}

// Error implements the error interface.
func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate submission for %s (prior id %s)", e.FormType, e.PriorID)
}

// Package triage implements the alert classification and review
// state machine at the core of Harrier.
package triage

import "errors"

var (
	// ErrInvalidTransition marks a status change that is not reachable
	// from the alert's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrValidation marks caller input that violates the triage contract
	// (score out of range, notes too long, oversized batch).
	ErrValidation = errors.New("validation failed")
)

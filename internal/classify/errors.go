// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package classify

import "github.com/samber/oops"

// Error codes for classification failures.
const (
	CodeUnsupportedEvent    = "UNSUPPORTED_EVENT"
	CodeDuplicateEvent      = "DUPLICATE_EVENT"
	CodeMetadataUnavailable = "METADATA_UNAVAILABLE"
)

// ErrUnsupportedEvent creates an error for a malformed or empty event shape.
func ErrUnsupportedEvent(eventID string) error {
	return oops.Code(CodeUnsupportedEvent).
		With("event_id", eventID).
		Errorf("event carries no classifiable payload")
}

// ErrDuplicateEvent creates an error for a redelivered event id.
func ErrDuplicateEvent(eventID string) error {
	return oops.Code(CodeDuplicateEvent).
		With("event_id", eventID).
		Errorf("event already processed")
}

// IsDuplicate reports whether err marks a redelivered event.
func IsDuplicate(err error) bool {
	oopsErr, ok := oops.AsOops(err)
	return ok && oopsErr.Code() == CodeDuplicateEvent
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package registry

import "github.com/samber/oops"

// Error codes for registry failures.
const (
	CodeDuplicateName   = "DUPLICATE_NAME"
	CodeMissingHandler  = "MISSING_HANDLER"
	CodeUnknownPlugin   = "UNKNOWN_PLUGIN"
	CodeReloadInFlight  = "RELOAD_IN_FLIGHT"
	CodeSourceFailed    = "SOURCE_FAILED"
	CodeInvalidManifest = "INVALID_MANIFEST"
	CodeInvalidPattern  = "INVALID_PATTERN"
)

// ErrDuplicateName creates an error for a case-insensitive name collision.
func ErrDuplicateName(name, existingSource string) error {
	return oops.Code(CodeDuplicateName).
		With("name", name).
		With("existing_source", existingSource).
		Errorf("plugin name already registered: %s", name)
}

// ErrMissingHandler creates an error for a definition with neither a
// resolvable name nor any passive handler.
func ErrMissingHandler(sourceID string) error {
	return oops.Code(CodeMissingHandler).
		With("source", sourceID).
		Errorf("definition has no resolvable name and no passive handler")
}

// ErrUnknownPlugin creates an error for a lookup of an unregistered name.
func ErrUnknownPlugin(name string) error {
	return oops.Code(CodeUnknownPlugin).
		With("name", name).
		Errorf("unknown plugin: %s", name)
}

// ErrSourceFailed wraps a plugin source that failed to yield definitions.
func ErrSourceFailed(sourceID string, err error) error {
	return oops.Code(CodeSourceFailed).
		With("source", sourceID).
		Wrap(err)
}

// ErrReloadInFlight creates an error for a rejected concurrent reload.
func ErrReloadInFlight(sourceID string) error {
	return oops.Code(CodeReloadInFlight).
		With("source", sourceID).
		Errorf("another reload is already in flight")
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package registry

// Source yields plugin definitions for registration. The registry never
// watches filesystems itself; any change-detection mechanism (poll, signal,
// admin command) observes the source and calls Registry.Reload.
type Source interface {
	// ID identifies the source for ownership bookkeeping.
	ID() string
	// Definitions yields fresh definitions. Called on every load and
	// reload; implementations must not return shared mutable values.
	Definitions() ([]*Definition, error)
}

// Fingerprinted is implemented by sources that can cheaply report whether
// their content changed; the reload scheduler skips unchanged sources.
type Fingerprinted interface {
	Fingerprint() (string, error)
}

type staticSource struct {
	id      string
	factory func() ([]*Definition, error)
}

// NewStaticSource wraps a definition factory as a Source. The factory is
// invoked per load so reloads see fresh definition values.
func NewStaticSource(id string, factory func() ([]*Definition, error)) Source {
	return &staticSource{id: id, factory: factory}
}

func (s *staticSource) ID() string { return s.id }

func (s *staticSource) Definitions() ([]*Definition, error) { return s.factory() }

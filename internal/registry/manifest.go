// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Manifest is an operator-supplied plugin.yaml overriding a definition's
// metadata and policy without touching code.
type Manifest struct {
	Name     string   `yaml:"name"`
	Version  string   `yaml:"version"`
	Category string   `yaml:"category,omitempty"`
	Aliases  []string `yaml:"aliases,omitempty"`
	Disabled bool     `yaml:"disabled,omitempty"`
	Reason   string   `yaml:"reason,omitempty"`

	Cooldown     time.Duration `yaml:"cooldown,omitempty"`
	RateMax      int           `yaml:"rate-max,omitempty"`
	RateWindow   time.Duration `yaml:"rate-window,omitempty"`
	Dependencies []string      `yaml:"dependencies,omitempty"`
}

const maxManifestNameLength = 64

// manifestNamePattern validates manifest names: lowercase start, lowercase
// letters, digits, or hyphens, not ending with a hyphen.
var manifestNamePattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// ParseManifest parses and validates a plugin.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, oops.Code(CodeInvalidManifest).Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, oops.Code(CodeInvalidManifest).Wrap(err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if m.Name == "" || !manifestNamePattern.MatchString(m.Name) {
		return oops.Code(CodeInvalidManifest).
			With("name", m.Name).
			Errorf("name must start with a-z and contain only a-z, 0-9, hyphens")
	}
	if len(m.Name) > maxManifestNameLength {
		return oops.Code(CodeInvalidManifest).
			With("name", m.Name).
			Errorf("name must be %d characters or less", maxManifestNameLength)
	}
	if m.Version == "" {
		return oops.Code(CodeInvalidManifest).Errorf("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return oops.Code(CodeInvalidManifest).
			With("version", m.Version).
			Wrap(err)
	}
	return nil
}

// Apply overlays the manifest onto a definition.
func (m *Manifest) Apply(def *Definition) {
	if m.Category != "" {
		def.Category = m.Category
	}
	if len(m.Aliases) > 0 {
		def.Aliases = m.Aliases
	}
	if m.Cooldown > 0 {
		def.Policy.Cooldown = m.Cooldown
	}
	if m.RateMax > 0 {
		def.Policy.RateMax = m.RateMax
	}
	if m.RateWindow > 0 {
		def.Policy.RateWindow = m.RateWindow
	}
	if len(m.Dependencies) > 0 {
		def.Dependencies = append(def.Dependencies, m.Dependencies...)
	}
}

// overrideSource decorates a base source with plugin.yaml overrides read
// from <dir>/<plugin>/plugin.yaml. Invalid manifests are logged by the
// caller via load errors; a missing directory means no overrides.
type overrideSource struct {
	base Source
	dir  string
}

// WithOverrides wraps a source so operator manifests under dir adjust the
// definitions it yields.
func WithOverrides(base Source, dir string) Source {
	return &overrideSource{base: base, dir: dir}
}

func (o *overrideSource) ID() string { return o.base.ID() }

func (o *overrideSource) Definitions() ([]*Definition, error) {
	defs, err := o.base.Definitions()
	if err != nil {
		return nil, err
	}
	manifests, err := loadManifests(o.dir)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		m, ok := manifests[def.Name]
		if !ok {
			continue
		}
		m.Apply(def)
		if m.Disabled {
			def.Enabled = false
			def.DisabledReason = m.Reason
			if def.DisabledReason == "" {
				def.DisabledReason = "disabled by manifest"
			}
		}
	}
	return defs, nil
}

// Fingerprint hashes the manifest directory contents plus the base
// fingerprint, if any, so the reload scheduler can detect change.
func (o *overrideSource) Fingerprint() (string, error) {
	h := sha256.New()
	if fp, ok := o.base.(Fingerprinted); ok {
		base, err := fp.Fingerprint()
		if err != nil {
			return "", err
		}
		h.Write([]byte(base))
	}

	entries, err := os.ReadDir(o.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return hex.EncodeToString(h.Sum(nil)), nil
		}
		return "", fmt.Errorf("read override dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(o.dir, name, "plugin.yaml")) //nolint:gosec // paths come from ReadDir entries
		if err != nil {
			continue
		}
		h.Write([]byte(name))
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// loadManifests reads every <dir>/<plugin>/plugin.yaml. Plugins without a
// manifest are skipped; invalid manifests fail the load.
func loadManifests(dir string) (map[string]*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read override dir: %w", err)
	}

	manifests := make(map[string]*Manifest)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name(), "plugin.yaml")) //nolint:gosec // paths come from ReadDir entries
		if err != nil {
			continue
		}
		m, err := ParseManifest(data)
		if err != nil {
			return nil, oops.Code(CodeInvalidManifest).
				With("dir", entry.Name()).
				Wrap(err)
		}
		manifests[m.Name] = m
	}
	return manifests, nil
}

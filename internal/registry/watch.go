// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package registry

import (
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// ReloadScheduler is a pluggable reload trigger: it polls sources on a cron
// schedule and calls Registry.Reload when a source's fingerprint changes.
// The registry itself stays free of change-detection concerns.
type ReloadScheduler struct {
	reg  *Registry
	cron *cron.Cron

	mu    sync.Mutex
	prior map[string]string // source id -> last fingerprint
}

// NewReloadScheduler creates a scheduler bound to a registry.
func NewReloadScheduler(reg *Registry) *ReloadScheduler {
	return &ReloadScheduler{
		reg:   reg,
		cron:  cron.New(),
		prior: make(map[string]string),
	}
}

// Watch polls src on the given cron spec (e.g. "@every 30s"). Sources that
// implement Fingerprinted reload only on change; others reload every tick.
func (s *ReloadScheduler) Watch(spec string, src Source) error {
	_, err := s.cron.AddFunc(spec, func() { s.poll(src) })
	return err
}

func (s *ReloadScheduler) poll(src Source) {
	if fp, ok := src.(Fingerprinted); ok {
		current, err := fp.Fingerprint()
		if err != nil {
			slog.Warn("fingerprint failed, skipping reload",
				"source", src.ID(),
				"error", err)
			return
		}
		s.mu.Lock()
		unchanged := s.prior[src.ID()] == current
		s.prior[src.ID()] = current
		s.mu.Unlock()
		if unchanged {
			return
		}
	}

	if err := s.reg.Reload(src); err != nil {
		slog.Error("scheduled reload failed",
			"source", src.ID(),
			"error", err)
	}
}

// Prime records the source's current fingerprint so the first poll after an
// initial load does not trigger a spurious reload.
func (s *ReloadScheduler) Prime(src Source) {
	fp, ok := src.(Fingerprinted)
	if !ok {
		return
	}
	current, err := fp.Fingerprint()
	if err != nil {
		return
	}
	s.mu.Lock()
	s.prior[src.ID()] = current
	s.mu.Unlock()
}

// Start begins polling.
func (s *ReloadScheduler) Start() { s.cron.Start() }

// Stop halts polling and waits for an in-flight poll to finish.
func (s *ReloadScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

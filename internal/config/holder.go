package config

import (
	"sync"
	"sync/atomic"
)

// Holder publishes the current *Config snapshot to concurrent readers.
// Snapshots are never mutated after Update; writers build a new one. Each
// Update bumps a generation counter so callers can tell whether the snapshot
// they hold is still current.
type Holder struct {
	cur     atomic.Pointer[Config]
	gen     atomic.Uint64
	writeMu sync.Mutex // serializes read-modify-write cycles in Store
	path    string
}

// NewHolder creates a Holder with the initial config and config file path.
func NewHolder(cfg *Config, path string) *Holder {
	h := &Holder{path: path}
	h.cur.Store(cfg)

	return h
}

// Config returns the current snapshot. Callers must treat it as read-only.
func (h *Holder) Config() *Config {
	return h.cur.Load()
}

// Path returns the config file path.
func (h *Holder) Path() string {
	return h.path
}

// Generation is 0 for the initial snapshot and grows by one per Update.
func (h *Holder) Generation() uint64 {
	return h.gen.Load()
}

// Update publishes cfg and returns the snapshot it replaced.
func (h *Holder) Update(cfg *Config) *Config {
	prev := h.cur.Swap(cfg)
	h.gen.Add(1)

	return prev
}

// Package store provides the flat, namespaced key-value store the state
// tree is mirrored into. The core only talks to the Store interface; a
// memory and a SQLite-backed implementation are included.
package store

import "time"

// Meta is the static metadata attached to a key when it is first
// created. Immutable thereafter.
type Meta struct {
	Type        string
	Role        string
	Description string
	Unit        string
	States      map[string]string
	Writable    bool
}

// Entry is a stored value with its metadata and freshness timestamps.
type Entry struct {
	Value any
	// Synced is the last value confirmed by the bridge, written by
	// polls and command acknowledgements only. External writes leave
	// it untouched, so a pending command is never compared against
	// its own value.
	Synced any
	Meta   Meta
	// Subscribed marks a controllable field whose external writes are
	// routed to the command builder. Never reverts once set.
	Subscribed bool
	// LastUpdated is bumped on every write.
	LastUpdated time.Time
	// LastSynced is bumped only by poll-originated writes. Zero means
	// the key was created locally and never observed in a poll.
	LastSynced time.Time
}

// WriteFunc is invoked for external writes to subscribed keys.
type WriteFunc func(key string, value any)

// Store is the external observable key-value store interface.
type Store interface {
	// Get returns the current value for a key.
	Get(key string) (any, bool)

	// GetEntry returns the full entry for a key.
	GetEntry(key string) (Entry, bool)

	// Set writes a poll-originated value. Metadata is applied only on
	// first creation; lastUpdated and lastSynced are bumped.
	Set(key string, value any, meta *Meta) error

	// Ack writes a value without marking it synced and without
	// notifying external-write subscribers. Used for command
	// acknowledgements and shadow keys.
	Ack(key string, value any) error

	// Subscribe marks a key as externally writable.
	Subscribe(key string)

	// Subscribed reports whether a key is subscribed.
	Subscribed(key string) bool

	// OnExternalWrite registers the callback invoked by ExternalWrite.
	OnExternalWrite(fn WriteFunc)

	// ExternalWrite records a write originating outside the poll loop
	// and notifies the registered callback if the key is subscribed.
	ExternalWrite(key string, value any)

	// Keys returns all known keys.
	Keys() []string

	// Delete removes a key. Returns true if it existed.
	Delete(key string) (bool, error)
}

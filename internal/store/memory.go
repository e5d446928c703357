package store

import (
	"sync"
	"time"
)

// Memory is an in-memory Store. It is also the read path of the SQLite
// store, which embeds it.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	onWrite WriteFunc
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*Entry)}
}

// Get returns the current value for a key.
func (m *Memory) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// GetEntry returns the full entry for a key.
func (m *Memory) GetEntry(key string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Set writes a poll-originated value.
func (m *Memory) Set(key string, value any, meta *Meta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	entry, ok := m.entries[key]
	if !ok {
		entry = &Entry{}
		if meta != nil {
			entry.Meta = *meta
		}
		m.entries[key] = entry
	}
	entry.Value = value
	entry.Synced = value
	entry.LastUpdated = now
	entry.LastSynced = now
	return nil
}

// Ack writes a device-confirmed value without touching lastSynced or
// notifying subscribers.
func (m *Memory) Ack(key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		entry = &Entry{}
		m.entries[key] = entry
	}
	entry.Value = value
	entry.Synced = value
	entry.LastUpdated = time.Now()
	return nil
}

// Subscribe marks a key as externally writable.
func (m *Memory) Subscribe(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		entry = &Entry{}
		m.entries[key] = entry
	}
	entry.Subscribed = true
	entry.Meta.Writable = true
}

// Subscribed reports whether a key is subscribed.
func (m *Memory) Subscribed(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	return ok && entry.Subscribed
}

// OnExternalWrite registers the external write callback.
func (m *Memory) OnExternalWrite(fn WriteFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onWrite = fn
}

// ExternalWrite records a write from an external actor and notifies the
// callback when the key is subscribed. The synced value stays at what
// the bridge last reported.
func (m *Memory) ExternalWrite(key string, value any) {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if !ok {
		entry = &Entry{}
		m.entries[key] = entry
	}
	entry.Value = value
	entry.LastUpdated = time.Now()
	subscribed := entry.Subscribed
	fn := m.onWrite
	m.mu.Unlock()

	if subscribed && fn != nil {
		fn(key, value)
	}
}

// Keys returns all known keys.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	return keys
}

// Delete removes a key.
func (m *Memory) Delete(key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.entries[key]
	if ok {
		delete(m.entries, key)
	}
	return ok, nil
}

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// SQLite is a persistent Store. Reads are served from an in-memory
// mirror loaded at open time; writes go through to the database.
type SQLite struct {
	db  *sql.DB
	mem *Memory
}

// NewSQLite creates a SQLite-backed store and loads all persisted
// entries into memory.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	s := &SQLite{db: db, mem: NewMemory()}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load store entries: %w", err)
	}
	return s, nil
}

func (s *SQLite) load() error {
	rows, err := s.db.Query(`
		SELECT key, value, synced, meta, subscribed, last_updated, last_synced FROM store_entries
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var key, valueStr, syncedStr, metaStr string
		var subscribed bool
		var lastUpdated, lastSynced int64
		if err := rows.Scan(&key, &valueStr, &syncedStr, &metaStr, &subscribed, &lastUpdated, &lastSynced); err != nil {
			return err
		}

		entry := &Entry{Subscribed: subscribed}
		if lastUpdated > 0 {
			entry.LastUpdated = time.Unix(lastUpdated, 0)
		}
		if lastSynced > 0 {
			entry.LastSynced = time.Unix(lastSynced, 0)
		}
		if err := json.Unmarshal([]byte(valueStr), &entry.Value); err != nil {
			log.Warn().Str("key", key).Err(err).Msg("Skipping store entry with unreadable value")
			continue
		}
		if syncedStr != "" {
			if err := json.Unmarshal([]byte(syncedStr), &entry.Synced); err != nil {
				log.Warn().Str("key", key).Err(err).Msg("Dropping unreadable synced value for store entry")
			}
		}
		if metaStr != "" {
			if err := json.Unmarshal([]byte(metaStr), &entry.Meta); err != nil {
				log.Warn().Str("key", key).Err(err).Msg("Dropping unreadable metadata for store entry")
			}
		}

		s.mem.mu.Lock()
		s.mem.entries[key] = entry
		s.mem.mu.Unlock()
		count++
	}

	log.Debug().Int("entries", count).Msg("Loaded persisted store entries")
	return rows.Err()
}

func (s *SQLite) persist(key string) {
	entry, ok := s.mem.GetEntry(key)
	if !ok {
		return
	}

	valueData, err := json.Marshal(entry.Value)
	if err != nil {
		log.Warn().Str("key", key).Err(err).Msg("Failed to marshal store value")
		return
	}
	syncedData, err := json.Marshal(entry.Synced)
	if err != nil {
		log.Warn().Str("key", key).Err(err).Msg("Failed to marshal synced value")
		return
	}
	metaData, err := json.Marshal(entry.Meta)
	if err != nil {
		log.Warn().Str("key", key).Err(err).Msg("Failed to marshal store metadata")
		return
	}

	var lastUpdated, lastSynced int64
	if !entry.LastUpdated.IsZero() {
		lastUpdated = entry.LastUpdated.UTC().Unix()
	}
	if !entry.LastSynced.IsZero() {
		lastSynced = entry.LastSynced.UTC().Unix()
	}

	_, err = s.db.Exec(`
		INSERT INTO store_entries (key, value, synced, meta, subscribed, last_updated, last_synced)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			synced = excluded.synced,
			meta = excluded.meta,
			subscribed = excluded.subscribed,
			last_updated = excluded.last_updated,
			last_synced = excluded.last_synced
	`, key, string(valueData), string(syncedData), string(metaData), entry.Subscribed, lastUpdated, lastSynced)
	if err != nil {
		log.Warn().Str("key", key).Err(err).Msg("Failed to persist store entry")
	}
}

// Get returns the current value for a key.
func (s *SQLite) Get(key string) (any, bool) { return s.mem.Get(key) }

// GetEntry returns the full entry for a key.
func (s *SQLite) GetEntry(key string) (Entry, bool) { return s.mem.GetEntry(key) }

// Set writes a poll-originated value and persists it.
func (s *SQLite) Set(key string, value any, meta *Meta) error {
	if err := s.mem.Set(key, value, meta); err != nil {
		return err
	}
	s.persist(key)
	return nil
}

// Ack writes a value without marking it synced, and persists it.
func (s *SQLite) Ack(key string, value any) error {
	if err := s.mem.Ack(key, value); err != nil {
		return err
	}
	s.persist(key)
	return nil
}

// Subscribe marks a key as externally writable.
func (s *SQLite) Subscribe(key string) {
	s.mem.Subscribe(key)
	s.persist(key)
}

// Subscribed reports whether a key is subscribed.
func (s *SQLite) Subscribed(key string) bool { return s.mem.Subscribed(key) }

// OnExternalWrite registers the external write callback.
func (s *SQLite) OnExternalWrite(fn WriteFunc) { s.mem.OnExternalWrite(fn) }

// ExternalWrite records a write from an external actor.
func (s *SQLite) ExternalWrite(key string, value any) {
	s.mem.ExternalWrite(key, value)
	s.persist(key)
}

// Keys returns all known keys.
func (s *SQLite) Keys() []string { return s.mem.Keys() }

// Delete removes a key from memory and the database.
func (s *SQLite) Delete(key string) (bool, error) {
	ok, _ := s.mem.Delete(key)
	if _, err := s.db.Exec(`DELETE FROM store_entries WHERE key = ?`, key); err != nil {
		return ok, fmt.Errorf("failed to delete store entry: %w", err)
	}
	return ok, nil
}

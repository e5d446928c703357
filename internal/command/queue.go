package command

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Queue coalesces pending commands per trigger path. Later writes to
// the same trigger merge their bodies field-by-field, last value wins,
// so an entry always holds the net effect since the last flush.
type Queue struct {
	mu      sync.Mutex
	entries map[string]*Command
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{entries: make(map[string]*Command)}
}

// Enqueue merges a command into the pending entry for its trigger.
func (q *Queue) Enqueue(cmd Command) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entries[cmd.Trigger]
	if !ok {
		merged := cmd
		merged.Body = make(map[string]any, len(cmd.Body))
		for field, value := range cmd.Body {
			merged.Body[field] = value
		}
		q.entries[cmd.Trigger] = &merged
		log.Debug().Str("trigger", cmd.Trigger).Interface("commands", cmd.Body).Msg("Queued new entry")
		return
	}

	for field, value := range cmd.Body {
		entry.Body[field] = value
	}
	entry.Method = cmd.Method
	log.Debug().Str("trigger", cmd.Trigger).Interface("commands", entry.Body).Msg("Merged into pending entry")
}

// Drain removes and returns all pending entries. Entries leave the
// queue before they are sent, so an enqueue during an in-flight request
// starts a fresh entry.
func (q *Queue) Drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil
	}
	drained := make([]Command, 0, len(q.entries))
	for _, entry := range q.entries {
		drained = append(drained, *entry)
	}
	q.entries = make(map[string]*Command)
	return drained
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
